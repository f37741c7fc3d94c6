package service

import (
	"card_shop/internal/model"
	"card_shop/internal/repository"
)

// ReserveOne 原子领取某商品的一张可售卡密，没有可售卡密时返回 ErrOutOfStock。
func ReserveOne(r *repository.Repo, commodityID uint, c repository.Claim) (*model.Card, error) {
	cards, err := r.ClaimCards(commodityID, 1, c)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, ErrOutOfStock
	}
	return &cards[0], nil
}

// AllocateBatch 原子领取 count 张可售卡密，全有或全无。
// commodityID 为 0 时从全部商品的卡密池中领取。
// 实际领取数量不足 count 时回滚本次领取（保存点）并返回 ErrInsufficientStock，
// 外层事务中的其他写入不受影响。
func AllocateBatch(r *repository.Repo, commodityID uint, count int, c repository.Claim) ([]model.Card, error) {
	var cards []model.Card
	err := r.Nested(func(n *repository.Repo) error {
		claimed, err := n.ClaimCards(commodityID, count, c)
		if err != nil {
			return err
		}
		if len(claimed) < count {
			return ErrInsufficientStock
		}
		cards = claimed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cards, nil
}
