package repository

import (
	"time"

	"card_shop/internal/model"

	"gorm.io/gorm/clause"
)

// Claim 描述一次卡密领取：写入卡密的联系方式、时间和订单号。
type Claim struct {
	TradeNo string
	Contact string
	At      time.Time
}

// CountAvailableCards 统计某商品可售卡密数量。
func (r *Repo) CountAvailableCards(commodityID uint) (int64, error) {
	var n int64
	err := r.db.Model(&model.Card{}).
		Where("commodity_id = ? AND status = ?", commodityID, model.CardAvailable).
		Count(&n).Error
	return n, err
}

// ClaimCards 用一条条件 UPDATE 领取最多 limit 张可售卡密，返回本次实际领取到的卡密。
// commodityID 为 0 时不限商品。
// 子查询选出候选行，外层再次校验 status，保证并发下同一张卡只会被一个订单领取；
// PostgreSQL 下候选行加 FOR UPDATE SKIP LOCKED，避免并发领取互相等待后落空。
func (r *Repo) ClaimCards(commodityID uint, limit int, c Claim) ([]model.Card, error) {
	if limit <= 0 {
		return nil, nil
	}
	sub := r.db.Model(&model.Card{}).Select("id").Where("status = ?", model.CardAvailable)
	if commodityID != 0 {
		sub = sub.Where("commodity_id = ?", commodityID)
	}
	sub = sub.Order("id").Limit(limit)
	if r.db.Dialector.Name() == "postgres" {
		sub = sub.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}

	res := r.db.Model(&model.Card{}).
		Where("id IN (?)", sub).
		Where("status = ?", model.CardAvailable).
		Updates(map[string]any{
			"status":   model.CardSold,
			"contact":  c.Contact,
			"buy_date": c.At,
			"trade_no": c.TradeNo,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	var cards []model.Card
	err := r.db.Where("trade_no = ? AND status = ?", c.TradeNo, model.CardSold).
		Order("id").
		Find(&cards).Error
	return cards, err
}
