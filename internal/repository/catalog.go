package repository

import (
	"card_shop/internal/model"
)

// FindCommodity 按主键查询商品。
func (r *Repo) FindCommodity(id uint) (*model.Commodity, error) {
	var c model.Commodity
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &c, nil
}

// FindPay 按主键查询支付方式。
func (r *Repo) FindPay(id uint) (*model.Pay, error) {
	var p model.Pay
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &p, nil
}
