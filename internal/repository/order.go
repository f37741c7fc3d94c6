package repository

import (
	"time"

	"card_shop/internal/model"
)

// CreateOrder 写入订单。
func (r *Repo) CreateOrder(o *model.Order) error {
	return r.db.Create(o).Error
}

// FindOrderByTradeNo 按订单号查询订单。
func (r *Repo) FindOrderByTradeNo(tradeNo string) (*model.Order, error) {
	var o model.Order
	if err := r.db.Where("trade_no = ?", tradeNo).First(&o).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &o, nil
}

// SettleOrder 以 status=pending 为条件把订单置为已支付，返回是否抢到结算权。
// 这是支付回调唯一的幂等闸门：重复或并发的回调只有一个能拿到 true。
func (r *Repo) SettleOrder(tradeNo string, at time.Time) (bool, error) {
	res := r.db.Model(&model.Order{}).
		Where("trade_no = ? AND status = ?", tradeNo, model.OrderPending).
		Updates(map[string]any{
			"status":   model.OrderSettled,
			"pay_date": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetDelivery 写入订单发货内容。
func (r *Repo) SetDelivery(orderID uint, delivery string) error {
	return r.db.Model(&model.Order{}).
		Where("id = ?", orderID).
		Update("delivery", delivery).Error
}
