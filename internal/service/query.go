package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"card_shop/internal/model"
	"card_shop/internal/repository"

	"github.com/shopspring/decimal"
)

// OrderView 订单查询结果；未支付时不含发货内容。
type OrderView struct {
	TradeNo    string
	Amount     decimal.Decimal
	Num        int
	Status     int
	CreateDate time.Time
	PayDate    *time.Time
	Delivery   string
	URL        string
}

// Query 按订单号查询订单。设置了查询密码的订单需要提供正确密码。
func (s *OrderService) Query(ctx context.Context, tradeNo, pass string) (*OrderView, error) {
	o, err := s.store.Reader(ctx).FindOrderByTradeNo(tradeNo)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if o.Pass != "" && subtle.ConstantTimeCompare([]byte(o.Pass), []byte(pass)) != 1 {
		return nil, ErrOrderPasswordInvalid
	}

	v := &OrderView{
		TradeNo:    o.TradeNo,
		Amount:     o.Amount,
		Num:        o.Num,
		Status:     o.Status,
		CreateDate: o.CreateDate,
		PayDate:    o.PayDate,
	}
	if o.Status == model.OrderSettled {
		v.Delivery = o.Delivery
	} else {
		v.URL = o.URL
	}
	return v, nil
}
