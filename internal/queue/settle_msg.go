package queue

import "fmt"

// SettlementEvent 支付回调结算完成后发出的事件。
type SettlementEvent struct {
	TradeNo     string `json:"trade_no"`
	CommodityID uint   `json:"commodity_id"`
	Quantity    int    `json:"quantity"`
	Contact     string `json:"contact"`
	Fulfilled   bool   `json:"fulfilled"` // false 表示库存不足、已发送致歉文案
	PaidAt      int64  `json:"paid_at"`   // unix 秒
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (m SettlementEvent) Validate() error {
	if m.TradeNo == "" {
		return fmt.Errorf("trade_no is required")
	}
	if m.CommodityID == 0 {
		return fmt.Errorf("commodity_id is required")
	}
	if m.Quantity <= 0 {
		return fmt.Errorf("quantity must be > 0")
	}
	if m.PaidAt <= 0 {
		return fmt.Errorf("paid_at is required")
	}
	return nil
}
