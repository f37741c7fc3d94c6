package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderPending = 0 // 待支付
	OrderSettled = 1 // 已支付（含免费订单）
)

// Order 卡密订单
type Order struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TradeNo     string          `gorm:"size:64;uniqueIndex;not null" json:"trade_no"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"` // 优惠后金额
	PayID       uint            `gorm:"not null;index" json:"pay_id"`
	CommodityID uint            `gorm:"not null;index" json:"commodity_id"`
	Num         int             `gorm:"not null;default:1" json:"num"`
	Contact     string          `gorm:"size:128;not null;index" json:"contact"`
	Pass        string          `gorm:"size:128" json:"-"`
	Status      int             `gorm:"not null;default:0;index" json:"status"`

	CreateDate   time.Time  `gorm:"not null" json:"create_date"`
	CreateIP     string     `gorm:"size:64" json:"create_ip"`
	CreateDevice int        `gorm:"not null;default:0" json:"create_device"`
	PayDate      *time.Time `json:"pay_date"`
	VoucherID    *uint      `gorm:"index" json:"voucher_id"`

	// Delivery 发货内容：换行分隔的卡密，或库存不足时的致歉文案。
	Delivery string `gorm:"type:text" json:"-"`
	// URL 付费订单的支付跳转地址。
	URL string `gorm:"type:text" json:"url"`
}

// 显式实现结构，确定表名
func (Order) TableName() string { return "orders" }

// All 返回需要迁移的全部模型。
func All() []any {
	return []any{&Commodity{}, &Card{}, &Voucher{}, &Pay{}, &Order{}}
}
