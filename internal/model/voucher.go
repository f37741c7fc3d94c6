package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	VoucherUnused = 0
	VoucherUsed   = 1
)

// Voucher 优惠券，同一商品下券码唯一，只能核销一次。
type Voucher struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	CommodityID uint            `gorm:"not null;uniqueIndex:idx_voucher_commodity_code" json:"commodity_id"`
	Code        string          `gorm:"size:16;not null;uniqueIndex:idx_voucher_commodity_code" json:"code"`
	Money       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"money"`
	Status      int             `gorm:"not null;default:0" json:"status"`
	Contact     string          `gorm:"size:128" json:"contact"`
	UseDate     *time.Time      `json:"use_date"`
}

func (Voucher) TableName() string { return "vouchers" }
