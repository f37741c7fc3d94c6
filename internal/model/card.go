package model

import "time"

const (
	CardAvailable = 0
	CardSold      = 1
)

// Card 卡密库存：一条记录只能被卖出一次，卖出后不会回到可售状态。
type Card struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	CommodityID uint       `gorm:"not null;index" json:"commodity_id"`
	Secret      string     `gorm:"type:text;not null" json:"-"`
	Status      int        `gorm:"not null;default:0;index" json:"status"`
	Contact     string     `gorm:"size:128" json:"contact"`
	BuyDate     *time.Time `json:"buy_date"`
	// TradeNo 记录领取该卡密的订单号。
	TradeNo string `gorm:"size:64;index" json:"trade_no"`
}

func (Card) TableName() string { return "cards" }
