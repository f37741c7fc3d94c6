package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ContactType 商品要求的联系方式格式。
type ContactType int

const (
	ContactAny   ContactType = iota // 不限制
	ContactPhone                    // 手机号
	ContactEmail                    // 邮箱
	ContactQQ                       // QQ 号
)

const (
	CommodityOffSale = 0
	CommodityOnSale  = 1

	WholesaleDisabled = 0
	WholesaleEnabled  = 1
)

// Commodity 商品：单价、批发阶梯价、联系方式要求、上下架状态。
// 下单流程只读取，不修改。
type Commodity struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name  string          `gorm:"size:128;not null" json:"name"`
	Price decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"price"`
	// Wholesale 每行一条 "最低数量-单价"，例如 "5-90"。
	Wholesale       string      `gorm:"type:text" json:"wholesale"`
	WholesaleStatus int         `gorm:"not null;default:0" json:"wholesale_status"`
	Contact         ContactType `gorm:"not null;default:0" json:"contact"`
	Status          int         `gorm:"not null;default:1;index" json:"status"`
}

func (Commodity) TableName() string { return "commodities" }
