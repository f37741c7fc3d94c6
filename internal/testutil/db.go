// Package testutil 测试用数据库与种子数据。
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"card_shop/internal/model"
	"card_shop/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NewDB 在临时目录创建一个已迁移的 SQLite 数据库。
// 与 serve 的默认配置走同一条打开路径（裸文件路径，连接池不设上限）。
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "card_shop.db")

	db, err := repository.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Commodity 写入一个商品；Status 为 0 时会显式更新为下架（列默认值为上架）。
func Commodity(t testing.TB, db *gorm.DB, c model.Commodity) *model.Commodity {
	t.Helper()
	if c.Name == "" {
		c.Name = "test commodity"
	}
	status := c.Status
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("create commodity: %v", err)
	}
	if status == model.CommodityOffSale {
		if err := db.Model(&c).Update("status", model.CommodityOffSale).Error; err != nil {
			t.Fatalf("set commodity off sale: %v", err)
		}
		c.Status = model.CommodityOffSale
	}
	return &c
}

// OnSale 按单价写入一个在售商品。
func OnSale(t testing.TB, db *gorm.DB, price string) *model.Commodity {
	t.Helper()
	return Commodity(t, db, model.Commodity{
		Price:  decimal.RequireFromString(price),
		Status: model.CommodityOnSale,
	})
}

// Cards 为商品写入 n 张可售卡密，卡密内容为 "<商品ID>-<序号>"。
func Cards(t testing.TB, db *gorm.DB, commodityID uint, n int) []model.Card {
	t.Helper()
	if n == 0 {
		return nil
	}
	cards := make([]model.Card, n)
	for i := range cards {
		cards[i] = model.Card{
			CommodityID: commodityID,
			Secret:      fmt.Sprintf("%d-%03d", commodityID, i+1),
			Status:      model.CardAvailable,
		}
	}
	if err := db.Create(&cards).Error; err != nil {
		t.Fatalf("create cards: %v", err)
	}
	return cards
}

// Pay 写入一个支付方式。
func Pay(t testing.TB, db *gorm.DB, code string, enabled bool) *model.Pay {
	t.Helper()
	p := model.Pay{Name: code, Code: code, Status: model.PayEnabled}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("create pay: %v", err)
	}
	if !enabled {
		if err := db.Model(&p).Update("status", model.PayDisabled).Error; err != nil {
			t.Fatalf("disable pay: %v", err)
		}
		p.Status = model.PayDisabled
	}
	return &p
}

// Voucher 写入一张未使用的优惠券。
func Voucher(t testing.TB, db *gorm.DB, commodityID uint, code, money string) *model.Voucher {
	t.Helper()
	v := model.Voucher{
		CommodityID: commodityID,
		Code:        code,
		Money:       decimal.RequireFromString(money),
		Status:      model.VoucherUnused,
	}
	if err := db.Create(&v).Error; err != nil {
		t.Fatalf("create voucher: %v", err)
	}
	return &v
}

// CountSold 统计已售卡密数量。
func CountSold(t testing.TB, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&model.Card{}).Where("status = ?", model.CardSold).Count(&n).Error; err != nil {
		t.Fatalf("count sold: %v", err)
	}
	return n
}

// CountOrders 统计订单数量。
func CountOrders(t testing.TB, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&model.Order{}).Count(&n).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	return n
}
