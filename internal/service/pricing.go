package service

import (
	"sort"
	"strconv"
	"strings"

	"card_shop/internal/model"

	"github.com/shopspring/decimal"
)

// WholesaleTier 批发阶梯：购买数量 >= Min 时整单按 Price 计价。
type WholesaleTier struct {
	Min   int
	Price decimal.Decimal
}

// ParseWholesale 解析商品的批发配置，每行 "最低数量-单价"。
// 字段数不是 2 或无法解析的行直接跳过；同一数量出现多次时后者覆盖前者。
// 返回结果按 Min 降序排列。
func ParseWholesale(raw string) []WholesaleTier {
	byMin := make(map[int]decimal.Decimal)
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "-")
		if len(parts) != 2 {
			continue
		}
		threshold, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		price, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if err != nil {
			continue
		}
		byMin[threshold] = price
	}

	tiers := make([]WholesaleTier, 0, len(byMin))
	for threshold, price := range byMin {
		tiers = append(tiers, WholesaleTier{Min: threshold, Price: price})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Min > tiers[j].Min })
	return tiers
}

// UnitPrice 返回 quantity 件时适用的单价：
// 开启批发时取门槛 <= quantity 的最大门槛对应单价，否则为商品原价。
func UnitPrice(quantity int, c *model.Commodity) decimal.Decimal {
	if c.WholesaleStatus == model.WholesaleEnabled {
		for _, t := range ParseWholesale(c.Wholesale) {
			if quantity >= t.Min {
				return t.Price
			}
		}
	}
	return c.Price
}

// ComputeAmount 计算订单金额（未扣优惠券）。阶梯价作用于整单，不分段累加。
func ComputeAmount(quantity int, c *model.Commodity) decimal.Decimal {
	return UnitPrice(quantity, c).Mul(decimal.NewFromInt(int64(quantity)))
}
