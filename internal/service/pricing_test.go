package service

import (
	"fmt"
	"strings"
	"testing"

	"card_shop/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func wholesaleCommodity(price, tiers string) *model.Commodity {
	return &model.Commodity{
		Price:           decimal.RequireFromString(price),
		Wholesale:       tiers,
		WholesaleStatus: model.WholesaleEnabled,
	}
}

func TestComputeAmount_Tiers(t *testing.T) {
	c := wholesaleCommodity("100", "5-90\n10-80")

	tests := []struct {
		qty  int
		want string
	}{
		{qty: 1, want: "100"},
		{qty: 3, want: "300"},
		{qty: 5, want: "450"},
		{qty: 7, want: "630"},
		{qty: 10, want: "800"},
		{qty: 12, want: "960"},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("qty=%d", tc.qty), func(t *testing.T) {
			got := ComputeAmount(tc.qty, c)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

func TestComputeAmount_WholesaleDisabledIgnoresTiers(t *testing.T) {
	c := wholesaleCommodity("100", "5-90\n10-80")
	c.WholesaleStatus = model.WholesaleDisabled

	got := ComputeAmount(10, c)
	assert.True(t, got.Equal(decimal.NewFromInt(1000)), "got %s", got)
}

func TestParseWholesale_SkipsMalformedRows(t *testing.T) {
	raw := strings.Join([]string{
		"5-90",
		"garbage",
		"1-2-3",
		"x-10",
		"8-y",
		"",
		"  10 - 80.5 \r",
	}, "\r\n")

	tiers := ParseWholesale(raw)
	require.Len(t, tiers, 2)
	assert.Equal(t, 10, tiers[0].Min)
	assert.True(t, tiers[0].Price.Equal(decimal.RequireFromString("80.5")))
	assert.Equal(t, 5, tiers[1].Min)
	assert.True(t, tiers[1].Price.Equal(decimal.NewFromInt(90)))
}

func TestParseWholesale_LaterDuplicateWins(t *testing.T) {
	tiers := ParseWholesale("5-90\n5-85")
	require.Len(t, tiers, 1)
	assert.True(t, tiers[0].Price.Equal(decimal.NewFromInt(85)))
}

func TestParseWholesale_Empty(t *testing.T) {
	assert.Empty(t, ParseWholesale(""))
	c := wholesaleCommodity("12.5", "not a tier")
	assert.True(t, ComputeAmount(2, c).Equal(decimal.NewFromInt(25)))
}

// 任意阶梯配置下：整单金额 = 数量 × 适用单价，
// 适用单价来自不超过数量的最大门槛，没有门槛命中时为原价。
func TestComputeAmount_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := rapid.IntRange(0, 100000).Draw(t, "base_cents")
		n := rapid.IntRange(0, 5).Draw(t, "tiers")

		lines := make([]string, 0, n)
		prices := map[int]int{}
		for i := 0; i < n; i++ {
			threshold := rapid.IntRange(1, 50).Draw(t, "threshold")
			cents := rapid.IntRange(0, 100000).Draw(t, "tier_cents")
			prices[threshold] = cents
			lines = append(lines, fmt.Sprintf("%d-%s", threshold, decimal.New(int64(cents), -2).String()))
		}
		c := &model.Commodity{
			Price:           decimal.New(int64(base), -2),
			Wholesale:       strings.Join(lines, "\n"),
			WholesaleStatus: model.WholesaleEnabled,
		}
		qty := rapid.IntRange(1, 60).Draw(t, "qty")

		wantUnit := base
		best := 0
		for threshold, cents := range prices {
			if threshold <= qty && threshold > best {
				best = threshold
				wantUnit = cents
			}
		}
		want := decimal.New(int64(wantUnit), -2).Mul(decimal.NewFromInt(int64(qty)))

		got := ComputeAmount(qty, c)
		if !got.Equal(want) {
			t.Fatalf("qty=%d tiers=%q: got %s want %s", qty, c.Wholesale, got, want)
		}
		if got.IsNegative() {
			t.Fatalf("negative amount %s", got)
		}
	})
}
