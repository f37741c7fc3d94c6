package service

import (
	"context"
	"sync"
	"testing"

	"card_shop/internal/metrics"
	"card_shop/internal/model"
	"card_shop/internal/testutil"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// pendingOrder 通过下单流程生成一笔待支付订单。
func pendingOrder(t *testing.T, svc *OrderService, db *gorm.DB, commodityID uint, num int) string {
	t.Helper()
	pay := testutil.Pay(t, db, "alipay", true)
	res, err := svc.Trade(context.Background(), TradeRequest{
		Contact: "buyer@example.com", Num: num, PayID: pay.ID, CommodityID: commodityID,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.URL)
	return res.TradeNo
}

func TestCallback_SettlesAndDelivers(t *testing.T) {
	events := &recordingEvents{}
	svc, db := newTestService(t, okGateway("http://pay.test/x"), testSettings, WithEvents(events))
	c := testutil.OnSale(t, db, "10")
	cards := testutil.Cards(t, db, c.ID, 3)
	tradeNo := pendingOrder(t, svc, db, c.ID, 2)

	result, err := svc.Callback(context.Background(), signedCallback(tradeNo, "1"))
	require.NoError(t, err)
	assert.Equal(t, CallbackSuccess, result)

	o := findOrder(t, db, tradeNo)
	assert.Equal(t, model.OrderSettled, o.Status)
	require.NotNil(t, o.PayDate)
	assert.Equal(t, cards[0].Secret+"\n"+cards[1].Secret, o.Delivery)

	var sold []model.Card
	require.NoError(t, db.Where("trade_no = ?", tradeNo).Order("id").Find(&sold).Error)
	require.Len(t, sold, 2)
	for _, card := range sold {
		assert.Equal(t, model.CardSold, card.Status)
		assert.Equal(t, "buyer@example.com", card.Contact)
		require.NotNil(t, card.BuyDate)
		assert.True(t, card.BuyDate.Equal(*o.PayDate))
	}

	require.Len(t, events.events, 1)
	ev := events.events[0]
	assert.Equal(t, tradeNo, ev.TradeNo)
	assert.Equal(t, 2, ev.Quantity)
	assert.True(t, ev.Fulfilled)
}

func TestCallback_Idempotent(t *testing.T) {
	svc, db := newTestService(t, okGateway("http://pay.test/x"), testSettings)
	c := testutil.OnSale(t, db, "10")
	testutil.Cards(t, db, c.ID, 4)
	tradeNo := pendingOrder(t, svc, db, c.ID, 2)

	_, err := svc.Callback(context.Background(), signedCallback(tradeNo, "1"))
	require.NoError(t, err)
	first := findOrder(t, db, tradeNo)

	_, err = svc.Callback(context.Background(), signedCallback(tradeNo, "1"))
	require.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, KindIntegrity, KindOf(err))

	again := findOrder(t, db, tradeNo)
	assert.Equal(t, first.Delivery, again.Delivery)
	assert.EqualValues(t, 2, testutil.CountSold(t, db))
}

func TestCallback_ConcurrentDuplicatesSettleOnce(t *testing.T) {
	svc, db := newTestService(t, okGateway("http://pay.test/x"), testSettings)
	c := testutil.OnSale(t, db, "10")
	testutil.Cards(t, db, c.ID, 10)
	tradeNo := pendingOrder(t, svc, db, c.ID, 2)

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Callback(context.Background(), signedCallback(tradeNo, "1"))
		}(i)
	}
	wg.Wait()

	success := 0
	for _, err := range errs {
		if err == nil {
			success++
			continue
		}
		assert.ErrorIs(t, err, ErrOrderNotFound)
	}
	assert.Equal(t, 1, success)
	assert.EqualValues(t, 2, testutil.CountSold(t, db))
}

func TestCallback_RejectsWithoutMutation(t *testing.T) {
	svc, db := newTestService(t, okGateway("http://pay.test/x"), testSettings)
	c := testutil.OnSale(t, db, "10")
	testutil.Cards(t, db, c.ID, 2)
	tradeNo := pendingOrder(t, svc, db, c.ID, 1)

	tampered := signedCallback(tradeNo, "1")
	tampered["amount"] = "0.01"

	unsigned := signedCallback(tradeNo, "1")
	delete(unsigned, "sign")

	wrongKey := map[string]string{"out_trade_no": tradeNo, "status": "1"}
	wrongKey["sign"] = "0123456789abcdef0123456789abcdef"

	tests := []struct {
		name   string
		fields map[string]string
		want   string
	}{
		{"tampered field", tampered, CallbackSignError},
		{"missing sign", unsigned, CallbackSignError},
		{"forged sign", wrongKey, CallbackSignError},
		{"status not paid", signedCallback(tradeNo, "0"), CallbackStatusError},
		{"status missing", signedCallback(tradeNo, ""), CallbackStatusError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := svc.Callback(context.Background(), tc.fields)
			require.NoError(t, err)
			assert.Equal(t, tc.want, result)

			o := findOrder(t, db, tradeNo)
			assert.Equal(t, model.OrderPending, o.Status)
			assert.Nil(t, o.PayDate)
			assert.EqualValues(t, 0, testutil.CountSold(t, db))
		})
	}
}

func TestCallback_UnknownOrder(t *testing.T) {
	svc, _ := newTestService(t, okGateway(""), testSettings)

	_, err := svc.Callback(context.Background(), signedCallback("NO-SUCH-ORDER", "1"))
	require.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, KindIntegrity, KindOf(err))
}

func TestCallback_ShortfallDeliversApology(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	events := &recordingEvents{}
	svc, db := newTestService(t, okGateway("http://pay.test/x"), testSettings, WithMetrics(m), WithEvents(events))
	c := testutil.OnSale(t, db, "10")
	cards := testutil.Cards(t, db, c.ID, 3)
	tradeNo := pendingOrder(t, svc, db, c.ID, 3)

	// 下单后有一张卡被别的订单领走
	require.NoError(t, db.Model(&model.Card{}).Where("id = ?", cards[0].ID).
		Updates(map[string]any{"status": model.CardSold, "trade_no": "OTHER"}).Error)

	result, err := svc.Callback(context.Background(), signedCallback(tradeNo, "1"))
	require.NoError(t, err)
	assert.Equal(t, CallbackSuccess, result)

	o := findOrder(t, db, tradeNo)
	assert.Equal(t, model.OrderSettled, o.Status)
	assert.Equal(t, "很抱歉，当前库存不足，自动发卡失败，请联系客服QQ：10001", o.Delivery)

	// 部分领取已回滚
	var mine int64
	require.NoError(t, db.Model(&model.Card{}).Where("trade_no = ?", tradeNo).Count(&mine).Error)
	assert.EqualValues(t, 0, mine)
	assert.EqualValues(t, 1, testutil.CountSold(t, db))

	assert.Equal(t, 1.0, promtest.ToFloat64(m.Shortfall))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Callbacks.WithLabelValues("success")))
	require.Len(t, events.events, 1)
	assert.False(t, events.events[0].Fulfilled)
}

func TestCallback_BatchPoolScope(t *testing.T) {
	setup := func(t *testing.T, cfg Settings) (*OrderService, *gorm.DB, string, model.Card) {
		svc, db := newTestService(t, okGateway("http://pay.test/x"), cfg)
		a := testutil.OnSale(t, db, "10")
		b := testutil.OnSale(t, db, "10")
		aCards := testutil.Cards(t, db, a.ID, 1)
		tradeNo := pendingOrder(t, svc, db, a.ID, 1)
		require.NoError(t, db.Model(&model.Card{}).Where("id = ?", aCards[0].ID).
			Update("status", model.CardSold).Error)
		bCards := testutil.Cards(t, db, b.ID, 1)
		return svc, db, tradeNo, bCards[0]
	}

	t.Run("system wide by default", func(t *testing.T) {
		svc, db, tradeNo, other := setup(t, testSettings)
		_, err := svc.Callback(context.Background(), signedCallback(tradeNo, "1"))
		require.NoError(t, err)
		assert.Equal(t, other.Secret, findOrder(t, db, tradeNo).Delivery)
	})

	t.Run("scoped to commodity", func(t *testing.T) {
		cfg := testSettings
		cfg.ScopeBatchToCommodity = true
		svc, db, tradeNo, _ := setup(t, cfg)
		_, err := svc.Callback(context.Background(), signedCallback(tradeNo, "1"))
		require.NoError(t, err)
		assert.Equal(t, svc.apology(), findOrder(t, db, tradeNo).Delivery)
	})
}
