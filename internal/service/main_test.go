package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"card_shop/internal/payment"
	"card_shop/internal/queue"
	"card_shop/internal/repository"
	"card_shop/internal/testutil"

	"go.uber.org/goleak"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)

var testSettings = Settings{
	MerchantID: "m-1001",
	AppID:      "app-1",
	PayKey:     "test-pay-key",
	SiteURL:    "http://shop.test",
	SupportQQ:  "10001",
}

// fakeGateway 记录下单请求并返回预设结果。
type fakeGateway struct {
	mu    sync.Mutex
	calls []map[string]string
	resp  *payment.TradeResponse
	err   error
}

func okGateway(url string) *fakeGateway {
	resp := &payment.TradeResponse{Code: payment.CodeOK}
	resp.Data.URL = url
	return &fakeGateway{resp: resp}
}

func (g *fakeGateway) CreateTrade(_ context.Context, fields map[string]string) (*payment.TradeResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	g.calls = append(g.calls, cp)
	return g.resp, g.err
}

func (g *fakeGateway) Calls() []map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// recordingEvents 记录发布的结算事件。
type recordingEvents struct {
	mu     sync.Mutex
	events []queue.SettlementEvent
}

func (r *recordingEvents) PublishSettlement(_ context.Context, ev queue.SettlementEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func newTestService(t *testing.T, gw Gateway, cfg Settings, opts ...Option) (*OrderService, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	seq := 0
	var mu sync.Mutex
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	svc := NewOrderService(repository.NewStore(db), gw, cfg, opts...)
	// 固定时钟下订单号需要保持唯一
	svc.tradeNo = func(now time.Time) string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("%sT%06d", now.Format("20060102150405"), seq)
	}
	return svc, db
}

// signedCallback 构造一份合法签名的回调参数。
func signedCallback(tradeNo, status string) map[string]string {
	fields := map[string]string{
		"out_trade_no": tradeNo,
		"status":       status,
		"amount":       "10.00",
	}
	fields[payment.SignField] = payment.Sign(fields, testSettings.PayKey)
	return fields
}
