package service

import (
	"context"
	"strings"
	"time"

	"card_shop/internal/metrics"
	"card_shop/internal/payment"
	"card_shop/internal/queue"
	"card_shop/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName = "card_shop/service"
	spanPrefix = "UC."
)

// Gateway 支付网关下单接口，payment.Client 是它的 HTTP 实现。
type Gateway interface {
	CreateTrade(ctx context.Context, fields map[string]string) (*payment.TradeResponse, error)
}

// EventPublisher 结算事件的发布者，queue.StreamPublisher 是它的 Redis 实现。
type EventPublisher interface {
	PublishSettlement(ctx context.Context, ev queue.SettlementEvent) error
}

// Settings 下单与结算需要的配置，由调用方显式传入。
type Settings struct {
	MerchantID string
	AppID      string
	PayKey     string // 与网关共享的签名密钥
	SiteURL    string // 回调与同步跳转地址的前缀
	SupportQQ  string // 致歉文案中的客服 QQ
	// ScopeBatchToCommodity 为 true 时结算只从订单所属商品的卡密中领取。
	ScopeBatchToCommodity bool
}

// OrderService 下单、支付回调结算与订单查询。
type OrderService struct {
	store   *repository.Store
	gateway Gateway
	cfg     Settings

	log     *zap.Logger
	metrics *metrics.Metrics
	events  EventPublisher
	tracer  trace.Tracer

	now     func() time.Time
	tradeNo func(time.Time) string
}

type Option func(*OrderService)

func WithLogger(l *zap.Logger) Option { return func(s *OrderService) { s.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *OrderService) { s.metrics = m } }

func WithEvents(p EventPublisher) Option { return func(s *OrderService) { s.events = p } }

func WithClock(now func() time.Time) Option { return func(s *OrderService) { s.now = now } }

func NewOrderService(store *repository.Store, gateway Gateway, cfg Settings, opts ...Option) *OrderService {
	s := &OrderService{
		store:   store,
		gateway: gateway,
		cfg:     cfg,
		log:     zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
		tradeNo: newTradeNo,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newTradeNo 生成订单号：秒级时间戳 + 12 位随机十六进制。
func newTradeNo(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return now.Format("20060102150405") + strings.ToUpper(id[:12])
}

func (s *OrderService) apology() string {
	return "很抱歉，当前库存不足，自动发卡失败，请联系客服QQ：" + s.cfg.SupportQQ
}
