package queue

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Notifier 处理一条结算事件（发货通知等）。
type Notifier interface {
	Notify(ctx context.Context, ev SettlementEvent) error
}

// LogNotifier 把发货通知写入结构化日志。
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, ev SettlementEvent) error {
	n.Log.Info("delivery_notice",
		zap.String("trade_no", ev.TradeNo),
		zap.Uint("commodity_id", ev.CommodityID),
		zap.Int("quantity", ev.Quantity),
		zap.String("contact", ev.Contact),
		zap.Bool("fulfilled", ev.Fulfilled),
	)
	return nil
}

// Consumer 从 Kafka 读取结算事件并交给 Notifier。
type Consumer struct {
	r        *kafka.Reader
	notifier Notifier
	log      *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, notifier Notifier, log *zap.Logger) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		notifier: notifier,
		log:      log,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}
		if err := c.handle(ctx, m.Value); err != nil {
			c.log.Warn("consumer handle", zap.Error(err), zap.ByteString("key", m.Key))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, value []byte) error {
	var ev SettlementEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return err
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	return c.notifier.Notify(ctx, ev)
}
