package queue

import (
	"context"

	rd "github.com/redis/go-redis/v9"
)

// StreamPublisher 把结算事件写入 Redis Stream，由 Relay 异步转发到 Kafka。
type StreamPublisher struct {
	rdb    *rd.Client
	stream string
}

func NewStreamPublisher(rdb *rd.Client, stream string) *StreamPublisher {
	return &StreamPublisher{rdb: rdb, stream: stream}
}

// PublishSettlement 追加一条结算事件。
func (p *StreamPublisher) PublishSettlement(ctx context.Context, ev SettlementEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	fulfilled := "0"
	if ev.Fulfilled {
		fulfilled = "1"
	}
	return p.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"trade_no":     ev.TradeNo,
			"commodity_id": ev.CommodityID,
			"quantity":     ev.Quantity,
			"contact":      ev.Contact,
			"fulfilled":    fulfilled,
			"paid_at":      ev.PaidAt,
		},
	}).Err()
}
