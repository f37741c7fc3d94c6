package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Publisher 接收 Relay 转发的事件，Producer 是它的 Kafka 实现。
type Publisher interface {
	Publish(ctx context.Context, ev SettlementEvent) error
}

// Relay 将 Redis Stream 中的结算事件异步转发到 Kafka。
// 语义：发布成功后才 ACK Stream，失败则保留消息等待重试。
type Relay struct {
	rdb       *rd.Client
	publisher Publisher
	log       *zap.Logger

	stream   string
	group    string
	consumer string
}

func NewRelay(rdb *rd.Client, publisher Publisher, stream, group, consumer string, log *zap.Logger) *Relay {
	return &Relay{
		rdb:       rdb,
		publisher: publisher,
		log:       log,
		stream:    stream,
		group:     group,
		consumer:  consumer,
	}
}

func (r *Relay) Run(ctx context.Context) {
	if err := r.ensureGroup(ctx); err != nil {
		r.log.Error("relay ensure group", zap.Error(err))
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.poll(ctx, 2*time.Second); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			r.log.Warn("relay poll", zap.Error(err))
			time.Sleep(300 * time.Millisecond)
		}
	}
}

// poll 先处理本消费者历史 pending，再读取新消息；返回成功转发的条数。
func (r *Relay) poll(ctx context.Context, block time.Duration) (int, error) {
	msgs, err := r.readGroup(ctx, "0", 0)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		msgs, err = r.readGroup(ctx, ">", block)
		if err != nil {
			return 0, err
		}
	}

	done := 0
	for _, xm := range msgs {
		if err := r.processOne(ctx, xm); err != nil {
			// 发布失败不 ACK，消息会继续保留用于重试。
			return done, fmt.Errorf("process message id=%s: %w", xm.ID, err)
		}
		done++
	}
	return done, nil
}

func (r *Relay) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (r *Relay) readGroup(ctx context.Context, streamID string, block time.Duration) ([]rd.XMessage, error) {
	args := &rd.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, streamID},
		Count:    16,
		Block:    block,
		NoAck:    false,
	}
	if block == 0 {
		// go-redis 中 Block=0 表示永久阻塞，-1 表示不带 BLOCK 参数
		args.Block = -1
	}
	streams, err := r.rdb.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]rd.XMessage, 0, 16)
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func (r *Relay) processOne(ctx context.Context, xm rd.XMessage) error {
	ev, err := parseSettlementEvent(xm.Values)
	if err != nil {
		// 脏消息直接 ACK 丢弃，避免阻塞队列。
		r.log.Warn("relay drop malformed event", zap.String("id", xm.ID), zap.Error(err))
		return r.ackAndDelete(ctx, xm.ID)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.publisher.Publish(pubCtx, ev); err != nil {
		return err
	}
	return r.ackAndDelete(ctx, xm.ID)
}

func (r *Relay) ackAndDelete(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.XAck(ctx, r.stream, r.group, id)
	pipe.XDel(ctx, r.stream, id)
	_, err := pipe.Exec(ctx)
	return err
}

func parseSettlementEvent(values map[string]interface{}) (SettlementEvent, error) {
	tradeNo, err := getStreamString(values, "trade_no")
	if err != nil {
		return SettlementEvent{}, err
	}
	commodityStr, err := getStreamString(values, "commodity_id")
	if err != nil {
		return SettlementEvent{}, err
	}
	quantityStr, err := getStreamString(values, "quantity")
	if err != nil {
		return SettlementEvent{}, err
	}
	contact, err := getStreamString(values, "contact")
	if err != nil {
		return SettlementEvent{}, err
	}
	fulfilledStr, err := getStreamString(values, "fulfilled")
	if err != nil {
		return SettlementEvent{}, err
	}
	paidAtStr, err := getStreamString(values, "paid_at")
	if err != nil {
		return SettlementEvent{}, err
	}

	commodityID, err := strconv.ParseUint(commodityStr, 10, 64)
	if err != nil {
		return SettlementEvent{}, fmt.Errorf("invalid commodity_id %q", commodityStr)
	}
	quantity, err := strconv.Atoi(quantityStr)
	if err != nil {
		return SettlementEvent{}, fmt.Errorf("invalid quantity %q", quantityStr)
	}
	paidAt, err := strconv.ParseInt(paidAtStr, 10, 64)
	if err != nil {
		return SettlementEvent{}, fmt.Errorf("invalid paid_at %q", paidAtStr)
	}

	ev := SettlementEvent{
		TradeNo:     tradeNo,
		CommodityID: uint(commodityID),
		Quantity:    quantity,
		Contact:     contact,
		Fulfilled:   fulfilledStr == "1",
		PaidAt:      paidAt,
	}
	if err := ev.Validate(); err != nil {
		return SettlementEvent{}, err
	}
	return ev, nil
}

func getStreamString(values map[string]interface{}, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatInt(int64(x), 10), nil
	default:
		return "", fmt.Errorf("unsupported field type %s: %T", key, v)
	}
}
