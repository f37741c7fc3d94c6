package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"card_shop/internal/logging"
	"card_shop/internal/model"
	"card_shop/internal/payment"
	"card_shop/internal/queue"
	"card_shop/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// 回调的纯文本响应，网关据此判断是否需要重发。
const (
	CallbackSuccess     = "success"
	CallbackSignError   = "sign error"
	CallbackStatusError = "status error"
)

// Callback 处理支付网关的异步通知。
// 验签失败、状态非成功时返回对应文本且不做任何写入；
// 找不到待支付订单（未知订单号、已结算、并发重复回调落败）返回 ErrOrderNotFound。
// 结算时库存不足不算失败：订单照常置为已支付，发货内容为致歉文案。
func (s *OrderService) Callback(ctx context.Context, fields map[string]string) (result string, err error) {
	tradeNo := fields["out_trade_no"]
	ctx, span := s.tracer.Start(ctx, spanPrefix+"Callback")
	span.SetAttributes(attribute.String("trade_no", tradeNo))
	start := time.Now()
	logger := logging.FromContext(ctx, s.log).With(zap.String("trade_no", tradeNo))

	defer func() {
		label := strings.ReplaceAll(result, " ", "_")
		if err != nil {
			label = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, errorCode(err))
		} else {
			span.SetStatus(codes.Ok, result)
		}
		span.End()
		if s.metrics != nil {
			s.metrics.Callbacks.WithLabelValues(label).Inc()
		}
		logFields := []zap.Field{
			zap.String("result", label),
			zap.Float64("latency_seconds", time.Since(start).Seconds()),
		}
		if err != nil {
			logFields = append(logFields, zap.Error(err))
		}
		logger.Info("callback_done", logFields...)
	}()

	if !payment.Verify(fields, s.cfg.PayKey) {
		return CallbackSignError, nil
	}
	if fields["status"] != "1" {
		return CallbackStatusError, nil
	}

	var ev queue.SettlementEvent
	err = s.store.Transaction(ctx, func(r *repository.Repo) error {
		var err error
		ev, err = s.settle(r, tradeNo, s.now())
		return err
	})
	if err != nil {
		return "", err
	}

	if !ev.Fulfilled && s.metrics != nil {
		s.metrics.Shortfall.Inc()
	}
	if s.events != nil {
		if err := s.events.PublishSettlement(ctx, ev); err != nil {
			logger.Warn("publish settlement event", zap.Error(err))
		}
	}
	return CallbackSuccess, nil
}

// settle 结算事务：抢占 pending→settled，再按订单数量整批领取卡密。
func (s *OrderService) settle(r *repository.Repo, tradeNo string, now time.Time) (queue.SettlementEvent, error) {
	ok, err := r.SettleOrder(tradeNo, now)
	if err != nil {
		return queue.SettlementEvent{}, err
	}
	if !ok {
		return queue.SettlementEvent{}, ErrOrderNotFound
	}
	order, err := r.FindOrderByTradeNo(tradeNo)
	if err != nil {
		return queue.SettlementEvent{}, err
	}

	var scope uint
	if s.cfg.ScopeBatchToCommodity {
		scope = order.CommodityID
	}
	cards, err := AllocateBatch(r, scope, order.Num, repository.Claim{
		TradeNo: order.TradeNo,
		Contact: order.Contact,
		At:      now,
	})

	var delivery string
	fulfilled := true
	switch {
	case errors.Is(err, ErrInsufficientStock):
		delivery = s.apology()
		fulfilled = false
	case err != nil:
		return queue.SettlementEvent{}, err
	default:
		delivery = joinSecrets(cards)
	}
	if err := r.SetDelivery(order.ID, delivery); err != nil {
		return queue.SettlementEvent{}, err
	}

	return queue.SettlementEvent{
		TradeNo:     order.TradeNo,
		CommodityID: order.CommodityID,
		Quantity:    order.Num,
		Contact:     order.Contact,
		Fulfilled:   fulfilled,
		PaidAt:      now.Unix(),
	}, nil
}

func joinSecrets(cards []model.Card) string {
	secrets := make([]string, len(cards))
	for i, c := range cards {
		secrets[i] = c.Secret
	}
	return strings.Join(secrets, "\n")
}
