package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"card_shop/internal/logging"
	"card_shop/internal/model"
	"card_shop/internal/payment"
	"card_shop/internal/repository"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// TradeRequest 下单请求。
type TradeRequest struct {
	Contact     string
	Num         int
	Pass        string
	PayID       uint
	Device      int
	Voucher     string
	CommodityID uint
	IP          string
}

// TradeResult 下单结果；免费订单 URL 为空。
type TradeResult struct {
	URL     string          `json:"url"`
	Amount  decimal.Decimal `json:"amount"`
	TradeNo string          `json:"tradeNo"`
}

// tradePlan 预检阶段的产物，写事务只消费它。
type tradePlan struct {
	req       TradeRequest
	commodity *model.Commodity
	pay       *model.Pay
	amount    decimal.Decimal // 未扣优惠
	final     decimal.Decimal // 扣优惠后
	tradeNo   string
	now       time.Time
}

func (p *tradePlan) free() bool { return p.final.IsZero() }

// Trade 下单。
// 流程：只读预检（校验、计价、优惠券预校验）→ 付费订单先调用支付网关 →
// 单个写事务内核销优惠券、免费订单领取卡密、写订单。
// 网关调用放在事务之外，事务时长不受网络延迟影响；网关失败时不落任何数据。
func (s *OrderService) Trade(ctx context.Context, req TradeRequest) (res *TradeResult, err error) {
	ctx, span := s.tracer.Start(ctx, spanPrefix+"Trade")
	span.SetAttributes(
		attribute.Int64("commodity_id", int64(req.CommodityID)),
		attribute.Int("num", req.Num),
	)
	start := time.Now()
	path := "unknown"
	logger := logging.FromContext(ctx, s.log)

	defer func() {
		outcome := "success"
		if err != nil {
			outcome = errorCode(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		span.End()
		if s.metrics != nil {
			s.metrics.Orders.WithLabelValues(path, outcome).Inc()
		}
		fields := []zap.Field{
			zap.String("path", path),
			zap.String("outcome", outcome),
			zap.Float64("latency_seconds", time.Since(start).Seconds()),
		}
		if res != nil {
			fields = append(fields, zap.String("trade_no", res.TradeNo))
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		logger.Info("trade_done", fields...)
	}()

	plan, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	url := ""
	if plan.free() {
		path = "free"
	} else {
		path = "paid"
		url, err = s.requestGateway(ctx, plan)
		if err != nil {
			return nil, err
		}
	}

	var order *model.Order
	err = s.store.Transaction(ctx, func(r *repository.Repo) error {
		o, err := s.commit(r, plan, url)
		order = o
		return err
	})
	if err != nil {
		return nil, err
	}
	return &TradeResult{URL: order.URL, Amount: order.Amount, TradeNo: order.TradeNo}, nil
}

// prepare 依次做快速失败校验，全部只读。
func (s *OrderService) prepare(ctx context.Context, req TradeRequest) (*tradePlan, error) {
	r := s.store.Reader(ctx)

	if req.CommodityID == 0 {
		return nil, ErrCommodityRequired
	}
	if req.Num <= 0 {
		return nil, ErrQuantityInvalid
	}
	commodity, err := r.FindCommodity(req.CommodityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCommodityNotFound
		}
		return nil, err
	}
	if commodity.Status != model.CommodityOnSale {
		return nil, ErrCommodityOffSale
	}

	if err := checkContact(req.Contact, commodity.Contact); err != nil {
		return nil, err
	}

	// 预检库存，最终以领取时的条件更新为准
	available, err := r.CountAvailableCards(commodity.ID)
	if err != nil {
		return nil, err
	}
	if available == 0 || int64(req.Num) > available {
		return nil, ErrInsufficientStock
	}

	amount := ComputeAmount(req.Num, commodity)

	pay, err := r.FindPay(req.PayID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPayNotFound
		}
		return nil, err
	}
	if pay.Status != model.PayEnabled {
		return nil, ErrPayDisabled
	}

	final := amount
	if voucherRequested(req.Voucher) {
		v, err := checkVoucher(r, req.Voucher, commodity.ID, amount)
		if err != nil {
			return nil, err
		}
		final = discounted(amount, v.Money)
	}
	if final.IsZero() && req.Num > 1 {
		return nil, ErrFreeOrderQuantityExceeded
	}

	now := s.now()
	return &tradePlan{
		req:       req,
		commodity: commodity,
		pay:       pay,
		amount:    amount,
		final:     final,
		tradeNo:   s.tradeNo(now),
		now:       now,
	}, nil
}

// requestGateway 构造并签名网关下单请求，返回支付跳转地址。
func (s *OrderService) requestGateway(ctx context.Context, plan *tradePlan) (string, error) {
	fields := map[string]string{
		"merchant_id":      s.cfg.MerchantID,
		"amount":           plan.final.StringFixed(2),
		"channel_id":       plan.pay.Code,
		"app_id":           s.cfg.AppID,
		"notification_url": s.cfg.SiteURL + "/api/order/callback",
		"sync_url":         s.cfg.SiteURL + "/api/order/query?tradeNo=" + plan.tradeNo,
		"ip":               plan.req.IP,
		"out_trade_no":     plan.tradeNo,
	}
	fields[payment.SignField] = payment.Sign(fields, s.cfg.PayKey)

	start := time.Now()
	outcome := "success"
	defer func() {
		if s.metrics != nil {
			s.metrics.GatewayLatency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		}
	}()

	resp, err := s.gateway.CreateTrade(ctx, fields)
	if err != nil {
		outcome = "error"
		return "", withCause(ErrGatewayRejected, err)
	}
	if resp.Code != payment.CodeOK {
		outcome = "rejected"
		return "", withCause(ErrGatewayRejected, fmt.Errorf("gateway code %d: %s", resp.Code, resp.Msg))
	}
	return resp.Data.URL, nil
}

// commit 写事务：核销优惠券、免费订单领取卡密并立即结算、写订单。
func (s *OrderService) commit(r *repository.Repo, plan *tradePlan, url string) (*model.Order, error) {
	req := plan.req
	order := &model.Order{
		TradeNo:      plan.tradeNo,
		Amount:       plan.amount,
		PayID:        plan.pay.ID,
		CommodityID:  plan.commodity.ID,
		Num:          req.Num,
		Contact:      req.Contact,
		Pass:         req.Pass,
		Status:       model.OrderPending,
		CreateDate:   plan.now,
		CreateIP:     req.IP,
		CreateDevice: req.Device,
	}

	discount, voucherID, err := RedeemVoucher(r, req.Voucher, plan.commodity.ID, plan.amount, req.Contact, plan.now)
	if err != nil {
		return nil, err
	}
	order.Amount = discounted(plan.amount, discount)
	order.VoucherID = voucherID

	// 预检之后优惠券被改动，金额与网关侧不一致
	if !order.Amount.Equal(plan.final) {
		return nil, ErrVoucherAlreadyUsed
	}

	if order.Amount.IsZero() {
		if req.Num > 1 {
			return nil, ErrFreeOrderQuantityExceeded
		}
		card, err := ReserveOne(r, plan.commodity.ID, repository.Claim{
			TradeNo: plan.tradeNo,
			Contact: req.Contact,
			At:      plan.now,
		})
		if err != nil {
			return nil, err
		}
		paid := plan.now
		order.Status = model.OrderSettled
		order.PayDate = &paid
		order.Delivery = card.Secret
	} else {
		order.URL = url
	}

	if err := r.CreateOrder(order); err != nil {
		return nil, err
	}
	return order, nil
}

// errorCode 返回业务错误码，用作指标与日志的 outcome。
func errorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}
