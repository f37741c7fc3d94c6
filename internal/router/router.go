package router

import (
	"errors"
	"net/http"
	"time"

	"card_shop/internal/middleware"
	"card_shop/internal/service"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options 路由依赖的可选组件，零值表示不启用。
type Options struct {
	Redis           *rd.Client // 为空时下单接口不限流
	TradeRateLimit  int
	TradeRateWindow time.Duration
	Metrics         http.Handler // 为空时不暴露 /metrics
	Logger          *zap.Logger
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, svc *service.OrderService, opts Options) {
	if opts.Logger != nil {
		r.Use(middleware.RequestLogger(opts.Logger))
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	order := r.Group("/api/order")
	if opts.Redis != nil {
		order.POST("/trade", middleware.RedisRateLimit(opts.Redis, opts.TradeRateLimit, opts.TradeRateWindow), trade(svc))
	} else {
		order.POST("/trade", trade(svc))
	}
	// 网关可能以 GET 或 POST 通知
	order.Any("/callback", callback(svc))
	order.GET("/query", query(svc))
}

type tradeForm struct {
	Contact     string `form:"contact" json:"contact" binding:"max=128"`
	Num         int    `form:"num" json:"num"`
	Pass        string `form:"pass" json:"pass" binding:"max=128"`
	PayID       uint   `form:"pay_id" json:"pay_id"`
	Device      int    `form:"device" json:"device" binding:"min=0"`
	Voucher     string `form:"voucher" json:"voucher" binding:"max=16"`
	CommodityID uint   `form:"commodity_id" json:"commodity_id"`
}

// trade 下单入口，商品/数量/联系方式等业务校验交给 service 逐项给出明确错误。
func trade(svc *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form tradeForm
		if err := c.ShouldBind(&form); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		res, err := svc.Trade(c.Request.Context(), service.TradeRequest{
			Contact:     form.Contact,
			Num:         form.Num,
			Pass:        form.Pass,
			PayID:       form.PayID,
			Device:      form.Device,
			Voucher:     form.Voucher,
			CommodityID: form.CommodityID,
			IP:          c.ClientIP(),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"code": 0,
			"data": gin.H{
				"url":     res.URL,
				"amount":  res.Amount.InexactFloat64(),
				"tradeNo": res.TradeNo,
			},
		})
	}
}

// callback 支付网关异步通知，返回纯文本。
func callback(svc *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			c.String(http.StatusBadRequest, "bad request")
			return
		}
		fields := make(map[string]string, len(c.Request.Form))
		for k, v := range c.Request.Form {
			if len(v) > 0 {
				fields[k] = v[0]
			}
		}

		result, err := svc.Callback(c.Request.Context(), fields)
		if err != nil {
			respondError(c, err)
			return
		}
		c.String(http.StatusOK, result)
	}
}

// query 订单查询（支付完成后的同步跳转地址）。
func query(svc *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tradeNo := c.Query("tradeNo")
		if tradeNo == "" {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "tradeNo 必填"})
			return
		}
		v, err := svc.Query(c.Request.Context(), tradeNo, c.Query("pass"))
		if err != nil {
			respondError(c, err)
			return
		}

		data := gin.H{
			"tradeNo":     v.TradeNo,
			"amount":      v.Amount.InexactFloat64(),
			"num":         v.Num,
			"status":      v.Status,
			"create_date": v.CreateDate,
			"pay_date":    v.PayDate,
		}
		if v.Delivery != "" {
			data["secret"] = v.Delivery
		}
		if v.URL != "" {
			data["url"] = v.URL
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": data})
	}
}

// respondError 按错误类别映射 HTTP 状态码，文案直接返回给调用方。
func respondError(c *gin.Context, err error) {
	var e *service.Error
	if !errors.As(err, &e) {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch e.Kind {
	case service.KindInvalid:
		status = http.StatusBadRequest
	case service.KindExhausted:
		status = http.StatusConflict
	case service.KindConfig, service.KindDependency:
		status = http.StatusServiceUnavailable
	case service.KindIntegrity:
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"code": status, "msg": e.Msg, "error": e.Code})
}
