package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 聚合运行时配置：默认值 → YAML 配置文件 → CARDSHOP_ 前缀环境变量，后者覆盖前者。
type AppConfig struct {
	HTTPAddr string
	Env      string
	LogLevel string

	DBDriver string // sqlite | postgres
	DBDSN    string

	RedisAddr string
	RedisDB   int

	// Kafka 集群地址为空时不启用结算事件转发
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox（回调结算后入流，Relay 异步转 Kafka）
	SettleEventStream   string
	SettleEventGroup    string
	SettleEventConsumer string

	// 下单接口限流
	TradeRateLimit  int
	TradeRateWindow time.Duration

	// 支付网关
	GatewayEndpoint string
	GatewayTimeout  time.Duration
	MerchantID      string
	AppID           string
	PayKey          string

	SiteURL   string
	SupportQQ string

	// 结算时是否只从订单所属商品的卡密中领取
	ScopeBatchToCommodity bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("env", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "card_shop.db")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "card-shop-settlements")
	v.SetDefault("kafka.group_id", "card-shop-notifier")
	v.SetDefault("settle_event.stream", "card_shop:settle_events")
	v.SetDefault("settle_event.group", "card-shop-relay-group")
	v.SetDefault("settle_event.consumer", "card-shop-relay-1")
	v.SetDefault("trade.rate_limit", 30)
	v.SetDefault("trade.rate_window_sec", 60)
	v.SetDefault("gateway.endpoint", "https://lizhifu.net/order/trade")
	v.SetDefault("gateway.timeout_sec", 10)
	v.SetDefault("gateway.merchant_id", "")
	v.SetDefault("gateway.app_id", "")
	v.SetDefault("gateway.key", "dev-pay-key")
	v.SetDefault("site.url", "http://localhost:8080")
	v.SetDefault("site.support_qq", "")
	v.SetDefault("settlement.scope_to_commodity", false)
}

// Load 读取并校验配置。path 为空时只使用默认值与环境变量。
func Load(path string) (AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("CARDSHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := AppConfig{
		HTTPAddr:              v.GetString("http.addr"),
		Env:                   v.GetString("env"),
		LogLevel:              v.GetString("log.level"),
		DBDriver:              v.GetString("db.driver"),
		DBDSN:                 v.GetString("db.dsn"),
		RedisAddr:             v.GetString("redis.addr"),
		RedisDB:               v.GetInt("redis.db"),
		KafkaBrokers:          splitCSV(v.GetString("kafka.brokers")),
		KafkaTopic:            v.GetString("kafka.topic"),
		KafkaGroupID:          v.GetString("kafka.group_id"),
		SettleEventStream:     v.GetString("settle_event.stream"),
		SettleEventGroup:      v.GetString("settle_event.group"),
		SettleEventConsumer:   v.GetString("settle_event.consumer"),
		TradeRateLimit:        v.GetInt("trade.rate_limit"),
		TradeRateWindow:       time.Duration(v.GetInt("trade.rate_window_sec")) * time.Second,
		GatewayEndpoint:       v.GetString("gateway.endpoint"),
		GatewayTimeout:        time.Duration(v.GetInt("gateway.timeout_sec")) * time.Second,
		MerchantID:            v.GetString("gateway.merchant_id"),
		AppID:                 v.GetString("gateway.app_id"),
		PayKey:                v.GetString("gateway.key"),
		SiteURL:               strings.TrimRight(v.GetString("site.url"), "/"),
		SupportQQ:             v.GetString("site.support_qq"),
		ScopeBatchToCommodity: v.GetBool("settlement.scope_to_commodity"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (cfg AppConfig) validate() error {
	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("db.driver must be sqlite or postgres, got %q", cfg.DBDriver)
	}
	if cfg.DBDSN == "" {
		return fmt.Errorf("db.dsn must not be empty")
	}
	if cfg.TradeRateLimit <= 0 {
		return fmt.Errorf("trade.rate_limit must be > 0")
	}
	if cfg.TradeRateWindow <= 0 {
		return fmt.Errorf("trade.rate_window_sec must be > 0")
	}
	if cfg.GatewayEndpoint == "" {
		return fmt.Errorf("gateway.endpoint must not be empty")
	}
	if cfg.GatewayTimeout <= 0 {
		return fmt.Errorf("gateway.timeout_sec must be > 0")
	}
	if cfg.PayKey == "" {
		return fmt.Errorf("gateway.key must not be empty")
	}
	if cfg.SettleEventStream == "" {
		return fmt.Errorf("settle_event.stream must not be empty")
	}
	if len(cfg.KafkaBrokers) > 0 {
		if cfg.KafkaTopic == "" {
			return fmt.Errorf("kafka.topic must not be empty")
		}
		if cfg.KafkaGroupID == "" {
			return fmt.Errorf("kafka.group_id must not be empty")
		}
		if cfg.SettleEventGroup == "" || cfg.SettleEventConsumer == "" {
			return fmt.Errorf("settle_event.group and settle_event.consumer must not be empty")
		}
	}
	return nil
}

// EventsEnabled 是否启用结算事件 Stream → Kafka 链路。
func (cfg AppConfig) EventsEnabled() bool {
	return len(cfg.KafkaBrokers) > 0
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
