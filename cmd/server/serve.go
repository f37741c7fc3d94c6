package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"card_shop/internal/config"
	"card_shop/internal/logging"
	"card_shop/internal/metrics"
	"card_shop/internal/payment"
	"card_shop/internal/queue"
	"card_shop/internal/repository"
	"card_shop/internal/router"
	"card_shop/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	rd "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and settlement event workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg config.AppConfig) error {
	logger, err := logging.NewLogger("card_shop", cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// 1. 数据库，自动建表
	db, err := repository.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	if err := repository.Migrate(db); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	// 2. Redis：下单限流 + 结算事件 Stream
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(m),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. 结算事件链路：回调 -> Redis Stream -> Relay -> Kafka -> Consumer
	var workers sync.WaitGroup
	if cfg.EventsEnabled() {
		opts = append(opts, service.WithEvents(queue.NewStreamPublisher(rdb, cfg.SettleEventStream)))

		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		relay := queue.NewRelay(rdb, producer, cfg.SettleEventStream, cfg.SettleEventGroup, cfg.SettleEventConsumer, logger)

		consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, queue.LogNotifier{Log: logger}, logger)
		defer consumer.Close()

		workers.Add(2)
		go func() { defer workers.Done(); relay.Run(ctx) }()
		go func() { defer workers.Done(); consumer.Run(ctx) }()
	}

	svc := service.NewOrderService(
		repository.NewStore(db),
		payment.NewClient(cfg.GatewayEndpoint, cfg.GatewayTimeout),
		service.Settings{
			MerchantID:            cfg.MerchantID,
			AppID:                 cfg.AppID,
			PayKey:                cfg.PayKey,
			SiteURL:               cfg.SiteURL,
			SupportQQ:             cfg.SupportQQ,
			ScopeBatchToCommodity: cfg.ScopeBatchToCommodity,
		},
		opts...,
	)

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	router.Setup(r, svc, router.Options{
		Redis:           rdb,
		TradeRateLimit:  cfg.TradeRateLimit,
		TradeRateWindow: cfg.TradeRateWindow,
		Metrics:         metrics.Handler(reg),
		Logger:          logger,
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http_server_start", zap.String("addr", server.Addr), zap.Bool("events", cfg.EventsEnabled()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			stop()
			workers.Wait()
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", zap.Error(err))
	} else {
		logger.Info("http_server_stopped")
	}
	workers.Wait()
	return nil
}
