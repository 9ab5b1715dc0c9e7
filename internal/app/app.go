// Package app assembles the worker: configuration, database, aggregates,
// services, the outbox relay with its downstream handlers, and the ops HTTP
// server.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	dataagg "github.com/yungbote/commerce-backend/internal/data/aggregates"
	"github.com/yungbote/commerce-backend/internal/data/db"
	billingrepo "github.com/yungbote/commerce-backend/internal/data/repos/billing"
	splitrepo "github.com/yungbote/commerce-backend/internal/data/repos/fulfillment"
	orderrepo "github.com/yungbote/commerce-backend/internal/data/repos/orders"
	outboxrepo "github.com/yungbote/commerce-backend/internal/data/repos/outbox"
	paymentrepo "github.com/yungbote/commerce-backend/internal/data/repos/payments"
	domainagg "github.com/yungbote/commerce-backend/internal/domain/aggregates"
	"github.com/yungbote/commerce-backend/internal/handlers"
	"github.com/yungbote/commerce-backend/internal/observability"
	"github.com/yungbote/commerce-backend/internal/outbox"
	"github.com/yungbote/commerce-backend/internal/platform/clock"
	"github.com/yungbote/commerce-backend/internal/platform/logger"
	"github.com/yungbote/commerce-backend/internal/server"
	"github.com/yungbote/commerce-backend/internal/services"
)

type App struct {
	Config  Config
	Log     *logger.Logger
	DB      *gorm.DB
	Metrics *observability.Metrics

	Orders   services.OrderService
	Payments services.PaymentService
	Invoices services.InvoiceService
	Splits   services.SplitService

	Relay *outbox.Relay

	httpServer *http.Server
}

func New(cfg Config, log *logger.Logger) (*App, error) {
	pg, err := db.NewPostgresService(log)
	if err != nil {
		return nil, err
	}
	gormDB := pg.DB()
	if err := db.AutoMigrateAll(gormDB); err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()
	clk := clock.System()

	orders := orderrepo.NewOrderRepo(gormDB, log)
	payments := paymentrepo.NewPaymentRepo(gormDB, log)
	invoices := billingrepo.NewInvoiceRepo(gormDB, log)
	splits := splitrepo.NewOrderSplitRepo(gormDB, log)
	outboxRepo := outboxrepo.NewOutboxRepo(gormDB, log)

	base := dataagg.BaseDeps{
		DB:       gormDB,
		Log:      log,
		Runner:   dataagg.NewGormTxRunner(gormDB),
		Hooks:    dataagg.NewObservabilityHooks(metrics),
		CASGuard: dataagg.NewCASGuard(gormDB),
	}
	appender := dataagg.NewOutboxAppender(outboxRepo)

	orderAgg := dataagg.NewOrderAggregate(dataagg.OrderAggregateDeps{Base: base, Orders: orders, Outbox: appender})
	paymentAgg := dataagg.NewPaymentAggregate(dataagg.PaymentAggregateDeps{Base: base, Payments: payments, Orders: orders, Outbox: appender})
	invoiceAgg := dataagg.NewInvoiceAggregate(dataagg.InvoiceAggregateDeps{Base: base, Invoices: invoices, Orders: orders, Outbox: appender})
	splitAgg := dataagg.NewSplitAggregate(dataagg.SplitAggregateDeps{Base: base, Splits: splits, Orders: orders, Outbox: appender})

	// TODO: swap the simulated gateway for the real processor client once the
	// provider account exists.
	gateway := &services.SimulatedGateway{}

	registry := buildRegistry(cfg, log)

	relay := outbox.NewRelay(outbox.RelayConfig{
		BatchSize:      cfg.RelayBatchSize,
		PollInterval:   cfg.RelayPollInterval,
		HandlerTimeout: cfg.RelayHandlerTimeout,
		BaseBackoff:    cfg.RelayBaseBackoff,
		MaxBackoff:     cfg.RelayMaxBackoff,
		MaxAttempts:    cfg.RelayMaxAttempts,
	}, outboxRepo, registry, log, metrics, clk)

	router := server.NewRouter(server.RouterConfig{DB: gormDB, Metrics: metrics})

	return &App{
		Config:   cfg,
		Log:      log,
		DB:       gormDB,
		Metrics:  metrics,
		Orders:   services.NewOrderService(orderAgg, clk, log),
		Payments: services.NewPaymentService(paymentAgg, gateway, clk, log),
		Invoices: services.NewInvoiceService(invoiceAgg, cfg.InvoiceDueDays, clk, log),
		Splits:   services.NewSplitService(splitAgg, clk, log),
		Relay:    relay,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// buildRegistry wires the downstream consumers: in-process projections for the
// event types they care about, and, when brokers are configured, a Kafka
// publisher as fallback so every event reaches the bus. With a Redis address
// configured, side-effecting handlers are wrapped in the dedupe guard.
func buildRegistry(cfg Config, log *logger.Logger) *outbox.Registry {
	registry := outbox.NewRegistry()

	guard := func(h outbox.Handler) outbox.Handler { return h }
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		deduper := handlers.NewRedisDeduper(rdb, "outbox:seen", 7*24*time.Hour)
		guard = func(h outbox.Handler) outbox.Handler { return handlers.WithDedupe(deduper, h, log) }
	}

	inventory := handlers.NewInventoryProjection(log)
	registry.Register(domainagg.EventOrderCreated, guard(inventory))
	registry.Register(domainagg.EventOrderCancelled, guard(inventory))

	notify := handlers.NewNotificationHandler(log)
	registry.Register(domainagg.EventPaymentCaptured, guard(notify))
	registry.Register(domainagg.EventPaymentFailed, guard(notify))
	registry.Register(domainagg.EventPaymentRefunded, guard(notify))
	registry.Register(domainagg.EventInvoiceSent, guard(notify))

	kafkaClient := handlers.NewKafkaClient(cfg.KafkaBrokers)
	if kafkaClient.Enabled() {
		writer := kafkaClient.NewWriter(cfg.KafkaTopic)
		registry.RegisterFallback(handlers.NewKafkaPublisher(writer, log))
	}

	return registry
}

// Run starts the relay loop and the ops HTTP server and blocks until the
// context is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	a.Log.Info("worker started", "addr", a.Config.HTTPAddr, "env", a.Config.Env)

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		_ = a.Relay.Run(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	<-relayDone
	return runErr
}
