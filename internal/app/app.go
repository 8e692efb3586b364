package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/promarket/internal/catalog"
	"github.com/utafrali/promarket/internal/config"
	"github.com/utafrali/promarket/internal/event"
	handler "github.com/utafrali/promarket/internal/handler/http"
	"github.com/utafrali/promarket/internal/render"
	"github.com/utafrali/promarket/internal/session"
	"github.com/utafrali/promarket/internal/slot"
	memoryslot "github.com/utafrali/promarket/internal/slot/memory"
	redisslot "github.com/utafrali/promarket/internal/slot/redis"
	"github.com/utafrali/promarket/internal/submission"
	"github.com/utafrali/promarket/pkg/database"
	"github.com/utafrali/promarket/pkg/health"
	"github.com/utafrali/promarket/pkg/httpclient"
	pkgkafka "github.com/utafrali/promarket/pkg/kafka"
	"github.com/utafrali/promarket/pkg/middleware"
	"github.com/utafrali/promarket/pkg/tracing"
)

// slowRedisCommand is the latency above which Redis commands are logged.
const slowRedisCommand = 100 * time.Millisecond

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	tracerCfg := tracing.DefaultConfig(handler.ServiceName)
	tracerCfg.Environment = cfg.Environment
	tracerCfg.Enabled = cfg.OTELEnabled
	tracerCfg.OTLPEndpoint = cfg.OTELEndpoint
	tracerCfg.SampleRate = cfg.OTELSampleRate
	shutdown, err := tracing.InitTracer(ctx, tracerCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = shutdown

	healthHandler := health.NewHandler(health.DefaultTimeout)

	// Cart slot and catalog cache.
	var cartSlot, catalogCache slot.Slot
	switch cfg.CartSlot {
	case config.SlotMemory:
		cartSlot = memoryslot.NewSlot()
		logger.Warn("carts are kept in memory only")
	default:
		rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPass,
			DB:           cfg.RedisDB,
			PoolSize:     cfg.RedisPoolSize,
			DialTimeout:  cfg.RedisTimeout,
			ReadTimeout:  cfg.RedisTimeout,
			WriteTimeout: cfg.RedisTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
		database.SetSlowCommandLogging(slowRedisCommand, logger)

		carts := redisslot.NewSlot(rdb, cfg.CartTTLDuration())
		cartSlot = carts
		catalogCache = redisslot.NewSlot(rdb, cfg.CatalogCacheTTL)
		healthHandler.Register("redis", carts.Ping)
	}

	// Cart events. The writer is async so a slow broker never holds a
	// cart mutation open.
	var events *event.Producer
	if cfg.KafkaEnabled {
		kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
		kafkaCfg.Async = true
		a.producer = pkgkafka.NewProducer(kafkaCfg, logger)
		events = event.NewProducer(a.producer, logger)
		healthHandler.Register("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Upstream HTTP services. Order placement is never retried.
	catalogHTTP := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("catalog"),
		logger,
	)
	checkoutHTTP := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.SingleAttemptConfig(cfg.HTTPClientTimeout)),
		httpclient.DefaultCircuitBreakerConfig("checkout"),
		logger,
	)

	var catalogOpts []catalog.Option
	catalogOpts = append(catalogOpts, catalog.WithLogger(logger))
	if catalogCache != nil {
		catalogOpts = append(catalogOpts, catalog.WithCache(catalogCache))
	}
	catalogClient := catalog.NewClient(catalogHTTP, cfg.CatalogURL, catalogOpts...)

	renderCfg := render.DefaultConfig()
	renderCfg.TaxRate = cfg.TaxRate
	html, err := render.NewHTML()
	if err != nil {
		a.closeClients()
		return nil, err
	}

	registry := session.NewRegistry(
		session.Config{Namespace: cfg.CartNamespace, MaxSessions: cfg.MaxSessions},
		session.Deps{
			Slot:     cartSlot,
			Renderer: render.New(renderCfg),
			Backend:  submission.NewHTTPBackend(checkoutHTTP, cfg.CheckoutURL, logger),
			Events:   events,
			Logger:   logger,
		},
	)

	// Per-client limits on starting sessions and on placing orders.
	sessionLimit := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RPS:   cfg.SessionRateLimitRPS,
		Burst: cfg.SessionRateLimitBurst,
	})
	checkoutLimit := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RPS:   cfg.CheckoutRateLimitRPS,
		Burst: cfg.CheckoutRateLimitBurst,
	})

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.AllowedOrigins
	router := handler.NewRouter(
		handler.NewStorefrontHandler(catalogClient, html, logger),
		registry,
		healthHandler,
		handler.RouterConfig{
			Session: handler.SessionConfig{
				MaxAge:          cfg.CartTTLDuration(),
				Secure:          cfg.Environment == "production",
				NewSessionLimit: sessionLimit,
			},
			CORS:          corsCfg,
			CheckoutLimit: checkoutLimit,
		},
		logger,
	)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return a, nil
}

// Handler returns the HTTP handler the server runs.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.closeClients()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}
	a.closeClients()

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) closeClients() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
}
