package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/slotmeet/libs/config"
	"github.com/md-rashed-zaman/slotmeet/libs/httpx"
	otelx "github.com/md-rashed-zaman/slotmeet/libs/otel"
	"github.com/md-rashed-zaman/slotmeet/libs/runtime"
)

type Config struct {
	ServiceName   string `envconfig:"SERVICE_NAME" default:"gateway-service"`
	Port          string `envconfig:"PORT" default:"8080"`
	AuthURL       string `envconfig:"AUTH_URL" default:"http://auth-service:8081"`
	SchedulingURL string `envconfig:"SCHEDULING_URL" default:"http://scheduling-service:8082"`
	RedisAddr     string `envconfig:"REDIS_ADDR"`

	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"300"`
	BodyLimitBytes     int64         `envconfig:"HTTP_BODY_LIMIT_BYTES" default:"1048576"`
	RequestTimeout     time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"20s"`
}

func main() {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.ServiceName)
	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	port, err := config.Port("PORT", cfg.Port)
	if err != nil {
		return err
	}
	upstreams, err := parseUpstreams(cfg.AuthURL, cfg.SchedulingURL)
	if err != nil {
		return err
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.ServiceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var rateLimit httpx.Middleware
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		rateLimit = httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "rl:edge", httpx.ClientIP).Middleware(logger, true)
		logger.Info("rate limiting enabled (redis)", "per_minute", cfg.RateLimitPerMinute)
	} else {
		rateLimit = httpx.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute, httpx.ClientIP).Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", cfg.RateLimitPerMinute)
	}

	mux := runtime.NewBaseMuxWithReady()
	registerRoutes(mux, upstreams, otelhttp.NewTransport(http.DefaultTransport), logger)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(cfg.BodyLimitBytes),
		httpx.WithTimeout(cfg.RequestTimeout),
		rateLimit,
	)
	handler = otelhttp.NewHandler(handler, "gateway")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	return nil
}
