package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/slotmeet/libs/auth"
	"github.com/md-rashed-zaman/slotmeet/libs/config"
	"github.com/md-rashed-zaman/slotmeet/libs/db"
	"github.com/md-rashed-zaman/slotmeet/libs/httpx"
	"github.com/md-rashed-zaman/slotmeet/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotmeet/libs/otel"
	"github.com/md-rashed-zaman/slotmeet/libs/outbox"
	"github.com/md-rashed-zaman/slotmeet/libs/runtime"
	"github.com/md-rashed-zaman/slotmeet/services/auth-service/internal/handlers"
	"github.com/md-rashed-zaman/slotmeet/services/auth-service/internal/storage"
)

type Config struct {
	ServiceName     string        `envconfig:"SERVICE_NAME" default:"auth-service"`
	Port            string        `envconfig:"PORT" default:"8081"`
	DatabaseURL     string        `envconfig:"DATABASE_URL" required:"true"`
	KafkaBrokers    string        `envconfig:"KAFKA_BROKERS"`
	JWTSecret       string        `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer       string        `envconfig:"JWT_ISSUER" default:"auth-service"`
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"24h"`
	DefaultTimezone string        `envconfig:"DEFAULT_TIMEZONE" default:"Asia/Kolkata"`
	LoginPerMinute  int           `envconfig:"LOGIN_RATE_LIMIT_PER_MINUTE" default:"20"`
	BodyLimitBytes  int64         `envconfig:"HTTP_BODY_LIMIT_BYTES" default:"1048576"`
	OutboxPollEvery time.Duration `envconfig:"OUTBOX_POLL_EVERY" default:"2s"`
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
	if _, err := config.Location(cfg.DefaultTimezone, nil); err != nil {
		return err
	}
	signer, err := auth.NewHS256Signer(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)
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

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		return err
	}
	defer pool.Close()

	brokers := kafkax.SplitBrokers(cfg.KafkaBrokers)
	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if len(brokers) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	outboxRepo := outbox.NewRepository()
	users := storage.NewUserRepository(pool, outboxRepo)
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: cfg.OutboxPollEvery,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	authHandler := handlers.NewAuthHandler(users, signer, logger, cfg.DefaultTimezone)
	requireAuth := auth.RequireAuth(signer)
	credentialLimit := httpx.NewRateLimiter(cfg.LoginPerMinute, time.Minute, httpx.ClientIP).Middleware()

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("POST /api/v1/auth/register", credentialLimit(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/v1/auth/login", credentialLimit(http.HandlerFunc(authHandler.Login)))
	mux.Handle("GET /api/v1/auth/me", requireAuth(http.HandlerFunc(authHandler.Me)))
	mux.Handle("PUT /api/v1/auth/profile", requireAuth(http.HandlerFunc(authHandler.UpdateProfile)))

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(cfg.BodyLimitBytes),
	)
	handler = otelhttp.NewHandler(handler, "auth")
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
