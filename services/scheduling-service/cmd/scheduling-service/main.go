package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/slotmeet/libs/auth"
	"github.com/md-rashed-zaman/slotmeet/libs/config"
	"github.com/md-rashed-zaman/slotmeet/libs/db"
	"github.com/md-rashed-zaman/slotmeet/libs/events"
	"github.com/md-rashed-zaman/slotmeet/libs/grpcx"
	"github.com/md-rashed-zaman/slotmeet/libs/httpx"
	"github.com/md-rashed-zaman/slotmeet/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotmeet/libs/otel"
	"github.com/md-rashed-zaman/slotmeet/libs/outbox"
	"github.com/md-rashed-zaman/slotmeet/libs/runtime"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/consumer"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/handlers"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/inbox"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/projection"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/schedule"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/slotlock"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/storage"
)

type Config struct {
	ServiceName  string `envconfig:"SERVICE_NAME" default:"scheduling-service"`
	Port         string `envconfig:"PORT" default:"8082"`
	GRPCPort     string `envconfig:"GRPC_PORT"`
	DatabaseURL  string `envconfig:"DATABASE_URL" required:"true"`
	KafkaBrokers string `envconfig:"KAFKA_BROKERS"`
	RedisAddr    string `envconfig:"REDIS_ADDR"`
	JWTSecret    string `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer    string `envconfig:"JWT_ISSUER" default:"auth-service"`

	DefaultTimezone string        `envconfig:"DEFAULT_TIMEZONE" default:"Asia/Kolkata"`
	BookingLeadTime time.Duration `envconfig:"BOOKING_LEAD_TIME" default:"15m"`
	SlotLockWait    time.Duration `envconfig:"SLOT_LOCK_WAIT" default:"5s"`
	SlotLockTTL     time.Duration `envconfig:"SLOT_LOCK_TTL" default:"10s"`

	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	CORSAllowedOrigins string        `envconfig:"CORS_ALLOWED_ORIGINS"`
	BodyLimitBytes     int64         `envconfig:"HTTP_BODY_LIMIT_BYTES" default:"1048576"`
	RequestTimeout     time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"15s"`

	UserEventsGroupID string        `envconfig:"USER_EVENTS_GROUP_ID" default:"scheduling-service.users"`
	OutboxPollEvery   time.Duration `envconfig:"OUTBOX_POLL_EVERY" default:"2s"`
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
	defaultLoc, err := config.Location(cfg.DefaultTimezone, time.UTC)
	if err != nil {
		return err
	}
	verifier, err := auth.NewHS256Signer(cfg.JWTSecret, cfg.JWTIssuer, 0)
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

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	brokers := kafkax.SplitBrokers(cfg.KafkaBrokers)
	if len(brokers) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	var (
		locker      slotlock.Locker = slotlock.NewMemoryLocker(cfg.SlotLockWait)
		publicLimit httpx.Middleware
		userLimit   httpx.Middleware
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		locker = slotlock.NewRedisLocker(rdb, cfg.SlotLockWait, cfg.ServiceName)
		publicLimit = httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "rl:month", httpx.ClientIP).Middleware(logger, true)
		userLimit = httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "rl:booking", auth.UserKey).Middleware(logger, true)
		logger.Info("using redis for slot locks and rate limits", "addr", cfg.RedisAddr)
	} else {
		publicLimit = httpx.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute, httpx.ClientIP).Middleware()
		userLimit = httpx.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute, auth.UserKey).Middleware()
		logger.Warn("REDIS_ADDR not set; slot locks and rate limits are per instance")
	}

	outboxRepo := outbox.NewRepository()
	users := storage.NewUserRepository(pool)
	rules := storage.NewAvailabilityRepository(pool)
	bookingsRepo := storage.NewBookingRepository(pool, outboxRepo)

	scheduleSvc := schedule.NewService(users, rules, bookingsRepo, defaultLoc, logger)
	bookingSvc := booking.NewService(users, scheduleSvc, bookingsRepo, locker, booking.Config{
		LeadTime: cfg.BookingLeadTime,
		LockTTL:  cfg.SlotLockTTL,
	}, logger)

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: cfg.OutboxPollEvery,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	if len(brokers) > 0 {
		userConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: brokers,
			GroupID: cfg.UserEventsGroupID,
			Topics:  events.UserTopics(),
		}, projection.NewUsers(users).Handle)
		go userConsumer.Run(ctx)
	} else {
		logger.Warn("user projection consumer disabled (no kafka brokers configured)")
	}

	if cfg.GRPCPort != "" {
		grpcPort, err := config.Port("GRPC_PORT", cfg.GRPCPort)
		if err != nil {
			return err
		}
		grpcSrv := grpcx.NewServer(logger, db.ReadyCheck(pool))
		go func() {
			logger.Info("grpc server starting", "addr", ":"+grpcPort)
			if err := grpcSrv.Serve(ctx, ":"+grpcPort); err != nil {
				logger.Error("grpc server error", "err", err)
			}
		}()
	}

	availabilityHandler := handlers.NewAvailabilityHandler(scheduleSvc, logger)
	bookingHandler := handlers.NewBookingHandler(bookingSvc, logger)
	requireAuth := auth.RequireAuth(verifier)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("GET /api/v1/availabilities", requireAuth(http.HandlerFunc(availabilityHandler.List)))
	mux.Handle("POST /api/v1/availabilities", requireAuth(http.HandlerFunc(availabilityHandler.Replace)))
	mux.Handle("GET /api/v1/availabilities/month", publicLimit(http.HandlerFunc(availabilityHandler.Month)))
	mux.Handle("POST /api/v1/bookings", httpx.Chain(http.HandlerFunc(bookingHandler.Create), requireAuth, userLimit))
	mux.Handle("GET /api/v1/bookings", requireAuth(http.HandlerFunc(bookingHandler.List)))
	mux.Handle("POST /api/v1/bookings/{id}/cancel", requireAuth(http.HandlerFunc(bookingHandler.Cancel)))
	mux.Handle("PUT /api/v1/bookings/{id}/meeting-link", requireAuth(http.HandlerFunc(bookingHandler.SetMeetingLink)))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.SplitList(cfg.CORSAllowedOrigins),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", httpx.RequestIDHeader},
			ExposedHeaders: []string{"Retry-After", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(cfg.BodyLimitBytes),
		httpx.WithTimeout(cfg.RequestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
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
