package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/r-menendez/slotline/libs/config"
	"github.com/r-menendez/slotline/libs/db"
	"github.com/r-menendez/slotline/libs/httpx"
	"github.com/r-menendez/slotline/libs/kafkax"
	otelx "github.com/r-menendez/slotline/libs/otel"
	"github.com/r-menendez/slotline/libs/runtime"
	"github.com/r-menendez/slotline/services/booking-service/internal/admission"
	"github.com/r-menendez/slotline/services/booking-service/internal/consumer"
	"github.com/r-menendez/slotline/services/booking-service/internal/events"
	"github.com/r-menendez/slotline/services/booking-service/internal/handlers"
	"github.com/r-menendez/slotline/services/booking-service/internal/inbox"
	"github.com/r-menendez/slotline/services/booking-service/internal/outbox"
	"github.com/r-menendez/slotline/services/booking-service/internal/schedule"
	"github.com/r-menendez/slotline/services/booking-service/internal/storage"
	"github.com/r-menendez/slotline/services/booking-service/internal/waitlist"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	store := storage.NewStore(pool)
	scheduleRepo := storage.NewScheduleRepository(pool)
	waitlistRepo := storage.NewWaitlistRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	admissions := admission.NewService(store, logger)
	admissions.SetHorizonDays(config.Int("BOOKING_HORIZON_DAYS", admission.DefaultHorizonDays))
	matcher := waitlist.NewMatcher(waitlistRepo, store, store, outboxRepo, logger)

	brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))
	if len(brokers) > 0 {
		go outbox.NewPublisher(outboxRepo, brokers, logger).Run(ctx)
		startFreedIntervalConsumers(ctx, brokers, inboxRepo, matcher, logger)
	} else {
		logger.Warn("kafka brokers not configured; events stay in the outbox")
	}

	sweepEvery := config.Duration("WAITLIST_SWEEP_INTERVAL", 5*time.Minute)
	go waitlist.NewSweeper(waitlistRepo, sweepEvery, logger).Run(ctx)

	bookingHandler := handlers.NewBookingHandler(admissions, store, waitlistRepo, logger)
	adminHandler := handlers.NewAdminHandler(scheduleRepo, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if len(brokers) > 0 {
		readyChecks = append(readyChecks, runtime.ReadyCheck{
			Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", "")),
		})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	public := publicMiddleware(logger)
	mux.Handle("/api/v1/public/slots", public(http.HandlerFunc(bookingHandler.Slots)))
	mux.Handle("/api/v1/public/book", public(http.HandlerFunc(bookingHandler.Create)))
	mux.Handle("/api/v1/public/waitlist", public(http.HandlerFunc(bookingHandler.Waitlist)))
	mux.HandleFunc("/api/v1/appointments", bookingHandler.List)
	mux.HandleFunc("/api/v1/appointments/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/appointments/status", bookingHandler.UpdateStatus)
	mux.HandleFunc("/api/v1/admin/hours", adminHandler.Hours)
	mux.HandleFunc("/api/v1/admin/hours/override", adminHandler.Overrides)
	mux.HandleFunc("/api/v1/admin/constraints", adminHandler.Constraints)
	mux.HandleFunc("/api/v1/admin/services", adminHandler.Services)
	mux.HandleFunc("/api/v1/admin/profile", adminHandler.Profile)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.Strings("CORS_ALLOWED_ORIGINS"),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", "Idempotency-Key"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// publicMiddleware rate limits unauthenticated routes, preferring Redis so
// the limit holds across replicas and falling back to per-process limiting.
func publicMiddleware(logger *slog.Logger) httpx.Middleware {
	limit := config.Int("PUBLIC_RATE_LIMIT", 120)
	window := config.Duration("PUBLIC_RATE_WINDOW", time.Minute)

	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		return httpx.NewRedisRateLimiter(rdb, limit, window, "booking:public").Middleware(logger, true)
	}
	return httpx.NewRateLimiter(limit, window).Middleware()
}

// startFreedIntervalConsumers subscribes to the events that free up time
// and feeds each freed interval to the waitlist matcher.
func startFreedIntervalConsumers(ctx context.Context, brokers []string, inboxRepo *inbox.Repository, matcher *waitlist.Matcher, logger *slog.Logger) {
	groupID := config.String("KAFKA_GROUP_ID", "booking-service")

	onCancelled := func(ctx context.Context, msg kafka.Message) error {
		var payload events.AppointmentCancelledPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid cancellation payload", "err", err, "topic", msg.Topic)
			return nil
		}
		freed := schedule.Interval{Start: payload.StartMinute, End: payload.EndMinute}
		_, err := matcher.HandleFreedInterval(ctx, payload.BusinessID, payload.Date, freed)
		return err
	}
	onConstraintRemoved := func(ctx context.Context, msg kafka.Message) error {
		var payload events.ConstraintRemovedPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid constraint payload", "err", err, "topic", msg.Topic)
			return nil
		}
		freed := schedule.Interval{Start: payload.StartMinute, End: payload.EndMinute}
		_, err := matcher.HandleFreedInterval(ctx, payload.BusinessID, payload.Date, freed)
		return err
	}

	go consumer.New(brokers, events.AppointmentCancelled, groupID, inboxRepo, onCancelled, logger).Run(ctx)
	go consumer.New(brokers, events.ConstraintRemoved, groupID, inboxRepo, onConstraintRemoved, logger).Run(ctx)
}
