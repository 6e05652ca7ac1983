package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/inlane-funnel/internal/api/router"
	"github.com/wolfman30/inlane-funnel/internal/app/bootstrap"
	appconfig "github.com/wolfman30/inlane-funnel/internal/config"
	"github.com/wolfman30/inlane-funnel/internal/events"
	"github.com/wolfman30/inlane-funnel/internal/functions"
	httpmiddleware "github.com/wolfman30/inlane-funnel/internal/http/middleware"
	"github.com/wolfman30/inlane-funnel/internal/leads"
	"github.com/wolfman30/inlane-funnel/internal/messaging"
	"github.com/wolfman30/inlane-funnel/internal/observability/metrics"
	"github.com/wolfman30/inlane-funnel/internal/payments"
	"github.com/wolfman30/inlane-funnel/internal/session"
	"github.com/wolfman30/inlane-funnel/internal/verification"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting inlane-funnel API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"variant", cfg.FormVariant,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type application struct {
	handler http.Handler
	closers []func()
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp wires storage, collaborators and handlers. Redis and Postgres are
// optional outside production; in-memory stores stand in for them.
func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*application, error) {
	app := &application{}
	metricsHandler, funnelMetrics := setupMetrics()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
	}
	pool, sqlDB, err := bootstrap.BuildDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		app.closers = append(app.closers, pool.Close, func() { _ = sqlDB.Close() })
	}
	if cfg.IsProduction() && (redisClient == nil || pool == nil) {
		app.Close()
		return nil, errors.New("api: production requires redis and postgres")
	}

	var (
		leadRepo    leads.Repository
		paymentRepo payments.Repository
		sessions    interface {
			session.Store
			leads.SessionStarter
		}
		challenges verification.ChallengeStore
		locker     session.Locker
		otpLimiter httpmiddleware.Limiter
	)
	if pool != nil {
		leadRepo = leads.NewPostgresRepository(pool)
		paymentRepo = payments.NewSQLRepository(sqlDB)
	} else {
		logger.Warn("DATABASE_URL not set; leads and payments kept in memory")
		leadRepo = leads.NewInMemoryRepository()
		paymentRepo = payments.NewMemoryRepository()
	}
	if redisClient != nil {
		sessions = session.NewRedisStore(redisClient, cfg.SessionTTL)
		challenges = verification.NewRedisChallengeStore(redisClient)
		locker = session.NewRedisLocker(redisClient)
		if cfg.OTPRatePerMinute > 0 {
			otpLimiter = httpmiddleware.NewRedisWindow(redisClient, "otp", cfg.OTPRatePerMinute, time.Minute)
		}
	} else {
		logger.Warn("redis unavailable; funnel sessions kept in memory")
		sessions = session.NewMemoryStore(cfg.SessionTTL)
		challenges = verification.NewMemoryChallengeStore()
		locker = session.NewMemoryLocker()
		if cfg.OTPRatePerMinute > 0 {
			otpLimiter = httpmiddleware.NewTokenBucket(ctx, float64(cfg.OTPRatePerMinute)/60, cfg.OTPRatePerMinute)
		}
	}
	var leadLimiter httpmiddleware.Limiter
	if cfg.LeadRatePerMinute > 0 {
		leadLimiter = httpmiddleware.NewTokenBucket(ctx, float64(cfg.LeadRatePerMinute)/60, cfg.LeadRatePerMinute)
	}

	publisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	invoker := bootstrap.BuildFunctionsClient(cfg, funnelMetrics, logger)
	otpSender, provider, reason := bootstrap.BuildOTPSender(cfg, invoker, logger)
	if otpSender == nil {
		if cfg.IsProduction() {
			app.Close()
			return nil, fmt.Errorf("api: no OTP provider: %s", reason)
		}
		logger.Warn("no OTP provider configured; codes will be logged", "reason", reason)
		otpSender, provider = messaging.NewLogSender(logger), messaging.OTPProviderLog
	}
	logger.Info("otp provider selected", "provider", provider)
	if invoker == nil {
		// Payment calls fail with functions.ErrNotConfigured until FUNCTIONS_BASE_URL is set.
		invoker = functions.NewClient("", "", cfg.FunctionsTimeout, logger)
	}

	variant, err := leads.VariantByName(cfg.FormVariant, cfg.OtherOffersPayment)
	if err != nil {
		app.Close()
		return nil, err
	}
	submitterOpts := []leads.SubmitterOption{
		leads.WithSubmitTimeout(cfg.LeadSubmitTimeout),
		leads.WithSubmitMetrics(funnelMetrics),
	}
	if publisher != nil {
		submitterOpts = append(submitterOpts, leads.WithEventPublisher(publisher))
	}
	leadsHandler := leads.NewHandler(leads.HandlerConfig{
		Catalog:   leads.NewAreaCatalog(cfg.ServiceableAreas),
		Variant:   variant,
		Submitter: leads.NewRepositorySubmitter(leadRepo, logger, submitterOpts...),
		Repo:      leadRepo,
		Sessions:  sessions,
		Metrics:   funnelMetrics,
		Logger:    logger,
	})

	otp := verification.NewService(sessions, challenges, otpSender, locker, verification.Config{
		CodeTTL:     cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
	}, logger).WithMetrics(funnelMetrics)

	gateway := payments.NewFunctionGateway(invoker)
	handoff := payments.NewHandoff(sessions, gateway, paymentRepo, locker, cfg.PaymentAmount, logger).WithMetrics(funnelMetrics)
	status := payments.NewStatusService(gateway, paymentRepo, logger).WithMetrics(funnelMetrics)
	if publisher != nil {
		status = status.WithPublisher(publisher)
	}

	app.handler = router.New(&router.Config{
		Logger:              logger,
		LeadsHandler:        leadsHandler,
		SessionHandler:      session.NewHandler(sessions, logger),
		VerificationHandler: verification.NewHandler(otp, logger),
		PaymentsHandler:     payments.NewHandler(handoff, status, cfg.SupportPhone, logger),
		Health:              router.NewHealthHandler(healthChecks(redisClient, pool)),
		MetricsHandler:      metricsHandler,
		AdminAuthSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		LeadLimiter:         leadLimiter,
		OTPLimiter:          otpLimiter,
	})
	return app, nil
}

func setupMetrics() (http.Handler, *metrics.FunnelMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewFunnelMetrics(reg)
}

// buildPublisher returns nil when LEAD_EVENTS_QUEUE_URL is unset.
func buildPublisher(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*events.Publisher, error) {
	if cfg.LeadEventsQueueURL == "" {
		logger.Info("lead events queue not configured; notifications disabled")
		return nil, nil
	}
	awsCfg, err := bootstrap.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	queue := events.NewSQSQueue(bootstrap.BuildSQSClient(awsCfg, cfg), cfg.LeadEventsQueueURL)
	return events.NewPublisher(queue, logger), nil
}

func healthChecks(redisClient *redis.Client, pool *pgxpool.Pool) map[string]router.Pinger {
	checks := map[string]router.Pinger{}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	return checks
}
