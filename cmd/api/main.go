package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dentalink/clinic-platform/internal/api/router"
	"github.com/dentalink/clinic-platform/internal/appointments"
	appconfig "github.com/dentalink/clinic-platform/internal/config"
	"github.com/dentalink/clinic-platform/internal/dentists"
	"github.com/dentalink/clinic-platform/internal/notify"
	"github.com/dentalink/clinic-platform/internal/observability/metrics"
	"github.com/dentalink/clinic-platform/internal/patients"
	"github.com/dentalink/clinic-platform/internal/payments"
	"github.com/dentalink/clinic-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to reach database", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer func() { _ = redisClient.Close() }()

	clinicMetrics := metrics.NewClinicMetrics(prometheus.DefaultRegisterer)

	// Repositories
	patientRepo := patients.NewPostgresRepository(pool)
	dentistRepo := dentists.NewPostgresRepository(pool)
	apptRepo := appointments.NewPostgresRepository(pool)
	paymentRepo := payments.NewPostgresRepository(pool)

	// Email confirmations fall back to a logging stub without an API key.
	var emailSender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
	} else {
		emailSender = notify.NewStubEmailSender(logger)
	}
	confirmer := notify.NewBookingConfirmer(emailSender, logger)

	// Scheduling
	scheduler := appointments.NewScheduler(apptRepo, dentistRepo, patientRepo, confirmer, clinicMetrics, logger)
	availability := appointments.NewAvailabilityResolver(apptRepo)

	// Payments
	daraja := payments.NewDarajaClient(payments.DarajaConfig{
		BaseURL:        cfg.MpesaBaseURL,
		ConsumerKey:    cfg.MpesaConsumerKey,
		ConsumerSecret: cfg.MpesaConsumerSecret,
		ShortCode:      cfg.MpesaShortCode,
		PassKey:        cfg.MpesaPassKey,
		CallbackURL:    cfg.MpesaCallbackURL,
		AccountRef:     cfg.MpesaAccountReference,
		Timeout:        cfg.MpesaTimeout,
	}, logger)
	velocity := payments.NewVelocityChecker(redisClient, payments.VelocityConfig{
		MaxPushesPerPhone: cfg.MaxPushesPerPhone,
		WindowHours:       cfg.PushWindowHours,
	}, logger)
	paymentSvc := payments.NewService(paymentRepo, daraja, velocity, clinicMetrics, logger)
	reconciler := payments.NewReconciler(paymentRepo, clinicMetrics, logger)

	// Router
	r := router.New(&router.Config{
		Logger:              logger,
		AppointmentsHandler: appointments.NewHandler(scheduler, availability, logger),
		DentistsHandler:     dentists.NewHandler(dentistRepo, logger),
		PaymentsHandler:     payments.NewHandler(paymentSvc, reconciler, logger),
		JWTSecret:           cfg.JWTSecret,
		MetricsHandler:      promhttp.Handler(),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
