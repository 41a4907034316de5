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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/careportal/internal/config"
	"github.com/jwalitptl/careportal/internal/email"
	healthHandler "github.com/jwalitptl/careportal/internal/handler/health"
	"github.com/jwalitptl/careportal/internal/repository/postgres"
	appointmentService "github.com/jwalitptl/careportal/internal/service/appointment"
	eventService "github.com/jwalitptl/careportal/internal/service/event"
	"github.com/jwalitptl/careportal/internal/worker"
	"github.com/jwalitptl/careportal/pkg/logger"
	"github.com/jwalitptl/careportal/pkg/messaging"
	"github.com/jwalitptl/careportal/pkg/messaging/redis"
	"github.com/jwalitptl/careportal/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	lg := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Pretty:     cfg.Log.Pretty,
	})
	log.Logger = lg.ZL
	lg = lg.WithFields(map[string]interface{}{"component": "worker"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cancel, cfg, lg); err != nil {
		lg.Fatal(err, "Worker failed")
	}
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, lg *logger.Logger) error {
	loc, err := cfg.Booking.Location()
	if err != nil {
		return err
	}

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "careportal_worker")

	var broker messaging.Broker = messaging.NopBroker{}
	if cfg.Redis.URL != "" {
		broker, err = redis.NewRedisBroker(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &lg.ZL)
		if err != nil {
			return err
		}
	} else {
		lg.Info("No Redis configured, notifications are disabled")
	}
	defer broker.Close()

	var mailer email.Service
	if cfg.Mail.Host != "" {
		mailer = email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
	} else {
		mailer = email.NewLogSender(lg.ZL)
	}

	appointmentRepo := postgres.NewAppointmentRepository(db)
	profileRepo := postgres.NewProfileRepository(db)
	appointments := appointmentService.NewService(
		appointmentRepo,
		postgres.NewRecordRepository(db),
		profileRepo,
		eventService.NewEventService(broker, cfg.Redis.Channel, m),
		m, lg,
		appointmentService.Config{Location: loc},
	)

	notifier := worker.NewNotifier(
		broker,
		profileRepo,
		mailer,
		worker.NotifierConfig{
			Channel:       cfg.Redis.Channel,
			RetryAttempts: 3,
			RetryDelay:    2 * time.Second,
			Location:      loc,
		},
		lg,
		m,
	)
	completion := worker.NewCompletionWorker(appointments, cfg.Worker.CompletionInterval, lg)

	srv := healthServer(cfg.Worker.HealthPort, healthHandler.NewHandler(db, reg))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error(err, "Health check server failed")
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			lg.Info("Shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		completion.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := notifier.Start(ctx); err != nil {
			lg.Error(err, "Notifier stopped")
		}
	}()
	wg.Wait()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	return srv.Shutdown(shutdownCtx)
}

func healthServer(port int, h *healthHandler.Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	h.RegisterRoutes(engine.Group(""))

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}
}
