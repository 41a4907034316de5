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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/careportal/internal/config"
	"github.com/jwalitptl/careportal/internal/email"
	appointmentHandler "github.com/jwalitptl/careportal/internal/handler/appointment"
	authHandler "github.com/jwalitptl/careportal/internal/handler/auth"
	healthHandler "github.com/jwalitptl/careportal/internal/handler/health"
	profileHandler "github.com/jwalitptl/careportal/internal/handler/profile"
	promHandler "github.com/jwalitptl/careportal/internal/handler/prometheus"
	recordHandler "github.com/jwalitptl/careportal/internal/handler/record"
	"github.com/jwalitptl/careportal/internal/middleware"
	"github.com/jwalitptl/careportal/internal/repository/postgres"
	"github.com/jwalitptl/careportal/internal/router"
	appointmentService "github.com/jwalitptl/careportal/internal/service/appointment"
	authService "github.com/jwalitptl/careportal/internal/service/auth"
	eventService "github.com/jwalitptl/careportal/internal/service/event"
	profileService "github.com/jwalitptl/careportal/internal/service/profile"
	recordService "github.com/jwalitptl/careportal/internal/service/record"
	"github.com/jwalitptl/careportal/internal/storage"
	"github.com/jwalitptl/careportal/pkg/auth"
	"github.com/jwalitptl/careportal/pkg/logger"
	"github.com/jwalitptl/careportal/pkg/messaging"
	"github.com/jwalitptl/careportal/pkg/messaging/redis"
	"github.com/jwalitptl/careportal/pkg/metrics"
	"github.com/jwalitptl/careportal/pkg/security"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "careportal",
		Short: "Patient and doctor portal API",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "directory containing config.yaml")

	load := func() (*config.Config, *logger.Logger, error) {
		var paths []string
		if configPath != "" {
			paths = append(paths, configPath)
		}
		cfg, err := config.LoadConfig(paths...)
		if err != nil {
			return nil, nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
		lg := logger.NewLogger(&logger.Config{
			Level:      logger.ParseLevel(cfg.Log.Level),
			TimeFormat: time.RFC3339,
			Pretty:     cfg.Log.Pretty,
		})
		log.Logger = lg.ZL
		return cfg, lg, nil
	}

	rootCmd.AddCommand(serveCmd(load))
	rootCmd.AddCommand(migrateCmd(load))
	rootCmd.AddCommand(createDoctorCmd(load))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type loader func() (*config.Config, *logger.Logger, error)

func serveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, lg, err := load()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, lg)
		},
	}
}

func migrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, lg, err := load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := postgres.NewDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := postgres.NewMigrator(db).Up(ctx)
			if err != nil {
				return err
			}
			lg.Info("Migrations applied", "count", n)
			return nil
		},
	}
}

// createDoctorCmd provisions doctor accounts. Sign-up only ever creates patients.
func createDoctorCmd(load loader) *cobra.Command {
	var emailAddr, password, name string

	cmd := &cobra.Command{
		Use:   "create-doctor",
		Short: "Create a verified doctor account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, lg, err := load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := postgres.NewDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			authSvc := newAuthService(cfg, lg, postgres.NewBaseRepository(db), email.NewLogSender(lg.ZL))
			user, err := authSvc.CreateDoctor(ctx, emailAddr, password, name)
			if err != nil {
				return err
			}
			lg.Info("Doctor created", "user_id", user.ID.String(), "email", user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&emailAddr, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&name, "name", "", "full name shown to patients")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newAuthService(cfg *config.Config, lg *logger.Logger, base postgres.BaseRepository, mailer email.Service) *authService.Service {
	db := base.GetDB()
	jwtSvc := auth.NewJWTService(auth.Config{
		Secret:        cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
	})
	return authService.NewService(
		postgres.NewUserRepository(base),
		postgres.NewTokenRepository(base),
		postgres.NewProfileRepository(db),
		jwtSvc,
		security.NewBcryptHasher(cfg.Auth.BcryptCost),
		mailer,
		lg,
		authService.Config{
			SiteURL:              cfg.SiteURL,
			RequireVerifiedEmail: cfg.Auth.RequireVerifiedEmail,
			VerifyTokenTTL:       cfg.Auth.VerifyTokenTTL,
			ResetTokenTTL:        cfg.Auth.ResetTokenTTL,
			SessionTTL:           cfg.JWT.RefreshTTL,
		},
	)
}

func newMailer(cfg *config.Config, lg *logger.Logger) email.Service {
	if cfg.Mail.Host == "" {
		lg.Info("No mail host configured, emails will be logged")
		return email.NewLogSender(lg.ZL)
	}
	return email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	})
}

func newBroker(ctx context.Context, cfg *config.Config, lg *logger.Logger) (messaging.Broker, error) {
	if cfg.Redis.URL == "" {
		lg.Info("No Redis configured, domain events are dropped")
		return messaging.NopBroker{}, nil
	}
	return redis.NewRedisBroker(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &lg.ZL)
}

func runServer(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
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
	m := metrics.New(reg, "careportal")

	store, err := storage.NewMinioStore(storage.MinioConfig{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		return err
	}
	if err := store.EnsureBucket(ctx, cfg.Storage.Region); err != nil {
		lg.Warn(err, "Record storage bucket is not ready")
	}

	broker, err := newBroker(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer broker.Close()
	events := eventService.NewEventService(broker, cfg.Redis.Channel, m)

	base := postgres.NewBaseRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	profileRepo := postgres.NewProfileRepository(db)
	recordRepo := postgres.NewRecordRepository(db)

	authSvc := newAuthService(cfg, lg, base, newMailer(cfg, lg))
	appointmentSvc := appointmentService.NewService(appointmentRepo, recordRepo, profileRepo, events, m, lg,
		appointmentService.Config{Location: loc})
	recordSvc := recordService.NewService(recordRepo, profileRepo, store, events, m, lg, recordService.Config{
		PatientURLExpiry: cfg.Storage.PatientURLExpiry,
		DoctorURLExpiry:  cfg.Storage.DoctorURLExpiry,
	})
	profileSvc := profileService.NewService(profileRepo, appointmentRepo, cfg.Cache.DoctorsTTL)

	if err := middleware.RegisterValidators(); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}

	r := router.NewRouter(
		middleware.NewAuthMiddleware(authSvc, cfg.Auth.CookieName, cfg.SiteURL),
		router.Handlers{
			Auth: authHandler.NewHandler(authSvc, authHandler.CookieConfig{
				Name:   cfg.Auth.CookieName,
				Domain: cfg.Auth.CookieDomain,
				Secure: cfg.Auth.CookieSecure,
			}),
			Health:      healthHandler.NewHandler(db, reg),
			Appointment: appointmentHandler.NewHandler(appointmentSvc, cfg.Booking.PageSize),
			Record:      recordHandler.NewHandler(recordSvc),
			Profile:     profileHandler.NewHandler(profileSvc),
		},
		router.RouterConfig{
			Mode:           cfg.Server.Mode,
			RateLimit:      rate.Limit(cfg.RateLimit.RPS),
			RateBurst:      cfg.RateLimit.Burst,
			CORSConfig:     middleware.DefaultCORSConfig(cfg.CORS.AllowOrigins),
			Security:       middleware.DefaultSecurityConfig(cfg.Auth.CookieSecure),
			RequestTimeout: cfg.Server.RequestTimeout,
			MaxUploadBytes: cfg.Uploads.MaxBytes,
			Metrics:        promHandler.New(reg, "careportal").Middleware(),
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	lg.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	lg.Info("Server exited properly")
	return nil
}
