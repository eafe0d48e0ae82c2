package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/certtrack-backend/api/routes"
	"github.com/angelmondragon/certtrack-backend/internal/auditlog"
	"github.com/angelmondragon/certtrack-backend/internal/auth"
	"github.com/angelmondragon/certtrack-backend/internal/certconfig"
	"github.com/angelmondragon/certtrack-backend/internal/certificates"
	"github.com/angelmondragon/certtrack-backend/internal/editrequests"
	"github.com/angelmondragon/certtrack-backend/internal/export"
	"github.com/angelmondragon/certtrack-backend/internal/licensees"
	"github.com/angelmondragon/certtrack-backend/internal/notifications"
	"github.com/angelmondragon/certtrack-backend/internal/preview"
	"github.com/angelmondragon/certtrack-backend/internal/receipts"
	"github.com/angelmondragon/certtrack-backend/internal/registration"
	"github.com/angelmondragon/certtrack-backend/internal/users"
	"github.com/angelmondragon/certtrack-backend/pkg/auth/session"
	"github.com/angelmondragon/certtrack-backend/pkg/config"
	"github.com/angelmondragon/certtrack-backend/pkg/db"
	"github.com/angelmondragon/certtrack-backend/pkg/logger"
	"github.com/angelmondragon/certtrack-backend/pkg/metrics"
	"github.com/angelmondragon/certtrack-backend/pkg/migrate"
	"github.com/angelmondragon/certtrack-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbClient.DB())
	certsRepo := certificates.NewRepository(dbClient.DB())
	receiptsRepo := receipts.NewRepository(dbClient.DB())
	licenseesRepo := licensees.NewRepository(dbClient.DB())
	editRequestsRepo := editrequests.NewRepository(dbClient.DB())
	auditRepo := auditlog.NewRepository(dbClient.DB())
	configRepo := certconfig.NewRepository(dbClient.DB())
	lookupsRepo := certconfig.NewLookupsRepository(dbClient.DB())

	auditService, err := auditlog.NewService(auditRepo)
	if err != nil {
		fatal(logg, "failed to create audit log service", err)
	}
	configService, err := certconfig.NewService(configRepo)
	if err != nil {
		fatal(logg, "failed to create config service", err)
	}
	lookupsService, err := certconfig.NewLookupsService(lookupsRepo)
	if err != nil {
		fatal(logg, "failed to create lookups service", err)
	}

	var mailer notifications.Mailer
	mailer, err = notifications.NewSMTPMailer(cfg.SMTP)
	if err != nil {
		logg.Warn(context.Background(), "smtp not configured, mail delivery disabled")
		mailer = notifications.NewLogMailer(logg)
	}
	notifyService, err := notifications.NewService(mailer, usersRepo, cfg.App.BaseURL)
	if err != nil {
		fatal(logg, "failed to create notification service", err)
	}

	loginLimiter, err := auth.NewRateLimiter(redisClient, cfg.AuthRateLimit)
	if err != nil {
		fatal(logg, "failed to create login rate limiter", err)
	}
	authService, err := auth.NewService(usersRepo, sessionManager, loginLimiter, cfg.JWT, logg)
	if err != nil {
		fatal(logg, "failed to create auth service", err)
	}

	certsService, err := certificates.NewService(certsRepo, configService, auditService, dbClient)
	if err != nil {
		fatal(logg, "failed to create certificate service", err)
	}
	registrationService, err := registration.NewService(certsRepo, receiptsRepo, licenseesRepo, configService, auditService, dbClient, cfg.Receipts.NumberFloor)
	if err != nil {
		fatal(logg, "failed to create registration service", err)
	}
	editRequestsService, err := editrequests.NewService(editRequestsRepo, certsRepo, configService, auditService, notifyService, dbClient, logg)
	if err != nil {
		fatal(logg, "failed to create edit request service", err)
	}
	licenseesService, err := licensees.NewService(licenseesRepo, configService, auditService)
	if err != nil {
		fatal(logg, "failed to create licensee service", err)
	}
	receiptsService, err := receipts.NewService(receiptsRepo)
	if err != nil {
		fatal(logg, "failed to create receipt service", err)
	}
	exportService, err := export.NewService(certsService)
	if err != nil {
		fatal(logg, "failed to create export service", err)
	}
	previewService := preview.NewService()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, httpMetrics, registry, routes.Services{
			Auth:         authService,
			Certificates: certsService,
			Registration: registrationService,
			EditRequests: editRequestsService,
			Licensees:    licenseesService,
			Receipts:     receiptsService,
			Config:       configService,
			Lookups:      lookupsService,
			Export:       exportService,
			Preview:      previewService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func fatal(logg *logger.Logger, msg string, err error) {
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
