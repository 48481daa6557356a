package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/havenlink/havenlink/internal/access"
	"github.com/havenlink/havenlink/internal/app"
	"github.com/havenlink/havenlink/internal/audit"
	"github.com/havenlink/havenlink/internal/auth"
	"github.com/havenlink/havenlink/internal/catalog"
	"github.com/havenlink/havenlink/internal/consent"
	"github.com/havenlink/havenlink/internal/guard"
	"github.com/havenlink/havenlink/internal/invites"
	"github.com/havenlink/havenlink/internal/jobs"
	"github.com/havenlink/havenlink/internal/membership"
	"github.com/havenlink/havenlink/internal/observability"
	"github.com/havenlink/havenlink/internal/orgs"
	"github.com/havenlink/havenlink/internal/platform/cache"
	"github.com/havenlink/havenlink/internal/platform/db"
	"github.com/havenlink/havenlink/internal/profiles"
	"github.com/havenlink/havenlink/internal/ratelimit"
	"github.com/havenlink/havenlink/internal/records"
	"github.com/havenlink/havenlink/internal/shared"
	"github.com/havenlink/havenlink/migrations"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	version, err := migrations.Apply(cfg.PGDSN)
	if err != nil {
		logger.Error("apply migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("schema current", slog.Uint64("version", uint64(version)))

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "havenlink_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()

	recorder := audit.NewRecorder(pool)
	limiter := ratelimit.NewLimiter(redisClient)
	mutationGuard := guard.New(recorder, limiter, logger, metrics)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, mutationGuard, catalog.DefaultCacheTTL)

	profilesRepo := profiles.NewRepository(pool)
	profilesService := profiles.NewService(profilesRepo, mutationGuard, recorder)

	membershipRepo := membership.NewRepository(pool)
	resolver := membership.NewResolver(membershipRepo)
	builder := access.NewBuilder(resolver, catalogService, profilesService)
	accessMW := access.Middleware{Builder: builder, Logger: logger}

	orgsRepo := orgs.NewRepository(pool)
	orgsService := orgs.NewService(orgsRepo, mutationGuard)

	consentRepo := consent.NewRepository(pool)
	consentService := consent.NewService(consentRepo, mutationGuard)

	recordsRepo := records.NewRepository(pool)
	recordsService := records.NewService(recordsRepo, consentService, mutationGuard)

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	invitesRepo := invites.NewRepository(pool)
	invitesService := invites.NewService(invitesRepo, mutationGuard, recorder, jobsClient, logger)

	auditRepo := audit.NewPGRepository(pool)
	auditService := audit.NewService(auditRepo)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		AccessMW:        accessMW,
		AuthHandler:     auth.NewHandler(logger, authService, builder, sessionManager, csrfManager),
		CatalogHandler:  catalog.NewHandler(logger, catalogService),
		OrgsHandler:     orgs.NewHandler(logger, orgsService),
		ProfilesHandler: profiles.NewHandler(logger, profilesService),
		ConsentHandler:  consent.NewHandler(logger, consentService),
		RecordsHandler:  records.NewHandler(logger, recordsService),
		InvitesHandler:  invites.NewHandler(logger, invitesService),
		AuditHandler:    audit.NewHandler(logger, auditService),
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
