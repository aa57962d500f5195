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

	"github.com/hazo-app/hazo-auth/internal/access"
	"github.com/hazo-app/hazo-auth/internal/app"
	"github.com/hazo-app/hazo-auth/internal/assignments"
	"github.com/hazo-app/hazo-auth/internal/auth"
	"github.com/hazo-app/hazo-auth/internal/invitations"
	"github.com/hazo-app/hazo-auth/internal/observability"
	"github.com/hazo-app/hazo-auth/internal/onboarding"
	"github.com/hazo-app/hazo-auth/internal/platform/cache"
	"github.com/hazo-app/hazo-auth/internal/platform/db"
	"github.com/hazo-app/hazo-auth/internal/roles"
	"github.com/hazo-app/hazo-auth/internal/scopes"
	"github.com/hazo-app/hazo-auth/internal/shared"
	"github.com/hazo-app/hazo-auth/internal/users"
	"github.com/hazo-app/hazo-auth/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "hazo_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	scopeRepo := scopes.NewRepository(dbpool)
	scopeService := scopes.NewService(scopeRepo, logger, auditLogger)
	brandingCache := scopes.NewBrandingCache(redisClient, cfg.BrandingCacheTTL)
	scopesHandler := scopes.NewHandler(logger, scopeService, brandingCache)

	if _, err := scopeService.EnsureSuperAdmin(ctx); err != nil {
		logger.Error("ensure super admin scope", slog.Any("error", err))
		os.Exit(1)
	}
	if _, err := scopeService.EnsureDefaultSystem(ctx); err != nil {
		logger.Error("ensure default system scope", slog.Any("error", err))
		os.Exit(1)
	}

	assignmentRepo := assignments.NewRepository(dbpool)
	assignmentService := assignments.NewService(assignmentRepo, scopeService, logger)

	accessService := access.NewService(assignmentService, scopeService)
	accessHandler := access.NewHandler(logger, accessService, metrics)
	scopeGuard := access.Middleware{Service: accessService, Logger: logger}.RequireScopeAccess

	assignmentsHandler := assignments.NewHandler(logger, assignmentService, scopeGuard)

	roleRepo := roles.NewRepository(dbpool)
	roleService := roles.NewService(roleRepo, logger)
	rolesHandler := roles.NewHandler(logger, roleService)

	userRepo := users.NewRepository(dbpool)
	userService := users.NewService(userRepo, logger)
	usersHandler := users.NewHandler(logger, userService)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	invitationRepo := invitations.NewRepository(dbpool)
	invitationService := invitations.NewService(invitationRepo, scopeService, assignmentService, jobClient, logger, cfg.AppBaseURL)
	invitationsHandler := invitations.NewHandler(logger, invitationService, scopeGuard)

	onboardingService := onboarding.NewService(scopeService, roleService, assignmentService, invitationService, userService, logger, cfg.MultiTenancy)
	onboardingHandler := onboarding.NewHandler(logger, onboardingService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		AuthHandler:        authHandler,
		ScopesHandler:      scopesHandler,
		AssignmentsHandler: assignmentsHandler,
		AccessHandler:      accessHandler,
		OnboardingHandler:  onboardingHandler,
		InvitationsHandler: invitationsHandler,
		RolesHandler:       rolesHandler,
		UsersHandler:       usersHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
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
