package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-token-gate/internal/config"
	"go-token-gate/internal/event"
	"go-token-gate/internal/handler"
	"go-token-gate/internal/metrics"
	"go-token-gate/internal/middleware"
	"go-token-gate/internal/repository"
	"go-token-gate/internal/router"
	"go-token-gate/internal/service"
)

const eventBuffer = 64

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return build(cfg, slog.Default())
}

func build(cfg *config.Config, log *slog.Logger) (*App, error) {
	identities, err := repository.LoadIdentities(cfg.UsersFile, cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to load identities: %w", err)
	}
	identityRepo, err := repository.NewIdentityRepository(identities)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize identity store: %w", err)
	}
	sessionRepo := repository.NewSessionRepository()
	postRepo := repository.NewPostRepository()
	log.Info("stores ready", "identities", identityRepo.Count())

	bus := event.NewBus(eventBuffer)
	auditCtx, auditCancel := context.WithCancel(context.Background())
	auditDone := event.NewAuditLogger(bus, log).Start(auditCtx)
	stopAudit := func() {
		auditCancel()
		<-auditDone
	}

	appMetrics := metrics.New()

	tokenService, err := service.NewTokenService(service.TokenConfig{
		AccessSecret:     cfg.AccessTokenSecret,
		RefreshSecret:    cfg.RefreshTokenSecret,
		AccessTTL:        cfg.AccessTokenTTL,
		RefreshTTL:       cfg.RefreshTokenTTL,
		Rotation:         rotationPolicy(cfg.RotationPolicy),
		RotationGrace:    cfg.RotationGrace,
		RevokeOnMismatch: cfg.RefreshReuseRevokes,
	}, identityRepo, sessionRepo, bus, appMetrics)
	if err != nil {
		stopAudit()
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	authService, err := service.NewAuthService(identityRepo, tokenService, cfg.BcryptCost)
	if err != nil {
		stopAudit()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}
	postService := service.NewPostService(postRepo, bus)

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(tokenService), router.Handlers{
		Auth:  handler.NewAuthHandler(authService, tokenService, cfg.CookieSecure),
		Posts: handler.NewPostHandler(postService),
	}, appMetrics)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	log.Info("token policy",
		"access_ttl", cfg.AccessTokenTTL,
		"refresh_ttl", cfg.RefreshTokenTTL,
		"rotation", rotationPolicy(cfg.RotationPolicy).String(),
		"reuse_revokes", cfg.RefreshReuseRevokes,
	)

	return &App{
		server: server,
		cleanupFuncs: []func(){
			stopAudit,
		},
	}, nil
}

func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	slog.Info("server stopped")
	return nil
}

func rotationPolicy(name string) service.RotationPolicy {
	if name == config.RotationGrace {
		return service.RotationGrace
	}
	return service.RotationAlways
}
