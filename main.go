package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"threadline/api"
	"threadline/config"
	"threadline/database"
	"threadline/handlers"
	"threadline/logging"
	"threadline/metrics"
	"threadline/middleware"
	"threadline/routes"
	"threadline/services"
	"threadline/session"
	"threadline/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Release())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.GinMode)
	m := metrics.New()

	sealer, err := session.NewSealer(cfg.SessionSecret)
	if err != nil {
		return err
	}

	var repo session.Repository = session.NewMemoryRepository()
	if cfg.MongoURI != "" {
		db, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Disconnect(); err != nil {
				logger.Warn("mongo disconnect failed", zap.Error(err))
			}
		}()
		repo = database.NewSessionRepository(db.Sessions, sealer)
	} else {
		logger.Warn("MONGODB_URI not set, sessions will not survive a restart")
	}

	client, err := api.New(api.Config{
		BaseURL: cfg.UpstreamURL,
		Timeout: cfg.UpstreamTimeout,
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		return err
	}

	sessions := session.NewManager(repo, session.ManagerConfig{TTL: cfg.SessionTTL, Logger: logger, Metrics: m})
	hub := websocket.NewHub(logger, cfg.AllowedOrigins)
	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	svc := services.New(services.Deps{Client: client, Publisher: hub, Logger: logger, Metrics: m})

	go sessions.Run(ctx)
	go hub.Run(ctx)
	go limiter.Run(ctx)

	router := routes.SetupRouter(routes.Config{
		Handler:        handlers.New(svc, sessions, logger),
		Sessions:       sessions,
		Hub:            hub,
		Metrics:        m,
		Limiter:        limiter,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		Cookie: middleware.CookieConfig{
			Secure: cfg.CookieSecure,
			MaxAge: int(cfg.SessionTTL.Seconds()),
		},
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", server.Addr),
			zap.String("upstream", cfg.UpstreamURL),
			zap.String("mode", cfg.GinMode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forced shutdown", zap.Error(err))
	}
	logger.Info("server stopped gracefully")
	return nil
}
