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

	"github.com/gin-gonic/gin"

	"github.com/yashhavalannache/smart-inventory-management/internal/cache"
	"github.com/yashhavalannache/smart-inventory-management/internal/catalog"
	"github.com/yashhavalannache/smart-inventory-management/internal/config"
	"github.com/yashhavalannache/smart-inventory-management/internal/httpapi"
	"github.com/yashhavalannache/smart-inventory-management/internal/logger"
	"github.com/yashhavalannache/smart-inventory-management/internal/service"
	"github.com/yashhavalannache/smart-inventory-management/internal/store"
	"github.com/yashhavalannache/smart-inventory-management/internal/store/memory"
	pgstore "github.com/yashhavalannache/smart-inventory-management/internal/store/postgres"
	sqlitestore "github.com/yashhavalannache/smart-inventory-management/internal/store/sqlite"
	"github.com/yashhavalannache/smart-inventory-management/internal/telemetry"
)

func main() {
	cfg, err := config.Load(os.Getenv("ENV_FILE"))
	if err != nil {
		logger.Get().WithError(err).Fatal("could not load configuration")
	}
	logger.Configure(cfg.LogLevel, cfg.LogFormat)
	log := logger.WithModule("server")

	if err := validateSecurityConfig(cfg); err != nil {
		log.WithError(err).Fatal("invalid security configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.WithError(err).Fatal("could not start tracing")
	}

	closers := make([]func() error, 0, 2)
	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		log.WithError(err).WithField("backend", cfg.StoreBackend).Fatal("store unavailable")
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}
	log.WithField("backend", cfg.StoreBackend).Info("repository ready")

	var replay cache.CheckoutReplayCache = cache.NewLocalCheckoutReplayCache()
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCheckoutReplayCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.WithError(err).Warn("redis unavailable, replaying checkouts from local memory")
			_ = redisCache.Close()
		} else {
			replay = redisCache
			closers = append(closers, redisCache.Close)
			log.Info("checkout replay cache: redis")
		}
	}

	svc := service.New(repo, replay, service.Options{
		ReplayTTL:         cfg.CheckoutReplayTTL(),
		LowStockThreshold: cfg.LowStockThreshold,
	})

	if cfg.SeedCatalog != "" {
		records, err := catalog.Load(cfg.SeedCatalog)
		if err != nil {
			log.WithError(err).Fatal("could not read seed catalog")
		}
		added, err := svc.SeedCatalog(ctx, records)
		if err != nil {
			log.WithError(err).Fatal("could not seed catalog")
		}
		log.WithField("added", added).Info("seed catalog applied")
	}

	auth := httpapi.NewAuthManager(ctx, cfg.AuthSecret, cfg.AccessTokenTTL(), repo)
	if cfg.AdminPassword != "" {
		if err := auth.EnsureAccount(ctx, cfg.AdminUsername, cfg.AdminPassword, httpapi.RoleAdmin); err != nil {
			log.WithError(err).Fatal("could not create admin account")
		}
	}

	gin.SetMode(gin.ReleaseMode)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, cfg.ServiceName)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Address()).Info("smart store listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown error")
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.WithError(err).Warn("close error")
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.WithError(err).Warn("tracing shutdown error")
	}

	log.Info("server stopped")
}

func openRepository(ctx context.Context, cfg config.Config) (store.Repository, func() error, error) {
	switch cfg.StoreBackend {
	case "memory":
		return memory.NewSeeded(), nil, nil
	case "sqlite":
		db, err := sqlitestore.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("DATABASE_URL is required for the postgres backend")
		}
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AdminPassword != "" && len(cfg.AdminPassword) < 8 {
		return fmt.Errorf("ADMIN_PASSWORD must be at least 8 characters")
	}
	return nil
}
