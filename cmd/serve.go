package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"portfolio-tracker/auth"
	"portfolio-tracker/config"
	"portfolio-tracker/database"
	"portfolio-tracker/handlers"
	"portfolio-tracker/market"
	"portfolio-tracker/middleware"
	"portfolio-tracker/pkg/logger"
	"portfolio-tracker/repository"
	"portfolio-tracker/symbols"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Run:   runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Create missing tables from the models before serving")
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, appLogger := bootstrap()
	defer func() { _ = appLogger.Sync() }()

	if err := cfg.Validate(); err != nil {
		appLogger.Fatal("Invalid configuration", logger.ErrorField(err))
	}
	appLogger.Info("Starting portfolio tracker", logger.StringField("name", cfg.App.Name), logger.StringField("env", cfg.App.Env))

	db, err := database.Open(cfg.Database)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if autoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			appLogger.Fatal("Failed to migrate models", logger.ErrorField(err))
		}
	}

	// Redis is optional; without it caches and refresh tokens stay in process.
	priceCache := market.PriceCache(market.NewMemoryPriceCache(cfg.Market.CacheTTL))
	var refreshStore auth.RefreshStore = auth.NewMemoryRefreshStore()
	if rdb := connectRedis(ctx, cfg.Redis, appLogger); rdb != nil {
		defer rdb.Close()
		priceCache = market.NewLayered(cfg.Market.CacheTTL, priceCache, market.NewRedisPriceCache(rdb))
		refreshStore = auth.NewRedisRefreshStore(rdb)
	}

	quotes := market.NewClient(cfg.Market, priceCache, appLogger)
	tokens := auth.NewTokenManager(cfg.Auth, refreshStore)

	users := repository.NewUserRepository(db, appLogger, cfg.Auth.BcryptCost)
	positions := repository.NewPositionRepository(db, appLogger)
	symbolRepo := repository.NewSymbolRepository(db, appLogger)

	scheduler := scheduleSymbolSync(ctx, cfg.Symbols, symbols.NewSyncer(cfg.Symbols, symbolRepo, appLogger), appLogger)
	if scheduler != nil {
		defer scheduler.Stop()
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(appLogger))
	handlers.RegisterRoutes(router, handlers.Handlers{
		Auth:      handlers.NewAuthHandler(users, tokens, appLogger),
		Portfolio: handlers.NewPortfolioHandler(positions, symbolRepo, quotes, appLogger),
		Market:    handlers.NewMarketHandler(quotes, symbolRepo, cfg.Symbols.SearchLimit, appLogger),
	}, tokens)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		Handler: router,
	}

	go func() {
		appLogger.Info("HTTP server starting", logger.StringField("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown failed", logger.ErrorField(err))
	}
}

// connectRedis returns nil when Redis is disabled or unreachable.
func connectRedis(ctx context.Context, cfg config.Redis, log *logger.Logger) *redis.Client {
	if cfg.Host == "" {
		log.Info("Redis disabled, using in-process caches")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("Failed to connect to Redis, using in-process caches", logger.ErrorField(err), logger.StringField("addr", cfg.Addr()))
		_ = rdb.Close()
		return nil
	}
	return rdb
}

// scheduleSymbolSync refreshes the directory on cfg.SyncSchedule. An empty
// schedule disables it.
func scheduleSymbolSync(ctx context.Context, cfg config.Symbols, syncer *symbols.Syncer, log *logger.Logger) *cron.Cron {
	if cfg.SyncSchedule == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(cfg.SyncSchedule, func() {
		if _, err := syncer.Sync(ctx); err != nil {
			log.Error("Scheduled symbol sync failed", logger.ErrorField(err))
		}
	})
	if err != nil {
		log.Error("Invalid symbol sync schedule", logger.ErrorField(err), logger.StringField("schedule", cfg.SyncSchedule))
		return nil
	}

	c.Start()
	log.Info("Symbol sync scheduled", logger.StringField("schedule", cfg.SyncSchedule))
	return c
}
