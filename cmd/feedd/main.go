package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"niftyfeed/internal/client/fyers"
	"niftyfeed/internal/config"
	cronrunner "niftyfeed/internal/cron"
	"niftyfeed/internal/db"
	"niftyfeed/internal/engine"
	"niftyfeed/internal/handler"
	"niftyfeed/internal/logger"
	"niftyfeed/internal/market"
	"niftyfeed/internal/registry"
	"niftyfeed/internal/repository"
	gormrepository "niftyfeed/internal/repository/gorm"

	_ "niftyfeed/docs"
)

func main() {
	cfgPath := os.Getenv("NF_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("NF_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var dbConn *db.DB
	var repo repository.Repository
	if strings.TrimSpace(cfg.DB.DSN) != "" {
		dbConn, err = db.Open(cfg.DB)
		if err != nil {
			logger.Fatal("db open failed", zap.Error(err))
		}
		defer db.Close(dbConn)

		if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
			logger.Warn("failed to set timezone", zap.Error(err))
		}
		if err := db.AutoMigrate(dbConn); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
		repo = gormrepository.New(dbConn.Gorm)
	} else {
		logger.Info("persistence disabled, no db dsn configured")
	}

	var reg *registry.Registry
	if len(cfg.Symbols) > 0 {
		reg, err = registry.NewFromSymbols(cfg.Symbols)
	} else {
		reg, err = registry.New()
	}
	if err != nil {
		logger.Fatal("registry init failed", zap.Error(err))
	}

	loc, err := time.LoadLocation(cfg.Session.Timezone)
	if err != nil {
		logger.Fatal("session timezone invalid", zap.String("tz", cfg.Session.Timezone), zap.Error(err))
	}
	session, err := market.NewSession(cfg.Session.Open, cfg.Session.Close, loc)
	if err != nil {
		logger.Fatal("session window invalid", zap.Error(err))
	}

	eng, err := engine.New(engine.Config{
		Credentials: fyers.Credentials{
			ClientID:    cfg.Fyers.ClientID,
			AccessToken: cfg.Fyers.AccessToken,
		},
		BaseURL:           cfg.Fyers.BaseURL,
		SocketURL:         cfg.Fyers.SocketURL,
		HTTPClient:        &http.Client{Timeout: cfg.Fyers.Timeout},
		PollInterval:      cfg.Quotes.PollInterval,
		StaleAfter:        cfg.Quotes.StaleAfter,
		ReconnectWait:     cfg.Stream.ReconnectWait,
		HistoryLookback:   time.Duration(cfg.History.LookbackDays) * 24 * time.Hour,
		HistoryPause:      cfg.History.Pause,
		HistoryErrorPause: cfg.History.ErrorPause,
		HistoryAlways:     cfg.History.Always,
		Registry:          reg,
		Session:           &session,
		Repo:              repo,
		Logger:            logger,
	})
	if err != nil {
		logger.Fatal("engine init failed, set NF_FYERS_CLIENT_ID and NF_FYERS_ACCESS_TOKEN", zap.Error(err))
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.CORSMiddleware())
	router.Use(handler.RequestIDMiddleware())
	router.Use(handler.BearerAuthMiddleware(cfg.Server.AuthToken))

	healthHandler := &handler.HealthHandler{DB: dbConn}
	healthHandler.Register(router)
	handler.RegisterDocs(router)
	marketHandler := &handler.MarketHandler{Feed: eng}
	marketHandler.Register(router)
	historyHandler := &handler.HistoryHandler{Feed: eng, Repo: repo, Logger: logger}
	historyHandler.Register(router)
	signalHandler := &handler.SignalHandler{Feed: eng, Repo: repo}
	signalHandler.Register(router)
	statusHandler := &handler.StatusHandler{Feed: eng, Repo: repo}
	statusHandler.Register(router)
	streamHandler := &handler.StreamHandler{Feed: eng}
	streamHandler.Register(router)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		logger.Fatal("engine start failed", zap.Error(err))
	}

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		if _, err := cronRunner.Add("history sweep", cfg.History.Schedule, func(ctx context.Context) {
			if err := eng.RefreshHistory(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("cron history sweep failed", zap.Error(err))
			}
		}); err != nil {
			logger.Warn("cron register history sweep failed", zap.Error(err))
		}
		if cfg.Journal.Enabled && repo != nil {
			if _, err := cronRunner.Add("quote journal", cfg.Journal.Schedule, func(ctx context.Context) {
				if err := eng.CaptureJournal(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("cron quote journal failed", zap.Error(err))
				}
			}); err != nil {
				logger.Warn("cron register quote journal failed", zap.Error(err))
			}
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	// Warm the series cache so signals and charts work from the first
	// minutes of a fresh process.
	go func() {
		if err := eng.RefreshHistory(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("initial history sweep failed", zap.Error(err))
		}
	}()

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	eng.Stop()
}
