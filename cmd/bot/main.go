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
	"github.com/mymmrac/telego"
	"go.uber.org/zap"

	telegrambot "polyscout/internal/bot"
	"polyscout/internal/client/clob"
	"polyscout/internal/client/gamma"
	"polyscout/internal/config"
	cronrunner "polyscout/internal/cron"
	"polyscout/internal/db"
	"polyscout/internal/executor"
	"polyscout/internal/handler"
	"polyscout/internal/logger"
	"polyscout/internal/notify"
	gormrepo "polyscout/internal/repository/gorm"
	"polyscout/internal/scan"
	"polyscout/internal/session"
	"polyscout/internal/settings"
)

func main() {
	cfgPath := os.Getenv("PS_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	envOnly := false
	if raw := os.Getenv("PS_ENV_ONLY"); raw != "" {
		envOnly = strings.EqualFold(raw, "true") || raw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)
	if err := db.AutoMigrate(dbConn); err != nil {
		log.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepo.New(dbConn)
	settingsStore := &settings.Store{Repo: store, Logger: log, Defaults: cfg.Scan}

	gammaClient := &gamma.Client{
		BaseURL:         cfg.Gamma.BaseURL,
		HTTP:            &http.Client{},
		Logger:          log,
		AttemptTimeouts: cfg.Gamma.AttemptTimeouts,
		ResolveTimeout:  cfg.Gamma.ResolveTimeout,
		PageLimit:       cfg.Scan.PageLimit,
		MaxPages:        cfg.Scan.MaxPages,
	}
	clobHTTP := &http.Client{Timeout: cfg.Clob.Timeout}
	clobClient := clob.NewClient(clobHTTP, cfg.Clob.BaseURL, log)

	tradingClient, err := clob.NewTradingClient(clobClient,
		cfg.Trading.PrivateKey, cfg.Trading.Address,
		cfg.Trading.APIKey, cfg.Trading.APISecret, cfg.Trading.APIPassphrase)
	if err != nil {
		log.Fatal("trading client init failed", zap.Error(err))
	}
	log.Info("trading wallet ready", zap.String("address", tradingClient.Address()))

	catalogCache := scan.NewCache(cfg.Scan.CacheTTL)
	aggregator := &scan.Aggregator{
		Primary:       gammaClient,
		Secondary:     clobClient,
		Cache:         catalogCache,
		Logger:        log,
		FallbackLimit: cfg.Scan.FallbackLimit,
	}
	resolver := &scan.Resolver{Catalog: gammaClient, Logger: log}
	orderExecutor := &executor.Executor{
		Exchange:    tradingClient,
		Resolver:    resolver,
		Repo:        store,
		Logger:      log,
		MaxInflight: cfg.Trading.MaxInflight,
	}

	tgBot, err := telego.NewBot(cfg.Telegram.Token, telego.WithDiscardLogger())
	if err != nil {
		log.Fatal("telegram bot init failed", zap.Error(err))
	}
	notifier := &notify.Telegram{Bot: tgBot, Logger: log}

	monitorDeps := session.MonitorDeps{
		Trades:   tradingClient,
		Quotes:   clobClient,
		Notifier: notifier,
		Logger:   log,
	}
	if cfg.Monitor.Stream {
		monitorDeps.NewStream = func(tokenIDs []string) session.QuoteRunner {
			return clob.NewQuoteStream(clob.QuoteStreamOptions{
				URL:      cfg.Monitor.StreamURL,
				TokenIDs: tokenIDs,
				Logger:   log,
			})
		}
	}
	registry := session.NewRegistry(session.ScanDeps{
		Aggregator: aggregator,
		Executor:   orderExecutor,
		Settings:   settingsStore,
		Notifier:   notifier,
		Logger:     log,
	}, monitorDeps)

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	healthHandler := &handler.HealthHandler{DB: dbConn}
	healthHandler.Register(engine)
	statusHandler := &handler.StatusHandler{Registry: registry, Settings: settingsStore, Repo: store}
	statusHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(log, ctx)
	_, err = cronRunner.Add(cfg.Cron.CatalogRefresh, "catalog refresh", func(ctx context.Context) {
		if catalogCache.Age() > 0 && catalogCache.Age() < cfg.Scan.CacheTTL/2 {
			return
		}
		snapshots, err := clobClient.ListMarkets(ctx, cfg.Scan.FallbackLimit)
		if err != nil {
			log.Warn("catalog refresh failed", zap.Error(err))
			return
		}
		catalogCache.Put(snapshots)
		log.Debug("catalog refreshed", zap.Int("markets", len(snapshots)))
	})
	if err != nil {
		log.Warn("cron register catalog refresh failed", zap.Error(err))
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	go func() {
		log.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
		}
	}()

	commandBot := &telegrambot.Bot{
		API:             tgBot,
		Registry:        registry,
		Settings:        settingsStore,
		Repo:            store,
		Notifier:        notifier,
		Logger:          log,
		AllowedChats:    cfg.Telegram.AllowedChats,
		MonitorDuration: cfg.Monitor.Duration,
		MonitorPoll:     cfg.Monitor.PollInterval,
	}
	go func() {
		if err := commandBot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("telegram bot stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	registry.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}
	log.Info("bye")
}
