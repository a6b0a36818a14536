package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mbodje/shelfwatch/internal/config"
	"github.com/mbodje/shelfwatch/internal/repository/mongodb"
	"github.com/mbodje/shelfwatch/internal/repository/sheets"
	"github.com/mbodje/shelfwatch/internal/scheduler"
	"github.com/mbodje/shelfwatch/internal/server/handlers"
	"github.com/mbodje/shelfwatch/internal/server/router"
	actionsvc "github.com/mbodje/shelfwatch/internal/service/actions"
	"github.com/mbodje/shelfwatch/internal/service/features"
	"github.com/mbodje/shelfwatch/internal/service/kpi"
	"github.com/mbodje/shelfwatch/internal/service/pipeline"
	"github.com/mbodje/shelfwatch/internal/service/risk"
	"github.com/mbodje/shelfwatch/pkg/clients/notify"
	"github.com/mbodje/shelfwatch/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	store, err := mongodb.New(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.DBName)
	if err != nil {
		baseLogger.Fatal("failed to init mongodb store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}()

	var sheetsSource *sheets.Source
	if cfg.Sheets.Enabled() {
		sheetsSource, err = sheets.NewSource(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets source", zap.Error(err))
		}
		baseLogger.Info("sheets ingestion source enabled")
	} else {
		baseLogger.Info("sheets ingestion source not configured")
	}

	p := cfg.Pipeline
	featureEngine := features.NewEngine(p.Workers, baseLogger.Named("svc.features"))
	scorer := risk.NewEngine(risk.Config{
		DefaultUnitCost:     decimal.NewFromFloat(p.DefaultUnitCost),
		UrgencyHalfLifeDays: p.UrgencyHalfLifeDays,
		ValueLogCap:         p.ValueLogCap,
	}, baseLogger.Named("svc.risk"))
	generator := actionsvc.NewGenerator(actionsvc.Config{
		MinActionScore:           p.MinActionScore,
		TransferCostPerUnit:      decimal.NewFromFloat(p.TransferCostPerUnit),
		MarkdownUpliftMultiplier: p.MarkdownUpliftMultiplier,
		DefaultPriceMarkup:       decimal.NewFromFloat(p.DefaultPriceMarkup),
		LiquidationRecoveryRate:  decimal.NewFromFloat(p.LiquidationRecoveryRate),
		LiquidationFixedCost:     decimal.NewFromFloat(p.LiquidationFixedCost),
		LiquidationCostPerUnit:   decimal.NewFromFloat(p.LiquidationCostPerUnit),
	}, baseLogger.Named("svc.actions"))

	pipelineSvc := pipeline.NewService(
		store.Sales(), store.Inventory(), store.Products(),
		store.Velocities(), store.Risks(), store.Actions(),
		featureEngine, scorer, generator,
		baseLogger.Named("svc.pipeline"),
	)
	kpiSvc := kpi.NewService(store.Risks(), store.Actions(), store.Outcomes(), store.Products(), baseLogger.Named("svc.kpi"))

	var notifier notify.Client
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookClient(cfg.Notify.WebhookURL)
		baseLogger.Info("run summary webhook enabled")
	}

	api := handlers.NewAPI(handlers.API{
		Pipeline:     pipelineSvc,
		KPI:          kpiSvc,
		Sales:        store.Sales(),
		Inventory:    store.Inventory(),
		Products:     store.Products(),
		Risks:        store.Risks(),
		Actions:      store.Actions(),
		Outcomes:     store.Outcomes(),
		SheetsSource: sheetsSource,
		Logger:       baseLogger.Named("handlers"),
	})
	engine := router.New(api, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(cfg.Scheduler, pipelineSvc, notifier, baseLogger.Named("scheduler"))
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
