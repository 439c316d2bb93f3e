package main

import (
	"log/slog"

	"github.com/promptpulse/promptpulse-engine/internal/alerting"
	"github.com/promptpulse/promptpulse-engine/internal/cache"
	"github.com/promptpulse/promptpulse-engine/internal/config"
	"github.com/promptpulse/promptpulse-engine/internal/notify"
	"github.com/promptpulse/promptpulse-engine/internal/pricing"
	"github.com/promptpulse/promptpulse-engine/internal/record"
	"github.com/promptpulse/promptpulse-engine/internal/service"
	"github.com/promptpulse/promptpulse-engine/internal/store"
	"github.com/promptpulse/promptpulse-engine/internal/utils"
)

// app bundles the wired components shared by the serve, check, and seed
// commands.
type app struct {
	logger   *slog.Logger
	store    *store.Store
	manager  *alerting.Manager
	checker  *service.Checker
	query    *service.Query
	recorder *record.Recorder
}

func buildApp(cfg *config.Config) (*app, error) {
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	notifiers := []notify.Notifier{notify.NewSlogNotifier(logger)}
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout))
	}
	dispatcher := notify.NewDispatcher(logger, notifiers...)

	manager := alerting.NewManager(logger, db, db, dispatcher)
	checker := service.NewChecker(logger, db, manager)

	var provider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled {
		provider = cache.NewMemoryProvider()
	}
	query := service.NewQuery(logger, db, provider, cfg.Cache.TTL)

	recorder := record.NewRecorder(logger, db, pricing.NewTable(cfg.Pricing))

	return &app{
		logger:   logger,
		store:    db,
		manager:  manager,
		checker:  checker,
		query:    query,
		recorder: recorder,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("store close failed", slog.Any("error", err))
	}
}
