package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"prairie_track/internal/aggregate"
	"prairie_track/internal/cache"
	"prairie_track/internal/config"
	"prairie_track/internal/notify"
	"prairie_track/internal/refresh"
	"prairie_track/internal/render"
	"prairie_track/internal/source/prairielearn"
	"prairie_track/internal/staleness"
	"prairie_track/internal/storage"
	"prairie_track/internal/storage/memory"
	"prairie_track/internal/storage/sqlkv"
	"prairie_track/internal/tracker"
)

type migrator interface {
	Migrate(ctx context.Context) error
}

// app is the wired dependency graph shared by every subcommand.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	medium       storage.Medium
	store        *cache.Store
	orchestrator *refresh.Orchestrator
	tracker      *tracker.Tracker
	closers      []func() error
}

// newApp wires every component. showReload controls the reload hint under
// the listing and is false where the command never refreshes.
func newApp(ctx context.Context, configPath string, out, logOut io.Writer, showReload bool) (*app, error) {
	if configPath == "" {
		configPath = config.DefaultPath()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{
		cfg:    cfg,
		logger: setupLogger(cfg.LogLevel, logOut),
	}

	if err := a.openStore(ctx); err != nil {
		a.close()
		return nil, err
	}

	loc, err := cfg.Portal.Location()
	if err != nil {
		a.close()
		return nil, err
	}

	source, err := prairielearn.New(prairielearn.Config{
		BaseURL:        cfg.Portal.BaseURL,
		HomePath:       cfg.Portal.HomePath,
		Cookie:         cfg.Portal.Cookie,
		UserAgent:      cfg.Portal.UserAgent,
		AuxSelector:    cfg.Portal.AuxSelector,
		Timeout:        cfg.Portal.Timeout,
		MaxAttempts:    cfg.Portal.Retry.MaxAttempts,
		InitialBackoff: cfg.Portal.Retry.InitialBackoff,
		MaxBackoff:     cfg.Portal.Retry.MaxBackoff,
	}, a.logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create portal source: %w", err)
	}

	notifiers := notify.Multi{notify.NewTerminal(out), notify.NewLog(a.logger)}
	if cfg.Notify.RabbitMQ.Enabled {
		rabbitMQ, err := notify.NewRabbitMQ(notify.Config{
			URL:        cfg.Notify.RabbitMQ.URL,
			Exchange:   cfg.Notify.RabbitMQ.Exchange,
			RoutingKey: cfg.Notify.RabbitMQ.RoutingKey,
			QueueName:  cfg.Notify.RabbitMQ.QueueName,
		}, a.logger)
		if err != nil {
			// Notifications are best effort; the listing still works.
			a.logger.Warn("rabbitmq notifications disabled", "error", err)
		} else {
			notifiers = append(notifiers, rabbitMQ)
			a.closers = append(a.closers, rabbitMQ.Close)
		}
	}

	aggregator := aggregate.New(a.store, a.logger, loc)
	presenter := render.NewPresenter(aggregator, out, showReload)

	a.orchestrator = refresh.NewOrchestrator(
		source,
		source,
		a.store,
		notifiers,
		presenter,
		a.logger,
		refresh.Config{
			ReloadDelay:  cfg.Refresh.ReloadDelay,
			FetchTimeout: cfg.Refresh.FetchTimeout,
		},
	)

	a.tracker = tracker.New(
		a.store,
		staleness.New(cfg.Refresh.StaleAfter),
		a.orchestrator,
		presenter,
		notifiers,
		a.logger,
	)

	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Store.Driver {
	case "memory":
		a.medium = memory.New()
	default:
		db, err := sqlkv.Open(a.cfg.Store.Driver, a.cfg.Store.DataSource())
		if err != nil {
			return fmt.Errorf("open %s store: %w", a.cfg.Store.Driver, err)
		}
		a.closers = append(a.closers, db.Close)

		medium := sqlkv.NewMedium(db)
		// The local cache creates its own schema; a shared database is
		// migrated explicitly.
		if a.cfg.Store.Driver == sqlkv.DriverSQLite {
			if err := medium.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate cache: %w", err)
			}
		}
		a.medium = medium
	}

	a.store = cache.New(a.medium, a.cfg.Store.Prefix)
	a.logger.Debug("store opened", "driver", a.cfg.Store.Driver, "prefix", a.cfg.Store.Prefix)
	return nil
}

func (a *app) migrate(ctx context.Context) error {
	m, ok := a.medium.(migrator)
	if !ok {
		return nil
	}
	return m.Migrate(ctx)
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
