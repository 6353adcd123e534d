package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"prairie_track/internal/domain"
)

const (
	DefaultReloadDelay = 500 * time.Millisecond

	flightKey = "refresh"
)

var errNoResult = errors.New("no course code or assessment rows")

type Config struct {
	// ReloadDelay is how long to wait after a success or partial refresh
	// before the presenter redraws.
	ReloadDelay time.Duration
	// FetchTimeout bounds each source fetch. Zero means no timeout.
	FetchTimeout time.Duration
}

type Orchestrator struct {
	discoverer Discoverer
	fetcher    Fetcher
	store      RecordStore
	notifier   Notifier
	presenter  Presenter
	logger     *slog.Logger
	config     Config

	group singleflight.Group
	mu    sync.RWMutex
	state domain.RefreshState
}

func NewOrchestrator(
	discoverer Discoverer,
	fetcher Fetcher,
	store RecordStore,
	notifier Notifier,
	presenter Presenter,
	logger *slog.Logger,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		discoverer: discoverer,
		fetcher:    fetcher,
		store:      store,
		notifier:   notifier,
		presenter:  presenter,
		logger:     logger.With("component", "refresh"),
		config:     cfg,
		state:      domain.StateIdle,
	}
}

func (o *Orchestrator) State() domain.RefreshState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(s domain.RefreshState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Refresh clears the cache and repopulates it from every discovered source.
// Concurrent callers join the run already in flight and share its report.
// The returned error is non-nil only for a failure outcome.
func (o *Orchestrator) Refresh(ctx context.Context) (*domain.RefreshReport, error) {
	v, err, shared := o.group.Do(flightKey, func() (interface{}, error) {
		return o.run(ctx)
	})
	if shared {
		o.logger.Debug("joined in-flight refresh")
	}

	report, _ := v.(*domain.RefreshReport)
	return report, err
}

type fetchResult struct {
	endpoint domain.Endpoint
	record   *domain.SourceRecord
	err      error
}

func (o *Orchestrator) run(ctx context.Context) (*domain.RefreshReport, error) {
	startTime := time.Now()
	report := &domain.RefreshReport{RunID: uuid.NewString()}
	logger := o.logger.With("run_id", report.RunID)

	o.setState(domain.StateDiscovering)
	logger.Info("starting refresh")

	discovery, err := o.discoverer.Discover(ctx)
	if err != nil {
		err = fmt.Errorf("discover sources: %w", err)
		return o.fail(ctx, logger, report, startTime, err, "Error reloading assessments: "+err.Error())
	}
	if discovery == nil || len(discovery.Endpoints) == 0 {
		// The purge still happens so a refresh never leaves old rows behind.
		if err := o.store.ClearAll(ctx); err != nil {
			logger.Error("failed to clear cache", "error", err)
		}
		return o.fail(ctx, logger, report, startTime, domain.ErrNoSourcesDiscovered, "No courses found to reload")
	}

	endpoints := discovery.Endpoints
	report.Discovered = len(endpoints)

	o.setState(domain.StateFetching)
	o.notify(ctx, logger, domain.NotifyInfo, report.RunID, fmt.Sprintf("Reloading %d course(s)...", len(endpoints)))

	results := o.fetchAll(ctx, endpoints)

	o.setState(domain.StateReconciling)
	if err := o.store.ClearAll(ctx); err != nil {
		err = fmt.Errorf("clear cache: %w", err)
		return o.fail(ctx, logger, report, startTime, err, "Error reloading assessments: "+err.Error())
	}

	if discovery.Aux != nil {
		if err := o.store.WriteAux(ctx, discovery.Aux); err != nil {
			logger.Warn("failed to store aux fragment", "error", err)
			report.Errors = append(report.Errors, fmt.Errorf("store aux fragment: %w", err))
		}
	}

	for _, res := range results {
		if res.err != nil {
			report.Failed++
			report.Errors = append(report.Errors, res.err)
			logger.Warn("source fetch failed", "source_id", res.endpoint.SourceID, "error", res.err)
			continue
		}

		if len(res.record.Rows) == 0 {
			report.Succeeded++
			report.SkippedEmpty++
			logger.Debug("source has no open assessments", "source_id", res.endpoint.SourceID)
			continue
		}

		if err := o.store.Write(ctx, res.record); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, &domain.SourceError{SourceID: res.endpoint.SourceID, Err: err})
			logger.Warn("failed to store source", "source_id", res.endpoint.SourceID, "error", err)
			continue
		}
		report.Succeeded++
		report.Written++
	}

	switch {
	case report.Failed == 0:
		report.Outcome = domain.OutcomeSuccess
	case report.Succeeded > 0:
		report.Outcome = domain.OutcomePartial
	default:
		report.Outcome = domain.OutcomeFailure
	}

	if report.Outcome == domain.OutcomeFailure {
		err := fmt.Errorf("all %d source(s) failed: %w", report.Failed, errors.Join(report.Errors...))
		o.notify(ctx, logger, domain.NotifyError, report.RunID, "Error reloading assessments: "+err.Error())
		o.finish(logger, report, startTime)
		return report, err
	}

	if report.Outcome == domain.OutcomeSuccess {
		o.notify(ctx, logger, domain.NotifySuccess, report.RunID, "Assessments reloaded successfully!")
	} else {
		o.notify(ctx, logger, domain.NotifySuccess, report.RunID, fmt.Sprintf(
			"Reloaded %d of %d course(s); %d failed", report.Succeeded, report.Discovered, report.Failed))
	}

	o.finish(logger, report, startTime)
	o.reloadPresenter(ctx, logger)

	return report, nil
}

// fetchAll launches every fetch before waiting on any of them. Each result
// lands in its endpoint's slot, so order follows discovery order.
func (o *Orchestrator) fetchAll(ctx context.Context, endpoints []domain.Endpoint) []fetchResult {
	results := make([]fetchResult, len(endpoints))

	var wg sync.WaitGroup
	for i, ep := range endpoints {
		wg.Add(1)
		go func(i int, ep domain.Endpoint) {
			defer wg.Done()
			rec, err := o.fetchOne(ctx, ep)
			if err != nil {
				err = &domain.SourceError{SourceID: ep.SourceID, Err: err}
			}
			results[i] = fetchResult{endpoint: ep, record: rec, err: err}
		}(i, ep)
	}
	wg.Wait()

	return results
}

func (o *Orchestrator) fetchOne(ctx context.Context, ep domain.Endpoint) (rec *domain.SourceRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("fetch panicked: %v", r)
		}
	}()

	if o.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.FetchTimeout)
		defer cancel()
	}

	fetched, err := o.fetcher.FetchAndAdapt(ctx, ep)
	if err != nil {
		return nil, err
	}
	if fetched == nil {
		return nil, errNoResult
	}

	// Stored records are keyed by the discovered id, whatever the adapter set.
	rec = fetched.Clone()
	rec.SourceID = ep.SourceID
	for i := range rec.Rows {
		rec.Rows[i].SourceID = ep.SourceID
	}
	return rec, nil
}

func (o *Orchestrator) fail(
	ctx context.Context,
	logger *slog.Logger,
	report *domain.RefreshReport,
	startTime time.Time,
	err error,
	message string,
) (*domain.RefreshReport, error) {
	report.Outcome = domain.OutcomeFailure
	report.Errors = append(report.Errors, err)
	o.notify(ctx, logger, domain.NotifyError, report.RunID, message)
	o.finish(logger, report, startTime)
	return report, err
}

func (o *Orchestrator) finish(logger *slog.Logger, report *domain.RefreshReport, startTime time.Time) {
	report.Duration = time.Since(startTime)
	o.setState(domain.StateDone)

	level := slog.LevelInfo
	if report.Outcome == domain.OutcomeFailure {
		level = slog.LevelError
	}
	logger.Log(context.Background(), level, "refresh completed",
		"outcome", report.Outcome,
		"discovered", report.Discovered,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"written", report.Written,
		"skipped_empty", report.SkippedEmpty,
		"duration", report.Duration,
	)
}

func (o *Orchestrator) notify(ctx context.Context, logger *slog.Logger, kind domain.NotificationKind, runID, message string) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, domain.Notification{Kind: kind, Message: message, RunID: runID}); err != nil {
		logger.Warn("failed to deliver notification", "kind", kind, "error", err)
	}
}

func (o *Orchestrator) reloadPresenter(ctx context.Context, logger *slog.Logger) {
	if o.presenter == nil {
		return
	}

	if o.config.ReloadDelay > 0 {
		select {
		case <-ctx.Done():
			logger.Debug("reload cancelled", "error", ctx.Err())
			return
		case <-time.After(o.config.ReloadDelay):
		}
	}

	if err := o.presenter.Reload(ctx); err != nil {
		logger.Warn("failed to reload view", "error", err)
	}
}
