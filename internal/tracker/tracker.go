package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"prairie_track/internal/domain"
	"prairie_track/internal/staleness"
)

const staleMessage = "Assessment data is stale, refreshing..."

type EntryStore interface {
	Keys(ctx context.Context) ([]string, error)
	CapturedAt(ctx context.Context, id string) (time.Time, error)
}

type Refresher interface {
	Refresh(ctx context.Context) (*domain.RefreshReport, error)
}

type Presenter interface {
	Reload(ctx context.Context) error
}

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// KeyStatus is the staleness verdict for one stored entry.
type KeyStatus struct {
	ID         string
	CapturedAt time.Time
	Stale      bool
	Err        error
}

// Tracker ties the staleness check, refresh and presentation together the
// way a page load does.
type Tracker struct {
	store     EntryStore
	policy    staleness.Policy
	refresher Refresher
	presenter Presenter
	notifier  Notifier
	logger    *slog.Logger
}

func New(
	store EntryStore,
	policy staleness.Policy,
	refresher Refresher,
	presenter Presenter,
	notifier Notifier,
	logger *slog.Logger,
) *Tracker {
	return &Tracker{
		store:     store,
		policy:    policy,
		refresher: refresher,
		presenter: presenter,
		notifier:  notifier,
		logger:    logger.With("component", "tracker"),
	}
}

// OnLoad refreshes when any stored entry is stale. An empty store is left
// alone; the first fill is always a manual reload. The report is nil when no
// refresh ran.
func (t *Tracker) OnLoad(ctx context.Context, now time.Time) (*domain.RefreshReport, error) {
	keys, err := t.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}

	var report *domain.RefreshReport
	if len(keys) > 0 {
		if id, stale := t.policy.AnyStale(ctx, keys, t.store.CapturedAt, now); stale {
			t.logger.Info("stale entry found", "source_id", id)
			t.notify(ctx, domain.NotifyInfo, staleMessage)

			report, err = t.refresher.Refresh(ctx)
			if err != nil {
				t.logger.Warn("auto refresh failed", "error", err)
			}
		}
	}

	// A successful or partial refresh has already redrawn the view.
	if report != nil && report.Outcome != domain.OutcomeFailure {
		return report, nil
	}

	return report, t.Present(ctx)
}

// Present draws the cached view without checking staleness.
func (t *Tracker) Present(ctx context.Context) error {
	if err := t.presenter.Reload(ctx); err != nil {
		return fmt.Errorf("present cached view: %w", err)
	}
	return nil
}

// Reload is the manual refresh command.
func (t *Tracker) Reload(ctx context.Context) (*domain.RefreshReport, error) {
	return t.refresher.Refresh(ctx)
}

// Check reports the staleness of every stored entry, aux included.
func (t *Tracker) Check(ctx context.Context, now time.Time) ([]KeyStatus, error) {
	keys, err := t.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}

	statuses := make([]KeyStatus, 0, len(keys))
	for _, id := range keys {
		capturedAt, err := t.store.CapturedAt(ctx, id)
		if err != nil && errors.Is(err, domain.ErrNotFound) {
			continue
		}
		statuses = append(statuses, KeyStatus{
			ID:         id,
			CapturedAt: capturedAt,
			Stale:      err != nil || t.policy.IsStaleAt(capturedAt, now),
			Err:        err,
		})
	}
	return statuses, nil
}

func (t *Tracker) notify(ctx context.Context, kind domain.NotificationKind, message string) {
	if t.notifier == nil {
		return
	}
	if err := t.notifier.Notify(ctx, domain.Notification{Kind: kind, Message: message}); err != nil {
		t.logger.Warn("failed to deliver notification", "error", err)
	}
}
