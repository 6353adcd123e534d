package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"prairie_track/internal/domain"
	"prairie_track/internal/temporal"
)

// RecordReader is the read side of the cache the aggregator needs.
type RecordReader interface {
	ListSourceIDs(ctx context.Context) ([]string, error)
	Load(ctx context.Context, sourceID string) (*domain.SourceRecord, error)
	ReadAux(ctx context.Context) (*domain.AuxFragment, error)
}

// Entry is a row with its parsed due instant.
type Entry struct {
	domain.RowEntry
	Due       time.Time
	Remaining temporal.Breakdown
}

// View is the sorted listing handed to the presenter.
type View struct {
	Entries []Entry
	// Dropped counts rows whose due text did not parse.
	Dropped int
	// Skipped lists source ids whose stored record could not be decoded.
	Skipped     []string
	Aux         *domain.AuxFragment
	ShowReload  bool
	GeneratedAt time.Time
}

type Aggregator struct {
	store  RecordReader
	logger *slog.Logger
	loc    *time.Location
}

// New returns an aggregator that interprets due text in loc (UTC when nil).
func New(store RecordReader, logger *slog.Logger, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{
		store:  store,
		logger: logger.With("component", "aggregate"),
		loc:    loc,
	}
}

// Aggregate flattens every cached record into one listing ordered by due
// time, earliest first. Rows with equal due times keep encounter order.
func (a *Aggregator) Aggregate(ctx context.Context, now time.Time) (*View, error) {
	ids, err := a.store.ListSourceIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	view := &View{GeneratedAt: now}
	year := now.In(a.loc).Year()

	for _, id := range ids {
		rec, err := a.store.Load(ctx, id)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				a.logger.Warn("skipping unreadable record", "source_id", id, "error", err)
				view.Skipped = append(view.Skipped, id)
			}
			continue
		}

		for _, row := range rec.Rows {
			due, err := temporal.ParseDue(row.DueRaw, year, a.loc)
			if err != nil {
				a.logger.Warn("dropping row", "source_id", id, "due", row.DueRaw, "error", err)
				view.Dropped++
				continue
			}
			view.Entries = append(view.Entries, Entry{
				RowEntry:  row,
				Due:       due,
				Remaining: temporal.Remaining(due, now),
			})
		}
	}

	sort.SliceStable(view.Entries, func(i, j int) bool {
		return view.Entries[i].Due.Before(view.Entries[j].Due)
	})

	aux, err := a.store.ReadAux(ctx)
	switch {
	case err == nil:
		view.Aux = aux
	case !errors.Is(err, domain.ErrNotFound):
		a.logger.Warn("skipping unreadable aux fragment", "error", err)
	}

	return view, nil
}
