package refresh

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"prairie_track/internal/domain"
)

type Discoverer interface {
	Discover(ctx context.Context) (*domain.Discovery, error)
}

// Fetcher retrieves and adapts one source. A nil record means the page
// could not be adapted and is treated like an error.
type Fetcher interface {
	FetchAndAdapt(ctx context.Context, ep domain.Endpoint) (*domain.SourceRecord, error)
}

type RecordStore interface {
	ClearAll(ctx context.Context) error
	Write(ctx context.Context, rec *domain.SourceRecord) error
	WriteAux(ctx context.Context, aux *domain.AuxFragment) error
}

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Presenter redraws the aggregated view after a refresh.
type Presenter interface {
	Reload(ctx context.Context) error
}
