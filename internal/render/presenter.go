package render

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"prairie_track/internal/aggregate"
)

type Viewer interface {
	Aggregate(ctx context.Context, now time.Time) (*aggregate.View, error)
}

// Presenter redraws the listing from the cache on every Reload.
type Presenter struct {
	viewer     Viewer
	w          io.Writer
	showReload bool
	now        func() time.Time

	mu sync.Mutex
}

func NewPresenter(viewer Viewer, w io.Writer, showReload bool) *Presenter {
	return &Presenter{
		viewer:     viewer,
		w:          w,
		showReload: showReload,
		now:        time.Now,
	}
}

func (p *Presenter) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	view, err := p.viewer.Aggregate(ctx, p.now())
	if err != nil {
		if _, werr := io.WriteString(p.w, ErrorPanel(err)); werr != nil {
			return werr
		}
		return fmt.Errorf("aggregate: %w", err)
	}
	view.ShowReload = p.showReload

	_, err = io.WriteString(p.w, View(view))
	return err
}
