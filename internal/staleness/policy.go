package staleness

import (
	"context"
	"time"

	"prairie_track/internal/domain"
)

const DefaultThreshold = 3 * time.Hour

// Policy decides whether a cached snapshot must be refreshed.
type Policy struct {
	Threshold time.Duration
}

func New(threshold time.Duration) Policy {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Policy{Threshold: threshold}
}

// IsStale reports true for a nil (absent or corrupt) record, otherwise when
// the record is older than the threshold.
func (p Policy) IsStale(rec *domain.SourceRecord, now time.Time) bool {
	if rec == nil {
		return true
	}
	return p.IsStaleAt(rec.CapturedAt, now)
}

func (p Policy) IsStaleAt(capturedAt, now time.Time) bool {
	if capturedAt.IsZero() {
		return true
	}
	return now.Sub(capturedAt) > p.Threshold
}

// CaptureReader returns an entry's capture time; any error counts as stale.
type CaptureReader func(ctx context.Context, id string) (time.Time, error)

// AnyStale returns the first stale id, stopping at the first hit.
func (p Policy) AnyStale(ctx context.Context, ids []string, read CaptureReader, now time.Time) (string, bool) {
	for _, id := range ids {
		capturedAt, err := read(ctx, id)
		if err != nil || p.IsStaleAt(capturedAt, now) {
			return id, true
		}
	}
	return "", false
}
