// Package storage defines the text-keyed medium the record cache lives in.
package storage

import "context"

// Medium is a flat string key/value space. Get reports a missing key with
// domain.ErrNotFound. DeleteBatch removes all keys or none.
type Medium interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	DeleteBatch(ctx context.Context, keys []string) error
}
