// Package cache is the keyed snapshot store: one entry per source under a
// reserved key prefix, plus an optional auxiliary fragment entry.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"prairie_track/internal/domain"
	"prairie_track/internal/storage"
)

const (
	DefaultPrefix = "prairieTrack-"

	// AuxID is the reserved id of the auxiliary fragment entry. It can't
	// collide with a course instance id, which is numeric.
	AuxID = "~aux"
)

type Store struct {
	medium storage.Medium
	prefix string
}

func New(medium storage.Medium, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{medium: medium, prefix: prefix}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// Keys returns every id under the prefix, the auxiliary entry included.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.medium.Keys(ctx, s.prefix)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, s.prefix))
	}
	return ids, nil
}

// ListSourceIDs returns the ids of row-bearing entries, sorted.
func (s *Store) ListSourceIDs(ctx context.Context) ([]string, error) {
	ids, err := s.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := ids[:0]
	for _, id := range ids {
		if id != AuxID {
			out = append(out, id)
		}
	}
	return out, nil
}

// Load returns domain.ErrNotFound for an absent entry and
// domain.ErrCorruptCacheEntry for one that does not decode.
func (s *Store) Load(ctx context.Context, sourceID string) (*domain.SourceRecord, error) {
	raw, err := s.medium.Get(ctx, s.key(sourceID))
	if err != nil {
		return nil, err
	}
	rec, err := decodeRecord(sourceID, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptCacheEntry, sourceID, err)
	}
	return rec, nil
}

// Read is Load with absent and corrupt entries folded into ok=false.
func (s *Store) Read(ctx context.Context, sourceID string) (*domain.SourceRecord, bool) {
	rec, err := s.Load(ctx, sourceID)
	if err != nil {
		return nil, false
	}
	return rec, true
}

// Write replaces the entry for rec.SourceID.
func (s *Store) Write(ctx context.Context, rec *domain.SourceRecord) error {
	if rec == nil || rec.SourceID == "" {
		return errors.New("write: record without source id")
	}
	if rec.SourceID == AuxID {
		return fmt.Errorf("write: %q is reserved", AuxID)
	}
	raw, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.SourceID, err)
	}
	if err := s.medium.Set(ctx, s.key(rec.SourceID), raw); err != nil {
		return fmt.Errorf("store %s: %w", rec.SourceID, err)
	}
	return nil
}

func (s *Store) WriteAux(ctx context.Context, aux *domain.AuxFragment) error {
	if aux == nil {
		return nil
	}
	raw, err := json.Marshal(auxPayload{HTML: aux.HTML, Timestamp: aux.CapturedAt.UnixMilli()})
	if err != nil {
		return fmt.Errorf("encode aux: %w", err)
	}
	if err := s.medium.Set(ctx, s.key(AuxID), string(raw)); err != nil {
		return fmt.Errorf("store aux: %w", err)
	}
	return nil
}

func (s *Store) ReadAux(ctx context.Context) (*domain.AuxFragment, error) {
	raw, err := s.medium.Get(ctx, s.key(AuxID))
	if err != nil {
		return nil, err
	}
	var p auxPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptCacheEntry, AuxID, err)
	}
	return &domain.AuxFragment{HTML: p.HTML, CapturedAt: time.UnixMilli(p.Timestamp)}, nil
}

// CapturedAt reads only the capture time of a record or of the aux entry.
func (s *Store) CapturedAt(ctx context.Context, id string) (time.Time, error) {
	if id == AuxID {
		aux, err := s.ReadAux(ctx)
		if err != nil {
			return time.Time{}, err
		}
		return aux.CapturedAt, nil
	}
	rec, err := s.Load(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	return rec.CapturedAt, nil
}

// ClearAll removes every key under the prefix in one batch.
func (s *Store) ClearAll(ctx context.Context) error {
	keys, err := s.medium.Keys(ctx, s.prefix)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	if err := s.medium.DeleteBatch(ctx, keys); err != nil {
		return fmt.Errorf("clear %d keys: %w", len(keys), err)
	}
	return nil
}
