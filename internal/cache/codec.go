package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"prairie_track/internal/domain"
)

// recordPayload is the persisted form: {"rows": [string...], "timestamp": ms}.
// Each row string is the JSON encoding of one RowEntry.
type recordPayload struct {
	Rows      []string `json:"rows"`
	Timestamp int64    `json:"timestamp"`
}

type auxPayload struct {
	HTML      string `json:"html"`
	Timestamp int64  `json:"timestamp"`
}

func encodeRecord(rec *domain.SourceRecord) (string, error) {
	p := recordPayload{
		Rows:      make([]string, 0, len(rec.Rows)),
		Timestamp: rec.CapturedAt.UnixMilli(),
	}
	for i, row := range rec.Rows {
		b, err := json.Marshal(row)
		if err != nil {
			return "", fmt.Errorf("row %d: %w", i, err)
		}
		p.Rows = append(p.Rows, string(b))
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRecord(sourceID, raw string) (*domain.SourceRecord, error) {
	trimmed := bytes.TrimSpace([]byte(raw))

	var p recordPayload
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		// Bare row arrays predate the timestamp; they decode with a zero
		// capture time and are therefore always stale.
		if err := json.Unmarshal(trimmed, &p.Rows); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return nil, err
		}
		if p.Rows == nil {
			return nil, fmt.Errorf("missing rows")
		}
	}

	rec := &domain.SourceRecord{
		SourceID: sourceID,
		Rows:     make([]domain.RowEntry, 0, len(p.Rows)),
	}
	if p.Timestamp != 0 {
		rec.CapturedAt = time.UnixMilli(p.Timestamp)
	}
	for i, s := range p.Rows {
		var row domain.RowEntry
		if err := json.Unmarshal([]byte(s), &row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if row.SourceID == "" {
			row.SourceID = sourceID
		}
		rec.Rows = append(rec.Rows, row)
	}
	return rec, nil
}
