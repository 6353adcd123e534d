package domain

import "time"

// SourceRecord is one source's cached snapshot. Stored records are replaced
// wholesale, never edited in place.
type SourceRecord struct {
	SourceID   string
	Rows       []RowEntry
	CapturedAt time.Time
}

// RowEntry is one trackable assessment row.
type RowEntry struct {
	SourceID    string  `json:"source_id"`
	SourceLabel string  `json:"source_label"` // course code, e.g. "CS 225"
	SourceLink  string  `json:"source_link"`
	Badge       string  `json:"badge,omitempty"` // assessment label, e.g. "HW3"
	Title       string  `json:"title"`
	Link        string  `json:"link,omitempty"`
	DueRaw      string  `json:"due"` // "<weekday>, <month day>, <time>"
	ScoreRaw    *string `json:"score,omitempty"`
}

// AuxFragment is a non-tabular markup fragment cached next to the records.
type AuxFragment struct {
	HTML       string
	CapturedAt time.Time
}

// Endpoint identifies one live source discovered on the dashboard.
type Endpoint struct {
	SourceID string
	URL      string
}

type Discovery struct {
	Endpoints []Endpoint
	Aux       *AuxFragment
}

// Clone returns a deep copy so callers can't mutate a stored snapshot.
func (r *SourceRecord) Clone() *SourceRecord {
	if r == nil {
		return nil
	}
	out := &SourceRecord{
		SourceID:   r.SourceID,
		CapturedAt: r.CapturedAt,
		Rows:       make([]RowEntry, len(r.Rows)),
	}
	for i, row := range r.Rows {
		if row.ScoreRaw != nil {
			score := *row.ScoreRaw
			row.ScoreRaw = &score
		}
		out.Rows[i] = row
	}
	return out
}
