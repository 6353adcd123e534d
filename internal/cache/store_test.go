package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"prairie_track/internal/domain"
	"prairie_track/internal/storage/memory"
	"prairie_track/testdata/utils"
)

type StoreTestSuite struct {
	suite.Suite
	ctx    context.Context
	medium *memory.Medium
	store  *Store
	now    time.Time
}

func (s *StoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.medium = memory.New()
	s.store = New(s.medium, "")
	s.now = time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) record(id string, rows ...domain.RowEntry) *domain.SourceRecord {
	return &domain.SourceRecord{SourceID: id, Rows: rows, CapturedAt: s.now}
}

func (s *StoreTestSuite) TestWriteRead_RoundTrip() {
	rows := []domain.RowEntry{
		{
			SourceID:    "101",
			SourceLabel: "CS 225",
			SourceLink:  "https://us.prairielearn.com/pl/course_instance/101",
			Title:       `HW1 "pointers", part <a> & b`,
			Link:        "/pl/course_instance/101/assessment/9",
			DueRaw:      "Mon, Mar 3, 11:59 PM",
			ScoreRaw:    utils.Ptr("42%"),
		},
		{
			SourceID:    "101",
			SourceLabel: "CS 225, Spring",
			Title:       "line\nbreak\ttab, comma, \"quote\" ]}",
			DueRaw:      "Wed, Mar 5, 5:00 PM",
		},
	}

	s.Require().NoError(s.store.Write(s.ctx, s.record("101", rows...)))

	got, ok := s.store.Read(s.ctx, "101")
	s.Require().True(ok)
	s.Equal("101", got.SourceID)
	s.Equal(rows, got.Rows)
	s.True(s.now.Equal(got.CapturedAt))
}

func (s *StoreTestSuite) TestWriteRead_ZeroAndOneRow() {
	s.Require().NoError(s.store.Write(s.ctx, s.record("empty")))
	got, ok := s.store.Read(s.ctx, "empty")
	s.Require().True(ok)
	s.Empty(got.Rows)

	one := domain.RowEntry{SourceID: "one", Title: "Quiz", DueRaw: "Tue, Mar 4, 9:00 AM"}
	s.Require().NoError(s.store.Write(s.ctx, s.record("one", one)))
	got, ok = s.store.Read(s.ctx, "one")
	s.Require().True(ok)
	s.Equal([]domain.RowEntry{one}, got.Rows)
}

func (s *StoreTestSuite) TestWrite_ReplacesWholesale() {
	s.Require().NoError(s.store.Write(s.ctx, s.record("1",
		domain.RowEntry{SourceID: "1", Title: "a"},
		domain.RowEntry{SourceID: "1", Title: "b"},
	)))
	s.Require().NoError(s.store.Write(s.ctx, s.record("1", domain.RowEntry{SourceID: "1", Title: "c"})))

	got, ok := s.store.Read(s.ctx, "1")
	s.Require().True(ok)
	s.Len(got.Rows, 1)
	s.Equal("c", got.Rows[0].Title)
}

func (s *StoreTestSuite) TestWrite_RejectsReservedAndEmptyID() {
	s.Error(s.store.Write(s.ctx, s.record(AuxID)))
	s.Error(s.store.Write(s.ctx, s.record("")))
	s.Error(s.store.Write(s.ctx, nil))
}

func (s *StoreTestSuite) TestLoad_DistinguishesAbsentFromCorrupt() {
	_, err := s.store.Load(s.ctx, "missing")
	s.ErrorIs(err, domain.ErrNotFound)

	s.Require().NoError(s.medium.Set(s.ctx, DefaultPrefix+"bad", "{not json"))
	_, err = s.store.Load(s.ctx, "bad")
	s.ErrorIs(err, domain.ErrCorruptCacheEntry)

	s.Require().NoError(s.medium.Set(s.ctx, DefaultPrefix+"badrow", `{"rows":["nope"],"timestamp":1}`))
	_, err = s.store.Load(s.ctx, "badrow")
	s.ErrorIs(err, domain.ErrCorruptCacheEntry)

	s.Require().NoError(s.medium.Set(s.ctx, DefaultPrefix+"norows", `{"timestamp":1}`))
	_, err = s.store.Load(s.ctx, "norows")
	s.ErrorIs(err, domain.ErrCorruptCacheEntry)

	_, ok := s.store.Read(s.ctx, "bad")
	s.False(ok)
}

func (s *StoreTestSuite) TestLoad_LegacyArrayHasZeroTimestamp() {
	s.Require().NoError(s.medium.Set(s.ctx, DefaultPrefix+"7", `["{\"title\":\"Old\",\"due\":\"Mon, Mar 3, 11:59 PM\"}"]`))

	rec, err := s.store.Load(s.ctx, "7")
	s.Require().NoError(err)
	s.True(rec.CapturedAt.IsZero())
	s.Require().Len(rec.Rows, 1)
	s.Equal("7", rec.Rows[0].SourceID)
	s.Equal("Old", rec.Rows[0].Title)
}

func (s *StoreTestSuite) TestListSourceIDs_SkipsAuxAndForeignKeys() {
	s.Require().NoError(s.store.Write(s.ctx, s.record("2")))
	s.Require().NoError(s.store.Write(s.ctx, s.record("1")))
	s.Require().NoError(s.store.WriteAux(s.ctx, &domain.AuxFragment{HTML: "<p>exam</p>", CapturedAt: s.now}))
	s.Require().NoError(s.medium.Set(s.ctx, "theme", "dark"))

	ids, err := s.store.ListSourceIDs(s.ctx)
	s.NoError(err)
	s.Equal([]string{"1", "2"}, ids)

	keys, err := s.store.Keys(s.ctx)
	s.NoError(err)
	s.ElementsMatch([]string{"1", "2", AuxID}, keys)
}

func (s *StoreTestSuite) TestAux_RoundTripAndCapturedAt() {
	aux := &domain.AuxFragment{HTML: `<div class="exam">CBTF "Midterm"</div>`, CapturedAt: s.now}
	s.Require().NoError(s.store.WriteAux(s.ctx, aux))

	got, err := s.store.ReadAux(s.ctx)
	s.Require().NoError(err)
	s.Equal(aux.HTML, got.HTML)
	s.True(s.now.Equal(got.CapturedAt))

	at, err := s.store.CapturedAt(s.ctx, AuxID)
	s.NoError(err)
	s.True(s.now.Equal(at))

	s.NoError(s.store.WriteAux(s.ctx, nil))
}

func (s *StoreTestSuite) TestCapturedAt_Record() {
	s.Require().NoError(s.store.Write(s.ctx, s.record("1")))

	at, err := s.store.CapturedAt(s.ctx, "1")
	s.NoError(err)
	s.True(s.now.Equal(at))

	_, err = s.store.CapturedAt(s.ctx, "2")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *StoreTestSuite) TestClearAll_OnlyPrefixedKeys() {
	s.Require().NoError(s.store.Write(s.ctx, s.record("1")))
	s.Require().NoError(s.store.Write(s.ctx, s.record("2")))
	s.Require().NoError(s.store.WriteAux(s.ctx, &domain.AuxFragment{HTML: "x", CapturedAt: s.now}))
	s.Require().NoError(s.medium.Set(s.ctx, "theme", "dark"))

	s.NoError(s.store.ClearAll(s.ctx))

	keys, err := s.store.Keys(s.ctx)
	s.NoError(err)
	s.Empty(keys)
	s.Equal(1, s.medium.Len())
}

func (s *StoreTestSuite) TestCustomPrefix() {
	other := New(s.medium, "other-")
	s.Require().NoError(other.Write(s.ctx, s.record("1")))
	s.Require().NoError(s.store.Write(s.ctx, s.record("2")))

	ids, err := other.ListSourceIDs(s.ctx)
	s.NoError(err)
	s.Equal([]string{"1"}, ids)
}
