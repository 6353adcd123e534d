package tracker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"prairie_track/internal/cache"
	"prairie_track/internal/domain"
	"prairie_track/internal/staleness"
	"prairie_track/internal/storage/memory"
)

type fakeRefresher struct {
	calls  int
	report *domain.RefreshReport
	err    error
}

func (f *fakeRefresher) Refresh(context.Context) (*domain.RefreshReport, error) {
	f.calls++
	return f.report, f.err
}

type fakePresenter struct {
	calls int
}

func (f *fakePresenter) Reload(context.Context) error {
	f.calls++
	return nil
}

type recordingNotifier struct {
	sent []domain.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notification) error {
	r.sent = append(r.sent, n)
	return nil
}

type TrackerTestSuite struct {
	suite.Suite

	medium    *memory.Medium
	store     *cache.Store
	refresher *fakeRefresher
	presenter *fakePresenter
	notifier  *recordingNotifier
	tracker   *Tracker
	now       time.Time
}

func (s *TrackerTestSuite) SetupTest() {
	s.medium = memory.New()
	s.store = cache.New(s.medium, cache.DefaultPrefix)
	s.refresher = &fakeRefresher{report: &domain.RefreshReport{Outcome: domain.OutcomeSuccess}}
	s.presenter = &fakePresenter{}
	s.notifier = &recordingNotifier{}
	s.now = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.tracker = New(s.store, staleness.New(3*time.Hour), s.refresher, s.presenter, s.notifier, logger)
}

func TestTrackerTestSuite(t *testing.T) {
	suite.Run(t, new(TrackerTestSuite))
}

func (s *TrackerTestSuite) write(id string, capturedAt time.Time) {
	s.Require().NoError(s.store.Write(context.Background(), &domain.SourceRecord{
		SourceID:   id,
		Rows:       []domain.RowEntry{{SourceID: id, Title: "HW", DueRaw: "Mon, Mar 4, 5:00pm"}},
		CapturedAt: capturedAt,
	}))
}

func (s *TrackerTestSuite) TestOnLoad_FreshCachePresentsWithoutRefresh() {
	s.write("1", s.now.Add(-time.Hour))

	report, err := s.tracker.OnLoad(context.Background(), s.now)

	s.Require().NoError(err)
	s.Nil(report)
	s.Equal(0, s.refresher.calls)
	s.Equal(1, s.presenter.calls)
	s.Empty(s.notifier.sent)
}

func (s *TrackerTestSuite) TestOnLoad_StaleEntryTriggersRefresh() {
	s.write("1", s.now.Add(-time.Hour))
	s.write("2", s.now.Add(-4*time.Hour))

	report, err := s.tracker.OnLoad(context.Background(), s.now)

	s.Require().NoError(err)
	s.Require().NotNil(report)
	s.Equal(1, s.refresher.calls)
	s.Equal(0, s.presenter.calls)
	s.Require().Len(s.notifier.sent, 1)
	s.Equal(domain.NotifyInfo, s.notifier.sent[0].Kind)
	s.Equal("Assessment data is stale, refreshing...", s.notifier.sent[0].Message)
}

func (s *TrackerTestSuite) TestOnLoad_StaleAuxTriggersRefresh() {
	s.write("1", s.now)
	s.Require().NoError(s.store.WriteAux(context.Background(), &domain.AuxFragment{
		HTML:       "<li/>",
		CapturedAt: s.now.Add(-5 * time.Hour),
	}))

	_, err := s.tracker.OnLoad(context.Background(), s.now)

	s.Require().NoError(err)
	s.Equal(1, s.refresher.calls)
}

func (s *TrackerTestSuite) TestOnLoad_CorruptEntryTriggersRefresh() {
	s.write("1", s.now)
	s.Require().NoError(s.medium.Set(context.Background(), cache.DefaultPrefix+"2", "[not json"))

	_, err := s.tracker.OnLoad(context.Background(), s.now)

	s.Require().NoError(err)
	s.Equal(1, s.refresher.calls)
}

func (s *TrackerTestSuite) TestOnLoad_EmptyStoreDoesNotRefresh() {
	report, err := s.tracker.OnLoad(context.Background(), s.now)

	s.Require().NoError(err)
	s.Nil(report)
	s.Equal(0, s.refresher.calls)
	s.Equal(1, s.presenter.calls)
}

func (s *TrackerTestSuite) TestOnLoad_FailedRefreshPresentsCache() {
	s.write("1", s.now.Add(-4*time.Hour))
	s.refresher.report = &domain.RefreshReport{Outcome: domain.OutcomeFailure}
	s.refresher.err = errors.New("portal down")

	report, err := s.tracker.OnLoad(context.Background(), s.now)

	s.Require().NoError(err)
	s.Equal(domain.OutcomeFailure, report.Outcome)
	s.Equal(1, s.presenter.calls)
}

func (s *TrackerTestSuite) TestPresent_SkipsStalenessCheck() {
	s.write("1", s.now.Add(-10*time.Hour))

	s.Require().NoError(s.tracker.Present(context.Background()))
	s.Equal(0, s.refresher.calls)
	s.Equal(1, s.presenter.calls)
}

func (s *TrackerTestSuite) TestReload_AlwaysRefreshes() {
	report, err := s.tracker.Reload(context.Background())

	s.Require().NoError(err)
	s.Equal(domain.OutcomeSuccess, report.Outcome)
	s.Equal(1, s.refresher.calls)
}

func (s *TrackerTestSuite) TestCheck_ReportsEveryKey() {
	s.write("fresh", s.now.Add(-time.Minute))
	s.write("old", s.now.Add(-4*time.Hour))
	s.Require().NoError(s.medium.Set(context.Background(), cache.DefaultPrefix+"bad", "{"))

	statuses, err := s.tracker.Check(context.Background(), s.now)
	s.Require().NoError(err)

	byID := make(map[string]KeyStatus, len(statuses))
	for _, st := range statuses {
		byID[st.ID] = st
	}
	s.Len(byID, 3)
	s.False(byID["fresh"].Stale)
	s.True(byID["old"].Stale)
	s.True(byID["bad"].Stale)
	s.ErrorIs(byID["bad"].Err, domain.ErrCorruptCacheEntry)
}
