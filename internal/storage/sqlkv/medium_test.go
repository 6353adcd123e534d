package sqlkv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"prairie_track/internal/domain"
)

type SQLiteMediumSuite struct {
	suite.Suite
	ctx    context.Context
	medium *Medium
}

func (s *SQLiteMediumSuite) SetupTest() {
	s.ctx = context.Background()

	db, err := Open(DriverSQLite, filepath.Join(s.T().TempDir(), "nested", "cache.db"))
	s.Require().NoError(err)
	s.T().Cleanup(func() { db.Close() })

	s.medium = NewMedium(db)
	s.Require().NoError(s.medium.Migrate(s.ctx))
}

func TestSQLiteMediumSuite(t *testing.T) {
	suite.Run(t, new(SQLiteMediumSuite))
}

func (s *SQLiteMediumSuite) TestSetAndGet() {
	s.NoError(s.medium.Set(s.ctx, "prairieTrack-1", `{"rows":[],"timestamp":1}`))

	value, err := s.medium.Get(s.ctx, "prairieTrack-1")
	s.NoError(err)
	s.Equal(`{"rows":[],"timestamp":1}`, value)
}

func (s *SQLiteMediumSuite) TestSet_Overwrites() {
	s.NoError(s.medium.Set(s.ctx, "k", "old"))
	s.NoError(s.medium.Set(s.ctx, "k", "new"))

	value, err := s.medium.Get(s.ctx, "k")
	s.NoError(err)
	s.Equal("new", value)
}

func (s *SQLiteMediumSuite) TestGet_Missing() {
	_, err := s.medium.Get(s.ctx, "nope")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *SQLiteMediumSuite) TestKeys_PrefixIsLiteral() {
	s.NoError(s.medium.Set(s.ctx, "pt_1", "a"))
	s.NoError(s.medium.Set(s.ctx, "ptX1", "b"))
	s.NoError(s.medium.Set(s.ctx, "pt_2", "c"))
	s.NoError(s.medium.Set(s.ctx, "other", "d"))

	keys, err := s.medium.Keys(s.ctx, "pt_")
	s.NoError(err)
	s.Equal([]string{"pt_1", "pt_2"}, keys)
}

func (s *SQLiteMediumSuite) TestDeleteBatch() {
	s.NoError(s.medium.Set(s.ctx, "p-1", "a"))
	s.NoError(s.medium.Set(s.ctx, "p-2", "b"))
	s.NoError(s.medium.Set(s.ctx, "keep", "c"))

	s.NoError(s.medium.DeleteBatch(s.ctx, []string{"p-1", "p-2"}))

	keys, err := s.medium.Keys(s.ctx, "")
	s.NoError(err)
	s.Equal([]string{"keep"}, keys)
}

func (s *SQLiteMediumSuite) TestDeleteBatch_Empty() {
	s.NoError(s.medium.DeleteBatch(s.ctx, nil))
}

func (s *SQLiteMediumSuite) TestOpen_UnsupportedDriver() {
	_, err := Open("mysql", "whatever")
	s.Error(err)
}
