package nsdriver

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pnfsns/pnfsd/internal/clock"
	"github.com/pnfsns/pnfsd/internal/nserrors"
	"github.com/pnfsns/pnfsd/internal/nsid"
	"github.com/stretchr/testify/suite"
)

type RemoveTest struct {
	suite.Suite
	mock   sqlmock.Sqlmock
	db     *sql.DB
	driver *Driver
	now    time.Time
}

func TestRemoveSuite(t *testing.T) {
	suite.Run(t, new(RemoveTest))
}

func (s *RemoveTest) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.db = db
	s.mock = mock
	s.now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.driver = New("sqlite", WithClock(clock.NewFake(s.now)))
}

func (s *RemoveTest) TearDownTest() {
	s.Require().NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *RemoveTest) TestRemoveNamedFileDecrementsChildThenParentLast() {
	parent := nsid.ID("PARENT000000000000000000000000000000")
	child := nsid.ID("CHILD0000000000000000000000000000000")
	ts := s.now.Unix()

	s.mock.ExpectQuery(q("SELECT ipnfsid FROM t_dirs")).
		WithArgs(string(parent), "file.txt").
		WillReturnRows(sqlmock.NewRows([]string{"ipnfsid"}).AddRow(string(child)))

	s.mock.ExpectQuery(q("SELECT itype FROM t_inodes")).
		WithArgs(string(child)).
		WillReturnRows(sqlmock.NewRows([]string{"itype"}).AddRow(uint32(0x8000)))

	s.mock.ExpectExec(q("DELETE FROM t_dirs WHERE iparent = ? AND iname = ?")).
		WithArgs(string(parent), "file.txt").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.mock.ExpectExec(q("UPDATE t_inodes SET inlink = inlink -")).
		WithArgs(1, ts, string(child)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.mock.ExpectQuery(q("SELECT inlink FROM t_inodes")).
		WithArgs(string(child)).
		WillReturnRows(sqlmock.NewRows([]string{"inlink"}).AddRow(uint32(0)))

	s.expectPurge(child)

	s.mock.ExpectExec(q("UPDATE t_inodes SET inlink = inlink +")).
		WithArgs(-1, ts, ts, string(parent)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.driver.RemoveNamed(context.Background(), s.db, parent, "file.txt")
	s.Require().NoError(err)
}

func (s *RemoveTest) TestRemoveNamedDirectoryNotEmpty() {
	parent := nsid.ID("PARENT000000000000000000000000000000")
	child := nsid.ID("CHILD0000000000000000000000000000000")

	s.mock.ExpectQuery(q("SELECT ipnfsid FROM t_dirs")).
		WithArgs(string(parent), "sub").
		WillReturnRows(sqlmock.NewRows([]string{"ipnfsid"}).AddRow(string(child)))

	s.mock.ExpectQuery(q("SELECT itype FROM t_inodes")).
		WithArgs(string(child)).
		WillReturnRows(sqlmock.NewRows([]string{"itype"}).AddRow(uint32(0x4000)))

	s.mock.ExpectQuery(q("SELECT inlink FROM t_inodes")).
		WithArgs(string(child)).
		WillReturnRows(sqlmock.NewRows([]string{"inlink"}).AddRow(uint32(3)))

	err := s.driver.RemoveNamed(context.Background(), s.db, parent, "sub")
	s.ErrorIs(err, nserrors.ErrNotEmpty)
}

func (s *RemoveTest) TestRemoveNamedRejectsDotDot() {
	err := s.driver.RemoveNamed(context.Background(), s.db, nsid.Root, "..")
	s.ErrorIs(err, nserrors.ErrInvalidName)
}

func (s *RemoveTest) TestRemoveNamedDirectoryInvariantViolationOnBadDotCount() {
	parent := nsid.ID("PARENT000000000000000000000000000000")
	child := nsid.ID("CHILD0000000000000000000000000000000")

	s.mock.ExpectQuery(q("SELECT ipnfsid FROM t_dirs")).
		WithArgs(string(parent), "sub").
		WillReturnRows(sqlmock.NewRows([]string{"ipnfsid"}).AddRow(string(child)))

	s.mock.ExpectQuery(q("SELECT itype FROM t_inodes")).
		WithArgs(string(child)).
		WillReturnRows(sqlmock.NewRows([]string{"itype"}).AddRow(uint32(0x4000)))

	s.mock.ExpectQuery(q("SELECT inlink FROM t_inodes")).
		WithArgs(string(child)).
		WillReturnRows(sqlmock.NewRows([]string{"inlink"}).AddRow(uint32(2)))

	s.mock.ExpectExec(q("DELETE FROM t_dirs WHERE iparent = ? AND (iname = '.' OR iname = '..')")).
		WithArgs(string(child)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.driver.RemoveNamed(context.Background(), s.db, parent, "sub")
	s.True(nserrors.IsInvariantViolation(err))
}

// expectPurge sets up the sequence of DELETEs purgeInodeTables issues
// across every FK-dependent child table, plus the orphan-tag sweep and
// the final t_inodes row delete.
func (s *RemoveTest) expectPurge(id nsid.ID) {
	tables := []string{
		"t_inodes_data",
		"t_level_1", "t_level_2", "t_level_3", "t_level_4", "t_level_5", "t_level_6", "t_level_7",
		"t_inodes_checksum", "t_locationinfo", "t_storageinfo", "t_access_latency", "t_retention_policy",
		"t_acl", "t_tags",
	}
	for _, table := range tables {
		s.mock.ExpectExec(q("DELETE FROM " + table)).
			WithArgs(string(id)).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	s.mock.ExpectExec(q("DELETE FROM t_tags_inodes WHERE itagid NOT IN")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectExec(q("DELETE FROM t_inodes WHERE ipnfsid = ?")).
		WithArgs(string(id)).
		WillReturnResult(sqlmock.NewResult(0, 1))
}
