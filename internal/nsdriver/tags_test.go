package nsdriver

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pnfsns/pnfsd/internal/clock"
	"github.com/pnfsns/pnfsd/internal/nsid"
	"github.com/stretchr/testify/suite"
)

type TagTest struct {
	suite.Suite
	mock   sqlmock.Sqlmock
	db     *sql.DB
	driver *Driver
	now    time.Time
}

func TestTagSuite(t *testing.T) {
	suite.Run(t, new(TagTest))
}

func (s *TagTest) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.db = db
	s.mock = mock
	s.now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.driver = New("sqlite", WithClock(clock.NewFake(s.now)))
}

func (s *TagTest) TearDownTest() {
	s.Require().NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

// TestSetTagOnInheritedLinkFansOutCopyOnWrite covers the
// tag-inheritance case: setting a tag on a directory that only holds a
// non-origin link allocates a fresh tag-inode seeded from the old
// value and re-points the directory's link to it.
func (s *TagTest) TestSetTagOnInheritedLinkFansOutCopyOnWrite() {
	dir := nsid.ID("D2000000000000000000000000000000000")
	ts := s.now.Unix()

	s.mock.ExpectQuery(q("SELECT itagid, isorign FROM t_tags")).
		WithArgs(string(dir), "X").
		WillReturnRows(sqlmock.NewRows([]string{"itagid", "isorign"}).AddRow("TAG-OLD", 0))

	s.mock.ExpectQuery(q("SELECT imode, inlink, iuid, igid, isize, iatime, ictime, imtime, ivalue FROM t_tags_inodes")).
		WithArgs("TAG-OLD").
		WillReturnRows(sqlmock.NewRows([]string{"imode", "inlink", "iuid", "igid", "isize", "iatime", "ictime", "imtime", "ivalue"}).
			AddRow(uint32(0644), uint32(1), uint32(0), uint32(0), int64(2), ts, ts, ts, []byte("v1")))

	s.mock.ExpectExec(q("INSERT INTO t_tags_inodes")).
		WithArgs(sqlmock.AnyArg(), uint32(0644), uint32(1), uint32(0), uint32(0), int64(2), ts, ts, ts, []byte("v2")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	s.mock.ExpectExec(q("UPDATE t_tags SET itagid = ?, isorign = ? WHERE ipnfsid = ? AND itagname = ?")).
		WithArgs(sqlmock.AnyArg(), 1, string(dir), "X").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.driver.SetTag(context.Background(), s.db, dir, "X", []byte("v2"))
	s.Require().NoError(err)
}

func (s *TagTest) TestSetTagOnOwnedLinkUpdatesInPlace() {
	dir := nsid.ID("D1000000000000000000000000000000000")
	ts := s.now.Unix()

	s.mock.ExpectQuery(q("SELECT itagid, isorign FROM t_tags")).
		WithArgs(string(dir), "X").
		WillReturnRows(sqlmock.NewRows([]string{"itagid", "isorign"}).AddRow("TAG-1", 1))

	s.mock.ExpectExec(q("UPDATE t_tags_inodes SET ivalue")).
		WithArgs([]byte("v2"), int64(2), ts, ts, "TAG-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.driver.SetTag(context.Background(), s.db, dir, "X", []byte("v2"))
	s.Require().NoError(err)
}

func (s *TagTest) TestGetTagReturnsNilWhenNoLink() {
	dir := nsid.ID("D3000000000000000000000000000000000")

	s.mock.ExpectQuery(q("SELECT itagid, isorign FROM t_tags")).
		WithArgs(string(dir), "missing").
		WillReturnRows(sqlmock.NewRows([]string{"itagid", "isorign"}))

	v, err := s.driver.GetTag(context.Background(), s.db, dir, "missing")
	s.Require().NoError(err)
	s.Nil(v)
}
