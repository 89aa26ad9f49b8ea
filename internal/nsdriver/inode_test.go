package nsdriver

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pnfsns/pnfsd/internal/clock"
	"github.com/pnfsns/pnfsd/internal/nserrors"
	"github.com/pnfsns/pnfsd/internal/nsid"
	"github.com/pnfsns/pnfsd/internal/nstype"
	"github.com/stretchr/testify/suite"
)

type DriverTest struct {
	suite.Suite
	mock   sqlmock.Sqlmock
	db     *sql.DB
	driver *Driver
	now    time.Time
}

func TestDriverSuite(t *testing.T) {
	suite.Run(t, new(DriverTest))
}

func (s *DriverTest) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.db = db
	s.mock = mock
	s.now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.driver = New("sqlite", WithClock(clock.NewFake(s.now)))
}

func (s *DriverTest) TearDownTest() {
	s.Require().NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func q(substr string) string {
	return regexp.QuoteMeta(substr)
}

func (s *DriverTest) TestCreateFileInsertsInodeAndDirEntryAndTouchesParent() {
	parent := nsid.ID("PARENT000000000000000000000000000000")
	ts := s.now.Unix()

	s.mock.ExpectExec(q("INSERT INTO t_inodes")).
		WithArgs(sqlmock.AnyArg(), uint32(nstype.ModeRegular), uint32(0644), uint32(1), uint32(100), uint32(100), int64(0), 0, ts, ts, ts, ts, 0).
		WillReturnResult(sqlmock.NewResult(1, 1))

	s.mock.ExpectExec(q("INSERT INTO t_dirs")).
		WithArgs(string(parent), "file.txt", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	s.mock.ExpectExec(q("UPDATE t_inodes SET inlink = inlink +")).
		WithArgs(1, ts, ts, string(parent)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := s.driver.CreateFile(context.Background(), s.db, parent, "file.txt", 100, 100, 0644, nstype.ModeRegular)
	s.Require().NoError(err)
	s.True(id.Valid())
}

func (s *DriverTest) TestCreateFileRejectsReservedName() {
	_, err := s.driver.CreateFile(context.Background(), s.db, nsid.Root, "..", 0, 0, 0644, nstype.ModeRegular)
	s.ErrorIs(err, nserrors.ErrInvalidName)
}

func (s *DriverTest) TestMkdirCreatesSelfReferences() {
	parent := nsid.Root
	ts := s.now.Unix()

	s.mock.ExpectExec(q("INSERT INTO t_inodes")).
		WithArgs(sqlmock.AnyArg(), uint32(nstype.ModeDirectory), uint32(0755), uint32(2), uint32(0), uint32(0), int64(512), 0, ts, ts, ts, ts, 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	s.mock.ExpectExec(q("INSERT INTO t_dirs")).
		WithArgs(string(parent), "sub", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	s.mock.ExpectExec(q("UPDATE t_inodes SET inlink = inlink +")).
		WithArgs(1, ts, ts, string(parent)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	s.mock.ExpectExec(q("INSERT INTO t_dirs")).
		WithArgs(sqlmock.AnyArg(), ".", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	s.mock.ExpectExec(q("INSERT INTO t_dirs")).
		WithArgs(sqlmock.AnyArg(), "..", string(parent)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := s.driver.Mkdir(context.Background(), s.db, parent, "sub", 0, 0, 0755)
	s.Require().NoError(err)
	s.True(id.Valid())
}

func (s *DriverTest) TestSetInodeAttributesConstrainsSizeToRegularFiles() {
	id := nsid.ID("FILE00000000000000000000000000000000")
	ts := s.now.Unix()

	s.mock.ExpectExec(q("UPDATE t_inodes SET isize =")).
		WithArgs(int64(42), ts, ts, string(id), uint32(nstype.ModeRegular)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	update := nstype.AttrUpdate{Mask: nstype.AttrMask(0).Set(nstype.AttrSize), Size: 42}
	err := s.driver.SetInodeAttributes(context.Background(), s.db, id, nstype.LevelZero, update)
	s.NoError(err)
}

func (s *DriverTest) TestSetInodeAttributesNotFoundWhenZeroRowsAffected() {
	id := nsid.ID("MISSING0000000000000000000000000000")
	ts := s.now.Unix()

	s.mock.ExpectExec(q("UPDATE t_inodes SET imode =")).
		WithArgs(uint32(0755), ts, string(id)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	update := nstype.AttrUpdate{Mask: nstype.AttrMask(0).Set(nstype.AttrMode), Mode: 0755}
	err := s.driver.SetInodeAttributes(context.Background(), s.db, id, nstype.LevelZero, update)
	s.ErrorIs(err, nserrors.ErrNotFound)
}

func (s *DriverTest) TestStatReturnsNilOnMissingRow() {
	id := nsid.ID("MISSING0000000000000000000000000000")
	s.mock.ExpectQuery(q("SELECT itype, imode, inlink")).
		WithArgs(string(id)).
		WillReturnRows(sqlmock.NewRows(nil))

	st, err := s.driver.Stat(context.Background(), s.db, id, nstype.LevelZero)
	s.Require().NoError(err)
	s.Nil(st)
}
