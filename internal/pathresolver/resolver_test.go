package pathresolver

import (
	"context"
	"testing"

	"github.com/pnfsns/pnfsd/internal/dbpool"
	"github.com/pnfsns/pnfsd/internal/nserrors"
	"github.com/pnfsns/pnfsd/internal/nsid"
	"github.com/pnfsns/pnfsd/internal/nstype"
	"github.com/stretchr/testify/suite"
)

// fakeDriver is an in-memory stand-in for *nsdriver.Driver, keyed by
// (parent,name) directory entries and per-inode stat/content, enough
// to exercise path2inode's symlink-following walk without a database.
type fakeDriver struct {
	entries map[string]nsid.ID // parent+"/"+name -> child
	stats   map[nsid.ID]*nstype.Stat
	content map[nsid.ID][]byte
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		entries: map[string]nsid.ID{},
		stats:   map[nsid.ID]*nstype.Stat{},
		content: map[nsid.ID][]byte{},
	}
}

func key(parent nsid.ID, name string) string { return string(parent) + "/" + name }

func (f *fakeDriver) link(parent nsid.ID, name string, child nsid.ID) {
	f.entries[key(parent, name)] = child
}

func (f *fakeDriver) dir(id nsid.ID) {
	f.stats[id] = &nstype.Stat{Type: nstype.ModeDirectory}
}

func (f *fakeDriver) file(id nsid.ID) {
	f.stats[id] = &nstype.Stat{Type: nstype.ModeRegular}
}

func (f *fakeDriver) symlink(id nsid.ID, target string) {
	f.stats[id] = &nstype.Stat{Type: nstype.ModeSymlink}
	f.content[id] = []byte(target)
}

func (f *fakeDriver) InodeOf(ctx context.Context, q dbpool.DBTX, parent nsid.ID, name string) (nsid.ID, error) {
	return f.entries[key(parent, name)], nil
}

func (f *fakeDriver) Stat(ctx context.Context, q dbpool.DBTX, id nsid.ID, level nstype.Level) (*nstype.Stat, error) {
	return f.stats[id], nil
}

func (f *fakeDriver) Read(ctx context.Context, q dbpool.DBTX, id nsid.ID, level nstype.Level) ([]byte, error) {
	return f.content[id], nil
}

type ResolverTest struct {
	suite.Suite
	f *fakeDriver
	r *Resolver
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverTest))
}

func (s *ResolverTest) SetupTest() {
	s.f = newFakeDriver()
	s.r = New(s.f, 0)
}

func (s *ResolverTest) TestResolvesPlainPath() {
	a := nsid.ID("A00000000000000000000000000000000000")
	b := nsid.ID("B00000000000000000000000000000000000")
	s.f.dir(nsid.Root)
	s.f.dir(a)
	s.f.file(b)
	s.f.link(nsid.Root, "a", a)
	s.f.link(a, "b", b)

	id, err := s.r.Path2Inode(context.Background(), nil, nsid.Root, "/a/b")
	s.Require().NoError(err)
	s.Equal(b, id)
}

func (s *ResolverTest) TestFollowsRelativeSymlink() {
	a := nsid.ID("A00000000000000000000000000000000000")
	link := nsid.ID("LINK0000000000000000000000000000000")
	target := nsid.ID("TARGET00000000000000000000000000000")
	s.f.dir(nsid.Root)
	s.f.dir(a)
	s.f.file(target)
	s.f.symlink(link, "target")
	s.f.link(nsid.Root, "a", a)
	s.f.link(a, "link", link)
	s.f.link(a, "target", target)

	id, err := s.r.Path2Inode(context.Background(), nil, nsid.Root, "/a/link")
	s.Require().NoError(err)
	s.Equal(target, id)
}

func (s *ResolverTest) TestFollowsAbsoluteSymlinkFromRoot() {
	link := nsid.ID("LINK0000000000000000000000000000000")
	target := nsid.ID("TARGET00000000000000000000000000000")
	s.f.dir(nsid.Root)
	s.f.file(target)
	s.f.symlink(link, "/target")
	s.f.link(nsid.Root, "link", link)
	s.f.link(nsid.Root, "target", target)

	id, err := s.r.Path2Inode(context.Background(), nil, nsid.Root, "/link")
	s.Require().NoError(err)
	s.Equal(target, id)
}

func (s *ResolverTest) TestDetectsSymlinkLoopViaHopLimit() {
	a := nsid.ID("A00000000000000000000000000000000000")
	b := nsid.ID("B00000000000000000000000000000000000")
	s.f.dir(nsid.Root)
	s.f.symlink(a, "/b")
	s.f.symlink(b, "/a")
	s.f.link(nsid.Root, "a", a)
	s.f.link(nsid.Root, "b", b)

	r := New(s.f, 5)
	_, err := r.Path2Inode(context.Background(), nil, nsid.Root, "/a")
	s.ErrorIs(err, nserrors.ErrTooManyLinks)
}

func (s *ResolverTest) TestMissingComponentIsNotFound() {
	s.f.dir(nsid.Root)
	_, err := s.r.Path2Inode(context.Background(), nil, nsid.Root, "/missing")
	s.ErrorIs(err, nserrors.ErrNotFound)
}
