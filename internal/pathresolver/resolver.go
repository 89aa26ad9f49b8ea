// Package pathresolver walks slash-separated paths against the
// namespace driver, following symlinks the way a POSIX path lookup
// does: an absolute target restarts from the well-known root, a
// relative one continues from the symlink's own parent.
package pathresolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/pnfsns/pnfsd/internal/dbpool"
	"github.com/pnfsns/pnfsd/internal/nserrors"
	"github.com/pnfsns/pnfsd/internal/nsdriver"
	"github.com/pnfsns/pnfsd/internal/nsid"
	"github.com/pnfsns/pnfsd/internal/nstype"
)

// driver is the subset of *nsdriver.Driver this package depends on.
type driver interface {
	InodeOf(ctx context.Context, q dbpool.DBTX, parent nsid.ID, name string) (nsid.ID, error)
	Stat(ctx context.Context, q dbpool.DBTX, id nsid.ID, level nstype.Level) (*nstype.Stat, error)
	Read(ctx context.Context, q dbpool.DBTX, id nsid.ID, level nstype.Level) ([]byte, error)
}

// Resolver walks paths against a driver, bounding symlink recursion at
// hopLimit so a symlink cycle fails fast instead of looping forever.
type Resolver struct {
	d        driver
	hopLimit int
}

// DefaultHopLimit matches nsdriver.SymlinkHopLimit.
const DefaultHopLimit = nsdriver.SymlinkHopLimit

// New constructs a Resolver over d. hopLimit <= 0 selects DefaultHopLimit.
func New(d driver, hopLimit int) *Resolver {
	if hopLimit <= 0 {
		hopLimit = DefaultHopLimit
	}
	return &Resolver{d: d, hopLimit: hopLimit}
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Path2Inode resolves path against root and returns the final inode,
// following any symlinks encountered along the way.
func (r *Resolver) Path2Inode(ctx context.Context, q dbpool.DBTX, root nsid.ID, path string) (nsid.ID, error) {
	ids, err := r.Path2Inodes(ctx, q, root, path)
	if err != nil {
		return "", err
	}
	return ids[len(ids)-1], nil
}

// Path2Inodes resolves path against root and returns the full sequence
// of inodes traversed, including every intermediate component and
// every symlink's root anchor.
func (r *Resolver) Path2Inodes(ctx context.Context, q dbpool.DBTX, root nsid.ID, path string) ([]nsid.ID, error) {
	state := &walkState{r: r, hops: 0}
	trail := []nsid.ID{root}
	cur := root
	for _, comp := range splitPath(path) {
		next, extra, err := state.step(ctx, q, cur, comp)
		if err != nil {
			return nil, err
		}
		trail = append(trail, extra...)
		if len(extra) == 0 || extra[len(extra)-1] != next {
			trail = append(trail, next)
		}
		cur = next
	}
	return trail, nil
}

type walkState struct {
	r    *Resolver
	hops int
}

// step resolves one path component from parent, following a symlink
// chain if the component names one. It returns the inode the
// component ultimately names and every inode visited while chasing
// symlinks (for Path2Inodes' full trail); when a symlink was followed,
// that list ends with the resolved inode itself.
func (s *walkState) step(ctx context.Context, q dbpool.DBTX, parent nsid.ID, name string) (nsid.ID, []nsid.ID, error) {
	child, err := s.r.d.InodeOf(ctx, q, parent, name)
	if err != nil {
		return "", nil, fmt.Errorf("path lookup: resolving %q: %w", name, err)
	}
	if child == "" {
		return "", nil, fmt.Errorf("path lookup: %q: %w", name, nserrors.ErrNotFound)
	}

	var extra []nsid.ID
	for {
		st, err := s.r.d.Stat(ctx, q, child, nstype.LevelZero)
		if err != nil {
			return "", nil, fmt.Errorf("path lookup: stat %s: %w", child, err)
		}
		if st == nil {
			return "", nil, fmt.Errorf("path lookup: %s: %w", child, nserrors.ErrNotFound)
		}
		if st.Type != nstype.ModeSymlink {
			return child, extra, nil
		}

		s.hops++
		if s.hops > s.r.hopLimit {
			return "", nil, nserrors.ErrTooManyLinks
		}

		target, err := s.r.d.Read(ctx, q, child, nstype.LevelZero)
		if err != nil {
			return "", nil, fmt.Errorf("path lookup: reading symlink %s: %w", child, err)
		}

		base := parent
		components := splitPath(string(target))
		if strings.HasPrefix(string(target), "/") {
			base = nsid.Root
			extra = append(extra, nsid.Root)
		}

		resolved := base
		for _, c := range components {
			next, sub, err := s.step(ctx, q, resolved, c)
			if err != nil {
				return "", nil, err
			}
			extra = append(extra, sub...)
			extra = append(extra, next)
			resolved = next
		}
		child = resolved
	}
}
