package nsdriver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pnfsns/pnfsd/internal/nsid"
	"github.com/pnfsns/pnfsd/internal/nstype"
)

// DirectoryStream is a forward-only, not-restartable lazy sequence of
// (name, stat) pairs over one directory's entries, joining t_dirs with
// t_inodes in a single SQL cursor. It must be closed once exhausted or
// abandoned.
type DirectoryStream struct {
	rows    *sql.Rows
	scanErr error
}

// NewDirectoryStream opens a stream over parent's entries, excluding
// "." and "..".
func (d *Driver) NewDirectoryStream(ctx context.Context, q db, parent nsid.ID) (*DirectoryStream, error) {
	query := fmt.Sprintf(`SELECT t_dirs.iname, t_dirs.ipnfsid, t_inodes.itype, t_inodes.imode, t_inodes.inlink,
		t_inodes.iuid, t_inodes.igid, t_inodes.isize, t_inodes.iio,
		t_inodes.iatime, t_inodes.ictime, t_inodes.imtime, t_inodes.icrtime, t_inodes.igeneration
		FROM t_dirs JOIN t_inodes ON t_dirs.ipnfsid = t_inodes.ipnfsid
		WHERE t_dirs.iparent = %s AND t_dirs.iname != '.' AND t_dirs.iname != '..'
		ORDER BY t_dirs.iname`, d.ph(1))

	rows, err := q.QueryContext(ctx, query, string(parent))
	if err != nil {
		return nil, d.translateErr("NewDirectoryStream", err)
	}
	return &DirectoryStream{rows: rows}, nil
}

// Next advances the stream and reports whether an entry was produced.
// Once Next returns false, callers must inspect Err and then Close.
func (s *DirectoryStream) Next() (nstype.DirEntry, bool) {
	if !s.rows.Next() {
		return nstype.DirEntry{}, false
	}

	var (
		e                          nstype.DirEntry
		child                      string
		io                         int
		atime, ctime, mtime, crtime int64
	)
	if err := s.rows.Scan(&e.Name, &child, &e.Stat.Type, &e.Stat.Mode, &e.Stat.Nlink,
		&e.Stat.Uid, &e.Stat.Gid, &e.Stat.Size, &io, &atime, &ctime, &mtime, &crtime, &e.Stat.Generation); err != nil {
		s.scanErr = err
		return nstype.DirEntry{}, false
	}
	e.Child = nsid.ID(child)
	e.Stat.IOEnabled = intToBool(io)
	e.Stat.Atime, e.Stat.Ctime, e.Stat.Mtime, e.Stat.Crtime = fromUnix(atime), fromUnix(ctime), fromUnix(mtime), fromUnix(crtime)
	return e, true
}

// Err returns the first error encountered while scanning, if any.
func (s *DirectoryStream) Err() error {
	if s.scanErr != nil {
		return s.scanErr
	}
	return s.rows.Err()
}

// Close releases the underlying cursor. Safe to call more than once.
func (s *DirectoryStream) Close() error {
	return s.rows.Close()
}
