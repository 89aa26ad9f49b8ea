package nsdriver

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pnfsns/pnfsd/internal/nserrors"
	"github.com/pnfsns/pnfsd/internal/nsid"
)

// InodeOf resolves the single directory entry (parent, name) to its
// target inode. It returns ("", nil) when no such entry exists.
func (d *Driver) InodeOf(ctx context.Context, q db, parent nsid.ID, name string) (nsid.ID, error) {
	query := fmt.Sprintf(`SELECT ipnfsid FROM t_dirs WHERE iparent = %s AND iname = %s`, d.ph(1), d.ph(2))
	var child string
	err := q.QueryRowContext(ctx, query, string(parent), name).Scan(&child)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", d.translateErr("InodeOf", err)
	}
	return nsid.ID(child), nil
}

// CreateEntry links an already-existing inode into parent under name
// without allocating a new inode: the hard-link operation.
func (d *Driver) CreateEntry(ctx context.Context, q db, parent nsid.ID, name string, target nsid.ID) error {
	if err := validateName(name); err != nil {
		return err
	}

	now := d.clock.Now()
	insert := fmt.Sprintf(`INSERT INTO t_dirs (iparent, iname, ipnfsid) VALUES (%s, %s, %s)`,
		d.ph(1), d.ph(2), d.ph(3))
	if _, err := q.ExecContext(ctx, insert, string(parent), name, string(target)); err != nil {
		if translated, ok := d.dialect.TranslateError(err); ok {
			return translated
		}
		return nserrors.ErrDuplicateEntry
	}

	if err := d.touchParentOnLink(ctx, q, parent, now, 1); err != nil {
		return err
	}

	bumpNlink := fmt.Sprintf(`UPDATE t_inodes SET inlink = inlink + 1, ictime = %s WHERE ipnfsid = %s`,
		d.ph(1), d.ph(2))
	res, err := q.ExecContext(ctx, bumpNlink, toUnix(now), string(target))
	if err != nil {
		return d.translateErr("CreateEntry: bumping target nlink", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return d.translateErr("CreateEntry: rows affected", err)
	}
	if n == 0 {
		return nserrors.ErrNotFound
	}
	return nil
}

// DirListEntry is one row yielded while listing a directory's entries.
type DirListEntry struct {
	Name  string
	Child nsid.ID
}

// ListDir returns every entry of parent except "." and "..". Callers
// needing a large directory should prefer NewDirectoryStream (spec
// §4.1 "large directory iteration").
func (d *Driver) ListDir(ctx context.Context, q db, parent nsid.ID) ([]DirListEntry, error) {
	query := fmt.Sprintf(`SELECT iname, ipnfsid FROM t_dirs WHERE iparent = %s AND iname != '.' AND iname != '..' ORDER BY iname`, d.ph(1))
	rows, err := q.QueryContext(ctx, query, string(parent))
	if err != nil {
		return nil, d.translateErr("ListDir", err)
	}
	defer rows.Close()

	var out []DirListEntry
	for rows.Next() {
		var e DirListEntry
		var child string
		if err := rows.Scan(&e.Name, &child); err != nil {
			return nil, d.translateErr("ListDir: scan", err)
		}
		e.Child = nsid.ID(child)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, d.translateErr("ListDir: iterating", err)
	}
	return out, nil
}

// Move renames/relocates a directory entry from (oldParent, oldName)
// to (newParent, newName). When the entry names a directory and the
// parent changes, its ".." entry is repointed at the new parent; the
// operation is not reference-counted on either parent (their nlink,
// mtime, and ctime are left untouched).
func (d *Driver) Move(ctx context.Context, q db, oldParent nsid.ID, oldName string, newParent nsid.ID, newName string) (err error) {
	start := time.Now()
	defer func() { d.observe("Move", start, err) }()

	if err := validateName(oldName); err != nil {
		return err
	}
	if err := validateName(newName); err != nil {
		return err
	}

	child, err := d.InodeOf(ctx, q, oldParent, oldName)
	if err != nil {
		return err
	}
	if child == "" {
		return nserrors.ErrNotFound
	}

	del := fmt.Sprintf(`DELETE FROM t_dirs WHERE iparent = %s AND iname = %s`, d.ph(1), d.ph(2))
	if _, err := q.ExecContext(ctx, del, string(oldParent), oldName); err != nil {
		return d.translateErr("Move: removing old entry", err)
	}

	ins := fmt.Sprintf(`INSERT INTO t_dirs (iparent, iname, ipnfsid) VALUES (%s, %s, %s)`,
		d.ph(1), d.ph(2), d.ph(3))
	if _, err := q.ExecContext(ctx, ins, string(newParent), newName, string(child)); err != nil {
		if translated, ok := d.dialect.TranslateError(err); ok {
			return translated
		}
		return nserrors.ErrDuplicateEntry
	}

	isDir, err := d.isDirectory(ctx, q, child)
	if err != nil {
		return err
	}
	if isDir && newParent != oldParent {
		updateDotDot := fmt.Sprintf(`UPDATE t_dirs SET ipnfsid = %s WHERE iparent = %s AND iname = '..'`,
			d.ph(1), d.ph(2))
		if _, err := q.ExecContext(ctx, updateDotDot, string(newParent), string(child)); err != nil {
			return d.translateErr("Move: repointing dotdot", err)
		}
	}

	return nil
}

func (d *Driver) isDirectory(ctx context.Context, q db, id nsid.ID) (bool, error) {
	query := fmt.Sprintf(`SELECT itype FROM t_inodes WHERE ipnfsid = %s`, d.ph(1))
	var itype uint32
	err := q.QueryRowContext(ctx, query, string(id)).Scan(&itype)
	if err == sql.ErrNoRows {
		return false, nserrors.ErrNotFound
	}
	if err != nil {
		return false, d.translateErr("isDirectory", err)
	}
	return itype == dirTypeBit, nil
}

const dirTypeBit = 0x4000 // same value as nstype.ModeDirectory (S_IFDIR)

// RemoveNamed removes the directory entry (parent, name). If it names
// a non-empty directory (nlink > 2, i.e. more than "." and ".."), it
// returns nserrors.ErrNotEmpty and performs no mutation. Per spec
// §4.1/§5's contention-optimization ordering, the parent's nlink is
// decremented last, after the child (and, for directories, its
// self-references) are fully retired.
func (d *Driver) RemoveNamed(ctx context.Context, q db, parent nsid.ID, name string) (err error) {
	start := time.Now()
	defer func() { d.observe("RemoveNamed", start, err) }()

	if isReservedName(name) {
		return nserrors.ErrInvalidName
	}

	child, err := d.InodeOf(ctx, q, parent, name)
	if err != nil {
		return err
	}
	if child == "" {
		return nserrors.ErrNotFound
	}

	isDir, err := d.isDirectory(ctx, q, child)
	if err != nil {
		return err
	}

	if isDir {
		nlink, err := d.nlinkOf(ctx, q, child)
		if err != nil {
			return err
		}
		if nlink > 2 {
			return nserrors.ErrNotEmpty
		}

		delSelf := fmt.Sprintf(`DELETE FROM t_dirs WHERE iparent = %s AND (iname = '.' OR iname = '..')`, d.ph(1))
		res, err := q.ExecContext(ctx, delSelf, string(child))
		if err != nil {
			return d.translateErr("RemoveNamed: deleting dot entries", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return d.translateErr("RemoveNamed: rows affected", err)
		}
		if n != 2 {
			return nserrors.NewInvariantViolation("RemoveNamed", "expected exactly 2 self-reference rows for %s, found %d", child, n)
		}

		if err := d.dropTagLinks(ctx, q, child); err != nil {
			return err
		}

		if err := d.deleteDirEntry(ctx, q, parent, name); err != nil {
			return err
		}
		if err := d.decrementLink(ctx, q, child, 2); err != nil {
			return err
		}
	} else {
		if err := d.deleteDirEntry(ctx, q, parent, name); err != nil {
			return err
		}
		if err := d.decrementLink(ctx, q, child, 1); err != nil {
			return err
		}
	}

	now := d.clock.Now()
	if err := d.touchParentOnLink(ctx, q, parent, now, -1); err != nil {
		return err
	}

	return nil
}

func (d *Driver) deleteDirEntry(ctx context.Context, q db, parent nsid.ID, name string) error {
	del := fmt.Sprintf(`DELETE FROM t_dirs WHERE iparent = %s AND iname = %s`, d.ph(1), d.ph(2))
	res, err := q.ExecContext(ctx, del, string(parent), name)
	if err != nil {
		return d.translateErr("RemoveNamed: deleting entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return d.translateErr("RemoveNamed: rows affected", err)
	}
	if n == 0 {
		return nserrors.ErrNotFound
	}
	return nil
}

// decrementLink lowers id's nlink by delta and, if it reaches zero,
// garbage-collects its storage across every child table.
func (d *Driver) decrementLink(ctx context.Context, q db, id nsid.ID, delta int) error {
	now := d.clock.Now()
	dec := fmt.Sprintf(`UPDATE t_inodes SET inlink = inlink - %s, ictime = %s WHERE ipnfsid = %s`,
		d.ph(1), d.ph(2), d.ph(3))
	if _, err := q.ExecContext(ctx, dec, delta, toUnix(now), string(id)); err != nil {
		return d.translateErr("decrementLink", err)
	}

	nlink, err := d.nlinkOf(ctx, q, id)
	if err != nil {
		return err
	}
	if nlink > 0 {
		return nil
	}
	return d.purgeInodeTables(ctx, q, id)
}

func (d *Driver) nlinkOf(ctx context.Context, q db, id nsid.ID) (uint32, error) {
	query := fmt.Sprintf(`SELECT inlink FROM t_inodes WHERE ipnfsid = %s`, d.ph(1))
	var nlink uint32
	err := q.QueryRowContext(ctx, query, string(id)).Scan(&nlink)
	if err == sql.ErrNoRows {
		return 0, nserrors.ErrNotFound
	}
	if err != nil {
		return 0, d.translateErr("nlinkOf", err)
	}
	return nlink, nil
}

// purgeInodeTables deletes every row referencing id across the
// FK-dependent child tables before deleting the t_inodes row itself,
// satisfying the foreign keys internal/schema declares.
func (d *Driver) purgeInodeTables(ctx context.Context, q db, id nsid.ID) error {
	childTables := []string{
		"t_inodes_data",
		"t_level_1", "t_level_2", "t_level_3", "t_level_4", "t_level_5", "t_level_6", "t_level_7",
		"t_inodes_checksum",
		"t_locationinfo",
		"t_storageinfo",
		"t_access_latency",
		"t_retention_policy",
		"t_acl",
		"t_tags",
	}
	for _, table := range childTables {
		col := "ipnfsid"
		if table == "t_acl" {
			col = "rs_id"
		}
		stmt := fmt.Sprintf(`DELETE FROM %s WHERE %s = %s`, table, col, d.ph(1))
		if _, err := q.ExecContext(ctx, stmt, string(id)); err != nil {
			return d.translateErr(fmt.Sprintf("purgeInodeTables: %s", table), err)
		}
	}

	if err := d.sweepOrphanTags(ctx, q); err != nil {
		return err
	}

	del := fmt.Sprintf(`DELETE FROM t_inodes WHERE ipnfsid = %s`, d.ph(1))
	if _, err := q.ExecContext(ctx, del, string(id)); err != nil {
		return d.translateErr("purgeInodeTables: t_inodes", err)
	}
	return nil
}

// RemoveInode is the administrative variant of remove that operates
// directly on an inode rather than a (parent, name) pair. It
// atomically zeroes nlink, enumerates every remaining parent link,
// decrements each parent's own nlink, removes every t_dirs row
// mentioning id as child (plus, for a directory, its own ".." row,
// which names id as parent rather than child), and GCs.
func (d *Driver) RemoveInode(ctx context.Context, q db, id nsid.ID) error {
	parents, err := d.parentsOf(ctx, q, id)
	if err != nil {
		return err
	}

	now := d.clock.Now()
	zero := fmt.Sprintf(`UPDATE t_inodes SET inlink = 0, ictime = %s WHERE ipnfsid = %s`, d.ph(1), d.ph(2))
	if _, err := q.ExecContext(ctx, zero, toUnix(now), string(id)); err != nil {
		return d.translateErr("RemoveInode: zeroing nlink", err)
	}

	for _, p := range parents {
		if p == id {
			continue // "." self-reference; ".." is the distinct parent row handled below
		}
		if err := d.touchParentOnLink(ctx, q, p, now, -1); err != nil {
			return err
		}
	}

	del := fmt.Sprintf(`DELETE FROM t_dirs WHERE ipnfsid = %s`, d.ph(1))
	res, err := q.ExecContext(ctx, del, string(id))
	if err != nil {
		return d.translateErr("RemoveInode: deleting dir entries", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return d.translateErr("RemoveInode: rows affected", err)
	}
	if int(n) != len(parents) {
		return nserrors.NewInvariantViolation("RemoveInode", "expected %d dir-entry rows removed for %s, removed %d", len(parents), id, n)
	}

	// id's own ".." row (iparent = id) names id as parent, not child, so
	// the delete above never touches it; a directory's self-reference
	// would otherwise be left dangling.
	dotdot := fmt.Sprintf(`DELETE FROM t_dirs WHERE iparent = %s AND iname = '..'`, d.ph(1))
	if _, err := q.ExecContext(ctx, dotdot, string(id)); err != nil {
		return d.translateErr("RemoveInode: deleting self dotdot", err)
	}

	if err := d.dropTagLinks(ctx, q, id); err != nil {
		return err
	}

	return d.purgeInodeTables(ctx, q, id)
}

// parentsOf returns the parent inode of every t_dirs row that names id
// as child, one element per row (a parent holding two links to id
// appears twice), including id itself once for a directory's own
// "." self-reference.
func (d *Driver) parentsOf(ctx context.Context, q db, id nsid.ID) ([]nsid.ID, error) {
	query := fmt.Sprintf(`SELECT iparent FROM t_dirs WHERE ipnfsid = %s`, d.ph(1))
	rows, err := q.QueryContext(ctx, query, string(id))
	if err != nil {
		return nil, d.translateErr("parentsOf", err)
	}
	defer rows.Close()

	var out []nsid.ID
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, d.translateErr("parentsOf: scan", err)
		}
		out = append(out, nsid.ID(p))
	}
	if err := rows.Err(); err != nil {
		return nil, d.translateErr("parentsOf: iterating", err)
	}
	return out, nil
}
