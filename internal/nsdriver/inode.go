package nsdriver

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pnfsns/pnfsd/internal/nserrors"
	"github.com/pnfsns/pnfsd/internal/nsid"
	"github.com/pnfsns/pnfsd/internal/nstype"
)

// CreateFile allocates a fresh inode of the given type and links it
// into parent under name. It does not itself recurse into
// directory-specific bookkeeping ("."/".." entries); Mkdir composes
// this with that extra step.
func (d *Driver) CreateFile(ctx context.Context, q db, parent nsid.ID, name string, uid, gid, mode, itype uint32) (id nsid.ID, err error) {
	start := time.Now()
	defer func() { d.observe("CreateFile", start, err) }()

	if err := validateName(name); err != nil {
		return "", err
	}

	id = nsid.New()
	now := d.clock.Now()

	nlink := uint32(1)
	size := int64(0)
	if itype == nstype.ModeDirectory {
		nlink = 2
		size = 512
	}

	insertInode := fmt.Sprintf(`INSERT INTO t_inodes
		(ipnfsid, itype, imode, inlink, iuid, igid, isize, iio, iatime, ictime, imtime, icrtime, igeneration)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		d.ph(1), d.ph(2), d.ph(3), d.ph(4), d.ph(5), d.ph(6), d.ph(7), d.ph(8), d.ph(9), d.ph(10), d.ph(11), d.ph(12), d.ph(13))
	if _, err := q.ExecContext(ctx, insertInode,
		string(id), itype, mode, nlink, uid, gid, size, boolToInt(d.defaultIOEnabled),
		toUnix(now), toUnix(now), toUnix(now), toUnix(now), 0); err != nil {
		return "", d.translateErr("CreateFile: insert inode", err)
	}

	insertDirEntry := fmt.Sprintf(`INSERT INTO t_dirs (iparent, iname, ipnfsid) VALUES (%s, %s, %s)`,
		d.ph(1), d.ph(2), d.ph(3))
	if _, err := q.ExecContext(ctx, insertDirEntry, string(parent), name, string(id)); err != nil {
		if err2, ok := d.dialect.TranslateError(err); ok {
			return "", err2
		}
		return "", nserrors.ErrDuplicateEntry
	}

	if err := d.touchParentOnLink(ctx, q, parent, now, 1); err != nil {
		return "", err
	}

	return id, nil
}

// Mkdir creates a directory inode, its "." and ".." self-references,
// and links it into parent under name.
func (d *Driver) Mkdir(ctx context.Context, q db, parent nsid.ID, name string, uid, gid, mode uint32) (nsid.ID, error) {
	id, err := d.CreateFile(ctx, q, parent, name, uid, gid, mode, nstype.ModeDirectory)
	if err != nil {
		return "", err
	}

	insertSelf := fmt.Sprintf(`INSERT INTO t_dirs (iparent, iname, ipnfsid) VALUES (%s, %s, %s)`,
		d.ph(1), d.ph(2), d.ph(3))
	if _, err := q.ExecContext(ctx, insertSelf, string(id), ".", string(id)); err != nil {
		return "", d.translateErr("Mkdir: insert dot entry", err)
	}
	if _, err := q.ExecContext(ctx, insertSelf, string(id), "..", string(parent)); err != nil {
		return "", d.translateErr("Mkdir: insert dotdot entry", err)
	}

	return id, nil
}

// MkdirWithTagsAndACL composes Mkdir with tag inheritance from parent
// and an initial ACL.
func (d *Driver) MkdirWithTagsAndACL(ctx context.Context, q db, parent nsid.ID, name string, uid, gid, mode uint32, acl []nstype.ACE) (nsid.ID, error) {
	id, err := d.Mkdir(ctx, q, parent, name, uid, gid, mode)
	if err != nil {
		return "", err
	}
	if err := d.copyTags(ctx, q, parent, id); err != nil {
		return "", fmt.Errorf("MkdirWithTagsAndACL: copying tags: %w", err)
	}
	if len(acl) > 0 {
		if _, err := d.SetACL(ctx, q, id, nstype.ResourceDir, acl); err != nil {
			return "", fmt.Errorf("MkdirWithTagsAndACL: setting ACL: %w", err)
		}
	}
	return id, nil
}

// touchParentOnLink bumps parent's nlink, mtime, ctime, and generation
// after a directory-entry insertion or removal. delta is +1 for an
// insert and -1 for a removal.
func (d *Driver) touchParentOnLink(ctx context.Context, q db, parent nsid.ID, now time.Time, delta int) error {
	stmt := fmt.Sprintf(`UPDATE t_inodes SET inlink = inlink + %s, imtime = %s, ictime = %s, igeneration = igeneration + 1 WHERE ipnfsid = %s`,
		d.ph(1), d.ph(2), d.ph(3), d.ph(4))
	res, err := q.ExecContext(ctx, stmt, delta, toUnix(now), toUnix(now), string(parent))
	if err != nil {
		return d.translateErr("touchParent", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return d.translateErr("touchParent: rows affected", err)
	}
	if n == 0 {
		return nserrors.ErrNotFound
	}
	return nil
}

// Stat reads the inode (level 0) or t_level_N (level 1-7) row for id.
// A missing row yields (nil, nil).
func (d *Driver) Stat(ctx context.Context, q db, id nsid.ID, level nstype.Level) (*nstype.Stat, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("Stat: invalid level %d", level)
	}
	if level == nstype.LevelZero {
		return d.statLevelZero(ctx, q, id)
	}
	return d.statLevelN(ctx, q, id, level)
}

func (d *Driver) statLevelZero(ctx context.Context, q db, id nsid.ID) (*nstype.Stat, error) {
	query := fmt.Sprintf(`SELECT itype, imode, inlink, iuid, igid, isize, iio,
		iatime, ictime, imtime, icrtime, igeneration, iaccess_latency, iretention_policy
		FROM t_inodes WHERE ipnfsid = %s`, d.ph(1))

	row := q.QueryRowContext(ctx, query, string(id))
	var (
		s                          nstype.Stat
		io                         int
		atime, ctime, mtime, crtime int64
		al, rp                     sql.NullInt32
	)
	err := row.Scan(&s.Type, &s.Mode, &s.Nlink, &s.Uid, &s.Gid, &s.Size, &io,
		&atime, &ctime, &mtime, &crtime, &s.Generation, &al, &rp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, d.translateErr("Stat", err)
	}
	s.IOEnabled = intToBool(io)
	s.Atime, s.Ctime, s.Mtime, s.Crtime = fromUnix(atime), fromUnix(ctime), fromUnix(mtime), fromUnix(crtime)
	if al.Valid {
		v := al.Int32
		s.AccessLatency = &v
	}
	if rp.Valid {
		v := rp.Int32
		s.RetentionPolicy = &v
	}
	return &s, nil
}

func (d *Driver) statLevelN(ctx context.Context, q db, id nsid.ID, level nstype.Level) (*nstype.Stat, error) {
	table := levelTable(level)
	query := fmt.Sprintf(`SELECT imode, isize, iuid, igid, iatime, ictime, imtime FROM %s WHERE ipnfsid = %s`, table, d.ph(1))

	row := q.QueryRowContext(ctx, query, string(id))
	var (
		s                    nstype.Stat
		atime, ctime, mtime int64
	)
	err := row.Scan(&s.Mode, &s.Size, &s.Uid, &s.Gid, &atime, &ctime, &mtime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, d.translateErr("Stat", err)
	}
	s.Atime, s.Ctime, s.Mtime = fromUnix(atime), fromUnix(ctime), fromUnix(mtime)
	return &s, nil
}

func levelTable(level nstype.Level) string {
	return fmt.Sprintf("t_level_%d", int(level))
}

// SetInodeAttributes applies a sparse AttrUpdate to id at level,
// generating a dynamic UPDATE whose SET clause includes the fields
// marked in update.Mask plus ictime, which is always written (and, at
// level 0, igeneration, which is always incremented). See
// nstype.AttrUpdate for how ictime and imtime are chosen.
func (d *Driver) SetInodeAttributes(ctx context.Context, q db, id nsid.ID, level nstype.Level, update nstype.AttrUpdate) error {
	if !level.Valid() {
		return fmt.Errorf("SetInodeAttributes: invalid level %d", level)
	}
	if level == nstype.LevelZero {
		return d.setAttrsLevelZero(ctx, q, id, update)
	}
	return d.setAttrsLevelN(ctx, q, id, level, update)
}

func (d *Driver) setAttrsLevelZero(ctx context.Context, q db, id nsid.ID, update nstype.AttrUpdate) error {
	now := d.clock.Now()

	mask := update.Mask
	if mask.Has(nstype.AttrSize) && !mask.Has(nstype.AttrMtime) {
		update.Mtime = update.Ctime
		if update.Mtime.IsZero() {
			update.Mtime = now
		}
		mask = mask.Set(nstype.AttrMtime)
	}

	var sets []string
	var args []any
	n := 1
	add := func(col string, val any) {
		sets = append(sets, fmt.Sprintf("%s = %s", col, d.ph(n)))
		args = append(args, val)
		n++
	}

	if mask.Has(nstype.AttrMode) {
		add("imode", update.Mode)
	}
	if mask.Has(nstype.AttrUid) {
		add("iuid", update.Uid)
	}
	if mask.Has(nstype.AttrGid) {
		add("igid", update.Gid)
	}
	if mask.Has(nstype.AttrSize) {
		sets = append(sets, fmt.Sprintf("isize = %s", d.ph(n)))
		args = append(args, update.Size)
		n++
	}
	if mask.Has(nstype.AttrAtime) {
		add("iatime", toUnix(update.Atime))
	}
	if mask.Has(nstype.AttrMtime) {
		add("imtime", toUnix(update.Mtime))
	}
	if mask.Has(nstype.AttrAccessLatency) {
		add("iaccess_latency", update.AccessLatency)
	}
	if mask.Has(nstype.AttrRetentionPolicy) {
		add("iretention_policy", update.RetentionPolicy)
	}

	ctime := update.Ctime
	if ctime.IsZero() {
		ctime = now
	}
	add("ictime", toUnix(ctime))
	sets = append(sets, "igeneration = igeneration + 1")

	if mask.Has(nstype.AttrSize) {
		query := fmt.Sprintf(`UPDATE t_inodes SET %s WHERE ipnfsid = %s AND itype = %s`,
			joinSets(sets), d.ph(n), d.ph(n+1))
		args = append(args, string(id), nstype.ModeRegular)
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return d.translateErr("SetInodeAttributes", err)
		}
		return checkUpdatedOne(res, "SetInodeAttributes: size update constrained to regular files")
	}

	query := fmt.Sprintf(`UPDATE t_inodes SET %s WHERE ipnfsid = %s`, joinSets(sets), d.ph(n))
	args = append(args, string(id))
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return d.translateErr("SetInodeAttributes", err)
	}
	return checkUpdatedOne(res, "SetInodeAttributes: inode not found")
}

func (d *Driver) setAttrsLevelN(ctx context.Context, q db, id nsid.ID, level nstype.Level, update nstype.AttrUpdate) error {
	table := levelTable(level)
	now := d.clock.Now()

	mask := update.Mask
	var sets []string
	var args []any
	n := 1
	add := func(col string, val any) {
		sets = append(sets, fmt.Sprintf("%s = %s", col, d.ph(n)))
		args = append(args, val)
		n++
	}

	if mask.Has(nstype.AttrMode) {
		add("imode", update.Mode)
	}
	if mask.Has(nstype.AttrUid) {
		add("iuid", update.Uid)
	}
	if mask.Has(nstype.AttrGid) {
		add("igid", update.Gid)
	}
	if mask.Has(nstype.AttrSize) {
		add("isize", update.Size)
	}
	if mask.Has(nstype.AttrAtime) {
		add("iatime", toUnix(update.Atime))
	}
	if mask.Has(nstype.AttrMtime) {
		add("imtime", toUnix(update.Mtime))
	}
	ctime := update.Ctime
	if ctime.IsZero() {
		ctime = now
	}
	add("ictime", toUnix(ctime))

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE ipnfsid = %s`, table, joinSets(sets), d.ph(n))
	args = append(args, string(id))
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return d.translateErr("SetInodeAttributes", err)
	}
	return checkUpdatedOne(res, "SetInodeAttributes: level row not found")
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}

func checkUpdatedOne(res sql.Result, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return nserrors.ErrNotFound
	}
	if n > 1 {
		return nserrors.NewInvariantViolation("SetInodeAttributes", "%s: affected %d rows", msg, n)
	}
	return nil
}
