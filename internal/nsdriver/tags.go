package nsdriver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pnfsns/pnfsd/internal/nserrors"
	"github.com/pnfsns/pnfsd/internal/nsid"
	"github.com/pnfsns/pnfsd/internal/nstype"
)

// copyTags links dst to every tag origin (and inherited link) of src,
// with isorign = 0 and the same tag-id (structural sharing).
func (d *Driver) copyTags(ctx context.Context, q db, src, dst nsid.ID) error {
	query := fmt.Sprintf(`SELECT itagname, itagid FROM t_tags WHERE ipnfsid = %s`, d.ph(1))
	rows, err := q.QueryContext(ctx, query, string(src))
	if err != nil {
		return d.translateErr("copyTags: reading source links", err)
	}
	type link struct{ name, tagID string }
	var links []link
	for rows.Next() {
		var l link
		if err := rows.Scan(&l.name, &l.tagID); err != nil {
			rows.Close()
			return d.translateErr("copyTags: scan", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return d.translateErr("copyTags: iterating", err)
	}
	rows.Close()

	ins := fmt.Sprintf(`INSERT INTO t_tags (ipnfsid, itagname, itagid, isorign) VALUES (%s, %s, %s, %s)`,
		d.ph(1), d.ph(2), d.ph(3), d.ph(4))
	for _, l := range links {
		if _, err := q.ExecContext(ctx, ins, string(dst), l.name, l.tagID, 0); err != nil {
			return d.translateErr("copyTags: inserting inherited link", err)
		}
	}
	return nil
}

// SetTag sets a directory-scoped tag named name on dir. If dir is
// already the origin of an existing link for name, the tag-inode's
// value is updated in place. Otherwise (no link yet, or an inherited
// link) a fresh tag-inode is allocated — copy-on-write fan-out seeded
// from the old value's metadata when one existed — and dir's t_tags
// row is re-pointed to it with isorign = 1.
func (d *Driver) SetTag(ctx context.Context, q db, dir nsid.ID, name string, value []byte) error {
	existing, err := d.tagLink(ctx, q, dir, name)
	if err != nil {
		return err
	}
	now := d.clock.Now()

	if existing != nil && existing.IsOrigin {
		upd := fmt.Sprintf(`UPDATE t_tags_inodes SET ivalue = %s, isize = %s, imtime = %s, ictime = %s WHERE itagid = %s`,
			d.ph(1), d.ph(2), d.ph(3), d.ph(4), d.ph(5))
		_, err := q.ExecContext(ctx, upd, value, int64(len(value)), toUnix(now), toUnix(now), string(existing.TagID))
		return d.translateErr("SetTag: updating owned tag", err)
	}

	newID := newTagID()
	seed := nstype.TagValue{Mode: 0644, Nlink: 1, Size: int64(len(value)), Atime: now, Ctime: now, Mtime: now, Value: value}
	if existing != nil {
		prior, err := d.tagValue(ctx, q, existing.TagID)
		if err != nil {
			return err
		}
		if prior != nil {
			seed.Mode, seed.Nlink, seed.Uid, seed.Gid = prior.Mode, prior.Nlink, prior.Uid, prior.Gid
		}
	}

	insTagInode := fmt.Sprintf(`INSERT INTO t_tags_inodes (itagid, imode, inlink, iuid, igid, isize, iatime, ictime, imtime, ivalue)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		d.ph(1), d.ph(2), d.ph(3), d.ph(4), d.ph(5), d.ph(6), d.ph(7), d.ph(8), d.ph(9), d.ph(10))
	if _, err := q.ExecContext(ctx, insTagInode, newID, seed.Mode, seed.Nlink, seed.Uid, seed.Gid, seed.Size,
		toUnix(seed.Atime), toUnix(seed.Ctime), toUnix(seed.Mtime), seed.Value); err != nil {
		return d.translateErr("SetTag: inserting tag inode", err)
	}

	if existing == nil {
		ins := fmt.Sprintf(`INSERT INTO t_tags (ipnfsid, itagname, itagid, isorign) VALUES (%s, %s, %s, %s)`,
			d.ph(1), d.ph(2), d.ph(3), d.ph(4))
		if _, err := q.ExecContext(ctx, ins, string(dir), name, newID, 1); err != nil {
			return d.translateErr("SetTag: inserting link", err)
		}
		return nil
	}

	repoint := fmt.Sprintf(`UPDATE t_tags SET itagid = %s, isorign = %s WHERE ipnfsid = %s AND itagname = %s`,
		d.ph(1), d.ph(2), d.ph(3), d.ph(4))
	if _, err := q.ExecContext(ctx, repoint, newID, 1, string(dir), name); err != nil {
		return d.translateErr("SetTag: repointing link", err)
	}
	return nil
}

// GetTag returns the current value of tag name on dir, or (nil, nil)
// if dir has no such tag.
func (d *Driver) GetTag(ctx context.Context, q db, dir nsid.ID, name string) ([]byte, error) {
	link, err := d.tagLink(ctx, q, dir, name)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, nil
	}
	v, err := d.tagValue(ctx, q, link.TagID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nserrors.NewInvariantViolation("GetTag", "dangling tag link %s/%s -> %s", dir, name, link.TagID)
	}
	return v.Value, nil
}

func (d *Driver) tagLink(ctx context.Context, q db, dir nsid.ID, name string) (*nstype.TagLink, error) {
	query := fmt.Sprintf(`SELECT itagid, isorign FROM t_tags WHERE ipnfsid = %s AND itagname = %s`, d.ph(1), d.ph(2))
	var tagID string
	var origin int
	err := q.QueryRowContext(ctx, query, string(dir), name).Scan(&tagID, &origin)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, d.translateErr("tagLink", err)
	}
	return &nstype.TagLink{Name: name, TagID: nstype.TagID(tagID), IsOrigin: intToBool(origin)}, nil
}

func (d *Driver) tagValue(ctx context.Context, q db, id nstype.TagID) (*nstype.TagValue, error) {
	query := fmt.Sprintf(`SELECT imode, inlink, iuid, igid, isize, iatime, ictime, imtime, ivalue FROM t_tags_inodes WHERE itagid = %s`, d.ph(1))
	var (
		v                          nstype.TagValue
		atime, ctime, mtime int64
	)
	err := q.QueryRowContext(ctx, query, string(id)).Scan(&v.Mode, &v.Nlink, &v.Uid, &v.Gid, &v.Size, &atime, &ctime, &mtime, &v.Value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, d.translateErr("tagValue", err)
	}
	v.Atime, v.Ctime, v.Mtime = fromUnix(atime), fromUnix(ctime), fromUnix(mtime)
	return &v, nil
}

// ListTags returns every tag name linked on dir.
func (d *Driver) ListTags(ctx context.Context, q db, dir nsid.ID) ([]string, error) {
	query := fmt.Sprintf(`SELECT itagname FROM t_tags WHERE ipnfsid = %s ORDER BY itagname`, d.ph(1))
	rows, err := q.QueryContext(ctx, query, string(dir))
	if err != nil {
		return nil, d.translateErr("ListTags", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, d.translateErr("ListTags: scan", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// dropTagLinks deletes every t_tags row belonging to dir and sweeps
// any tag-inode this leaves with no remaining reference.
func (d *Driver) dropTagLinks(ctx context.Context, q db, dir nsid.ID) error {
	del := fmt.Sprintf(`DELETE FROM t_tags WHERE ipnfsid = %s`, d.ph(1))
	if _, err := q.ExecContext(ctx, del, string(dir)); err != nil {
		return d.translateErr("dropTagLinks", err)
	}
	return d.sweepOrphanTags(ctx, q)
}

// sweepOrphanTags removes every t_tags_inodes row with no referencing
// t_tags row. This sweep is not serialized with concurrent tag
// operations on other directories: a race may leave an orphan behind
// for a later sweep to catch, but it can never delete a tag-inode a
// live t_tags row still references, since the NOT IN subquery is
// evaluated against the same transaction's view.
func (d *Driver) sweepOrphanTags(ctx context.Context, q db) error {
	stmt := `DELETE FROM t_tags_inodes WHERE itagid NOT IN (SELECT itagid FROM t_tags)`
	res, err := q.ExecContext(ctx, stmt)
	if err != nil {
		return d.translateErr("sweepOrphanTags", err)
	}
	if d.metrics != nil {
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			d.metrics.OrphanTagsSwept.Add(float64(n))
		}
	}
	return nil
}
