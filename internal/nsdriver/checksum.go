package nsdriver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pnfsns/pnfsd/internal/nsid"
	"github.com/pnfsns/pnfsd/internal/nstype"
)

// SetChecksum upserts id's checksum for the given algorithm. An inode
// may carry several checksums, one per algorithm.
func (d *Driver) SetChecksum(ctx context.Context, q db, id nsid.ID, algorithm int32, value string) error {
	probe := fmt.Sprintf(`SELECT 1 FROM t_inodes_checksum WHERE ipnfsid = %s AND itype = %s`, d.ph(1), d.ph(2))
	var n int
	err := q.QueryRowContext(ctx, probe, string(id), algorithm).Scan(&n)
	switch {
	case err == sql.ErrNoRows:
		ins := fmt.Sprintf(`INSERT INTO t_inodes_checksum (ipnfsid, itype, isum) VALUES (%s, %s, %s)`, d.ph(1), d.ph(2), d.ph(3))
		_, err := q.ExecContext(ctx, ins, string(id), algorithm, value)
		return d.translateErr("SetChecksum: insert", err)
	case err != nil:
		return d.translateErr("SetChecksum: probe", err)
	default:
		upd := fmt.Sprintf(`UPDATE t_inodes_checksum SET isum = %s WHERE ipnfsid = %s AND itype = %s`, d.ph(1), d.ph(2), d.ph(3))
		_, err := q.ExecContext(ctx, upd, value, string(id), algorithm)
		return d.translateErr("SetChecksum: update", err)
	}
}

// GetChecksums returns every checksum recorded for id.
func (d *Driver) GetChecksums(ctx context.Context, q db, id nsid.ID) ([]nstype.Checksum, error) {
	query := fmt.Sprintf(`SELECT itype, isum FROM t_inodes_checksum WHERE ipnfsid = %s ORDER BY itype`, d.ph(1))
	rows, err := q.QueryContext(ctx, query, string(id))
	if err != nil {
		return nil, d.translateErr("GetChecksums", err)
	}
	defer rows.Close()

	var out []nstype.Checksum
	for rows.Next() {
		var c nstype.Checksum
		if err := rows.Scan(&c.Algorithm, &c.Value); err != nil {
			return nil, d.translateErr("GetChecksums: scan", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteChecksum removes id's checksum for the given algorithm.
func (d *Driver) DeleteChecksum(ctx context.Context, q db, id nsid.ID, algorithm int32) error {
	del := fmt.Sprintf(`DELETE FROM t_inodes_checksum WHERE ipnfsid = %s AND itype = %s`, d.ph(1), d.ph(2))
	_, err := q.ExecContext(ctx, del, string(id), algorithm)
	return d.translateErr("DeleteChecksum", err)
}
