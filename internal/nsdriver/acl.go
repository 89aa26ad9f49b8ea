package nsdriver

import (
	"context"
	"fmt"

	"github.com/pnfsns/pnfsd/internal/nsid"
	"github.com/pnfsns/pnfsd/internal/nstype"
)

// SetACL deletes every existing ACE for id then bulk-inserts aces in
// order, stamping ace_order to preserve it. rsType records whether id
// is a file or a directory (t_acl.rs_type). It returns whether the
// stored ACL possibly changed: true whenever the delete removed any
// row or the insert added any.
func (d *Driver) SetACL(ctx context.Context, q db, id nsid.ID, rsType nstype.ResourceType, aces []nstype.ACE) (bool, error) {
	del := fmt.Sprintf(`DELETE FROM t_acl WHERE rs_id = %s`, d.ph(1))
	res, err := q.ExecContext(ctx, del, string(id))
	if err != nil {
		return false, d.translateErr("SetACL: deleting existing", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return false, d.translateErr("SetACL: rows affected", err)
	}

	ins := fmt.Sprintf(`INSERT INTO t_acl (rs_id, rs_type, ace_order, type, flags, access_msk, who, who_id) VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`,
		d.ph(1), d.ph(2), d.ph(3), d.ph(4), d.ph(5), d.ph(6), d.ph(7), d.ph(8))
	for i, ace := range aces {
		if _, err := q.ExecContext(ctx, ins, string(id), int32(rsType), i, ace.Type, ace.Flags, ace.Mask, int32(ace.Who), ace.WhoID); err != nil {
			return false, d.translateErr("SetACL: inserting ACE", err)
		}
	}

	return deleted > 0 || len(aces) > 0, nil
}

// GetACL returns id's ACEs in ace_order.
func (d *Driver) GetACL(ctx context.Context, q db, id nsid.ID) ([]nstype.ACE, error) {
	query := fmt.Sprintf(`SELECT type, flags, access_msk, who, who_id, ace_order FROM t_acl WHERE rs_id = %s ORDER BY ace_order`, d.ph(1))
	rows, err := q.QueryContext(ctx, query, string(id))
	if err != nil {
		return nil, d.translateErr("GetACL", err)
	}
	defer rows.Close()

	var out []nstype.ACE
	for rows.Next() {
		var ace nstype.ACE
		var who int32
		if err := rows.Scan(&ace.Type, &ace.Flags, &ace.Mask, &who, &ace.WhoID, &ace.Order); err != nil {
			return nil, d.translateErr("GetACL: scan", err)
		}
		ace.Who = nstype.WhoType(who)
		out = append(out, ace)
	}
	return out, rows.Err()
}
