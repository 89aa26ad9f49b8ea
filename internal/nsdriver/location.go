package nsdriver

import (
	"context"
	"fmt"

	"github.com/pnfsns/pnfsd/internal/nsid"
	"github.com/pnfsns/pnfsd/internal/nstype"
)

// AddInodeLocation inserts a replica descriptor for id with
// nstype.DefaultPriority and state ONLINE.
func (d *Driver) AddInodeLocation(ctx context.Context, q db, id nsid.ID, locType int32, uri string) error {
	now := d.clock.Now()
	ins := fmt.Sprintf(`INSERT INTO t_locationinfo (ipnfsid, itype, ilocation, ipriority, ictime, iatime, istate) VALUES (%s, %s, %s, %s, %s, %s, %s)`,
		d.ph(1), d.ph(2), d.ph(3), d.ph(4), d.ph(5), d.ph(6), d.ph(7))
	_, err := q.ExecContext(ctx, ins, string(id), locType, uri, nstype.DefaultPriority, toUnix(now), toUnix(now), int32(nstype.StateOnline))
	return d.translateErr("AddInodeLocation", err)
}

// GetInodeLocations returns id's ONLINE replica descriptors, sorted by
// descending priority. When locType is non-nil, results are further
// restricted to that type.
func (d *Driver) GetInodeLocations(ctx context.Context, q db, id nsid.ID, locType *int32) ([]nstype.Location, error) {
	query := fmt.Sprintf(`SELECT itype, ilocation, ipriority, ictime, iatime, istate FROM t_locationinfo WHERE ipnfsid = %s AND istate = %s`,
		d.ph(1), d.ph(2))
	args := []any{string(id), int32(nstype.StateOnline)}
	if locType != nil {
		query += fmt.Sprintf(` AND itype = %s`, d.ph(3))
		args = append(args, *locType)
	}
	query += ` ORDER BY ipriority DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, d.translateErr("GetInodeLocations", err)
	}
	defer rows.Close()

	var out []nstype.Location
	for rows.Next() {
		var (
			loc          nstype.Location
			ctime, atime int64
			state        int32
		)
		if err := rows.Scan(&loc.Type, &loc.URI, &loc.Priority, &ctime, &atime, &state); err != nil {
			return nil, d.translateErr("GetInodeLocations: scan", err)
		}
		loc.Ctime, loc.Atime = fromUnix(ctime), fromUnix(atime)
		loc.State = nstype.LocationState(state)
		out = append(out, loc)
	}
	return out, rows.Err()
}

// DeleteInodeLocation removes the matching (id, type, uri) descriptor.
func (d *Driver) DeleteInodeLocation(ctx context.Context, q db, id nsid.ID, locType int32, uri string) error {
	del := fmt.Sprintf(`DELETE FROM t_locationinfo WHERE ipnfsid = %s AND itype = %s AND ilocation = %s`,
		d.ph(1), d.ph(2), d.ph(3))
	_, err := q.ExecContext(ctx, del, string(id), locType, uri)
	return d.translateErr("DeleteInodeLocation", err)
}

// DeleteInodeLocationsByURI removes every descriptor for id at uri,
// regardless of type.
func (d *Driver) DeleteInodeLocationsByURI(ctx context.Context, q db, id nsid.ID, uri string) error {
	del := fmt.Sprintf(`DELETE FROM t_locationinfo WHERE ipnfsid = %s AND ilocation = %s`, d.ph(1), d.ph(2))
	_, err := q.ExecContext(ctx, del, string(id), uri)
	return d.translateErr("DeleteInodeLocationsByURI", err)
}
