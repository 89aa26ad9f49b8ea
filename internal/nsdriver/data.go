package nsdriver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pnfsns/pnfsd/internal/nserrors"
	"github.com/pnfsns/pnfsd/internal/nsid"
	"github.com/pnfsns/pnfsd/internal/nstype"
)

// Read returns the full inline content stored for id at level. A
// missing row is reported as ([]byte(nil), nil), matching Stat's
// not-found convention; callers distinguish "no data yet" from an I/O
// problem by checking the returned error.
//
// There is no beginIndex/offset parameter: content is always read and
// written in full.
func (d *Driver) Read(ctx context.Context, q db, id nsid.ID, level nstype.Level) ([]byte, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("Read: invalid level %d", level)
	}
	table, col := dataTable(level)

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE ipnfsid = %s`, col, table, d.ph(1))
	var blob []byte
	err := q.QueryRowContext(ctx, query, string(id)).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Read: %w: %w", nserrors.ErrIOReadingBlob, d.translateErr("Read", err))
	}
	return blob, nil
}

// Write replaces the entire inline content stored for id at level,
// creating the backing row if one does not already exist, and for
// level 0 also updates t_inodes.isize to len(data).
func (d *Driver) Write(ctx context.Context, q db, id nsid.ID, level nstype.Level, data []byte) error {
	if !level.Valid() {
		return fmt.Errorf("Write: invalid level %d", level)
	}
	table, col := dataTable(level)

	if level == nstype.LevelZero {
		return d.writeLevelZero(ctx, q, id, table, col, data)
	}
	return d.writeLevelN(ctx, q, id, level, table, col, data)
}

func (d *Driver) writeLevelZero(ctx context.Context, q db, id nsid.ID, table, col string, data []byte) error {
	return d.upsertBlob(ctx, q, table, col, id, data, func() error {
		upd := fmt.Sprintf(`UPDATE t_inodes SET isize = %s, imtime = %s, ictime = %s WHERE ipnfsid = %s`,
			d.ph(1), d.ph(2), d.ph(3), d.ph(4))
		ts := d.clock.Now()
		_, err := q.ExecContext(ctx, upd, int64(len(data)), toUnix(ts), toUnix(ts), string(id))
		return d.translateErr("Write: updating isize", err)
	})
}

func (d *Driver) writeLevelN(ctx context.Context, q db, id nsid.ID, level nstype.Level, table, col string, data []byte) error {
	levelTableStat := levelTable(level)
	return d.upsertBlob(ctx, q, table, col, id, data, func() error {
		upd := fmt.Sprintf(`UPDATE %s SET isize = %s, imtime = %s, ictime = %s WHERE ipnfsid = %s`,
			levelTableStat, d.ph(1), d.ph(2), d.ph(3), d.ph(4))
		ts := d.clock.Now()
		_, err := q.ExecContext(ctx, upd, int64(len(data)), toUnix(ts), toUnix(ts), string(id))
		return d.translateErr("Write: updating level size", err)
	})
}

// upsertBlob inserts data into table if no row for id exists yet, or
// replaces it in place otherwise, then invokes touchSize to update the
// owning row's size/mtime/ctime bookkeeping.
func (d *Driver) upsertBlob(ctx context.Context, q db, table, col string, id nsid.ID, data []byte, touchSize func() error) error {
	exists := fmt.Sprintf(`SELECT 1 FROM %s WHERE ipnfsid = %s`, table, d.ph(1))
	var probe int
	err := q.QueryRowContext(ctx, exists, string(id)).Scan(&probe)
	switch {
	case err == sql.ErrNoRows:
		ins := fmt.Sprintf(`INSERT INTO %s (ipnfsid, %s) VALUES (%s, %s)`, table, col, d.ph(1), d.ph(2))
		if _, err := q.ExecContext(ctx, ins, string(id), data); err != nil {
			return d.translateErr("Write: insert", err)
		}
	case err != nil:
		return d.translateErr("Write: probing existing row", err)
	default:
		upd := fmt.Sprintf(`UPDATE %s SET %s = %s WHERE ipnfsid = %s`, table, col, d.ph(1), d.ph(2))
		if _, err := q.ExecContext(ctx, upd, data, string(id)); err != nil {
			return d.translateErr("Write: update", err)
		}
	}
	return touchSize()
}

func dataTable(level nstype.Level) (table, col string) {
	if level == nstype.LevelZero {
		return "t_inodes_data", "ifiledata"
	}
	return levelTable(level), "ifiledata"
}
