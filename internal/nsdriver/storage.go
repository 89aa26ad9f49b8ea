package nsdriver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pnfsns/pnfsd/internal/nserrors"
	"github.com/pnfsns/pnfsd/internal/nsid"
	"github.com/pnfsns/pnfsd/internal/nstype"
)

// SetStorageInfo writes id's HSM placement record. t_storageinfo is
// write-once: a second call for the same id fails with
// ErrDuplicateEntry rather than silently overwriting placement.
func (d *Driver) SetStorageInfo(ctx context.Context, q db, id nsid.ID, info nstype.StorageInfo) error {
	ins := fmt.Sprintf(`INSERT INTO t_storageinfo (ipnfsid, ihsmName, istorageGroup, istorageSubGroup) VALUES (%s, %s, %s, %s)`,
		d.ph(1), d.ph(2), d.ph(3), d.ph(4))
	if _, err := q.ExecContext(ctx, ins, string(id), info.HSMName, info.StorageGroup, info.StorageSubGroup); err != nil {
		if translated, ok := d.dialect.TranslateError(err); ok {
			return translated
		}
		return nserrors.ErrDuplicateEntry
	}
	return nil
}

// GetStorageInfo returns id's placement record, or nil if none exists.
func (d *Driver) GetStorageInfo(ctx context.Context, q db, id nsid.ID) (*nstype.StorageInfo, error) {
	query := fmt.Sprintf(`SELECT ihsmName, istorageGroup, istorageSubGroup FROM t_storageinfo WHERE ipnfsid = %s`, d.ph(1))
	var info nstype.StorageInfo
	err := q.QueryRowContext(ctx, query, string(id)).Scan(&info.HSMName, &info.StorageGroup, &info.StorageSubGroup)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, d.translateErr("GetStorageInfo", err)
	}
	return &info, nil
}

// SetAccessLatency upserts id's access-latency code.
func (d *Driver) SetAccessLatency(ctx context.Context, q db, id nsid.ID, latency int32) error {
	return d.upsertSingleColumn(ctx, q, "t_access_latency", "iaccessLatency", id, latency)
}

// GetAccessLatency returns id's access-latency code, or nil if unset.
func (d *Driver) GetAccessLatency(ctx context.Context, q db, id nsid.ID) (*int32, error) {
	return d.getSingleColumn(ctx, q, "t_access_latency", "iaccessLatency", id)
}

// SetRetentionPolicy upserts id's retention-policy code.
func (d *Driver) SetRetentionPolicy(ctx context.Context, q db, id nsid.ID, policy int32) error {
	return d.upsertSingleColumn(ctx, q, "t_retention_policy", "iretentionPolicy", id, policy)
}

// GetRetentionPolicy returns id's retention-policy code, or nil if unset.
func (d *Driver) GetRetentionPolicy(ctx context.Context, q db, id nsid.ID) (*int32, error) {
	return d.getSingleColumn(ctx, q, "t_retention_policy", "iretentionPolicy", id)
}

func (d *Driver) upsertSingleColumn(ctx context.Context, q db, table, col string, id nsid.ID, value int32) error {
	probe := fmt.Sprintf(`SELECT 1 FROM %s WHERE ipnfsid = %s`, table, d.ph(1))
	var n int
	err := q.QueryRowContext(ctx, probe, string(id)).Scan(&n)
	switch {
	case err == sql.ErrNoRows:
		ins := fmt.Sprintf(`INSERT INTO %s (ipnfsid, %s) VALUES (%s, %s)`, table, col, d.ph(1), d.ph(2))
		_, err := q.ExecContext(ctx, ins, string(id), value)
		return d.translateErr("upsertSingleColumn: insert", err)
	case err != nil:
		return d.translateErr("upsertSingleColumn: probe", err)
	default:
		upd := fmt.Sprintf(`UPDATE %s SET %s = %s WHERE ipnfsid = %s`, table, col, d.ph(1), d.ph(2))
		_, err := q.ExecContext(ctx, upd, value, string(id))
		return d.translateErr("upsertSingleColumn: update", err)
	}
}

func (d *Driver) getSingleColumn(ctx context.Context, q db, table, col string, id nsid.ID) (*int32, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE ipnfsid = %s`, col, table, d.ph(1))
	var v int32
	err := q.QueryRowContext(ctx, query, string(id)).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, d.translateErr("getSingleColumn", err)
	}
	return &v, nil
}
