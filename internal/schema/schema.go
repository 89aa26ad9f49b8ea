// Package schema holds the fixed relational schema of the namespace
// engine and an idempotent migration runner, dialect-aware the same
// way the driver itself is (see internal/nsdriver).
package schema

import (
	"context"
	"database/sql"
	"fmt"
)

// Dialect names, matching internal/dbpool's.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// levelTables returns the level numbers N (1..7) of the seven t_level_N
// tables.
func levelTables() []int {
	return []int{1, 2, 3, 4, 5, 6, 7}
}

// CreateSchema creates every table the namespace engine needs if it
// does not already exist, inside a single transaction. It is safe to
// call on every startup.
func CreateSchema(ctx context.Context, db *sql.DB, dialect string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("schema: begin: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statementsFor(dialect) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: executing %q: %w", firstLine(stmt), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("schema: commit: %w", err)
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

func statementsFor(dialect string) []string {
	id := idType(dialect)
	text := "TEXT"
	blob := blobType(dialect)
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS t_inodes (
			ipnfsid %s PRIMARY KEY,
			itype INTEGER NOT NULL,
			imode INTEGER NOT NULL,
			inlink INTEGER NOT NULL,
			iuid INTEGER NOT NULL,
			igid INTEGER NOT NULL,
			isize BIGINT NOT NULL,
			iio INTEGER NOT NULL,
			iatime BIGINT NOT NULL,
			ictime BIGINT NOT NULL,
			imtime BIGINT NOT NULL,
			icrtime BIGINT NOT NULL,
			igeneration BIGINT NOT NULL,
			iaccess_latency INTEGER,
			iretention_policy INTEGER
		)`, id),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS t_dirs (
			iparent %s NOT NULL,
			iname %s NOT NULL,
			ipnfsid %s NOT NULL,
			PRIMARY KEY (iparent, iname)
		)`, id, text, id),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS t_inodes_data (
			ipnfsid %s PRIMARY KEY,
			ifiledata %s NOT NULL
		)`, id, blob),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS t_tags_inodes (
			itagid %s PRIMARY KEY,
			imode INTEGER NOT NULL,
			inlink INTEGER NOT NULL,
			iuid INTEGER NOT NULL,
			igid INTEGER NOT NULL,
			isize BIGINT NOT NULL,
			iatime BIGINT NOT NULL,
			ictime BIGINT NOT NULL,
			imtime BIGINT NOT NULL,
			ivalue %s NOT NULL
		)`, id, blob),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS t_tags (
			ipnfsid %s NOT NULL,
			itagname %s NOT NULL,
			itagid %s NOT NULL,
			isorign INTEGER NOT NULL,
			PRIMARY KEY (ipnfsid, itagname),
			FOREIGN KEY (itagid) REFERENCES t_tags_inodes(itagid)
		)`, id, text, id),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS t_locationinfo (
			ipnfsid %s NOT NULL,
			itype INTEGER NOT NULL,
			ilocation %s NOT NULL,
			ipriority INTEGER NOT NULL,
			ictime BIGINT NOT NULL,
			iatime BIGINT NOT NULL,
			istate INTEGER NOT NULL,
			PRIMARY KEY (ipnfsid, itype, ilocation),
			FOREIGN KEY (ipnfsid) REFERENCES t_inodes(ipnfsid)
		)`, id, text),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS t_storageinfo (
			ipnfsid %s PRIMARY KEY,
			ihsmName %s NOT NULL,
			istorageGroup %s NOT NULL,
			istorageSubGroup %s NOT NULL,
			FOREIGN KEY (ipnfsid) REFERENCES t_inodes(ipnfsid)
		)`, id, text, text, text),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS t_access_latency (
			ipnfsid %s PRIMARY KEY,
			iaccessLatency INTEGER NOT NULL,
			FOREIGN KEY (ipnfsid) REFERENCES t_inodes(ipnfsid)
		)`, id),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS t_retention_policy (
			ipnfsid %s PRIMARY KEY,
			iretentionPolicy INTEGER NOT NULL,
			FOREIGN KEY (ipnfsid) REFERENCES t_inodes(ipnfsid)
		)`, id),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS t_inodes_checksum (
			ipnfsid %s NOT NULL,
			itype INTEGER NOT NULL,
			isum %s NOT NULL,
			PRIMARY KEY (ipnfsid, itype),
			FOREIGN KEY (ipnfsid) REFERENCES t_inodes(ipnfsid)
		)`, id, text),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS t_acl (
			rs_id %s NOT NULL,
			rs_type INTEGER NOT NULL,
			ace_order INTEGER NOT NULL,
			type INTEGER NOT NULL,
			flags INTEGER NOT NULL,
			access_msk INTEGER NOT NULL,
			who INTEGER NOT NULL,
			who_id INTEGER NOT NULL,
			PRIMARY KEY (rs_id, ace_order)
		)`, id),

		`CREATE INDEX IF NOT EXISTS idx_dirs_child ON t_dirs (ipnfsid)`,
		`CREATE INDEX IF NOT EXISTS idx_tags_itagid ON t_tags (itagid)`,
	}

	for _, n := range levelTables() {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS t_level_%d (
			ipnfsid %s PRIMARY KEY,
			imode INTEGER NOT NULL,
			isize BIGINT NOT NULL,
			iuid INTEGER NOT NULL,
			igid INTEGER NOT NULL,
			iatime BIGINT NOT NULL,
			ictime BIGINT NOT NULL,
			imtime BIGINT NOT NULL,
			ifiledata %s NOT NULL,
			FOREIGN KEY (ipnfsid) REFERENCES t_inodes(ipnfsid)
		)`, n, id, blob))
	}

	return stmts
}

// idType is the column type for the fixed-width 36-character inode and
// tag identifiers.
func idType(dialect string) string {
	if dialect == Postgres {
		return "VARCHAR(36)"
	}
	return "TEXT"
}


func blobType(dialect string) string {
	if dialect == Postgres {
		return "BYTEA"
	}
	return "BLOB"
}
