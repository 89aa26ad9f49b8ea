package nsdriver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pnfsns/pnfsd/internal/nserrors"
)

// foreignKeyViolationSQLState is the Postgres SQLSTATE for a
// foreign-key violation.
const foreignKeyViolationSQLState = "23503"

// Dialect is an explicit capability record in place of dynamic driver
// loading: a name, a placeholder renderer, and a translator from a
// driver-specific error into the engine's typed errors. ResolveDialect
// selects one by name, falling back to Default on an unrecognized name.
type Dialect struct {
	Name string

	// Placeholder renders the n-th (1-based) bound-parameter marker for
	// this dialect's driver.
	Placeholder func(n int) string

	// TranslateError maps a driver-specific error to a typed engine
	// error where one applies (currently: foreign-key violations). It
	// returns (nil, false) when err is not a case it recognizes, in
	// which case the caller propagates err unchanged.
	TranslateError func(err error) (error, bool)
}

func dollarPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func questionPlaceholder(int) string {
	return "?"
}

func postgresTranslateError(err error) (error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == foreignKeyViolationSQLState {
			return &nserrors.ForeignKeyViolation{Constraint: pqErr.Constraint, Cause: err}, true
		}
	}
	return nil, false
}

// sqliteTranslateError recognizes the message shape mattn/go-sqlite3
// uses for foreign-key violations (it does not expose a structured
// SQLSTATE the way lib/pq does, so this driver's "default" dialect
// matches on the constraint-violation text sqlite emits when
// PRAGMA foreign_keys = ON).
func sqliteTranslateError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}
	msg := err.Error()
	if strings.Contains(msg, "FOREIGN KEY constraint failed") {
		return &nserrors.ForeignKeyViolation{Cause: err}, true
	}
	return nil, false
}

// Postgres is the read-committed-by-default dialect and the primary
// deployment target.
var Postgres = Dialect{
	Name:            "postgres",
	Placeholder:     dollarPlaceholder,
	TranslateError:  postgresTranslateError,
}

// Default is used whenever a dialect name fails to resolve, and is also
// the dialect exercised by this repo's own sqlmock-based driver tests.
var Default = Dialect{
	Name:            "sqlite",
	Placeholder:     questionPlaceholder,
	TranslateError:  sqliteTranslateError,
}

// ResolveDialect returns the Dialect named name, or Default if name is
// not recognized.
func ResolveDialect(name string) Dialect {
	switch name {
	case "postgres":
		return Postgres
	case "sqlite", "":
		return Default
	default:
		return Default
	}
}
