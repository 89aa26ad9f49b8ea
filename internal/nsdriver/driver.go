// Package nsdriver is the SQL driver: the sole mutator of the namespace
// database. It turns each public operation into an ordered sequence of
// bound-parameter SQL statements against a caller-supplied
// dbpool.DBTX, so the caller's outer transaction boundary is explicit
// in every call, and enforces the namespace's structural invariants.
package nsdriver

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pnfsns/pnfsd/internal/clock"
	"github.com/pnfsns/pnfsd/internal/dbpool"
	"github.com/pnfsns/pnfsd/internal/nserrors"
	"github.com/pnfsns/pnfsd/internal/nsmetrics"
)

// SymlinkHopLimit bounds path2inode's symlink recursion.
const SymlinkHopLimit = 40

// Driver is a stateless service over a connection pool. It carries no
// per-call state; every exported method takes the DBTX to run against
// as its second argument (after ctx).
type Driver struct {
	dialect          Dialect
	clock            clock.Clock
	defaultIOEnabled bool
	metrics          *nsmetrics.Metrics
}

// Option configures a Driver at construction time.
type Option func(*Driver)

// WithClock overrides the time source used to stamp rows. Defaults to
// clock.Real{}.
func WithClock(c clock.Clock) Option {
	return func(d *Driver) { d.clock = c }
}

// WithDefaultIOEnabled sets the process-wide "default I/O enabled on
// newly created inodes" option.
func WithDefaultIOEnabled(v bool) Option {
	return func(d *Driver) { d.defaultIOEnabled = v }
}

// WithMetrics attaches a Prometheus instrumentation bundle; operations
// report their latency and error kind to it when set. Metrics stay nil
// (and instrumentation becomes a no-op) unless a caller opts in.
func WithMetrics(m *nsmetrics.Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// New constructs a Driver for the named dialect (resolved via
// ResolveDialect, so an unrecognized name silently falls back to
// Default).
func New(dialectName string, opts ...Option) *Driver {
	d := &Driver{
		dialect: ResolveDialect(dialectName),
		clock:   clock.Real{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ph renders the n-th (1-based) bound-parameter placeholder for the
// driver's dialect.
func (d *Driver) ph(n int) string {
	return d.dialect.Placeholder(n)
}

// newTagID allocates a fresh tag-inode identifier.
func newTagID() string {
	return uuid.NewString()
}

// translateErr maps err through the dialect's error translator,
// returning the typed engine error when one applies and err unchanged
// otherwise: every other database error propagates as-is to the
// caller.
func (d *Driver) translateErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if translated, ok := d.dialect.TranslateError(err); ok {
		return translated
	}
	return fmt.Errorf("%s: %w", op, err)
}

// db is the subset of dbpool.DBTX this package depends on, re-exported
// under a local name so call sites don't need to import dbpool just for
// the interface.
type db = dbpool.DBTX

// observe reports op's latency (measured from start) and, on error,
// its classified kind to d's metrics bundle. A no-op when the Driver
// was not constructed with WithMetrics.
func (d *Driver) observe(op string, start time.Time, err error) {
	if d.metrics == nil {
		return
	}
	d.metrics.ObserveOperation(op, start, err, errorKind(err))
	if nserrors.IsForeignKeyViolation(err) {
		d.metrics.ForeignKeyViolations.Inc()
	}
}

func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case nserrors.IsInvariantViolation(err):
		return "invariant_violation"
	case nserrors.IsForeignKeyViolation(err):
		return "foreign_key_violation"
	default:
		return "other"
	}
}
