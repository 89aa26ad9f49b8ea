// Package routing implements the in-memory, thread-safe cell-messaging
// routing table: a registry mapping a destination specifier to zero or
// more route entries of six kinds.
package routing

import (
	"errors"
	"fmt"
)

// Kind identifies which of the six route flavors a Route is.
type Kind int

const (
	Exact Kind = iota
	Alias
	WellKnown
	Domain
	Topic
	Default
	Dumpster
)

func (k Kind) String() string {
	switch k {
	case Exact:
		return "EXACT"
	case Alias:
		return "ALIAS"
	case WellKnown:
		return "WELLKNOWN"
	case Domain:
		return "DOMAIN"
	case Topic:
		return "TOPIC"
	case Default:
		return "DEFAULT"
	case Dumpster:
		return "DUMPSTER"
	default:
		return "UNKNOWN"
	}
}

// LocalDomain is the literal domain string that makes an address match
// WELLKNOWN and TOPIC routes.
const LocalDomain = "local"

// Address is a cell message destination: cellName@domainName. Domain
// may be empty for bare cell-name lookups.
type Address struct {
	CellName   string
	DomainName string
}

func (a Address) String() string {
	if a.DomainName == "" {
		return a.CellName
	}
	return fmt.Sprintf("%s@%s", a.CellName, a.DomainName)
}

// IsLocal reports whether a's domain is the well-known "local" domain.
func (a Address) IsLocal() bool {
	return a.DomainName == LocalDomain
}

// Route is one routing rule: for EXACT/ALIAS/WELLKNOWN/DOMAIN/TOPIC it
// binds a key (derived from Key) to a Target gateway; DEFAULT and
// DUMPSTER are singletons whose Key is ignored.
type Route struct {
	Kind   Kind
	Key    Address
	Target string
}

// key returns the map key this route is stored under for its Kind.
func (r Route) key() string {
	switch r.Kind {
	case Exact, Alias:
		return r.Key.String()
	case WellKnown, Topic:
		return r.Key.CellName
	case Domain:
		return r.Key.DomainName
	default:
		return ""
	}
}

// ErrDuplicateRoute is returned by Add when an equivalent route (same
// kind and key, or the same singleton) already exists.
var ErrDuplicateRoute = errors.New("routing: duplicate route")

// ErrRouteNotFound is returned by Delete when no matching route exists.
var ErrRouteNotFound = errors.New("routing: route not found")
