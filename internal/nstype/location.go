package nstype

import "time"

// LocationState is the lifecycle state of a replica descriptor. Only
// StateOnline rows are ever returned by driver queries.
type LocationState int32

const (
	StateOnline LocationState = iota
	StateOffline
	StateNearline
	StateUnavailable
)

// DefaultPriority is the priority assigned by addInodeLocation when the
// caller does not specify one.
const DefaultPriority = 10

// Location is a single replica descriptor: where a pool believes a copy
// of an inode's content lives.
type Location struct {
	Type     int32
	URI      string
	Priority int32
	Ctime    time.Time
	Atime    time.Time
	State    LocationState
}
