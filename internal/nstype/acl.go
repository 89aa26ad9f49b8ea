package nstype

// ResourceType distinguishes whether the inode an ACL is attached to is
// a file or a directory (rs_type column of t_acl).
type ResourceType int32

const (
	ResourceFile ResourceType = 0
	ResourceDir  ResourceType = 1
)

// WhoType identifies the subject of an access-control entry: a specific
// user or group ID, or one of the well-known classes.
type WhoType int32

const (
	WhoUser WhoType = iota
	WhoGroup
	WhoOwner
	WhoGroupObj
	WhoOther
	WhoEveryone
)

// ACE is a single ordered access-control entry. Order is preserved
// across writes and reads via Order, which the driver fills from
// ace_order.
type ACE struct {
	Type  int32 // ALLOW / DENY, opaque to the driver
	Flags int32 // inheritance flags, opaque to the driver
	Mask  int32 // access mask bits, opaque to the driver
	Who   WhoType
	WhoID int32 // uid/gid when Who is WhoUser/WhoGroup, else unused
	Order int32
}
