package nstype

import "time"

// TagID identifies a row in t_tags_inodes: the shared, copy-on-write
// value behind one or more directories' t_tags links.
type TagID string

// TagLink is one row of t_tags: the (directory, name) -> tag-id mapping
// plus whether this directory is the tag's origin.
type TagLink struct {
	Name     string
	TagID    TagID
	IsOrigin bool
}

// TagValue is the payload of a t_tags_inodes row.
type TagValue struct {
	Mode  uint32
	Nlink uint32
	Uid   uint32
	Gid   uint32
	Size  int64
	Atime time.Time
	Ctime time.Time
	Mtime time.Time
	Value []byte
}
