package nstype

import "github.com/pnfsns/pnfsd/internal/nsid"

// DirEntry is one directory-stream element: a child name paired with
// its stat, as yielded by newDirectoryStream. "." and ".." are never
// produced here.
type DirEntry struct {
	Name  string
	Child nsid.ID
	Stat  Stat
}

// StorageInfo is the write-once HSM placement record of t_storageinfo.
type StorageInfo struct {
	HSMName         string
	StorageGroup    string
	StorageSubGroup string
}
