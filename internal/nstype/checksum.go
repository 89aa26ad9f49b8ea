package nstype

// Checksum is one (algorithm, value) pair for an inode. An inode may
// carry several, one per algorithm.
type Checksum struct {
	Algorithm int32
	Value     string // hex-encoded
}
