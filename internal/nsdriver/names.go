package nsdriver

import "github.com/pnfsns/pnfsd/internal/nserrors"

// isReservedName reports the entries every directory carries implicitly
// and that ordinary create/remove/move operations must reject.
func isReservedName(name string) bool {
	return name == "." || name == ".."
}

func validateName(name string) error {
	if name == "" || isReservedName(name) {
		return nserrors.ErrInvalidName
	}
	return nil
}
