package document

import (
	"fmt"
	"strings"

	"github.com/imrenagi/docstore/storage"
)

const maxFilenameLength = 255

// ValidateFilename checks that name can be used both as a document id and
// as a single path segment in the storage directory. reserved lists names
// the service keeps for itself, such as the metadata sidecar.
func ValidateFilename(name string, reserved ...string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidFilename)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator or NUL", ErrInvalidFilename, name)
	case len(name) > maxFilenameLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidFilename, maxFilenameLength)
	case strings.HasPrefix(name, storage.TempPrefix):
		return fmt.Errorf("%w: %q uses a reserved prefix", ErrInvalidFilename, name)
	}
	for _, r := range reserved {
		if name == r {
			return fmt.Errorf("%w: %q is reserved", ErrInvalidFilename, name)
		}
	}
	return nil
}
