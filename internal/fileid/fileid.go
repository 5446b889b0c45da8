// Package fileid identifies files on disk independently of their path.
package fileid

import (
	"fmt"
	"os"
)

// Identity is an opaque, comparable identifier of a physical file.
// Two handles refer to the same file iff their identities are equal.
// The zero value means the identity is unknown.
type Identity struct {
	Dev uint64
	Ino uint64
}

// IsZero reports whether the identity is unknown
func (i Identity) IsZero() bool {
	return i == Identity{}
}

// String returns a human-readable form for logs
func (i Identity) String() string {
	return fmt.Sprintf("%d:%d", i.Dev, i.Ino)
}

// Of returns the identity of an open file
func Of(f *os.File) (Identity, error) {
	id, err := fstat(f)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to fstat %s: %w", f.Name(), err)
	}
	return id, nil
}

// Stat returns the identity of the file currently at path
func Stat(path string) (Identity, error) {
	id, err := stat(path)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return id, nil
}
