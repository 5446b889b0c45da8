//go:build !unix && !windows

package fileid

import "os"

// No stable file index is available here. The identity stays unknown, so
// rotation falls back to truncation detection on the base path.
func fstat(f *os.File) (Identity, error) {
	if _, err := f.Stat(); err != nil {
		return Identity{}, err
	}
	return Identity{}, nil
}

func stat(path string) (Identity, error) {
	if _, err := os.Stat(path); err != nil {
		return Identity{}, err
	}
	return Identity{}, nil
}
