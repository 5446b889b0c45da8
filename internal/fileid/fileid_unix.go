//go:build unix

package fileid

import (
	"os"

	"golang.org/x/sys/unix"
)

func fstat(f *os.File) (Identity, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return Identity{}, err
	}
	return fromStat(&st), nil
}

func stat(path string) (Identity, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return Identity{}, err
	}
	return fromStat(&st), nil
}

func fromStat(st *unix.Stat_t) Identity {
	return Identity{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}
}
