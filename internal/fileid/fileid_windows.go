//go:build windows

package fileid

import (
	"os"

	"golang.org/x/sys/windows"
)

func fstat(f *os.File) (Identity, error) {
	return byHandle(windows.Handle(f.Fd()))
}

func stat(path string) (Identity, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return Identity{}, err
	}
	h, err := windows.CreateFile(p,
		windows.FILE_READ_ATTRIBUTES,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS,
		0)
	if err != nil {
		return Identity{}, err
	}
	defer windows.CloseHandle(h)
	return byHandle(h)
}

// byHandle keys the file by volume serial number and file index, which stay
// the same across renames
func byHandle(h windows.Handle) (Identity, error) {
	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &info); err != nil {
		return Identity{}, err
	}
	return Identity{
		Dev: uint64(info.VolumeSerialNumber),
		Ino: uint64(info.FileIndexHigh)<<32 | uint64(info.FileIndexLow),
	}, nil
}
