//go:build linux

package value

import (
	"io/fs"
	"syscall"
)

// StatFromFileInfo projects an os.FileInfo backed by a POSIX syscall.Stat_t
// into the wire Stat shape (spec.md §6's stat table family).
func StatFromFileInfo(fi fs.FileInfo) Stat {
	s := Stat{
		Size:  fi.Size(),
		Mtime: fi.ModTime().UnixNano(),
	}
	mode := fi.Mode()
	s.IsFile = mode.IsRegular()
	s.IsDirectory = mode.IsDir()
	s.IsSymbolicLink = mode&fs.ModeSymlink != 0
	s.IsFIFO = mode&fs.ModeNamedPipe != 0
	s.IsSocket = mode&fs.ModeSocket != 0
	s.IsCharacterDevice = mode&fs.ModeCharDevice != 0
	s.IsBlockDevice = mode&fs.ModeDevice != 0 && mode&fs.ModeCharDevice == 0

	if sys, ok := fi.Sys().(*syscall.Stat_t); ok {
		s.Dev = uint64(sys.Dev)
		s.Ino = uint64(sys.Ino)
		s.Mode = uint32(sys.Mode)
		s.Nlink = uint64(sys.Nlink)
		s.UID = sys.Uid
		s.GID = sys.Gid
		s.Rdev = uint64(sys.Rdev)
		s.Atime = sys.Atim.Sec*1e9 + sys.Atim.Nsec
		s.Ctime = sys.Ctim.Sec*1e9 + sys.Ctim.Nsec
		s.Blksize = int64(sys.Blksize)
		s.Blocks = int64(sys.Blocks)
	}
	return s
}
