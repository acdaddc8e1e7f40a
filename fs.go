package uvbridge

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/behrlich/uvbridge/internal/value"
	"github.com/behrlich/uvbridge/internal/workvm"
)

func unixTime(sec int64) time.Time { return time.Unix(sec, 0) }

// FS groups the filesystem operations from spec.md §4.8. Every method has
// two forms: called with cb == nil it runs synchronously on the calling
// goroutine and returns the result directly; called with cb != nil it is
// submitted to the Context's thread pool and the result is delivered
// through cb on the loop thread, matching spec.md's "thin front for a
// native async request" framing without requiring a literal uv_fs_t.
type FS struct {
	ctx *Context
}

// NewFS returns the FS operation set bound to ctx's thread pool.
func NewFS(ctx *Context) *FS { return &FS{ctx: ctx} }

// run executes fn synchronously if cb is nil, otherwise submits it to the
// thread pool and delivers the result to cb on the loop (spec.md §4.8).
func (f *FS) run(fn func() (any, error), cb func(result any, err error)) (any, error) {
	if cb == nil {
		return fn()
	}
	err := f.ctx.pool.Submit(workvm.Item{
		Fn: func(args []any) ([]any, error) {
			v, err := fn()
			return []any{v}, err
		},
		After: func(results []any, err error) {
			if err != nil {
				cb(nil, NewWorkerError(err))
				return
			}
			cb(results[0], nil)
		},
		Post: f.ctx.loop.PostEvent,
	})
	if err != nil {
		cb(nil, err)
	}
	return nil, nil
}

// Open opens path with the given flag/perm, returning the new fd.
func (f *FS) Open(path string, flag OpenFlag, perm os.FileMode, cb func(result any, err error)) (int, error) {
	osFlag, err := fsOpenFlag(flag)
	if err != nil {
		return 0, err
	}
	v, err := f.run(func() (any, error) {
		file, err := os.OpenFile(path, osFlag, perm)
		if err != nil {
			return nil, WrapSysError("open", err)
		}
		return int(file.Fd()), nil
	}, cb)
	if cb != nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func fsOpenFlag(flag OpenFlag) (int, error) {
	switch flag {
	case OpenRead:
		return os.O_RDONLY, nil
	case OpenReadWrite:
		return os.O_RDWR, nil
	case OpenWriteTruncate:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, nil
	case OpenWriteRead:
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, nil
	case OpenAppend:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, nil
	case OpenAppendRead:
		return os.O_RDWR | os.O_CREATE | os.O_APPEND, nil
	default:
		return 0, NewArgError(2, "open flag", "unknown open flag")
	}
}

// Close closes fd.
func (f *FS) Close(fd int, cb func(result any, err error)) error {
	_, err := f.run(func() (any, error) {
		return nil, os.NewFile(uintptr(fd), "").Close()
	}, cb)
	return err
}

// Read reads into buf at offset off (off < 0 means "current position").
func (f *FS) Read(fd int, buf []byte, off int64, cb func(result any, err error)) (int, error) {
	v, err := f.run(func() (any, error) {
		file := os.NewFile(uintptr(fd), "")
		var n int
		var rerr error
		if off < 0 {
			n, rerr = file.Read(buf)
		} else {
			n, rerr = file.ReadAt(buf, off)
		}
		if rerr != nil && rerr != io.EOF {
			return nil, WrapSysError("read", rerr)
		}
		return n, nil
	}, cb)
	if cb != nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Write writes buf to fd at offset off.
func (f *FS) Write(fd int, buf []byte, off int64, cb func(result any, err error)) (int, error) {
	v, err := f.run(func() (any, error) {
		file := os.NewFile(uintptr(fd), "")
		var n int
		var werr error
		if off < 0 {
			n, werr = file.Write(buf)
		} else {
			n, werr = file.WriteAt(buf, off)
		}
		if werr != nil {
			return nil, WrapSysError("write", werr)
		}
		return n, nil
	}, cb)
	if cb != nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Stat projects os.Stat into spec.md §4.8/§6's stat table.
func (f *FS) Stat(path string, cb func(result any, err error)) (value.Stat, error) {
	return f.statLike(func() (os.FileInfo, error) { return os.Stat(path) }, cb)
}

// Lstat is like Stat but does not follow symlinks.
func (f *FS) Lstat(path string, cb func(result any, err error)) (value.Stat, error) {
	return f.statLike(func() (os.FileInfo, error) { return os.Lstat(path) }, cb)
}

// Fstat stats an already-open fd.
func (f *FS) Fstat(fd int, cb func(result any, err error)) (value.Stat, error) {
	return f.statLike(func() (os.FileInfo, error) { return os.NewFile(uintptr(fd), "").Stat() }, cb)
}

func (f *FS) statLike(statFn func() (os.FileInfo, error), cb func(result any, err error)) (value.Stat, error) {
	v, err := f.run(func() (any, error) {
		fi, serr := statFn()
		if serr != nil {
			return nil, WrapSysError("stat", serr)
		}
		return value.StatFromFileInfo(fi), nil
	}, cb)
	if cb != nil {
		return value.Stat{}, nil
	}
	if err != nil {
		return value.Stat{}, err
	}
	return v.(value.Stat), nil
}

// Unlink, Mkdir, Rmdir, Rename are mutating operations that push nothing
// on success (spec.md §4.8's result projection).
func (f *FS) Unlink(path string, cb func(result any, err error)) error {
	_, err := f.run(func() (any, error) { return nil, os.Remove(path) }, cb)
	return err
}

func (f *FS) Mkdir(path string, perm os.FileMode, cb func(result any, err error)) error {
	_, err := f.run(func() (any, error) { return nil, os.Mkdir(path, perm) }, cb)
	return err
}

func (f *FS) Rmdir(path string, cb func(result any, err error)) error {
	_, err := f.run(func() (any, error) { return nil, os.Remove(path) }, cb)
	return err
}

func (f *FS) Rename(oldpath, newpath string, cb func(result any, err error)) error {
	_, err := f.run(func() (any, error) { return nil, os.Rename(oldpath, newpath) }, cb)
	return err
}

// Readdir pushes an array of entry names (spec.md §4.8).
func (f *FS) Readdir(path string, cb func(result any, err error)) ([]string, error) {
	v, err := f.run(func() (any, error) {
		entries, derr := os.ReadDir(path)
		if derr != nil {
			return nil, WrapSysError("readdir", derr)
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		return names, nil
	}, cb)
	if cb != nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Readlink pushes the link target string.
func (f *FS) Readlink(path string, cb func(result any, err error)) (string, error) {
	v, err := f.run(func() (any, error) {
		target, lerr := os.Readlink(path)
		if lerr != nil {
			return nil, WrapSysError("readlink", lerr)
		}
		return target, nil
	}, cb)
	if cb != nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (f *FS) Symlink(target, path string, cb func(result any, err error)) error {
	_, err := f.run(func() (any, error) { return nil, os.Symlink(target, path) }, cb)
	return err
}

func (f *FS) Link(oldpath, newpath string, cb func(result any, err error)) error {
	_, err := f.run(func() (any, error) { return nil, os.Link(oldpath, newpath) }, cb)
	return err
}

func (f *FS) Chmod(path string, mode os.FileMode, cb func(result any, err error)) error {
	_, err := f.run(func() (any, error) { return nil, os.Chmod(path, mode) }, cb)
	return err
}

func (f *FS) Fsync(fd int, cb func(result any, err error)) error {
	_, err := f.run(func() (any, error) { return nil, os.NewFile(uintptr(fd), "").Sync() }, cb)
	return err
}

func (f *FS) Ftruncate(fd int, size int64, cb func(result any, err error)) error {
	_, err := f.run(func() (any, error) { return nil, os.NewFile(uintptr(fd), "").Truncate(size) }, cb)
	return err
}

// Fdatasync is Fsync without metadata ordering guarantees; Go's os package
// exposes only File.Sync, so both map to the same syscall here.
func (f *FS) Fdatasync(fd int, cb func(result any, err error)) error { return f.Fsync(fd, cb) }

// Sendfile copies length bytes from inFd starting at off into outFd,
// pushing the number of bytes actually transferred (spec.md §4.8).
func (f *FS) Sendfile(outFd, inFd int, off int64, length int64, cb func(result any, err error)) (int64, error) {
	v, err := f.run(func() (any, error) {
		in := os.NewFile(uintptr(inFd), "")
		out := os.NewFile(uintptr(outFd), "")
		if off >= 0 {
			if _, serr := in.Seek(off, io.SeekStart); serr != nil {
				return nil, WrapSysError("sendfile", serr)
			}
		}
		n, cerr := io.Copy(out, io.LimitReader(in, length))
		if cerr != nil {
			return nil, WrapSysError("sendfile", cerr)
		}
		return n, nil
	}, cb)
	if cb != nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (f *FS) Chown(path string, uid, gid int, cb func(result any, err error)) error {
	_, err := f.run(func() (any, error) { return nil, os.Chown(path, uid, gid) }, cb)
	return err
}

func (f *FS) Fchown(fd int, uid, gid int, cb func(result any, err error)) error {
	_, err := f.run(func() (any, error) { return nil, os.NewFile(uintptr(fd), "").Chown(uid, gid) }, cb)
	return err
}

func (f *FS) Fchmod(fd int, mode os.FileMode, cb func(result any, err error)) error {
	_, err := f.run(func() (any, error) { return nil, os.NewFile(uintptr(fd), "").Chmod(mode) }, cb)
	return err
}

func (f *FS) Utime(path string, atime, mtime int64, cb func(result any, err error)) error {
	_, err := f.run(func() (any, error) {
		return nil, os.Chtimes(path, unixTime(atime), unixTime(mtime))
	}, cb)
	return err
}

// Futime is Utime against an already-open fd rather than a path (spec.md
// §4.8). Go has no fd-relative utimensat, so the fd is resolved back to a
// path through /proc/self/fd, matching this package's existing Linux-only
// assumptions (value.StatFromFileInfo's non-Linux stub).
func (f *FS) Futime(fd int, atime, mtime int64, cb func(result any, err error)) error {
	_, err := f.run(func() (any, error) {
		path, lerr := os.Readlink(fmt.Sprintf("/proc/self/fd/%d", fd))
		if lerr != nil {
			return nil, WrapSysError("futime", lerr)
		}
		return nil, os.Chtimes(path, unixTime(atime), unixTime(mtime))
	}, cb)
	return err
}
