package uvbridge

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/behrlich/uvbridge/internal/value"
)

func timeAfter(ms int64) <-chan time.Time { return time.After(time.Duration(ms) * time.Millisecond) }

// FSEventOptions mirrors spec.md §4.8's fs_event_start option bag.
type FSEventOptions struct {
	WatchEntry bool
	Stat       bool
	Recursive  bool
}

// FSEvent is the fs_event watcher handle from spec.md §4.8, grounded on
// fsnotify for the underlying OS notification mechanism (inotify/kqueue/
// ReadDirectoryChangesW are all out of this bridge's scope per spec.md
// §1; fsnotify is the portable front end for it).
type FSEvent struct {
	Handle

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	cb      func(err error, filename string, events string)
}

// NewFSEvent constructs an inert FSEvent handle.
func NewFSEvent(ctx *Context) *FSEvent {
	h := &FSEvent{Handle: newHandle(ctx, KindFSEvent)}
	ctx.registerHandle(&h.Handle)
	return h
}

// Start begins watching path (spec.md §4.8's fs_event_start()).
func (f *FSEvent) Start(path string, opts FSEventOptions, cb func(err error, filename string, events string)) error {
	if f.IsClosing() {
		return NewStateError("fs_event_start", "handle is closing")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapSysError("fs_event_start", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return WrapSysError("fs_event_start", err)
	}
	if opts.Recursive {
		// fsnotify watches are non-recursive, so every subdirectory present
		// at start time gets its own watch; directories created later are
		// not added.
		walkErr := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && p != path {
				return w.Add(p)
			}
			return nil
		})
		if walkErr != nil {
			w.Close()
			return WrapSysError("fs_event_start", walkErr)
		}
	}

	f.watcher = w
	f.cb = cb
	f.stopCh = make(chan struct{})
	f.markActive()

	go f.loop()
	return nil
}

func (f *FSEvent) loop() {
	for {
		select {
		case <-f.stopCh:
			return
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			events := fsEventString(ev.Op)
			f.ctx.loop.PostEvent(func() {
				f.ctx.dispatch(func() { f.cb(nil, ev.Name, events) })
			})
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.ctx.loop.PostEvent(func() {
				f.ctx.dispatch(func() { f.cb(WrapSysError("fs_event", err), "", "") })
			})
		}
	}
}

func fsEventString(op fsnotify.Op) string {
	s := ""
	if op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) != 0 {
		s += "change"
	}
	if op&fsnotify.Rename != 0 {
		if s != "" {
			s += ","
		}
		s += "rename"
	}
	return s
}

// Stop stops watching and releases the fsnotify watcher.
func (f *FSEvent) Stop() {
	if f.stopCh == nil {
		return
	}
	close(f.stopCh)
	f.stopCh = nil
	if f.watcher != nil {
		f.watcher.Close()
	}
	f.markInactive()
}

func (f *FSEvent) Close(cb func()) error {
	if err := f.beginClose(cb); err != nil {
		return err
	}
	f.Stop()
	f.ctx.unregisterHandle(&f.Handle)
	f.finishClose()
	return nil
}

// FSPoll is the polling-based watcher from spec.md §4.8, used for
// filesystems where inotify-style events are unavailable (e.g. NFS).
type FSPoll struct {
	Handle

	path     string
	interval intervalMS
	stopCh   chan struct{}
	cb       func(err error, prev value.Stat, curr value.Stat)
	last     value.Stat
}

type intervalMS = int64

func NewFSPoll(ctx *Context) *FSPoll {
	h := &FSPoll{Handle: newHandle(ctx, KindFSPoll)}
	ctx.registerHandle(&h.Handle)
	return h
}

// Start begins polling path every intervalMs (spec.md §4.8's
// fs_poll_start()).
func (f *FSPoll) Start(path string, interval intervalMS, cb func(err error, prev value.Stat, curr value.Stat)) error {
	if f.IsClosing() {
		return NewStateError("fs_poll_start", "handle is closing")
	}
	f.path = path
	f.interval = interval
	f.cb = cb
	f.stopCh = make(chan struct{})
	f.markActive()
	go f.loop()
	return nil
}

func (f *FSPoll) loop() {
	fs := NewFS(f.ctx)
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}
		curr, err := fs.Stat(f.path, nil)
		prev := f.last
		if err == nil {
			f.last = curr
		}
		f.ctx.loop.PostEvent(func() {
			f.ctx.dispatch(func() { f.cb(err, prev, curr) })
		})
		select {
		case <-f.stopCh:
			return
		case <-timeAfter(f.interval):
		}
	}
}

func (f *FSPoll) Stop() {
	if f.stopCh == nil {
		return
	}
	close(f.stopCh)
	f.stopCh = nil
	f.markInactive()
}

func (f *FSPoll) Close(cb func()) error {
	if err := f.beginClose(cb); err != nil {
		return err
	}
	f.Stop()
	f.ctx.unregisterHandle(&f.Handle)
	f.finishClose()
	return nil
}
