package uvbridge

import "os"

// spareDescriptor holds one file descriptor in reserve so a listening
// stream can implement the EMFILE trick described in spec.md §5's resource
// policy: when the process is out of descriptors and accept() would
// otherwise spin, release the spare, accept the pending connection, close
// it immediately, and reopen the spare so the next overflow can be
// absorbed the same way. The descriptor is process-global within a
// Context, not per-listener.
type spareDescriptor struct {
	f *os.File
}

// newSpareDescriptor opens the reserve descriptor against /dev/null. A
// failure here (already out of descriptors at Context construction time)
// leaves the trick disabled rather than failing Context setup.
func newSpareDescriptor() *spareDescriptor {
	f, err := os.Open(os.DevNull)
	if err != nil {
		return &spareDescriptor{}
	}
	return &spareDescriptor{f: f}
}

// borrow releases the spare fd and returns a func that reopens it. Call
// the returned func after the overflow connection has been accepted and
// dropped.
func (s *spareDescriptor) borrow() func() {
	if s == nil || s.f == nil {
		return func() {}
	}
	s.f.Close()
	s.f = nil
	return func() {
		if f, err := os.Open(os.DevNull); err == nil {
			s.f = f
		}
	}
}

// Close releases the reserve descriptor for good.
func (s *spareDescriptor) Close() {
	if s == nil || s.f == nil {
		return
	}
	s.f.Close()
	s.f = nil
}
