package reactor

import (
	"container/heap"
	"time"
)

// timerEntry is one scheduled timer. Repeat == 0 means one-shot.
type timerEntry struct {
	id       string
	deadline time.Time
	repeat   time.Duration
	fire     func()
	active   bool
	index    int // heap.Interface bookkeeping
	seq      int64
}

// timerHeap is a min-heap ordered by deadline, with seq as a tiebreaker so
// timers armed for the same instant fire in registration order (spec.md
// §5's "callbacks within a phase run in registration order").
type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// timerSet wraps timerHeap with id-based lookup for Stop/Again.
type timerSet struct {
	heap timerHeap
	byID map[string]*timerEntry
	seq  int64
}

func newTimerSet() *timerSet {
	return &timerSet{byID: make(map[string]*timerEntry)}
}

func (s *timerSet) add(id string, deadline time.Time, repeat time.Duration, fire func()) *timerEntry {
	s.seq++
	e := &timerEntry{id: id, deadline: deadline, repeat: repeat, fire: fire, active: true, seq: s.seq}
	heap.Push(&s.heap, e)
	s.byID[id] = e
	return e
}

func (s *timerSet) remove(id string) {
	e, ok := s.byID[id]
	if !ok {
		return
	}
	e.active = false
	delete(s.byID, id)
	if e.index >= 0 && e.index < len(s.heap) {
		heap.Remove(&s.heap, e.index)
	}
}

// nextDeadline reports the earliest still-armed deadline, if any.
func (s *timerSet) nextDeadline() (time.Time, bool) {
	if len(s.heap) == 0 {
		return time.Time{}, false
	}
	return s.heap[0].deadline, true
}

// fireExpired pops and fires every timer whose deadline has passed as of
// now, re-arming repeaters. The entry stays in byID while its callback
// runs, so a callback that stops its own timer (the common self-closing
// one-shot pattern) is observed correctly afterward. Returns how many
// fired.
func (s *timerSet) fireExpired(now time.Time) int {
	fired := 0
	for len(s.heap) > 0 && !s.heap[0].deadline.After(now) {
		e := heap.Pop(&s.heap).(*timerEntry)
		fired++
		e.fire()
		if e.active && e.repeat > 0 {
			s.seq++
			e.seq = s.seq
			e.deadline = now.Add(e.repeat)
			heap.Push(&s.heap, e)
		} else {
			delete(s.byID, e.id)
		}
	}
	return fired
}

func (s *timerSet) len() int { return len(s.heap) }
