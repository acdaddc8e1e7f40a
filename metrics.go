package uvbridge

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the completion-latency histogram buckets in
// nanoseconds, from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks loop and handle operational statistics: timer firings,
// stream/udp read and write throughput, thread-pool completions, and
// per-class error counts (spec.md §4.1's configure(metrics_idle_time)
// anchors this as a first-class concern of the Context, not an
// afterthought bolted onto the loop).
type Metrics struct {
	TimerFires     atomic.Uint64
	StreamReads    atomic.Uint64
	StreamWrites   atomic.Uint64
	StreamReadBytes  atomic.Uint64
	StreamWriteBytes atomic.Uint64

	DatagramSends atomic.Uint64
	DatagramRecvs atomic.Uint64

	WorkItemsCompleted atomic.Uint64
	WorkItemErrors     atomic.Uint64

	SysErrors      atomic.Uint64
	ArgErrors      atomic.Uint64
	StateErrors    atomic.Uint64
	WorkerErrors   atomic.Uint64
	UncaughtErrors atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics constructs a Metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordTimerFire counts one timer firing.
func (m *Metrics) RecordTimerFire() { m.TimerFires.Add(1) }

// RecordStreamRead counts bytes delivered through a stream's onread.
func (m *Metrics) RecordStreamRead(bytes int, latencyNs uint64) {
	m.StreamReads.Add(1)
	m.StreamReadBytes.Add(uint64(bytes))
	m.recordLatency(latencyNs)
}

// RecordStreamWrite counts bytes flushed through a stream write
// completion.
func (m *Metrics) RecordStreamWrite(bytes int, latencyNs uint64, success bool) {
	m.StreamWrites.Add(1)
	if success {
		m.StreamWriteBytes.Add(uint64(bytes))
	}
	m.recordLatency(latencyNs)
}

// RecordDatagram counts one send or receive.
func (m *Metrics) RecordDatagram(sent bool) {
	if sent {
		m.DatagramSends.Add(1)
	} else {
		m.DatagramRecvs.Add(1)
	}
}

// RecordWorkItem counts one thread-pool completion.
func (m *Metrics) RecordWorkItem(latencyNs uint64, err error) {
	m.WorkItemsCompleted.Add(1)
	if err != nil {
		m.WorkItemErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordError tallies one error by its taxonomy class (spec.md §7).
func (m *Metrics) RecordError(class Class) {
	switch class {
	case ClassSys:
		m.SysErrors.Add(1)
	case ClassArg:
		m.ArgErrors.Add(1)
	case ClassState:
		m.StateErrors.Add(1)
	case ClassWorker:
		m.WorkerErrors.Add(1)
	case ClassUncaught:
		m.UncaughtErrors.Add(1)
	}
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the metrics window as closed.
func (m *Metrics) Stop() { m.StopTime.Store(time.Now().UnixNano()) }

// MetricsSnapshot is a point-in-time view of Metrics, safe to pass around
// and compare in tests.
type MetricsSnapshot struct {
	TimerFires       uint64
	StreamReads      uint64
	StreamWrites     uint64
	StreamReadBytes  uint64
	StreamWriteBytes uint64
	DatagramSends    uint64
	DatagramRecvs    uint64

	WorkItemsCompleted uint64
	WorkItemErrors     uint64

	SysErrors      uint64
	ArgErrors      uint64
	StateErrors    uint64
	WorkerErrors   uint64
	UncaughtErrors uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyHistogram [numLatencyBuckets]uint64
}

// Snapshot captures the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		TimerFires:         m.TimerFires.Load(),
		StreamReads:        m.StreamReads.Load(),
		StreamWrites:       m.StreamWrites.Load(),
		StreamReadBytes:    m.StreamReadBytes.Load(),
		StreamWriteBytes:   m.StreamWriteBytes.Load(),
		DatagramSends:      m.DatagramSends.Load(),
		DatagramRecvs:      m.DatagramRecvs.Load(),
		WorkItemsCompleted: m.WorkItemsCompleted.Load(),
		WorkItemErrors:     m.WorkItemErrors.Load(),
		SysErrors:          m.SysErrors.Load(),
		ArgErrors:          m.ArgErrors.Load(),
		StateErrors:        m.StateErrors.Load(),
		WorkerErrors:       m.WorkerErrors.Load(),
		UncaughtErrors:     m.UncaughtErrors.Load(),
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}
	return snap
}

// Reset zeroes all counters, useful between test cases.
func (m *Metrics) Reset() {
	m.TimerFires.Store(0)
	m.StreamReads.Store(0)
	m.StreamWrites.Store(0)
	m.StreamReadBytes.Store(0)
	m.StreamWriteBytes.Store(0)
	m.DatagramSends.Store(0)
	m.DatagramRecvs.Store(0)
	m.WorkItemsCompleted.Store(0)
	m.WorkItemErrors.Store(0)
	m.SysErrors.Store(0)
	m.ArgErrors.Store(0)
	m.StateErrors.Store(0)
	m.WorkerErrors.Store(0)
	m.UncaughtErrors.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection, mirroring the Context's
// own pluggable uncaught-error handler.
type Observer interface {
	ObserveTimerFire()
	ObserveStreamRead(bytes int, latencyNs uint64)
	ObserveStreamWrite(bytes int, latencyNs uint64, success bool)
	ObserveWorkItem(latencyNs uint64, err error)
	ObserveError(class Class)
}

// NoOpObserver discards everything.
type NoOpObserver struct{}

func (NoOpObserver) ObserveTimerFire()                                  {}
func (NoOpObserver) ObserveStreamRead(int, uint64)                      {}
func (NoOpObserver) ObserveStreamWrite(int, uint64, bool)               {}
func (NoOpObserver) ObserveWorkItem(uint64, error)                      {}
func (NoOpObserver) ObserveError(Class)                                 {}

// MetricsObserver implements Observer over a *Metrics.
type MetricsObserver struct{ metrics *Metrics }

// NewMetricsObserver returns an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver { return &MetricsObserver{metrics: m} }

func (o *MetricsObserver) ObserveTimerFire() { o.metrics.RecordTimerFire() }
func (o *MetricsObserver) ObserveStreamRead(bytes int, latencyNs uint64) {
	o.metrics.RecordStreamRead(bytes, latencyNs)
}
func (o *MetricsObserver) ObserveStreamWrite(bytes int, latencyNs uint64, success bool) {
	o.metrics.RecordStreamWrite(bytes, latencyNs, success)
}
func (o *MetricsObserver) ObserveWorkItem(latencyNs uint64, err error) {
	o.metrics.RecordWorkItem(latencyNs, err)
}
func (o *MetricsObserver) ObserveError(class Class) { o.metrics.RecordError(class) }

var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = (*NoOpObserver)(nil)
)
