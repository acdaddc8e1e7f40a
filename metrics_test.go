package uvbridge

import (
	"errors"
	"testing"
	"time"
)

func TestMetricsInitialState(t *testing.T) {
	m := NewMetrics()
	snap := m.Snapshot()
	if snap.TimerFires != 0 {
		t.Errorf("expected 0 initial timer fires, got %d", snap.TimerFires)
	}
	if snap.AvgLatencyNs != 0 {
		t.Errorf("expected 0 avg latency initially, got %d", snap.AvgLatencyNs)
	}
}

func TestMetricsRecordTimerFire(t *testing.T) {
	m := NewMetrics()
	m.RecordTimerFire()
	m.RecordTimerFire()

	snap := m.Snapshot()
	if snap.TimerFires != 2 {
		t.Errorf("expected 2 timer fires, got %d", snap.TimerFires)
	}
}

func TestMetricsRecordStreamReadWrite(t *testing.T) {
	m := NewMetrics()
	m.RecordStreamRead(1024, 1_000_000)  // 1KB, 1ms
	m.RecordStreamWrite(2048, 2_000_000, true)
	m.RecordStreamWrite(512, 500_000, false) // failed write: bytes not counted

	snap := m.Snapshot()
	if snap.StreamReads != 1 {
		t.Errorf("expected 1 stream read, got %d", snap.StreamReads)
	}
	if snap.StreamReadBytes != 1024 {
		t.Errorf("expected 1024 read bytes, got %d", snap.StreamReadBytes)
	}
	if snap.StreamWrites != 2 {
		t.Errorf("expected 2 stream writes, got %d", snap.StreamWrites)
	}
	if snap.StreamWriteBytes != 2048 {
		t.Errorf("expected 2048 write bytes (failed write excluded), got %d", snap.StreamWriteBytes)
	}
}

func TestMetricsRecordWorkItem(t *testing.T) {
	m := NewMetrics()
	m.RecordWorkItem(1_000_000, nil)
	m.RecordWorkItem(2_000_000, errors.New("boom"))

	snap := m.Snapshot()
	if snap.WorkItemsCompleted != 2 {
		t.Errorf("expected 2 work items, got %d", snap.WorkItemsCompleted)
	}
	if snap.WorkItemErrors != 1 {
		t.Errorf("expected 1 work item error, got %d", snap.WorkItemErrors)
	}
}

func TestMetricsRecordErrorByClass(t *testing.T) {
	m := NewMetrics()
	m.RecordError(ClassSys)
	m.RecordError(ClassSys)
	m.RecordError(ClassArg)
	m.RecordError(ClassUncaught)

	snap := m.Snapshot()
	if snap.SysErrors != 2 {
		t.Errorf("expected 2 sys errors, got %d", snap.SysErrors)
	}
	if snap.ArgErrors != 1 {
		t.Errorf("expected 1 arg error, got %d", snap.ArgErrors)
	}
	if snap.UncaughtErrors != 1 {
		t.Errorf("expected 1 uncaught error, got %d", snap.UncaughtErrors)
	}
}

func TestMetricsAvgLatency(t *testing.T) {
	m := NewMetrics()
	m.RecordStreamRead(1024, 1_000_000)  // 1ms
	m.RecordStreamWrite(1024, 2_000_000, true) // 2ms

	snap := m.Snapshot()
	expected := uint64(1_500_000)
	if snap.AvgLatencyNs != expected {
		t.Errorf("expected avg latency %d ns, got %d ns", expected, snap.AvgLatencyNs)
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()
	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()
	if snap.UptimeNs < 10*1_000_000 {
		t.Errorf("expected uptime >= 10ms, got %d ns", snap.UptimeNs)
	}

	m.Stop()
	time.Sleep(5 * time.Millisecond)
	snap2 := m.Snapshot()
	if snap2.UptimeNs > snap.UptimeNs+2*1_000_000 {
		t.Errorf("uptime increased too much after stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordTimerFire()
	m.RecordStreamRead(1024, 1_000_000)
	m.RecordError(ClassSys)

	m.Reset()
	snap := m.Snapshot()
	if snap.TimerFires != 0 || snap.StreamReads != 0 || snap.SysErrors != 0 {
		t.Errorf("expected all counters zero after reset, got %+v", snap)
	}
}

func TestMetricsHistogramBucketsPopulated(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < 50; i++ {
		m.RecordStreamRead(1024, 500_000) // 500us
	}
	m.RecordStreamWrite(1024, 50_000_000, true) // 50ms

	snap := m.Snapshot()
	total := uint64(0)
	for _, v := range snap.LatencyHistogram {
		total += v
	}
	if total == 0 {
		t.Error("expected histogram buckets to be populated")
	}
	// the 500us samples should all land at or below the 1ms bucket
	if snap.LatencyHistogram[3] < 50 {
		t.Errorf("expected at least 50 samples in the <=1ms bucket, got %d", snap.LatencyHistogram[3])
	}
}

func TestObserverNoOp(t *testing.T) {
	var o Observer = NoOpObserver{}
	o.ObserveTimerFire()
	o.ObserveStreamRead(1024, 1_000_000)
	o.ObserveStreamWrite(1024, 1_000_000, true)
	o.ObserveWorkItem(1_000_000, nil)
	o.ObserveError(ClassSys)
}

func TestMetricsObserverForwards(t *testing.T) {
	m := NewMetrics()
	o := NewMetricsObserver(m)

	o.ObserveTimerFire()
	o.ObserveStreamRead(1024, 1_000_000)
	o.ObserveStreamWrite(2048, 2_000_000, true)
	o.ObserveError(ClassState)

	snap := m.Snapshot()
	if snap.TimerFires != 1 {
		t.Errorf("expected 1 timer fire via observer, got %d", snap.TimerFires)
	}
	if snap.StreamReadBytes != 1024 {
		t.Errorf("expected 1024 read bytes via observer, got %d", snap.StreamReadBytes)
	}
	if snap.StateErrors != 1 {
		t.Errorf("expected 1 state error via observer, got %d", snap.StateErrors)
	}
}

func TestMockObserverRecordsCallsIndependentlyOfMetrics(t *testing.T) {
	var o Observer = NewMockObserver()
	mock := o.(*MockObserver)

	o.ObserveTimerFire()
	o.ObserveTimerFire()
	o.ObserveStreamRead(1024, 1_000_000)
	o.ObserveError(ClassArg)
	o.ObserveError(ClassArg)
	o.ObserveError(ClassSys)

	if mock.TimerFires != 2 {
		t.Errorf("expected 2 timer fires, got %d", mock.TimerFires)
	}
	if mock.StreamReads != 1 {
		t.Errorf("expected 1 stream read, got %d", mock.StreamReads)
	}
	if mock.ErrorsByClass[ClassArg] != 2 {
		t.Errorf("expected 2 arg errors, got %d", mock.ErrorsByClass[ClassArg])
	}

	mock.Reset()
	if mock.TimerFires != 0 || len(mock.ErrorsByClass) != 0 {
		t.Errorf("expected zeroed counters after reset, got %+v", mock)
	}
}
