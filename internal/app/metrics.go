package app

import (
	"sync/atomic"
	"time"

	"github.com/dshills/hookbus/internal/hook"
)

// Metrics tracks dispatch timing for an application.
type Metrics struct {
	dispatch [2]dispatchMetrics

	reloads      atomic.Uint64
	reloadErrors atomic.Uint64

	startTime time.Time
}

type dispatchMetrics struct {
	count   atomic.Uint64
	errors  atomic.Uint64
	totalNs atomic.Int64
	minNs   atomic.Int64
	maxNs   atomic.Int64
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	m := &Metrics{startTime: time.Now()}
	for i := range m.dispatch {
		// Initialize min to max int64 so the first dispatch will be smaller
		m.dispatch[i].minNs.Store(1<<63 - 1)
	}
	return m
}

// RecordDispatch records one DoAction or ApplyFilters call.
func (m *Metrics) RecordDispatch(kind hook.Kind, duration time.Duration, err error) {
	d := &m.dispatch[kind]
	ns := duration.Nanoseconds()

	d.count.Add(1)
	d.totalNs.Add(ns)
	if err != nil {
		d.errors.Add(1)
	}

	for {
		old := d.minNs.Load()
		if ns >= old || d.minNs.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := d.maxNs.Load()
		if ns <= old || d.maxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordReload records a script reload.
func (m *Metrics) RecordReload(err error) {
	m.reloads.Add(1)
	if err != nil {
		m.reloadErrors.Add(1)
	}
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Uptime:       time.Since(m.startTime),
		Actions:      m.dispatch[hook.KindAction].snapshot(),
		Filters:      m.dispatch[hook.KindFilter].snapshot(),
		Reloads:      m.reloads.Load(),
		ReloadErrors: m.reloadErrors.Load(),
	}
}

func (d *dispatchMetrics) snapshot() DispatchSnapshot {
	count := d.count.Load()

	var avg int64
	if count > 0 {
		avg = d.totalNs.Load() / int64(count)
	}

	minNs := d.minNs.Load()
	if minNs == 1<<63-1 {
		minNs = 0
	}

	return DispatchSnapshot{
		Count:  count,
		Errors: d.errors.Load(),
		AvgNs:  avg,
		MinNs:  minNs,
		MaxNs:  d.maxNs.Load(),
	}
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	Uptime       time.Duration
	Actions      DispatchSnapshot
	Filters      DispatchSnapshot
	Reloads      uint64
	ReloadErrors uint64
}

// DispatchSnapshot summarizes dispatches of one kind.
type DispatchSnapshot struct {
	Count  uint64
	Errors uint64
	AvgNs  int64
	MinNs  int64
	MaxNs  int64
}

// ErrorRate returns the percentage of dispatches that failed.
func (s DispatchSnapshot) ErrorRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Count) * 100
}

// Avg returns the average dispatch time.
func (s DispatchSnapshot) Avg() time.Duration {
	return time.Duration(s.AvgNs)
}
