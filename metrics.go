package simvec

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/simvec/index"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordAdd is called after each add operation.
	RecordAdd(duration time.Duration)

	// RecordRemove is called after each remove operation.
	RecordRemove(duration time.Duration)

	// RecordSearch is called after each search operation.
	// k is the number of neighbors requested, err is nil if successful.
	RecordSearch(k int, duration time.Duration, err error)

	// RecordRebuild is called after each index (re)build.
	RecordRebuild(kind index.Kind, duration time.Duration)

	// RecordPersistError is called when a snapshot write fails. The mutation
	// itself is never rolled back.
	RecordPersistError()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdd(time.Duration)                 {}
func (NoopMetricsCollector) RecordRemove(time.Duration)              {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordRebuild(index.Kind, time.Duration) {}
func (NoopMetricsCollector) RecordPersistError()                     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AddCount          atomic.Int64
	AddTotalNanos     atomic.Int64
	RemoveCount       atomic.Int64
	SearchCount       atomic.Int64
	SearchErrors      atomic.Int64
	SearchTotalNanos  atomic.Int64
	RebuildCount      atomic.Int64
	RebuildTotalNanos atomic.Int64
	PersistErrors     atomic.Int64
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(duration time.Duration) {
	b.AddCount.Add(1)
	b.AddTotalNanos.Add(duration.Nanoseconds())
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(time.Duration) {
	b.RemoveCount.Add(1)
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordRebuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRebuild(_ index.Kind, duration time.Duration) {
	b.RebuildCount.Add(1)
	b.RebuildTotalNanos.Add(duration.Nanoseconds())
}

// RecordPersistError implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPersistError() {
	b.PersistErrors.Add(1)
}
