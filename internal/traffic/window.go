package traffic

import (
	"sync/atomic"
	"time"
)

// Window counts events per second over a fixed span. Each bucket packs the unix second it
// belongs to (high 32 bits) with its event count (low 32 bits) into one atomic word, so
// Add and Count never lock and memory stays fixed whatever the request rate.
type Window struct {
	buckets []atomic.Uint64
}

// NewWindow returns a Window able to answer counts for windows up to span, rounded up
// to whole seconds.
func NewWindow(span time.Duration) *Window {
	n := int(ceilSeconds(span))
	if n < 1 {
		n = 1
	}
	return &Window{buckets: make([]atomic.Uint64, n)}
}

// Add records one event at the given time. An event older than the bucket's current
// second is dropped.
func (w *Window) Add(at time.Time) {
	sec := uint32(at.Unix())
	b := &w.buckets[int(sec)%len(w.buckets)]
	for {
		old := b.Load()
		oldSec, count := unpack(old)
		switch {
		case oldSec == sec:
			count++
		case oldSec < sec:
			count = 1
		default:
			return
		}
		if b.CompareAndSwap(old, pack(sec, count)) {
			return
		}
	}
}

// Count returns the events recorded in the d-long window ending at now, with d rounded
// up to whole seconds and capped at the span.
func (w *Window) Count(now time.Time, d time.Duration) int {
	if d <= 0 {
		return 0
	}
	n := ceilSeconds(d)
	if n > int64(len(w.buckets)) {
		n = int64(len(w.buckets))
	}
	nowSec := uint32(now.Unix())
	total := 0
	for i := int64(0); i < n; i++ {
		sec := nowSec - uint32(i)
		bSec, count := unpack(w.buckets[int(sec)%len(w.buckets)].Load())
		if bSec == sec {
			total += int(count)
		}
	}
	return total
}

// Clear drops all events.
func (w *Window) Clear() {
	for i := range w.buckets {
		w.buckets[i].Store(0)
	}
}

func pack(sec, count uint32) uint64 {
	return uint64(sec)<<32 | uint64(count)
}

func unpack(v uint64) (sec, count uint32) {
	return uint32(v >> 32), uint32(v)
}

func ceilSeconds(d time.Duration) int64 {
	return int64((d + time.Second - 1) / time.Second)
}
