package traffic

import (
	"time"
)

// retention is the longest window any caller asks about.
const retention = 5 * time.Minute

var defaultTracker = NewTracker(retention)

// RecordSuccess records a request answered normally.
func RecordSuccess() {
	defaultTracker.RecordSuccess()
}

// RecordError records a request that failed inside the service (recovered panic).
func RecordError() {
	defaultTracker.RecordError()
}

// RecordDenied records a rate-limit denial (429).
func RecordDenied() {
	defaultTracker.RecordDenied()
}

// RequestCount returns the number of outcomes (success + error + denied) within the window.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// ErrorRate returns (errorCount, totalCount) within the window. totalCount = successes + errors (denied excluded).
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker keeps per-second windows of request outcomes.
// Single source of truth for overload (RequestCount, DenialCount) and degraded (ErrorRate).
// It is safe for concurrent use without locking.
type Tracker struct {
	success *Window
	errors  *Window
	denied  *Window
}

// NewTracker returns a Tracker answering windows up to span.
func NewTracker(span time.Duration) *Tracker {
	return &Tracker{
		success: NewWindow(span),
		errors:  NewWindow(span),
		denied:  NewWindow(span),
	}
}

// RecordSuccess records a request answered normally at the current time.
func (t *Tracker) RecordSuccess() { t.success.Add(time.Now()) }

// RecordError records an internal failure at the current time.
func (t *Tracker) RecordError() { t.errors.Add(time.Now()) }

// RecordDenied records a rate-limit denial at the current time.
func (t *Tracker) RecordDenied() { t.denied.Add(time.Now()) }

// RequestCount returns the total number of outcomes within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	now := time.Now()
	return t.success.Count(now, window) + t.errors.Count(now, window) + t.denied.Count(now, window)
}

// DenialCount returns the number of rate-limit denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	return t.denied.Count(time.Now(), window)
}

// ErrorRate returns (errorCount, totalCount) within the window. Denials are not part of total.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	now := time.Now()
	errors = t.errors.Count(now, window)
	return errors, errors + t.success.Count(now, window)
}

// Reset clears all recorded outcomes from the tracker.
func (t *Tracker) Reset() {
	t.success.Clear()
	t.errors.Clear()
	t.denied.Clear()
}
