// Package degraded reports the greeting route's internal error rate.
package degraded

import (
	"time"

	"github.com/kjstillabower/greeter-service/internal/traffic"
)

// RecordSuccess records a greeting served.
func RecordSuccess() {
	traffic.RecordSuccess()
}

// RecordError records a request that failed inside the service.
func RecordError() {
	traffic.RecordError()
}

// ErrorRate returns (errorCount, totalCount) within the window. totalCount = successes + errors.
func ErrorRate(window time.Duration) (errors, total int) {
	return traffic.ErrorRate(window)
}

// Breached reports whether the error percentage within window is at or above pct.
// An empty window never breaches.
func Breached(window time.Duration, pct int) bool {
	if window <= 0 || pct <= 0 {
		return false
	}
	errors, total := ErrorRate(window)
	if total == 0 {
		return false
	}
	return float64(errors)*100/float64(total) >= float64(pct)
}

// Reset clears all recorded data. For tests only.
func Reset() {
	traffic.Reset()
}
