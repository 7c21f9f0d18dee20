// Package overload reports rate-limit pressure on the greeting route from the shared traffic windows.
package overload

import (
	"time"

	"github.com/kjstillabower/greeter-service/internal/traffic"
)

// RecordDenial records a rate-limit denial (429). Call from middleware when returning 429.
func RecordDenial() {
	traffic.RecordDenied()
}

// RequestCount returns the number of requests (success + error + denied) within the given window.
func RequestCount(window time.Duration) int {
	return traffic.RequestCount(window)
}

// DenialCount returns the number of denials within the given window.
func DenialCount(window time.Duration) int {
	return traffic.DenialCount(window)
}

// Exceeded reports whether requests in window exceed thresholdPct of the capacity
// rps*window. Always false when rps <= 0 (no limiter configured).
func Exceeded(window time.Duration, rps, thresholdPct int) bool {
	if rps <= 0 || window <= 0 {
		return false
	}
	threshold := float64(rps) * window.Seconds() * float64(thresholdPct) / 100
	return float64(RequestCount(window)) > threshold
}

// Reset clears all recorded data. For tests only.
func Reset() {
	traffic.Reset()
}
