// Package idle reports when the greeter has served too few greetings to be worth keeping up.
package idle

import (
	"time"

	"github.com/kjstillabower/greeter-service/internal/traffic"
)

// retention is longer than any configured idle window.
const retention = 30 * time.Minute

var greetings = traffic.NewWindow(retention)

// RecordGreeting counts one greeting served now.
func RecordGreeting() {
	greetings.Add(time.Now())
}

// GreetingCount returns greetings served within window, rounded up to whole seconds.
func GreetingCount(window time.Duration) int {
	return greetings.Count(time.Now(), window)
}

// Quiet reports whether the process has outlived minLifespan since startedAt and served
// fewer than minPerMinute greetings per minute, averaged over window.
// A zero startedAt, window or minLifespan is never quiet.
func Quiet(window time.Duration, minPerMinute int, minLifespan time.Duration, startedAt time.Time) bool {
	if window <= 0 || minLifespan <= 0 || startedAt.IsZero() {
		return false
	}
	if time.Since(startedAt) < minLifespan {
		return false
	}
	return float64(GreetingCount(window)) < float64(minPerMinute)*window.Minutes()
}

// Reset forgets all greetings. Tests only.
func Reset() {
	greetings.Clear()
}
