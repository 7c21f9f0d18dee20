package lifecycle

import (
	"sync/atomic"
	"time"
)

var (
	shuttingDown atomic.Bool
	startedAt    atomic.Int64 // unix nanos; zero until MarkStarted
)

// MarkStarted records when the listener began accepting connections.
func MarkStarted(t time.Time) {
	startedAt.Store(t.UnixNano())
}

// StartedAt returns the time passed to MarkStarted, or the zero time.
func StartedAt() time.Time {
	n := startedAt.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Uptime returns time since MarkStarted, or zero if the service has not started.
func Uptime() time.Duration {
	s := StartedAt()
	if s.IsZero() {
		return 0
	}
	return time.Since(s)
}

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// Health handler returns 503 with status shutting-down while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}
