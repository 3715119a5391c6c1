package screening

import "time"

// MaxAttempts caps a session's poll loop, roughly five minutes of waiting.
const MaxAttempts = 50

// Interval is the pause that follows poll attempt n (1-based).
// Early attempts are cheap and frequent; the tail widens to bound provider load.
func Interval(attempt int) time.Duration {
	switch {
	case attempt <= 20:
		return 3 * time.Second
	case attempt <= 32:
		return 5 * time.Second
	default:
		return 10 * time.Second
	}
}
