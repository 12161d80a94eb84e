package queue

import "time"

// windowLimiter is a fixed-window dispatch counter: a count and a reset
// timestamp. Once the wall clock passes resetAt the count starts over for a
// fresh window. This deliberately admits a burst of up to 2×limit across a
// window boundary; callers rely on that exact semantics rather than a
// smoother token-bucket shape.
type windowLimiter struct {
	limit   int
	window  time.Duration
	count   int
	resetAt time.Time
}

// allow reports whether one more dispatch fits in the current window and
// counts it when it does.
func (l *windowLimiter) allow(now time.Time) bool {
	if now.After(l.resetAt) {
		l.count = 0
		l.resetAt = now.Add(l.window)
	}
	if l.count >= l.limit {
		return false
	}
	l.count++
	return true
}
