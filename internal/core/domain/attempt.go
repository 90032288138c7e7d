package domain

import "time"

// AttemptRecord tracks failed attempts for one limiter key inside a sliding
// window, with an optional lockout.
type AttemptRecord struct {
	WindowStart time.Time
	Count       int
	LockedUntil *time.Time
}

// WindowExpired reports whether the record's window has elapsed relative to now.
func (r AttemptRecord) WindowExpired(window time.Duration, now time.Time) bool {
	return now.Sub(r.WindowStart) >= window
}

// Locked reports whether a lockout is in effect at the supplied instant.
func (r AttemptRecord) Locked(now time.Time) bool {
	return r.LockedUntil != nil && r.LockedUntil.After(now)
}
