package realtime

import "time"

// Trigger decides whether the pipeline should execute at now.
type Trigger func(now time.Time) bool

// Always fires on every tick.
func Always() Trigger {
	return func(time.Time) bool { return true }
}

// Every fires when the time of day is an exact multiple of d. A
// non-positive d never fires.
func Every(d time.Duration) Trigger {
	return func(now time.Time) bool {
		if d <= 0 {
			return false
		}
		y, m, day := now.Date()
		midnight := time.Date(y, m, day, 0, 0, 0, 0, now.Location())
		return now.Sub(midnight)%d == 0
	}
}

// Between restricts t to times of day in [from, to], both given as offsets
// from midnight.
func Between(from, to time.Duration, t Trigger) Trigger {
	return func(now time.Time) bool {
		y, m, day := now.Date()
		tod := now.Sub(time.Date(y, m, day, 0, 0, 0, 0, now.Location()))
		return tod >= from && tod <= to && t(now)
	}
}
