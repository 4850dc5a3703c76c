package room

import "time"

// MaxPoints is awarded for a correct answer at the instant the question opens.
const MaxPoints = 1000

// Points returns floor(MaxPoints * remaining / limit). Remaining is clamped to [0, limit].
func Points(remaining, limit time.Duration) int {
	if limit <= 0 || remaining <= 0 {
		return 0
	}
	if remaining > limit {
		remaining = limit
	}
	return int(int64(MaxPoints) * int64(remaining) / int64(limit))
}
