package service

import "time"

// refreshRequired reports whether a source refresh guarded by a
// "last updated at" state value still needs to run today.
func refreshRequired(lastUpdatedAt string) bool {
	lastUpdatedAtTime, err := time.Parse("2006-01-02 15:04:05", lastUpdatedAt)
	if err != nil {
		return true // If we can't parse the time, assume a refresh is needed
	}

	y1, m1, d1 := lastUpdatedAtTime.Date()
	y2, m2, d2 := time.Now().Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}
