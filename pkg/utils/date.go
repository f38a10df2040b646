package utils

import (
	"time"
)

// TimeNowUTC returns the current time in UTC. Cycle timestamps are always
// stored in UTC so diffs across sources compare cleanly.
func TimeNowUTC() time.Time {
	return time.Now().UTC()
}

// PrettyDate formats a timestamp for operator-facing messages.
func PrettyDate(t time.Time) string {
	return t.Format("Mon, 02 Jan 2006 15:04:05 MST")
}
