package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowMicro returns the current UTC time truncated to the precision
// postgres keeps for timestamp columns.
func UTCNowMicro() time.Time {
	return UTCNow().Truncate(time.Microsecond)
}
