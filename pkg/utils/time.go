package utils

import "time"

// NowMillis returns the current time as unix milliseconds. Transaction
// ordering is defined by these timestamps, not arrival order.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// MillisToTime converts unix milliseconds to a time.Time
func MillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// NowRFC3339 returns the current time in RFC3339 format
func NowRFC3339() string {
	return time.Now().Format(time.RFC3339)
}

// ParseRFC3339 parses a time string in RFC3339 format
func ParseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
