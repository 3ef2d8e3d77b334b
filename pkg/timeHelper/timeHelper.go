package timehelper

import "time"

// DateString formats the UTC date of t as 'YYYY-MM-DD'.
func DateString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ISO formats t the way history records and lastUpdated columns store it.
func ISO(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// ParseISO reads a timestamp written by ISO or any RFC 3339 value.
func ParseISO(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FromMillis converts epoch milliseconds to a time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
