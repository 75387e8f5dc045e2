package device

import (
	"fmt"
	"time"
)

// StorageLayout is the fixed-width UTC layout written to the event log.
const StorageLayout = "2006-01-02T15:04:05.000000Z"

// zonelessLayouts are tried, in order, for timestamps that carry no offset.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// FormatTimestamp renders t in StorageLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(StorageLayout)
}

// ParseTimestamp parses an RFC 3339 timestamp, or a zoneless one read as UTC.
// The result is always in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}
