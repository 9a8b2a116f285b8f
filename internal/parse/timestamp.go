package parse

import (
	"strconv"
	"strings"
	"time"
)

// SnapshotLayout is the collection-time pattern embedded in snapshot batch
// names, DD-MM-YYYY_HH-MM-SS.
const SnapshotLayout = "02-01-2006_15-04-05"

var fallbackLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02-01-2006 15:04:05",
	"02-01-2006",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"Jan 02, 2006 3:04PM",
	"Jan 2, 2006 3:04PM",
	"Jan 02, 2006",
}

// ParseSnapshotTimestamp reads a snapshot collection time. A trailing ".csv"
// and any leading path are ignored. ok is false when nothing matched; the
// caller must drop the row.
func ParseSnapshotTimestamp(text string) (time.Time, bool) {
	s := strings.TrimSpace(text)
	if i := strings.LastIndexAny(s, `/\`); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(s, ".csv")
	if t, err := time.ParseInLocation(SnapshotLayout, s, time.UTC); err == nil {
		return t, true
	}
	return ParseTimestamp(s)
}

// ParseTimestamp reads a generic instant: one of the common layouts, or unix
// seconds or milliseconds. Values without a zone are taken as UTC.
func ParseTimestamp(text string) (time.Time, bool) {
	s := strings.TrimSpace(text)
	if isNullText(s) {
		return time.Time{}, false
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil && n > 0 {
		if n > 1e12 {
			return time.UnixMilli(int64(n)).UTC(), true
		}
		sec := int64(n)
		return time.Unix(sec, int64((n-float64(sec))*1e9)).UTC(), true
	}

	return time.Time{}, false
}

// FloorDays is the number of whole days in d, rounded toward negative
// infinity.
func FloorDays(d time.Duration) int {
	const day = 24 * time.Hour
	days := d / day
	if d%day < 0 {
		days--
	}
	return int(days)
}
