package record

import (
	"time"
)

// parseDate reads the leading YYYY-MM-DD of a registry timestamp.
func parseDate(value string, loc *time.Location) (time.Time, bool) {
	if len(value) < len(time.DateOnly) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(time.DateOnly, value[:len(time.DateOnly)], loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FilterRecent keeps the records whose start/update date is at most `days`
// whole days before now. Records without a parseable date are dropped.
func FilterRecent(records []Record, now time.Time, days int) []Record {
	var out []Record
	for _, r := range records {
		date, ok := parseDate(r.StartOrUpdateDate, now.Location())
		if !ok {
			continue
		}
		elapsed := int(now.Sub(date).Hours() / 24)
		if elapsed <= days {
			out = append(out, r)
		}
	}
	return out
}
