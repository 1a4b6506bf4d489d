package reflection

import (
	"strings"
	"time"
)

// =============================================================================
// DAY BUCKET - Calendar-day identity of a reflection
// =============================================================================

// DayKeyLayout is the storage form of a day bucket.
const DayKeyLayout = "2006-01-02"

// DayBucket is the inclusive range [local midnight, next midnight - 1ms].
type DayBucket struct {
	Start time.Time
	End   time.Time
}

// localLayouts carry no offset and are interpreted in the service location.
// Fractional seconds are accepted by time.Parse after the seconds field.
var localLayouts = []string{
	DayKeyLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ResolveDayBucket parses a date-like string and floors it to a day in loc.
// Inputs with an explicit offset (RFC3339) are converted into loc first.
func ResolveDayBucket(raw string, loc *time.Location) (DayBucket, error) {
	if loc == nil {
		loc = time.Local
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return DayBucket{}, &InvalidDateError{Input: raw}
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return BucketFor(t, loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return BucketFor(t, loc), nil
		}
	}
	return DayBucket{}, &InvalidDateError{Input: raw}
}

// BucketFor returns the day bucket containing t, as seen from loc.
func BucketFor(t time.Time, loc *time.Location) DayBucket {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return DayBucket{
		Start: start,
		End:   start.AddDate(0, 0, 1).Add(-time.Millisecond),
	}
}

// Key is the bucket's uniqueness key, e.g. "2024-04-20".
func (b DayBucket) Key() string { return b.Start.Format(DayKeyLayout) }

// Month is the "YYYY-MM" key used for monthly statistics.
func (b DayBucket) Month() string { return b.Start.Format("2006-01") }

// Contains reports whether t falls inside the bucket.
func (b DayBucket) Contains(t time.Time) bool {
	return !t.Before(b.Start) && !t.After(b.End)
}

// Next returns the following day's bucket. AddDate keeps DST days correct.
func (b DayBucket) Next() DayBucket {
	return BucketFor(b.Start.AddDate(0, 0, 1), b.Start.Location())
}

func (b DayBucket) String() string { return b.Key() }
