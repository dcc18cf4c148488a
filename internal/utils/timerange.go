package utils

import "time"

// DBTimeLayout is the DATETIME format used across the MySQL schema.  All
// stored times are UTC.
const DBTimeLayout = "2006-01-02 15:04:05"

// FormatDB renders t in the DB layout after converting to UTC.
func FormatDB(t time.Time) string {
	return t.UTC().Format(DBTimeLayout)
}

// ParseDB parses a DB-layout string as UTC.
func ParseDB(s string) (time.Time, error) {
	return time.ParseInLocation(DBTimeLayout, s, time.UTC)
}

// TimeRange is a half-open interval [Start, End).  A slot ending at 10:00
// does not overlap a slot starting at 10:00.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the range has positive length.
func (r TimeRange) Valid() bool {
	return r.Start.Before(r.End)
}

// Overlaps reports whether two half-open ranges intersect.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}
