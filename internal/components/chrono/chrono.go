package chrono

import "time"

var amsterdam *time.Location

func init() {
	var err error
	amsterdam, err = time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		// tzdata may be missing on minimal images, the registry only cares about the date
		amsterdam = time.FixedZone("CET", 60*60)
	}
}

// Amsterdam returns a [*time.Location] for Europe/Amsterdam.
func Amsterdam() *time.Location {
	return amsterdam
}

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	// Now returns the current time, the timezone of the time will default to Europe/Amsterdam.
	Now() time.Time
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct{}

// NewStandardTime is the constructor of StandardTime.
func NewStandardTime() StandardTime {
	return StandardTime{}
}

func (StandardTime) Now() time.Time {
	return time.Now().In(amsterdam)
}

// FixedTime is a TimeAPI that always returns the same instant.
type FixedTime struct {
	At time.Time
}

func (f FixedTime) Now() time.Time {
	return f.At.In(amsterdam)
}

// Date formats t as YYYY-MM-DD.
func Date(t time.Time) string {
	return t.Format(time.DateOnly)
}

// CompactDate formats t as YYYYMMDD.
func CompactDate(t time.Time) string {
	return t.Format("20060102")
}
