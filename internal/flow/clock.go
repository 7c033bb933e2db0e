package flow

import (
	"log/slog"
	"time"
)

// DefaultTimezone is the regional timezone used for business hours and schedule dates.
const DefaultTimezone = "America/Lima"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// LoadLocation resolves a timezone name. Lima has no DST, so a fixed UTC-5
// zone stands in when the tz database is missing from the host.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("Timezone database lookup failed, using fixed UTC-5", "timezone", name, "error", err)
		return time.FixedZone("PET", -5*3600)
	}
	return loc
}

// BusinessHours is the window in which human advisors answer right away.
// Close hours are exclusive.
type BusinessHours struct {
	Location     *time.Location
	WeekdayOpen  int
	WeekdayClose int
	WeekendOpen  int
	WeekendClose int
}

// DefaultBusinessHours returns 09:00-18:00 on weekdays and 09:00-13:00 on weekends.
func DefaultBusinessHours(loc *time.Location) BusinessHours {
	return BusinessHours{
		Location:     loc,
		WeekdayOpen:  9,
		WeekdayClose: 18,
		WeekendOpen:  9,
		WeekendClose: 13,
	}
}

// IsOpen reports whether t falls within business hours in the regional timezone.
func (b BusinessHours) IsOpen(t time.Time) bool {
	loc := b.Location
	if loc == nil {
		loc = LoadLocation(DefaultTimezone)
	}
	local := t.In(loc)
	hour := local.Hour()
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return hour >= b.WeekendOpen && hour < b.WeekendClose
	default:
		return hour >= b.WeekdayOpen && hour < b.WeekdayClose
	}
}
