package schedule

import (
	"fmt"
	"time"
)

// minutesOfDay parses an HH:MM clock string into minutes since midnight.
func minutesOfDay(clock string) (int, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", clock, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// clockOfMinutes renders minutes since midnight as HH:MM. Values past
// midnight wrap; day windows never reach 24:00 so this only matters for
// slot end times at the boundary.
func clockOfMinutes(min int) string {
	min = ((min % 1440) + 1440) % 1440
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// absoluteMinutes converts a day date plus minutes-of-day into a single
// comparable value so rest gaps work across day boundaries.
func absoluteMinutes(dayDate string, minOfDay int) (int64, error) {
	d, err := time.Parse("2006-01-02", dayDate)
	if err != nil {
		return 0, fmt.Errorf("invalid day date %q: %w", dayDate, err)
	}
	return d.Unix()/60 + int64(minOfDay), nil
}

// validDate reports whether s is a YYYY-MM-DD date.
func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// validClock reports whether s is an HH:MM clock time.
func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}
