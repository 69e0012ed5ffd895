package timeofday

import (
	"fmt"
	"strings"
	"time"
)

// weekdayNames is the canonical, locale-free name table indexed by time.Weekday.
var weekdayNames = [7]string{
	"Sunday",
	"Monday",
	"Tuesday",
	"Wednesday",
	"Thursday",
	"Friday",
	"Saturday",
}

var weekdayLookup = func() map[string]time.Weekday {
	m := make(map[string]time.Weekday, 14)
	for i, name := range weekdayNames {
		wd := time.Weekday(i)
		m[strings.ToLower(name)] = wd
		m[strings.ToLower(name[:3])] = wd
	}
	return m
}()

// WeekdayName returns the canonical English name for wd.
func WeekdayName(wd time.Weekday) string {
	if wd < time.Sunday || wd > time.Saturday {
		return ""
	}
	return weekdayNames[wd]
}

// ParseWeekday accepts full names and three-letter abbreviations, ignoring case.
func ParseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdayLookup[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, name)
	}
	return wd, nil
}
