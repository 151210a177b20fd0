package purchase

import (
	"fmt"
	"time"
)

// TimeLayout is the gateway's purchase time format: yyMMddHHmmss, no separators.
const TimeLayout = "060102150405"

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

// Time formats t as a gateway purchase time in loc (process local time when nil).
func Time(t time.Time, loc *time.Location) string {
	return t.In(location(loc)).Format(TimeLayout)
}

// Now returns the current purchase time in loc.
func Now(loc *time.Location) string {
	return Time(time.Now(), loc)
}

// ParseTime parses a yyMMddHHmmss purchase time in loc (process local time when nil).
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	if err := ValidateTime(s); err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(TimeLayout, s, location(loc))
	if err != nil {
		return time.Time{}, fmt.Errorf("purchase time %q: %w", s, err)
	}
	return t, nil
}

// ValidateTime checks s is 12 digits with month 01..12, day 01..31, hour < 24, minute and second < 60.
func ValidateTime(s string) error {
	if len(s) != len(TimeLayout) {
		return fmt.Errorf("purchase time must be yyMMddHHmmss (12 digits)")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return fmt.Errorf("purchase time must be digits: yyMMddHHmmss")
		}
	}
	two := func(i int) int { return int(s[i]-'0')*10 + int(s[i+1]-'0') }
	if mm := two(2); mm < 1 || mm > 12 {
		return fmt.Errorf("purchase time month must be 01..12")
	}
	if dd := two(4); dd < 1 || dd > 31 {
		return fmt.Errorf("purchase time day must be 01..31")
	}
	if two(6) > 23 || two(8) > 59 || two(10) > 59 {
		return fmt.Errorf("purchase time clock out of range")
	}
	return nil
}
