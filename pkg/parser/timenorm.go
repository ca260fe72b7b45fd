package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pulsewise/platform/pkg/common/models"
)

var (
	ErrUnknownMonth = errors.New("unknown month abbreviation")
	ErrInvalidDate  = errors.New("invalid date")
	ErrInvalidClock = errors.New("invalid clock time")
)

var monthTable = map[string]time.Month{
	"jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December,
}

const (
	datePattern  = `([A-Za-z]{3})\.?\s+(\d{1,2})(?:\s*,?\s*(\d{4}))?\b`
	clockPattern = `(\d{1,2}):(\d{2})\s*([AaPp])\.?\s*[Mm]\.?`
)

var (
	dateToken  = regexp.MustCompile(`^\s*` + datePattern)
	clockToken = regexp.MustCompile(`^\s*` + clockPattern)
)

// LookupMonth maps a case-insensitive three letter abbreviation to a month.
func LookupMonth(abbrev string) (time.Month, bool) {
	m, ok := monthTable[strings.ToLower(abbrev)]
	return m, ok
}

// ParseDate reads "<Mon>[.] <day>[, <year>]" from the start of token. The
// default year is used when the token carries none.
func ParseDate(token string, defaultYear int) (time.Time, error) {
	match := dateToken.FindStringSubmatch(token)
	if match == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, token)
	}
	month, ok := LookupMonth(match[1])
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownMonth, match[1])
	}
	day, _ := strconv.Atoi(match[2])
	year := defaultYear
	if match[3] != "" {
		year, _ = strconv.Atoi(match[3])
	}

	date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if day < 1 || date.Day() != day {
		return time.Time{}, fmt.Errorf("%w: %s %d, %d", ErrInvalidDate, month, day, year)
	}
	return date, nil
}

// ParseClock reads a 12-hour "H:MM AM|PM" time from the start of token. For a
// range such as "11:48 AM - 12:04 PM" only the start is returned.
func ParseClock(token string) (models.ClockTime, error) {
	match := clockToken.FindStringSubmatch(token)
	if match == nil {
		return models.ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidClock, token)
	}
	hour, _ := strconv.Atoi(match[1])
	minute, _ := strconv.Atoi(match[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return models.ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidClock, token)
	}

	pm := strings.EqualFold(match[3], "p")
	switch {
	case pm && hour != 12:
		hour += 12
	case !pm && hour == 12:
		hour = 0
	}
	return models.ClockTime{Hour: hour, Minute: minute}, nil
}
