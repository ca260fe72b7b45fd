package parser

import (
	"regexp"
	"strconv"
	"time"
)

const (
	yearLookback  = 5
	yearLookahead = 1
)

var yearToken = regexp.MustCompile(`\b(\d{4})\b`)

// InferYear picks the reporting year for rows that omit one. Only years in
// [now-5, now+1] count, which filters out unrelated four digit numbers the
// OCR pass picks up. Falls back to the current year.
func InferYear(text string, now time.Time) int {
	current := now.Year()
	best := 0
	for _, match := range yearToken.FindAllStringSubmatch(text, -1) {
		year, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if year < current-yearLookback || year > current+yearLookahead {
			continue
		}
		if year > best {
			best = year
		}
	}
	if best == 0 {
		return current
	}
	return best
}
