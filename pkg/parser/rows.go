package parser

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pulsewise/platform/pkg/common/models"
)

var ErrInvalidHeartRate = errors.New("invalid heart rate")

// Strategy names the parse path that produced a record.
type Strategy string

const (
	StrategyStructured Strategy = "structured"
	StrategyFallback   Strategy = "fallback"
)

// OutcomeKind tags a single line parse.
type OutcomeKind int

const (
	Unparseable OutcomeKind = iota
	Parsed
)

// Outcome is the result of parsing one line with one or more strategies.
type Outcome struct {
	Kind     OutcomeKind
	Strategy Strategy
	Record   models.HeartRateRecord
	Reason   error
}

func parsed(strategy Strategy, rec models.HeartRateRecord) Outcome {
	return Outcome{Kind: Parsed, Strategy: strategy, Record: rec}
}

func unparseable(reason error) Outcome {
	return Outcome{Kind: Unparseable, Reason: reason}
}

const columnDelimiter = "\t"

var (
	rowPrefix = regexp.MustCompile(`^\s*([A-Za-z]{3})\.?\s+\d{1,2}\b`)

	heartRateToken = regexp.MustCompile(`(?i)^(\d{1,3})(?:\s*[-–]\s*(\d{1,3}))?(?:\s*bpm)?$`)

	fallbackRow = regexp.MustCompile(`^\s*(?P<date>` + datePattern + `)` +
		`\s+(?P<time>` + clockPattern + `)` +
		`(?:\s*[-–]\s*` + clockPattern + `)?` +
		`\s+(?P<hr>\d{1,3}(?:\s*[-–]\s*\d{1,3})?)(?i:\s*bpm)?` +
		`(?:\s+(?P<rest>.*?))?\s*$`)

	fallbackDate = fallbackRow.SubexpIndex("date")
	fallbackTime = fallbackRow.SubexpIndex("time")
	fallbackHR   = fallbackRow.SubexpIndex("hr")
	fallbackRest = fallbackRow.SubexpIndex("rest")
)

// Result collects the records parsed from a document along with line counts
// useful for logging.
type Result struct {
	Records    []models.HeartRateRecord
	Candidates int
	Structured int
	Fallback   int
}

func (r Result) Skipped() int {
	return r.Candidates - len(r.Records)
}

// Parse turns OCR text into heart-rate records in line order. Lines that do
// not look like a measurement row, or that fail validation, are skipped.
func Parse(text string, year int) Result {
	var res Result
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !IsCandidate(line) {
			continue
		}
		res.Candidates++

		out := ParseLine(line, year)
		if out.Kind != Parsed {
			continue
		}
		switch out.Strategy {
		case StrategyStructured:
			res.Structured++
		case StrategyFallback:
			res.Fallback++
		}
		res.Records = append(res.Records, out.Record)
	}
	return res
}

// IsCandidate reports whether a line starts with a month abbreviation and a
// day number.
func IsCandidate(line string) bool {
	match := rowPrefix.FindStringSubmatch(line)
	if match == nil {
		return false
	}
	_, ok := LookupMonth(match[1])
	return ok
}

// ParseLine tries the column split first and the regex fallback second.
func ParseLine(line string, year int) Outcome {
	if !IsCandidate(line) {
		return unparseable(fmt.Errorf("%w: line does not start with a date", ErrInvalidDate))
	}
	if out := ParseStructured(line, year); out.Kind == Parsed {
		return out
	}
	return ParseFallback(line, year)
}

// ParseStructured splits the line on the column delimiter. The row is only
// accepted when the third column is a heart-rate value or range.
func ParseStructured(line string, year int) Outcome {
	var fields []string
	for _, f := range strings.Split(line, columnDelimiter) {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			fields = append(fields, trimmed)
		}
	}
	if len(fields) < 3 {
		return unparseable(errors.New("fewer than three columns"))
	}

	hrMin, hrMax, err := ParseHeartRate(fields[2])
	if err != nil {
		return unparseable(err)
	}
	date, err := ParseDate(fields[0], year)
	if err != nil {
		return unparseable(err)
	}
	clock, err := ParseClock(fields[1])
	if err != nil {
		return unparseable(err)
	}

	tag, notes := splitTagAndNotes(strings.Join(fields[3:], " "))
	return parsed(StrategyStructured, newRecord(date, clock, hrMin, hrMax, tag, notes))
}

// ParseFallback matches the whole line with a single pattern. It recovers rows
// where OCR collapsed the column spacing.
func ParseFallback(line string, year int) Outcome {
	normalized := strings.ReplaceAll(line, columnDelimiter, " ")
	match := fallbackRow.FindStringSubmatch(normalized)
	if match == nil {
		return unparseable(errors.New("row pattern did not match"))
	}

	hrMin, hrMax, err := ParseHeartRate(match[fallbackHR])
	if err != nil {
		return unparseable(err)
	}
	date, err := ParseDate(match[fallbackDate], year)
	if err != nil {
		return unparseable(err)
	}
	clock, err := ParseClock(match[fallbackTime])
	if err != nil {
		return unparseable(err)
	}

	tag, notes := splitTagAndNotes(match[fallbackRest])
	return parsed(StrategyFallback, newRecord(date, clock, hrMin, hrMax, tag, notes))
}

// ParseHeartRate reads "NN" or "NN-MM" with an optional bpm suffix and checks
// the physiological bounds.
func ParseHeartRate(token string) (int, int, error) {
	match := heartRateToken.FindStringSubmatch(strings.TrimSpace(token))
	if match == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidHeartRate, token)
	}
	lo, _ := strconv.Atoi(match[1])
	hi := lo
	if match[2] != "" {
		hi, _ = strconv.Atoi(match[2])
	}
	if lo < models.HeartRateFloor || hi > models.HeartRateCeiling {
		return 0, 0, fmt.Errorf("%w: %d-%d out of range", ErrInvalidHeartRate, lo, hi)
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("%w: min %d above max %d", ErrInvalidHeartRate, lo, hi)
	}
	return lo, hi, nil
}

func splitTagAndNotes(tail string) (models.Tag, *string) {
	words := strings.Fields(tail)
	tag := models.TagNormal
	if len(words) > 0 {
		switch {
		case strings.EqualFold(words[0], string(models.TagExercising)):
			tag = models.TagExercising
			words = words[1:]
		case strings.EqualFold(words[0], string(models.TagNormal)):
			words = words[1:]
		}
	}
	if len(words) == 0 {
		return tag, nil
	}
	notes := strings.Join(words, " ")
	return tag, &notes
}

func newRecord(date time.Time, clock models.ClockTime, hrMin, hrMax int, tag models.Tag, notes *string) models.HeartRateRecord {
	return models.HeartRateRecord{
		Date:   date,
		Time:   &clock,
		HRMin:  hrMin,
		HRMax:  hrMax,
		Tag:    tag,
		Notes:  notes,
		Source: models.SourceImport,
	}
}
