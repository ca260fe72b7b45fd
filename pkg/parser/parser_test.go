package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewise/platform/pkg/common/models"
)

func TestParseClock(t *testing.T) {
	cases := map[string]string{
		"11:48 AM - 12:04 PM": "11:48",
		"12:50 PM":            "12:50",
		"9:02 AM":             "09:02",
		"12:00 AM":            "00:00",
		"1:15 pm":             "13:15",
		"7:05am":              "07:05",
		"11:59 P.M.":          "23:59",
	}
	for in, want := range cases {
		got, err := ParseClock(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.String(), in)
	}
}

func TestParseClockRejects(t *testing.T) {
	for _, in := range []string{"", "13:00 PM", "0:30 AM", "9:75 AM", "09:02", "noon"} {
		_, err := ParseClock(in)
		assert.ErrorIs(t, err, ErrInvalidClock, in)
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("Oct 3", 2026)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.October, 3, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDate("sep. 30, 2025", 2026)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.September, 30, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDate("JAN 7 2024", 2026)
	require.NoError(t, err)
	assert.Equal(t, 2024, got.Year())
}

func TestParseDateRejects(t *testing.T) {
	_, err := ParseDate("Foo 3", 2026)
	assert.ErrorIs(t, err, ErrUnknownMonth)

	_, err = ParseDate("Feb 30", 2026)
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = ParseDate("Oct 0", 2026)
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = ParseDate("3 Oct", 2026)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestInferYear(t *testing.T) {
	now := time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 2026, InferYear("Report 2024\nPrinted 2026", now))
	assert.Equal(t, 2025, InferYear("Heart Rate Log 2025 ref 1998 id 9999", now))
	assert.Equal(t, 2027, InferYear("period ending 2027", now))
	assert.Equal(t, 2026, InferYear("no year here, only 12345 and 1066", now))
	assert.Equal(t, 2021, InferYear("since 2021", now))
	assert.Equal(t, 2026, InferYear("since 2020", now))
}

func TestParseHeartRate(t *testing.T) {
	lo, hi, err := ParseHeartRate("72")
	require.NoError(t, err)
	assert.Equal(t, 72, lo)
	assert.Equal(t, 72, hi)

	lo, hi, err = ParseHeartRate("88 - 142 bpm")
	require.NoError(t, err)
	assert.Equal(t, 88, lo)
	assert.Equal(t, 142, hi)

	for _, in := range []string{"19", "90-301", "120-80", "abc", "72/80"} {
		_, _, err := ParseHeartRate(in)
		assert.ErrorIs(t, err, ErrInvalidHeartRate, in)
	}
}

func TestIsCandidate(t *testing.T) {
	assert.True(t, IsCandidate("Oct 3\t9:02 AM\t72"))
	assert.True(t, IsCandidate("  may 12 something"))
	assert.True(t, IsCandidate("Dec. 1, 2025 ..."))
	assert.False(t, IsCandidate("Date Time Heart Rate"))
	assert.False(t, IsCandidate("Foo 3 9:02 AM 72"))
	assert.False(t, IsCandidate("Total 12 rows"))
	assert.False(t, IsCandidate("October"))
}

func TestLinesWithoutDatePrefixNeverParse(t *testing.T) {
	text := "Heart Rate Report 2026\n" +
		"Date\tTime\tHeart Rate\tTag\tNotes\n" +
		"9:02 AM\t72\tNormal\n" +
		"Avg 72-95 Exercising\n"

	res := Parse(text, 2026)
	assert.Empty(t, res.Records)
	assert.Zero(t, res.Candidates)
}

func TestStructuredAndFallbackAgree(t *testing.T) {
	tabbed := "Oct 3\t9:02 AM\t72-95\tExercising\tmorning run"
	spaced := "Oct 3   9:02 AM  72-95 exercising   morning run"

	a := ParseLine(tabbed, 2026)
	b := ParseLine(spaced, 2026)

	require.Equal(t, Parsed, a.Kind)
	require.Equal(t, Parsed, b.Kind)
	assert.Equal(t, StrategyStructured, a.Strategy)
	assert.Equal(t, StrategyFallback, b.Strategy)
	assert.Equal(t, a.Record, b.Record)

	rec := a.Record
	assert.Equal(t, time.Date(2026, time.October, 3, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, "09:02", rec.Time.String())
	assert.Equal(t, 72, rec.HRMin)
	assert.Equal(t, 95, rec.HRMax)
	assert.Equal(t, models.TagExercising, rec.Tag)
	require.NotNil(t, rec.Notes)
	assert.Equal(t, "morning run", *rec.Notes)
	assert.Equal(t, models.SourceImport, rec.Source)
}

func TestStrategiesAreIndependent(t *testing.T) {
	out := ParseStructured("Oct 3 9:02 AM 72", 2026)
	assert.Equal(t, Unparseable, out.Kind)
	assert.Error(t, out.Reason)

	out = ParseFallback("Oct 3 9:02 AM 72", 2026)
	require.Equal(t, Parsed, out.Kind)
	assert.Equal(t, models.TagNormal, out.Record.Tag)
	assert.Nil(t, out.Record.Notes)

	out = ParseStructured("Oct 3\t9:02 AM\tNormal\t72", 2026)
	assert.Equal(t, Unparseable, out.Kind)
}

func TestFallbackTimeRangeKeepsStart(t *testing.T) {
	out := ParseLine("Nov 14, 2025 11:48 AM - 12:04 PM 110-154 bpm Exercising intervals on bike", 2026)
	require.Equal(t, Parsed, out.Kind)

	rec := out.Record
	assert.Equal(t, 2025, rec.Date.Year())
	assert.Equal(t, "11:48", rec.Time.String())
	assert.Equal(t, 110, rec.HRMin)
	assert.Equal(t, 154, rec.HRMax)
	assert.Equal(t, models.TagExercising, rec.Tag)
	require.NotNil(t, rec.Notes)
	assert.Equal(t, "intervals on bike", *rec.Notes)
}

func TestNotesWithoutTagDefaultToNormal(t *testing.T) {
	out := ParseLine("Oct 4\t12:50 PM\t64\tafter lunch", 2026)
	require.Equal(t, Parsed, out.Kind)
	assert.Equal(t, models.TagNormal, out.Record.Tag)
	require.NotNil(t, out.Record.Notes)
	assert.Equal(t, "after lunch", *out.Record.Notes)
}

func TestOutOfRangeRowsAreDropped(t *testing.T) {
	text := "Oct 3\t9:02 AM\t120-80\tNormal\n" +
		"Oct 3\t9:10 AM\t15\tNormal\n" +
		"Oct 3 9:20 AM 310\n" +
		"Oct 3\t9:30 AM\t70-80\tNormal\n"

	res := Parse(text, 2026)
	require.Len(t, res.Records, 1)
	assert.Equal(t, 70, res.Records[0].HRMin)
	assert.Equal(t, 4, res.Candidates)
	assert.Equal(t, 3, res.Skipped())
}

func TestParseIsDeterministicAndOrderPreserving(t *testing.T) {
	text := "Heart Rate Log 2026\n" +
		"Oct 5\t8:00 AM\t60\tNormal\n" +
		"Oct 3\t9:02 AM\t72-95\tExercising\n" +
		"garbage line\n" +
		"Oct 4 12:00 AM 55 sleeping\n"

	first := Parse(text, 2026)
	second := Parse(text, 2026)
	assert.Equal(t, first, second)

	require.Len(t, first.Records, 3)
	assert.Equal(t, 5, first.Records[0].Date.Day())
	assert.Equal(t, 3, first.Records[1].Date.Day())
	assert.Equal(t, 4, first.Records[2].Date.Day())
	assert.Equal(t, "00:00", first.Records[2].Time.String())
	assert.Equal(t, 2, first.Structured)
	assert.Equal(t, 1, first.Fallback)
}
