package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"fjacquet/budget-import/internal/importerror"
)

// Common date format constants tried when parsing candidate dates.
const (
	DateLayoutISO       = "2006-01-02"
	DateLayoutEuropean  = "02.01.2006"
	DateLayoutWithMonth = "2-Jan-2006"
)

// namedFormats are the unambiguous formats tried before the numeric
// day/month heuristics kick in. Anything with a spelled-out month or a
// fixed field order cannot be misread.
var namedFormats = []string{
	DateLayoutISO,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006/01/02",
	DateLayoutEuropean,
	"2.1.2006",
	DateLayoutWithMonth,
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
}

var numericDateRe = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
var whitespaceRe = regexp.MustCompile(`\s+`)

// cleanDateString trims and collapses whitespace in a date string.
func cleanDateString(dateStr string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(dateStr), " ")
}

// ParseDate parses a candidate's raw date string into a calendar date at
// midnight UTC. now anchors relative terms such as "yesterday".
//
// Numeric day/month dates like 03/04/2025 have two readings (March 4 vs
// April 3). When both readings are valid and more than one calendar day
// apart, the date is ambiguous and parsing fails rather than guessing;
// within one day the day-first reading wins, which the dedup window
// tolerates.
func ParseDate(dateStr string, now time.Time) (time.Time, error) {
	cleaned := cleanDateString(dateStr)
	if cleaned == "" {
		return time.Time{}, &importerror.NormalizationError{
			Kind: importerror.UnparsableDate, Field: "date", Value: dateStr,
		}
	}

	switch strings.ToLower(cleaned) {
	case "today":
		return truncateToDay(now), nil
	case "yesterday":
		return truncateToDay(now.AddDate(0, 0, -1)), nil
	}

	for _, format := range namedFormats {
		if t, err := time.Parse(format, cleaned); err == nil {
			return truncateToDay(t), nil
		}
	}

	if m := numericDateRe.FindStringSubmatch(cleaned); m != nil {
		return parseNumericDate(m, dateStr)
	}

	return time.Time{}, &importerror.NormalizationError{
		Kind: importerror.UnparsableDate, Field: "date", Value: dateStr,
	}
}

// parseNumericDate resolves a/b/yyyy, detecting day-month ambiguity.
func parseNumericDate(m []string, raw string) (time.Time, error) {
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	dayFirst, okDayFirst := calendarDate(year, b, a)
	monthFirst, okMonthFirst := calendarDate(year, a, b)

	switch {
	case okDayFirst && okMonthFirst:
		if a == b {
			return dayFirst, nil // both readings are the same date
		}
		diff := dayFirst.Sub(monthFirst)
		if diff < 0 {
			diff = -diff
		}
		if diff > 24*time.Hour {
			return time.Time{}, &importerror.NormalizationError{
				Kind: importerror.AmbiguousDate, Field: "date", Value: raw,
			}
		}
		return dayFirst, nil
	case okDayFirst:
		return dayFirst, nil
	case okMonthFirst:
		return monthFirst, nil
	default:
		return time.Time{}, &importerror.NormalizationError{
			Kind: importerror.UnparsableDate, Field: "date", Value: raw,
		}
	}
}

// calendarDate builds a UTC date and reports whether the components form
// a real calendar date (rejects 31/02 style rollover).
func calendarDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// truncateToDay drops the time-of-day component; statements rarely give
// one, and the fingerprint must not depend on it.
func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
