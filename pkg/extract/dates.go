package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

const monthAlt = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sept?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

const weekdayAlt = `(monday|tuesday|wednesday|thursday|friday|saturday|sunday)`

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

type datePattern struct {
	kind string
	re   *regexp.Regexp
	// anchors marks patterns whose spans must not be re-read as times.
	anchors    bool
	confidence float64
	resolve    func(m match, today time.Time) (time.Time, bool)
}

var datePatterns = []datePattern{
	{
		kind:       "numeric",
		re:         regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`),
		anchors:    true,
		confidence: 0.95,
		resolve: func(m match, today time.Time) (time.Time, bool) {
			y, _ := strconv.Atoi(m.groups[1])
			mo, _ := strconv.Atoi(m.groups[2])
			d, _ := strconv.Atoi(m.groups[3])
			return validDate(y, time.Month(mo), d, today.Location())
		},
	},
	{
		kind:       "numeric",
		re:         regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4}|\d{2})\b`),
		anchors:    true,
		confidence: 0.95,
		resolve:    resolveNumericDate,
	},
	{
		kind:       "written",
		re:         regexp.MustCompile(`\b` + monthAlt + `\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(\d{4})\b)?`),
		anchors:    true,
		confidence: 0.9,
		resolve:    resolveMonthFirst,
	},
	{
		kind:       "written",
		re:         regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?` + monthAlt + `\b(?:,?\s+(\d{4})\b)?`),
		anchors:    true,
		confidence: 0.9,
		resolve:    resolveDayFirst,
	},
	{
		kind:       "numeric",
		re:         regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})\b`),
		anchors:    true,
		confidence: 0.8,
		resolve:    resolveMonthDayNoYear,
	},
	{
		kind:       "relative",
		re:         regexp.MustCompile(`\b(today|tomorrow|yesterday)\b`),
		confidence: 0.95,
		resolve:    resolveDayWord,
	},
	{
		kind:       "relative",
		re:         regexp.MustCompile(`\b(next|this) ` + weekdayAlt + `\b`),
		confidence: 0.9,
		resolve:    resolveWeekdayPhrase,
	},
	{
		kind:       "relative",
		re:         regexp.MustCompile(`\bon ` + weekdayAlt + `\b`),
		confidence: 0.8,
		resolve:    resolveOnWeekday,
	},
	{
		kind:       "relative",
		re:         regexp.MustCompile(`\bin (\d{1,3}) (day|week)s?\b`),
		confidence: 0.85,
		resolve:    resolveOffset,
	},
	{
		kind:       "relative",
		re:         regexp.MustCompile(`\bnext week\b`),
		confidence: 0.6,
		resolve: func(_ match, today time.Time) (time.Time, bool) {
			return today.AddDate(0, 0, 7), true
		},
	},
}

// extractDates runs the date table over normalized text and returns the
// entities in text order plus the spans that absolute dates occupy.
func extractDates(norm string, now time.Time) ([]DateEntity, claimed) {
	today := startOfDay(now)
	type positioned struct {
		pos int
		ent DateEntity
	}
	var (
		found   []positioned
		taken   claimed
		anchors claimed
	)
	for _, p := range datePatterns {
		for _, m := range findAll(p.re, norm) {
			if taken.overlaps(m.span) {
				continue
			}
			d, ok := p.resolve(m, today)
			if !ok {
				continue
			}
			taken.add(m.span)
			if p.anchors {
				anchors.add(m.span)
			}
			found = append(found, positioned{m.start, DateEntity{
				Kind:       p.kind,
				Raw:        m.text,
				Date:       d,
				Formatted:  d.Format(dateLayout),
				Confidence: p.confidence,
				Source:     SourcePattern,
			}})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })
	out := make([]DateEntity, 0, len(found))
	for _, f := range found {
		out = append(out, f.ent)
	}
	return out, anchors
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ResolveWeekday returns the date of the named weekday relative to today.
// With next set the result is always in the following week's span: the
// delta is pushed forward by seven days once, even when the day is still
// ahead this week (Wednesday: next monday = +5, next friday = +9,
// next wednesday = +7). Without next the nearest occurrence on or after
// today is returned, so "this <today>" is today.
func ResolveWeekday(today time.Time, day time.Weekday, next bool) time.Time {
	today = startOfDay(today)
	delta := int(day) - int(today.Weekday())
	if next {
		delta += 7
	} else if delta < 0 {
		delta += 7
	}
	return today.AddDate(0, 0, delta)
}

func validDate(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if d.Month() != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func parseYear(s string) int {
	y, _ := strconv.Atoi(s)
	if len(s) == 2 {
		y += 2000
	}
	return y
}

// nextOccurrence resolves a month/day without a year to the first such day
// on or after today.
func nextOccurrence(month time.Month, day int, today time.Time) (time.Time, bool) {
	d, ok := validDate(today.Year(), month, day, today.Location())
	if !ok {
		// Feb 29 outside a leap year: try the following years.
		for y := today.Year() + 1; y <= today.Year()+4; y++ {
			if d, ok = validDate(y, month, day, today.Location()); ok {
				return d, true
			}
		}
		return time.Time{}, false
	}
	if d.Before(today) {
		return validDate(today.Year()+1, month, day, today.Location())
	}
	return d, true
}

func monthFromName(name string) (time.Month, bool) {
	name = strings.TrimSuffix(name, ".")
	if len(name) < 3 {
		return 0, false
	}
	for m := time.January; m <= time.December; m++ {
		if strings.HasPrefix(strings.ToLower(m.String()), name[:3]) {
			return m, true
		}
	}
	return 0, false
}

func resolveNumericDate(m match, today time.Time) (time.Time, bool) {
	month, _ := strconv.Atoi(m.groups[1])
	day, _ := strconv.Atoi(m.groups[2])
	return validDate(parseYear(m.groups[3]), time.Month(month), day, today.Location())
}

func resolveMonthDayNoYear(m match, today time.Time) (time.Time, bool) {
	month, _ := strconv.Atoi(m.groups[1])
	day, _ := strconv.Atoi(m.groups[2])
	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	return nextOccurrence(time.Month(month), day, today)
}

func resolveWritten(monthName, dayStr, yearStr string, today time.Time) (time.Time, bool) {
	month, ok := monthFromName(monthName)
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(dayStr)
	if yearStr != "" {
		return validDate(parseYear(yearStr), month, day, today.Location())
	}
	return nextOccurrence(month, day, today)
}

func resolveMonthFirst(m match, today time.Time) (time.Time, bool) {
	return resolveWritten(m.groups[1], m.groups[2], m.groups[3], today)
}

func resolveDayFirst(m match, today time.Time) (time.Time, bool) {
	return resolveWritten(m.groups[2], m.groups[1], m.groups[3], today)
}

func resolveDayWord(m match, today time.Time) (time.Time, bool) {
	switch m.groups[1] {
	case "today":
		return today, true
	case "tomorrow":
		return today.AddDate(0, 0, 1), true
	case "yesterday":
		return today.AddDate(0, 0, -1), true
	}
	return time.Time{}, false
}

func resolveWeekdayPhrase(m match, today time.Time) (time.Time, bool) {
	day, ok := weekdays[m.groups[2]]
	if !ok {
		return time.Time{}, false
	}
	return ResolveWeekday(today, day, m.groups[1] == "next"), true
}

func resolveOnWeekday(m match, today time.Time) (time.Time, bool) {
	day, ok := weekdays[m.groups[1]]
	if !ok {
		return time.Time{}, false
	}
	return ResolveWeekday(today, day, false), true
}

func resolveOffset(m match, today time.Time) (time.Time, bool) {
	n, err := strconv.Atoi(m.groups[1])
	if err != nil {
		return time.Time{}, false
	}
	if m.groups[2] == "week" {
		n *= 7
	}
	return today.AddDate(0, 0, n), true
}
