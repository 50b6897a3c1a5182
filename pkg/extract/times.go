package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"
)

type timePattern struct {
	kind       string
	re         *regexp.Regexp
	confidence float64
	// standalone rejects matches that continue as a date or decimal.
	standalone bool
	build      func(m match, now time.Time) (TimeEntity, bool)
}

// Ordered by priority: ranges before single times, explicit clock times
// before "at N", casual words last.
var timePatterns = []timePattern{
	{
		kind:       "range",
		re:         regexp.MustCompile(`\b(?:from\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*(?:-|to|until)\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`),
		confidence: 0.9,
		build:      buildMeridiemRange,
	},
	{
		kind:       "range",
		re:         regexp.MustCompile(`\b(?:from\s+)?(\d{1,2}):(\d{2})\s*(?:-|to|until)\s*(\d{1,2}):(\d{2})\b`),
		confidence: 0.9,
		build:      buildClockRange,
	},
	{
		kind:       "specific",
		re:         regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`),
		confidence: 0.9,
		build:      buildMeridiemTime,
	},
	{
		kind:       "specific",
		re:         regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`),
		confidence: 0.85,
		build:      buildClockTime,
	},
	{
		kind:       "specific",
		re:         regexp.MustCompile(`\bat (\d{1,2})\b`),
		confidence: 0.6,
		standalone: true,
		build:      buildBareHour,
	},
	{
		kind:       "relative",
		re:         regexp.MustCompile(`\bin (\d{1,3}) (minute|hour|day)s?\b`),
		confidence: 0.8,
		build:      buildRelativeTime,
	},
	{
		kind:       "casual",
		re:         regexp.MustCompile(`\b(morning|afternoon|evening|tonight)\b`),
		confidence: 0.7,
		build:      buildCasualTime,
	},
}

var casualTimes = map[string]string{
	"morning":   "09:00",
	"afternoon": "14:00",
	"evening":   "18:00",
	"tonight":   "20:00",
}

// FormatTime renders hour/minute with an optional am/pm period as 24-hour
// HH:MM.
func FormatTime(hour, minute int, period string) string {
	switch period {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// extractTimes runs the time table over normalized text. Spans in taken are
// skipped.
func extractTimes(norm string, now time.Time, taken claimed) []TimeEntity {
	type positioned struct {
		pos int
		ent TimeEntity
	}
	var found []positioned
	for _, p := range timePatterns {
		for _, m := range findAll(p.re, norm) {
			if taken.overlaps(m.span) {
				continue
			}
			if p.standalone && followedByDigitSeparator(norm, m.end) {
				continue
			}
			ent, ok := p.build(m, now)
			if !ok {
				continue
			}
			ent.Kind = p.kind
			ent.Confidence = p.confidence
			ent.Source = SourcePattern
			taken.add(m.span)
			found = append(found, positioned{m.start, ent})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })
	out := make([]TimeEntity, 0, len(found))
	for _, f := range found {
		out = append(out, f.ent)
	}
	return out
}

// followedByDigitSeparator rejects "at 3" when the text continues "/4" or ".5".
func followedByDigitSeparator(s string, end int) bool {
	if end+1 >= len(s) {
		return false
	}
	switch s[end] {
	case '/', '-', '.', ':':
		return s[end+1] >= '0' && s[end+1] <= '9'
	}
	return false
}

func clock(hourStr, minStr, period string) (int, int, bool) {
	h, err := strconv.Atoi(hourStr)
	if err != nil {
		return 0, 0, false
	}
	mnt := 0
	if minStr != "" {
		if mnt, err = strconv.Atoi(minStr); err != nil {
			return 0, 0, false
		}
	}
	if mnt > 59 {
		return 0, 0, false
	}
	if period != "" {
		return h, mnt, h >= 1 && h <= 12
	}
	return h, mnt, h <= 23
}

func buildMeridiemRange(m match, _ time.Time) (TimeEntity, bool) {
	endPeriod := m.groups[6]
	eh, em, ok := clock(m.groups[4], m.groups[5], endPeriod)
	if !ok {
		return TimeEntity{}, false
	}
	startPeriod := m.groups[3]
	if startPeriod == "" {
		startPeriod = endPeriod
		sh, _ := strconv.Atoi(m.groups[1])
		// "11-1pm" runs from 11am.
		if endPeriod == "pm" && sh != 12 && eh != 12 && sh > eh {
			startPeriod = "am"
		}
	}
	sh, sm, ok := clock(m.groups[1], m.groups[2], startPeriod)
	if !ok {
		return TimeEntity{}, false
	}
	return TimeEntity{
		Raw:       m.text,
		Formatted: FormatTime(sh, sm, startPeriod),
		End:       FormatTime(eh, em, endPeriod),
	}, true
}

func buildClockRange(m match, _ time.Time) (TimeEntity, bool) {
	sh, sm, ok := clock(m.groups[1], m.groups[2], "")
	if !ok {
		return TimeEntity{}, false
	}
	eh, em, ok := clock(m.groups[3], m.groups[4], "")
	if !ok {
		return TimeEntity{}, false
	}
	return TimeEntity{Raw: m.text, Formatted: FormatTime(sh, sm, ""), End: FormatTime(eh, em, "")}, true
}

func buildMeridiemTime(m match, _ time.Time) (TimeEntity, bool) {
	h, mnt, ok := clock(m.groups[1], m.groups[2], m.groups[3])
	if !ok {
		return TimeEntity{}, false
	}
	return TimeEntity{Raw: m.text, Formatted: FormatTime(h, mnt, m.groups[3])}, true
}

func buildClockTime(m match, _ time.Time) (TimeEntity, bool) {
	h, mnt, ok := clock(m.groups[1], m.groups[2], "")
	if !ok {
		return TimeEntity{}, false
	}
	return TimeEntity{Raw: m.text, Formatted: FormatTime(h, mnt, "")}, true
}

func buildBareHour(m match, _ time.Time) (TimeEntity, bool) {
	h, _, ok := clock(m.groups[1], "", "")
	if !ok {
		return TimeEntity{}, false
	}
	return TimeEntity{Raw: m.text, Formatted: FormatTime(h, 0, "")}, true
}

func buildRelativeTime(m match, now time.Time) (TimeEntity, bool) {
	n, err := strconv.Atoi(m.groups[1])
	if err != nil {
		return TimeEntity{}, false
	}
	ent := TimeEntity{Raw: m.text, Amount: n, Unit: m.groups[2]}
	switch m.groups[2] {
	case "minute":
		ent.At = now.Add(time.Duration(n) * time.Minute)
		ent.Formatted = ent.At.Format("15:04")
	case "hour":
		ent.At = now.Add(time.Duration(n) * time.Hour)
		ent.Formatted = ent.At.Format("15:04")
	case "day":
		ent.At = now.AddDate(0, 0, n)
	}
	return ent, true
}

func buildCasualTime(m match, _ time.Time) (TimeEntity, bool) {
	f, ok := casualTimes[m.groups[1]]
	return TimeEntity{Raw: m.text, Formatted: f}, ok
}
