package extract

import (
	"regexp"
	"sort"
)

// isoWeekday maps day names to 1=Monday..7=Sunday.
var isoWeekday = map[string]int{
	"monday": 1, "tuesday": 2, "wednesday": 3, "thursday": 4,
	"friday": 5, "saturday": 6, "sunday": 7,
}

type recurrencePattern struct {
	kind       string
	re         *regexp.Regexp
	confidence float64
	rule       func(m match) (Rule, bool)
}

const pluralDay = `(monday|tuesday|wednesday|thursday|friday|saturday|sunday)s?`

// Multi-day lists are tried first so "every monday and wednesday" is one
// rule rather than two.
var recurrencePatterns = []recurrencePattern{
	{
		kind:       "multiple_days",
		re:         regexp.MustCompile(`\b(?:(?:every|on)\s+)?` + pluralDay + `(?:(?:\s*,\s*|\s+)(?:and\s+)?` + pluralDay + `)+\b`),
		confidence: 0.85,
		rule:       multiDayRule,
	},
	{
		kind:       "biweekly",
		re:         regexp.MustCompile(`\b(?:biweekly|bi-weekly|every (?:other|two|2) weeks?|every other ` + weekdayAlt + `)\b`),
		confidence: 0.85,
		rule: func(m match) (Rule, bool) {
			r := Rule{Frequency: "weekly", Interval: 2}
			if d, ok := isoWeekday[m.groups[1]]; ok {
				r.DaysOfWeek = []int{d}
			}
			return r, true
		},
	},
	{
		kind:       "weekly",
		re:         regexp.MustCompile(`\b(?:every|each) ` + weekdayAlt + `\b`),
		confidence: 0.9,
		rule: func(m match) (Rule, bool) {
			return Rule{Frequency: "weekly", Interval: 1, DaysOfWeek: []int{isoWeekday[m.groups[1]]}}, true
		},
	},
	{
		kind:       "weekly",
		re:         regexp.MustCompile(`\b(?:weekly|every week|each week|once a week)\b`),
		confidence: 0.85,
		rule: func(match) (Rule, bool) {
			return Rule{Frequency: "weekly", Interval: 1}, true
		},
	},
	{
		kind:       "weekly",
		re:         regexp.MustCompile(`\b` + `(monday|tuesday|wednesday|thursday|friday|saturday|sunday)s` + `\b`),
		confidence: 0.75,
		rule: func(m match) (Rule, bool) {
			return Rule{Frequency: "weekly", Interval: 1, DaysOfWeek: []int{isoWeekday[m.groups[1]]}}, true
		},
	},
	{
		kind:       "daily",
		re:         regexp.MustCompile(`\b(?:daily|every day|each day|everyday|every morning|every night|every evening)\b`),
		confidence: 0.9,
		rule: func(match) (Rule, bool) {
			return Rule{Frequency: "daily", Interval: 1}, true
		},
	},
	{
		kind:       "monthly",
		re:         regexp.MustCompile(`\b(?:monthly|every month|each month|once a month)\b`),
		confidence: 0.85,
		rule: func(match) (Rule, bool) {
			return Rule{Frequency: "monthly", Interval: 1}, true
		},
	},
}

var dayName = regexp.MustCompile(`monday|tuesday|wednesday|thursday|friday|saturday|sunday`)

func multiDayRule(m match) (Rule, bool) {
	seen := make(map[int]bool)
	var days []int
	for _, name := range dayName.FindAllString(m.text, -1) {
		d := isoWeekday[name]
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	if len(days) < 2 {
		return Rule{}, false
	}
	return Rule{Frequency: "weekly", Interval: 1, DaysOfWeek: days}, true
}

func extractRecurrence(norm string) []RecurrenceEntity {
	type positioned struct {
		pos int
		ent RecurrenceEntity
	}
	var (
		found []positioned
		taken claimed
	)
	for _, p := range recurrencePatterns {
		for _, m := range findAll(p.re, norm) {
			if taken.overlaps(m.span) {
				continue
			}
			rule, ok := p.rule(m)
			if !ok {
				continue
			}
			taken.add(m.span)
			found = append(found, positioned{m.start, RecurrenceEntity{
				Kind:       p.kind,
				Raw:        m.text,
				Rule:       rule,
				Confidence: p.confidence,
				Source:     SourcePattern,
			}})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })
	out := make([]RecurrenceEntity, 0, len(found))
	for _, f := range found {
		out = append(out, f.ent)
	}
	return out
}
