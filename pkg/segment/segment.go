// Package segment splits captured text into actionable items and decides
// whether each is a task, an event or a recurring one.
package segment

import (
	"math"
	"regexp"
	"strings"

	"github.com/scottring/family-planner-sub006/pkg/extract"
)

// ItemType is the kind of record a parsed item should become.
type ItemType string

const (
	TypeTask           ItemType = "task"
	TypeEvent          ItemType = "event"
	TypeRecurringTask  ItemType = "recurring_task"
	TypeRecurringEvent ItemType = "recurring_event"
)

// IsEvent reports whether t converts to a calendar event.
func (t ItemType) IsEvent() bool { return t == TypeEvent || t == TypeRecurringEvent }

const (
	maxTitleLen    = 100
	itemConfidence = 0.7
)

// ParsedItem is one actionable piece of a capture.
type ParsedItem struct {
	Type        ItemType          `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Entities    extract.EntityBag `json:"entities"`
	StartTime   string            `json:"startTime,omitempty"`
	EndTime     string            `json:"endTime,omitempty"`
	Location    string            `json:"location,omitempty"`
	AssignedTo  string            `json:"assignedTo,omitempty"`
	DueDate     string            `json:"dueDate,omitempty"`
	Recurrence  *extract.Rule     `json:"recurrence,omitempty"`
	Priority    int               `json:"priority,omitempty"`
	Confidence  float64           `json:"confidence"`
}

var (
	obligation  = regexp.MustCompile(`\b(?:need to|have to|must|should|remember to|don'?t forget|don t forget)\b`)
	appointment = regexp.MustCompile(`\b(?:appointment|meeting|call|visit)\b`)

	splitter = regexp.MustCompile(`[.!?]+(?:\s+|$)|,\s*and\s+|\s+and\s+`)

	titleObligation = regexp.MustCompile(`(?i)^(?:remember to|need to|have to|should|must|don'?t forget to)\s+`)
	titleRecurrence = regexp.MustCompile(`(?i)^(?:every|each)\s+\w+\s+`)
	titleTrailing   = regexp.MustCompile(`(?i)\s+(?:at|on|in)\s+.*$`)
)

// Classify picks the item type: recurrence first, then any time or date,
// then obligation wording, then appointment wording, else task.
func Classify(text string, bag extract.EntityBag) ItemType {
	if len(bag.Recurring) > 0 {
		if bag.HasSchedule() {
			return TypeRecurringEvent
		}
		return TypeRecurringTask
	}
	if bag.HasSchedule() {
		return TypeEvent
	}
	lower := strings.ToLower(text)
	if obligation.MatchString(lower) {
		return TypeTask
	}
	if appointment.MatchString(lower) {
		return TypeEvent
	}
	return TypeTask
}

// Segment splits text at sentence ends and "and" conjunctions and builds an
// item from each non-empty fragment. A conjunction inside a recognised
// recurrence, time or place ("monday and wednesday") does not split.
func Segment(text string, bag extract.EntityBag, t ItemType) []ParsedItem {
	var items []ParsedItem
	for _, frag := range fragments(text, bag) {
		items = append(items, buildItem(frag, bag, t))
	}
	if len(items) == 0 {
		items = append(items, buildItem(strings.TrimSpace(text), bag, t))
	}
	return items
}

func fragments(text string, bag extract.EntityBag) []string {
	protected := protectedSpans(text, bag)
	var out []string
	start := 0
	for _, loc := range splitter.FindAllStringIndex(text, -1) {
		if insideAny(protected, loc[0], loc[1]) {
			continue
		}
		if frag := strings.TrimSpace(text[start:loc[0]]); frag != "" {
			out = append(out, frag)
		}
		start = loc[1]
	}
	if frag := strings.TrimSpace(text[start:]); frag != "" {
		out = append(out, frag)
	}
	return out
}

func protectedSpans(text string, bag extract.EntityBag) [][2]int {
	lower := strings.ToLower(text)
	var raws []string
	for _, r := range bag.Recurring {
		raws = append(raws, r.Raw)
	}
	for _, t := range bag.Times {
		raws = append(raws, t.Raw)
	}
	for _, l := range bag.Locations {
		raws = append(raws, l.Raw)
	}
	var spans [][2]int
	for _, raw := range raws {
		raw = strings.ToLower(raw)
		if raw == "" {
			continue
		}
		if i := strings.Index(lower, raw); i >= 0 {
			spans = append(spans, [2]int{i, i + len(raw)})
		}
	}
	return spans
}

func insideAny(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start >= s[0] && end <= s[1] {
			return true
		}
	}
	return false
}

func buildItem(frag string, bag extract.EntityBag, t ItemType) ParsedItem {
	sub := Filter(frag, bag)
	item := ParsedItem{
		Type:        t,
		Title:       CleanTitle(frag),
		Description: frag,
		Entities:    sub,
		Confidence:  itemConfidence,
	}
	if len(sub.Times) > 0 {
		item.StartTime = sub.Times[0].Formatted
	}
	for _, tm := range sub.Times {
		if tm.Kind == "range" && tm.End != "" {
			item.EndTime = tm.End
			break
		}
	}
	if len(sub.Locations) > 0 {
		item.Location = sub.Locations[0].Location
	}
	item.AssignedTo = assignee(sub.People)
	if len(sub.Dates) > 0 {
		item.DueDate = sub.Dates[0].Formatted
	}
	if len(sub.Recurring) > 0 {
		r := sub.Recurring[0].Rule
		item.Recurrence = &r
	}
	if !t.IsEvent() {
		item.Priority = bag.Urgency
	}
	return item
}

func assignee(people []extract.PersonEntity) string {
	for _, p := range people {
		if p.Source == extract.SourceRoster {
			return p.Name
		}
	}
	if len(people) > 0 {
		return people[0].Name
	}
	return ""
}

// CleanTitle strips a leading obligation phrase, a leading "every <word>"
// and any trailing at/on/in clause, then bounds the length.
func CleanTitle(frag string) string {
	s := strings.TrimSpace(frag)
	s = titleObligation.ReplaceAllString(s, "")
	s = titleRecurrence.ReplaceAllString(s, "")
	s = titleTrailing.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxTitleLen {
		s = string(r[:maxTitleLen])
	}
	return s
}

// Filter keeps the entities whose raw text occurs in frag, ignoring case.
// Urgency is carried over from bag unchanged.
func Filter(frag string, bag extract.EntityBag) extract.EntityBag {
	lower := strings.ToLower(frag)
	norm := extract.Normalize(frag)
	in := func(raw string) bool {
		raw = strings.ToLower(raw)
		return raw != "" && (strings.Contains(lower, raw) || strings.Contains(norm, raw))
	}
	out := extract.EntityBag{Urgency: bag.Urgency, UrgencyCues: bag.UrgencyCues}
	for _, e := range bag.Times {
		if in(e.Raw) {
			out.Times = append(out.Times, e)
		}
	}
	for _, e := range bag.Dates {
		if in(e.Raw) {
			out.Dates = append(out.Dates, e)
		}
	}
	for _, e := range bag.Locations {
		if in(e.Raw) {
			out.Locations = append(out.Locations, e)
		}
	}
	for _, e := range bag.People {
		if in(e.Raw) {
			out.People = append(out.People, e)
		}
	}
	for _, e := range bag.Activities {
		if in(e.Raw) {
			out.Activities = append(out.Activities, e)
		}
	}
	for _, e := range bag.Recurring {
		if in(e.Raw) {
			out.Recurring = append(out.Recurring, e)
		}
	}
	return out
}

// Confidence scores how much structure was found: 0.5, +0.2 for times,
// +0.2 for dates, +0.1 for people, +0.1 for places and +0.1 once a type is
// decided, capped at 1.
func Confidence(bag extract.EntityBag, t ItemType) float64 {
	c := 0.5
	if len(bag.Times) > 0 {
		c += 0.2
	}
	if len(bag.Dates) > 0 {
		c += 0.2
	}
	if len(bag.People) > 0 {
		c += 0.1
	}
	if len(bag.Locations) > 0 {
		c += 0.1
	}
	if t != "" {
		c += 0.1
	}
	return math.Min(1, math.Round(c*100)/100)
}
