package capture

import (
	"strings"
	"time"

	"github.com/scottring/family-planner-sub006/pkg/segment"
)

// BuildTarget derives the event or task record for item. Overrides win over
// anything taken from the analysis.
func BuildTarget(item *Item, targetType string, ov Overrides, now time.Time) *Target {
	t := &Target{
		Type:        targetType,
		OwnerID:     item.OwnerID,
		Title:       ov.Title,
		Description: ov.Description,
		Location:    ov.Location,
		AssignedTo:  ov.AssignedTo,
		Priority:    ov.Priority,
		Category:    ov.Category,
		SourceItem:  item.ID,
	}
	pi := primaryItem(item, targetType)
	if pi != nil {
		t.Title = first(t.Title, pi.Title)
		t.Location = first(t.Location, pi.Location)
		t.AssignedTo = first(t.AssignedTo, pi.AssignedTo)
	}
	if t.Title == "" {
		line, _, _ := strings.Cut(item.RawContent, "\n")
		t.Title = segment.CleanTitle(line)
	}
	if t.Description == "" {
		t.Description = item.RawContent
	}
	if t.Priority == 0 {
		t.Priority = item.UrgencyScore
	}
	if t.Category == "" {
		t.Category = item.Category
	}

	day, hasDay := itemDay(pi, now.Location())
	switch targetType {
	case TargetEvent:
		t.Start, t.End = ov.Start, ov.End
		if t.Start == nil {
			t.Start, t.AllDay = eventStart(pi, day, hasDay, now)
		}
		if t.End == nil {
			t.End = eventEnd(pi, *t.Start, t.AllDay)
		}
	case TargetTask:
		t.DueDate = ov.DueDate
		if t.DueDate == nil && hasDay {
			t.DueDate = &day
		}
	}
	return t
}

// primaryItem is the first parsed item of the wanted kind, else the first
// item at all.
func primaryItem(item *Item, targetType string) *segment.ParsedItem {
	if item.Analysis == nil || len(item.Analysis.Items) == 0 {
		return nil
	}
	items := item.Analysis.Items
	for i := range items {
		if items[i].Type.IsEvent() == (targetType == TargetEvent) {
			return &items[i]
		}
	}
	return &items[0]
}

func itemDay(pi *segment.ParsedItem, loc *time.Location) (time.Time, bool) {
	if pi == nil {
		return time.Time{}, false
	}
	if len(pi.Entities.Dates) > 0 {
		d := pi.Entities.Dates[0].Date
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc), true
	}
	if pi.DueDate != "" {
		if d, err := time.ParseInLocation("2006-01-02", pi.DueDate, loc); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func eventStart(pi *segment.ParsedItem, day time.Time, hasDay bool, now time.Time) (*time.Time, bool) {
	var clock string
	if pi != nil {
		clock = pi.StartTime
	}
	switch {
	case hasDay && clock != "":
		s := atClock(day, clock)
		return &s, false
	case hasDay:
		return &day, true
	case clock != "":
		s := atClock(now, clock)
		return &s, false
	}
	s := now.Truncate(time.Hour).Add(time.Hour)
	return &s, false
}

func eventEnd(pi *segment.ParsedItem, start time.Time, allDay bool) *time.Time {
	if allDay {
		e := start.AddDate(0, 0, 1)
		return &e
	}
	if pi != nil && pi.EndTime != "" {
		if e := atClock(start, pi.EndTime); e.After(start) {
			return &e
		}
	}
	e := start.Add(time.Hour)
	return &e
}

// atClock sets the HH:MM clock on day.
func atClock(day time.Time, hhmm string) time.Time {
	c, err := time.Parse("15:04", hhmm)
	if err != nil {
		return day
	}
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), 0, 0, day.Location())
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
