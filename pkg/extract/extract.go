// Package extract pulls times, dates, places, people, activities, recurrence
// and urgency out of free text. Every pattern family is a table of
// (regexp, interpretation) pairs; the extractor holds no mutable state.
package extract

import (
	"time"

	"github.com/scottring/family-planner-sub006/pkg/family"
)

// Extractor runs the pattern tables against text with a fixed roster and
// reference time.
type Extractor struct {
	roster family.Roster
	now    time.Time
}

// New returns an Extractor that resolves relative dates against now.
func New(roster family.Roster, now time.Time) *Extractor {
	return &Extractor{roster: roster, now: now}
}

// Extract is New(roster, time.Now()).Extract(text).
func Extract(text string, roster family.Roster) EntityBag {
	return New(roster, time.Now()).Extract(text)
}

// Extract returns every entity found in text. Dates are read before times so
// that a date like 3/4/2026 is never also reported as "at 3".
func (e *Extractor) Extract(text string) EntityBag {
	norm := Normalize(text)

	dates, anchors := extractDates(norm, e.now)
	times := extractTimes(norm, e.now, anchors)
	locations := extractLocations(text, norm, e.roster)
	people := extractPeople(text, e.roster, locations)
	urgency, cues := scoreUrgency(norm)

	return EntityBag{
		Times:       times,
		Dates:       dates,
		Locations:   locations,
		People:      people,
		Activities:  extractActivities(norm),
		Recurring:   extractRecurrence(norm),
		Urgency:     urgency,
		UrgencyCues: cues,
	}
}

// Dates returns only the date entities of text.
func (e *Extractor) Dates(text string) []DateEntity {
	dates, _ := extractDates(Normalize(text), e.now)
	return dates
}

// Times returns only the time entities of text.
func (e *Extractor) Times(text string) []TimeEntity {
	norm := Normalize(text)
	_, anchors := extractDates(norm, e.now)
	return extractTimes(norm, e.now, anchors)
}

// Now is the reference time relative dates resolve against.
func (e *Extractor) Now() time.Time { return e.now }
