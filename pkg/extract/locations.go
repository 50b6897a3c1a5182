package extract

import (
	"regexp"
	"strings"

	"github.com/scottring/family-planner-sub006/pkg/family"
)

// Location confidences by how the place was recognised.
const (
	confidencePrepositional = 0.8
	confidenceVenue         = 0.9
	confidenceAddress       = 0.95
)

var (
	// Runs on the original text: the phrase after the preposition has to be
	// capitalised.
	prepositionalLocation = regexp.MustCompile(`\b(?i:at|in|on|near|by|to)\s+(?:(?i:the)\s+)?([A-Z][A-Za-z0-9'&-]*(?:\s+[A-Z][A-Za-z0-9'&-]*)*)`)

	venueLocation = regexp.MustCompile(`\b(field|park|school|gym|center|centre|court|pool|rink|studio|office|hospital|clinic|library|church|stadium|arena)s?\b`)

	addressLocation = regexp.MustCompile(`\b\d{1,5}(?:\s+[a-z]+){1,4}\s+(?:street|st|avenue|ave|road|rd|drive|dr|lane|ln|way|blvd|boulevard|court|ct)\b`)
)

// calendarWords are capitalised but never places or people.
var calendarWords = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"january": true, "february": true, "march": true, "april": true, "may": true,
	"june": true, "july": true, "august": true, "september": true,
	"october": true, "november": true, "december": true,
	"jan": true, "feb": true, "mar": true, "apr": true, "jun": true, "jul": true,
	"aug": true, "sep": true, "sept": true, "oct": true, "nov": true, "dec": true,
	"today": true, "tomorrow": true, "tonight": true,
}

func extractLocations(original, norm string, roster family.Roster) []LocationEntity {
	var out []LocationEntity

	for _, m := range findAll(prepositionalLocation, original) {
		place := strings.TrimSpace(m.groups[1])
		first := strings.ToLower(strings.Fields(place)[0])
		if calendarWords[first] || place == "I" {
			continue
		}
		if _, ok := roster.Find(place); ok {
			continue
		}
		out = append(out, LocationEntity{
			Kind:       "general",
			Raw:        m.text,
			Location:   place,
			Confidence: confidencePrepositional,
			Source:     SourcePattern,
		})
	}

	for _, m := range findAll(venueLocation, norm) {
		if containedIn(out, m.text) {
			continue
		}
		out = append(out, LocationEntity{
			Kind:       "venue",
			Raw:        m.text,
			Location:   m.text,
			Confidence: confidenceVenue,
			Source:     SourceDictionary,
		})
	}

	for _, m := range findAll(addressLocation, norm) {
		out = append(out, LocationEntity{
			Kind:       "address",
			Raw:        m.text,
			Location:   m.text,
			Confidence: confidenceAddress,
			Source:     SourcePattern,
		})
	}
	return out
}

func containedIn(locs []LocationEntity, word string) bool {
	for _, l := range locs {
		if strings.Contains(strings.ToLower(l.Location), word) {
			return true
		}
	}
	return false
}
