package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/scottring/family-planner-sub006/pkg/family"
)

const (
	confidenceRosterPerson  = 0.95
	confidenceUnknownPerson = 0.6
)

var capitalisedRun = regexp.MustCompile(`\p{Lu}\p{Ll}+(?:\s+\p{Lu}\p{Ll}+)*`)

// Common words that start sentences or commands and are not names.
var notNames = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "i": true, "but": true, "or": true,
	"please": true, "remember": true, "remind": true, "don": true, "dont": true, "need": true,
	"have": true, "must": true, "should": true, "call": true, "buy": true, "get": true,
	"pick": true, "drop": true, "take": true, "bring": true, "book": true, "schedule": true,
	"email": true, "send": true, "make": true, "clean": true, "fix": true, "pay": true,
	"sign": true, "return": true, "add": true, "task": true, "event": true, "note": true,
	"meeting": true, "appointment": true, "practice": true, "game": true, "dinner": true,
	"lunch": true, "urgent": true, "important": true, "reminder": true, "permission": true,
	"slip": true, "field": true, "trip": true, "school": true, "dear": true, "hi": true,
	"hello": true, "thanks": true, "thank": true, "parents": true, "parent": true,
	"student": true, "date": true, "time": true, "location": true, "due": true,
	"every": true, "each": true, "next": true, "this": true, "at": true, "in": true,
	"on": true, "to": true, "for": true, "with": true, "from": true, "by": true,
}

func rosterPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(name))
}

// wordChar matches \w extended to every script.
func wordChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// bounded reports whether s[start:end] is a whole word in any script;
// regexp's \b is ASCII-only.
func bounded(s string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(s[:start]); wordChar(r) {
			return false
		}
	}
	if end < len(s) {
		if r, _ := utf8.DecodeRuneInString(s[end:]); wordChar(r) {
			return false
		}
	}
	return true
}

// findWords returns the matches of re in s that are whole words.
func findWords(re *regexp.Regexp, s string) []string {
	var out []string
	for _, loc := range re.FindAllStringIndex(s, -1) {
		if bounded(s, loc[0], loc[1]) {
			out = append(out, s[loc[0]:loc[1]])
		}
	}
	return out
}

func extractPeople(original string, roster family.Roster, locations []LocationEntity) []PersonEntity {
	var out []PersonEntity
	seen := make(map[string]bool)

	for _, member := range roster {
		if strings.TrimSpace(member.Name) == "" {
			continue
		}
		found := findWords(rosterPattern(member.Name), original)
		if len(found) == 0 {
			continue
		}
		raw := found[0]
		seen[strings.ToLower(member.Name)] = true
		out = append(out, PersonEntity{
			Name:       member.Name,
			Role:       member.Role,
			Raw:        raw,
			Confidence: confidenceRosterPerson,
			Source:     SourceRoster,
		})
	}

	add := func(words []string) {
		if len(words) == 0 {
			return
		}
		name := strings.Join(words, " ")
		key := strings.ToLower(name)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, PersonEntity{
			Name:       name,
			Role:       "unknown",
			Raw:        name,
			Confidence: confidenceUnknownPerson,
			Source:     SourceExtraction,
		})
	}

	for _, run := range findWords(capitalisedRun, original) {
		// A dropped word splits the run so every name stays contiguous.
		var words []string
		for _, w := range strings.Fields(run) {
			lw := strings.ToLower(w)
			if notNames[lw] || calendarWords[lw] || seen[lw] || inLocation(locations, w) {
				add(words)
				words = nil
				continue
			}
			words = append(words, w)
		}
		add(words)
	}
	return out
}

func inLocation(locs []LocationEntity, word string) bool {
	for _, l := range locs {
		if l.Kind != "general" {
			continue
		}
		for _, w := range strings.Fields(l.Location) {
			if w == word {
				return true
			}
		}
	}
	return false
}
