package analysis

import (
	"strings"
	"time"

	"github.com/scottring/family-planner-sub006/pkg/extract"
	"github.com/scottring/family-planner-sub006/pkg/ocr"
)

// Source channels that carry context.
const (
	SourceEmail = "email"
	SourceSMS   = "sms"
	SourceImage = "image"
)

// SourceContext is what the channel knows about a capture beyond its text.
type SourceContext struct {
	Channel        string
	EmailFrom      string
	EmailSubject   string
	HasAttachments bool
	// EmailCategory and EmailUrgency are the sender-based guesses made when
	// the email was fetched. They only fill in what the analyzers left at
	// the rule-based default.
	EmailCategory string
	EmailUrgency  int
	SMSCommand     string
	OCR            *ocr.Fields
	Now            time.Time
}

// apply mutates f with the channel-specific boosts and returns whether any
// context was present.
func (s *SourceContext) apply(f *Final) bool {
	switch s.Channel {
	case SourceEmail:
		f.SourceContext = map[string]any{
			"from":           s.EmailFrom,
			"subject":        s.EmailSubject,
			"hasAttachments": s.HasAttachments,
		}
		if c := s.EmailCategory; c != "" && c != "general" &&
			f.Category == CategoryNote && f.Provenance["category"] == MethodRuleBased {
			f.set("category", MethodSource, func() { f.Category = c })
		}
		if s.EmailUrgency > f.Urgency && f.Provenance["urgency"] == MethodRuleBased {
			f.set("urgency", MethodSource, func() { f.Urgency = extract.ClampUrgency(s.EmailUrgency) })
		}
		if strings.Contains(strings.ToLower(s.EmailSubject), "urgent") {
			f.set("urgency", MethodSource, func() { f.Urgency = extract.MaxUrgency })
		}
		if strings.Contains(strings.ToLower(s.EmailFrom), "school") {
			f.set("category", MethodSource, func() { f.Category = CategorySchool })
		}
		return true

	case SourceSMS:
		f.SourceContext = map[string]any{"command": s.SMSCommand}
		f.set("urgency", MethodSource, func() { f.Urgency = extract.ClampUrgency(f.Urgency + 1) })
		return true

	case SourceImage:
		if s.OCR == nil {
			return false
		}
		fields := s.OCR
		f.SourceContext = map[string]any{
			"formType":   fields.FormType,
			"dates":      fields.Dates,
			"locations":  fields.KeyInfo["locations"],
			"confidence": fields.Confidence,
		}
		if fields.FormType == ocr.FormPermissionSlip {
			f.set("urgency", MethodSource, func() { f.Urgency = 4 })
		}
		if c := fields.Category(); c != "general" {
			f.set("category", MethodSource, func() { f.Category = c })
		}
		now := s.Now
		if now.IsZero() {
			now = time.Now()
		}
		if dates := fields.ResolvedDates(now.Location()); len(dates) > 0 {
			f.set("urgency", MethodSource, func() { f.Urgency = ocr.AdjustUrgency(f.Urgency, dates, now) })
		}
		return true
	}
	return false
}

// CategorizeEmail guesses a household category from the sender and subject.
func CategorizeEmail(from, subject string) string {
	from, subject = strings.ToLower(from), strings.ToLower(subject)
	switch {
	case containsAny(from, "school", "edu") ||
		containsAny(subject, "permission slip", "field trip", "parent-teacher", "homework"):
		return "school"
	case containsAny(from, "coach", "sport") ||
		containsAny(subject, "practice", "game", "tournament", "team"):
		return "sports"
	case containsAny(from, "doctor", "clinic", "dentist", "pediatric") ||
		containsAny(subject, "appointment", "checkup"):
		return "medical"
	case containsAny(from, "activity", "class") ||
		containsAny(subject, "lesson", "recital", "performance"):
		return "activities"
	}
	return "general"
}

// EmailUrgency scores an inbound email before any text analysis runs.
func EmailUrgency(subject, body, from string) int {
	score := extract.DefaultUrgency
	text := strings.ToLower(subject + " " + body)
	from = strings.ToLower(from)
	if containsAny(text, "urgent", "asap", "emergency", "immediate", "deadline", "tomorrow") {
		score += 2
	}
	if containsAny(text, "important", "required", "mandatory", "due", "reminder") {
		score++
	}
	if containsAny(from, "school", "edu") {
		score++
	}
	if containsAny(from, "doctor", "clinic", "medical") {
		score++
	}
	return extract.ClampUrgency(score)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
