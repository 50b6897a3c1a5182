// Package ocr turns recognised document text into structured fields and
// talks to the recognition engines that produce that text.
package ocr

import (
	"math"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/scottring/family-planner-sub006/pkg/extract"
)

// FormType is the kind of paper document a photo shows.
type FormType string

const (
	FormPermissionSlip FormType = "permission_slip"
	FormSportsSchedule FormType = "sports_schedule"
	FormSchoolNotice   FormType = "school_notice"
	FormMedical        FormType = "medical_form"
	FormActivityInfo   FormType = "activity_info"
	FormEventFlyer     FormType = "event_flyer"
	FormGeneral        FormType = "general"
)

// Fields is everything pulled out of one OCR text.
type Fields struct {
	Dates      []string       `json:"dates"`
	Times      []string       `json:"times"`
	Phones     []string       `json:"phones"`
	Emails     []string       `json:"emails"`
	FormType   FormType       `json:"formType"`
	KeyInfo    map[string]any `json:"keyInfo"`
	Confidence float64        `json:"confidence"`
}

// Contact is a line holding a phone number or email and its neighbours.
type Contact struct {
	Context string `json:"context"`
	Line    string `json:"line"`
}

func keywords(words ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
}

// Form types in detection priority; the first cluster with a hit wins.
var formTypes = []struct {
	form FormType
	re   *regexp.Regexp
}{
	{FormPermissionSlip, keywords(`permission\s+slip`, `field\s+trip`, "authorization", "consent")},
	{FormSportsSchedule, keywords("practice", "game", "tournament", "match", "season", "team", "coach")},
	{FormSchoolNotice, keywords("school", "parent", "teacher", "homework", "assignment", "due", "class")},
	{FormMedical, keywords("medical", "doctor", "appointment", "checkup", "vaccine", "medication")},
	{FormActivityInfo, keywords("lesson", "recital", "performance", "rehearsal", "activity", "club")},
	{FormEventFlyer, keywords("event", "celebration", "party", "fundraiser", "meeting")},
}

// DetectFormType returns the first form type whose keyword cluster occurs in
// text, or FormGeneral.
func DetectFormType(text string) FormType {
	for _, f := range formTypes {
		if f.re.MatchString(text) {
			return f.form
		}
	}
	return FormGeneral
}

// CategoryForForm maps a form type to a capture category.
func CategoryForForm(f FormType) string {
	switch f {
	case FormPermissionSlip, FormSchoolNotice:
		return "school"
	case FormSportsSchedule:
		return "sports"
	case FormMedical:
		return "medical"
	case FormActivityInfo:
		return "activities"
	case FormEventFlyer:
		return "events"
	}
	return "general"
}

// labelled reads a single value after one of several labels; the first label
// that occurs on any line wins.
type labelled struct {
	key    string
	labels []*regexp.Regexp
}

// listed collects every line containing one of the trigger words.
type listed struct {
	key     string
	trigger *regexp.Regexp
}

func label(key string, names ...string) labelled {
	l := labelled{key: key}
	for _, n := range names {
		l.labels = append(l.labels, regexp.MustCompile(`(?i)\b`+n+`(?::\s*|\s+)(.+)`))
	}
	return l
}

type formFields struct {
	single []labelled
	lists  []listed
}

var fieldsByForm = map[FormType]formFields{
	FormPermissionSlip: {
		single: []labelled{
			label("studentName", `student\s+name`, "student", "child", "name"),
			label("tripDestination", "destination", `trip\s+to`, "visiting"),
		},
		lists: []listed{{"requirements", keywords("bring", "required", "need", `must\s+have`, "pack")}},
	},
	FormSportsSchedule: {
		single: []labelled{
			label("teamName", `team\s+name`, "team"),
			label("opponent", "opponent", "vs\\.?", "versus", "against"),
			label("venue", "venue", "field", "location"),
		},
		lists: []listed{{"equipment", keywords("equipment", "bring", "wear", "uniform", "cleats", "shin\\s+guards")}},
	},
	FormSchoolNotice: {
		single: []labelled{
			label("subject", "subject", "re"),
			label("dueDate", `due\s+date`, `due\s+by`, "due", "deadline"),
			label("teacher", "teacher", "from"),
		},
	},
	FormMedical: {
		single: []labelled{
			label("doctorName", "doctor", "physician", "provider", `dr\.?`),
			label("appointmentType", `appointment\s+type`, `reason\s+for\s+visit`, "visit\\s+type"),
		},
		lists: []listed{{"instructions", keywords("fast", "fasting", "bring", "arrive", "take", "do not", "avoid")}},
	},
	FormActivityInfo: {
		single: []labelled{
			label("activityName", "activity", "class", "program", "course"),
			label("instructor", "instructor", "teacher", "coach"),
		},
		lists: []listed{{"materials", keywords("materials", "bring", "supplies", "wear", "need")}},
	},
	FormEventFlyer: {
		single: []labelled{
			label("eventName", `event\s+name`, "event", "title"),
			label("host", `hosted\s+by`, "host", "organizer"),
			label("rsvp", "rsvp", "register", "reply"),
		},
	},
}

var (
	phonePattern = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	locationKeywords = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\blocated at\s+([^\n\r.]{1,100})`),
		regexp.MustCompile(`(?i)\bat\s+([^\n\r.]{1,100})`),
		regexp.MustCompile(`(?i)\baddress:\s*([^\n\r.]{1,100})`),
		regexp.MustCompile(`(?i)\bvenue:\s*([^\n\r.]{1,100})`),
		regexp.MustCompile(`(?i)\blocation:\s*([^\n\r.]{1,100})`),
		regexp.MustCompile(`(?i)\bplace:\s*([^\n\r.]{1,100})`),
		regexp.MustCompile(`(?i)\b(room\s+[^\n\r.]{1,100})`),
		regexp.MustCompile(`(?i)\b(building[^\n\r.]{0,100})`),
	}
)

// FieldExtractor reads OCR text relative to a reference time.
type FieldExtractor struct {
	entities *extract.Extractor
	now      time.Time
}

// NewFieldExtractor returns an extractor that resolves relative dates
// against now.
func NewFieldExtractor(now time.Time) *FieldExtractor {
	return &FieldExtractor{entities: extract.New(nil, now), now: now}
}

// ExtractFromOCR is NewFieldExtractor(time.Now()).Extract(text).
func ExtractFromOCR(text string) Fields {
	return NewFieldExtractor(time.Now()).Extract(text)
}

// CleanText applies NFKC so ligatures and full-width digits from the
// recogniser read as plain ASCII, and unifies line endings.
func CleanText(text string) string {
	text = norm.NFKC.String(text)
	return strings.ReplaceAll(text, "\r\n", "\n")
}

// Extract returns the structured fields of text.
func (fe *FieldExtractor) Extract(text string) Fields {
	text = CleanText(text)
	f := Fields{
		FormType:   DetectFormType(text),
		KeyInfo:    make(map[string]any),
		Confidence: 1.0,
	}

	seenDate := make(map[string]bool)
	for _, d := range fe.entities.Dates(text) {
		if seenDate[d.Formatted] {
			continue
		}
		seenDate[d.Formatted] = true
		f.Dates = append(f.Dates, d.Formatted)
	}
	seenTime := make(map[string]bool)
	for _, t := range fe.entities.Times(text) {
		if t.Formatted == "" || seenTime[t.Formatted] {
			continue
		}
		seenTime[t.Formatted] = true
		f.Times = append(f.Times, t.Formatted)
	}
	f.Phones = unique(phonePattern.FindAllString(text, -1))
	f.Emails = unique(emailPattern.FindAllString(text, -1))

	lines := strings.Split(text, "\n")
	if spec, ok := fieldsByForm[f.FormType]; ok {
		for _, l := range spec.single {
			if v := firstLabelled(lines, l.labels); v != "" {
				f.KeyInfo[l.key] = v
			}
		}
		for _, l := range spec.lists {
			if v := matchingLines(lines, l.trigger); len(v) > 0 {
				f.KeyInfo[l.key] = v
			}
		}
	}
	if locs := extractLocations(text); len(locs) > 0 {
		f.KeyInfo["locations"] = locs
	}
	if contacts := extractContacts(lines); len(contacts) > 0 {
		f.KeyInfo["contacts"] = contacts
	}
	return f
}

// ResolvedDates parses Fields.Dates in loc, skipping anything that is not
// YYYY-MM-DD.
func (f Fields) ResolvedDates(loc *time.Location) []time.Time {
	var out []time.Time
	for _, s := range f.Dates {
		if d, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
			out = append(out, d)
		}
	}
	return out
}

// Category is CategoryForForm(f.FormType).
func (f Fields) Category() string { return CategoryForForm(f.FormType) }

// Urgency applies the date-proximity boost of f's dates to base.
func (fe *FieldExtractor) Urgency(base int, f Fields) int {
	return AdjustUrgency(base, f.ResolvedDates(fe.now.Location()), fe.now)
}

// AdjustUrgency raises base for every date close to now: within a day +2,
// within three days +1, within a week +0.5. Past dates count as within a
// day. The sum is rounded half up and clamped to [1,5].
func AdjustUrgency(base int, dates []time.Time, now time.Time) int {
	score := float64(base)
	for _, d := range dates {
		delta := math.Ceil(d.Sub(now).Hours() / 24)
		switch {
		case delta <= 1:
			score += 2
		case delta <= 3:
			score++
		case delta <= 7:
			score += 0.5
		}
	}
	return extract.ClampScore(score)
}

// MeetsThreshold reports whether a recognition confidence is good enough to
// trust without review.
func MeetsThreshold(confidence, threshold float64) bool {
	return confidence >= threshold
}

func firstLabelled(lines []string, labels []*regexp.Regexp) string {
	for _, re := range labels {
		for _, line := range lines {
			if m := re.FindStringSubmatch(line); m != nil {
				if v := strings.TrimSpace(m[1]); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

func matchingLines(lines []string, trigger *regexp.Regexp) []string {
	var out []string
	for _, line := range lines {
		if trigger.MatchString(line) {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}

func extractLocations(text string) []string {
	var out []string
	for _, re := range locationKeywords {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			out = append(out, strings.TrimSpace(m[1]))
		}
	}
	return unique(out)
}

func extractContacts(lines []string) []Contact {
	var out []Contact
	for i, line := range lines {
		if !phonePattern.MatchString(line) && !emailPattern.MatchString(line) {
			continue
		}
		var ctx []string
		for j := i - 1; j <= i+1; j++ {
			if j < 0 || j >= len(lines) {
				continue
			}
			if s := strings.TrimSpace(lines[j]); s != "" {
				ctx = append(ctx, s)
			}
		}
		out = append(out, Contact{Context: strings.Join(ctx, " "), Line: strings.TrimSpace(line)})
	}
	return out
}

func unique(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
