package analysis

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/scottring/family-planner-sub006/pkg/extract"
)

const ruleConfidence = 0.7

type weighted struct {
	re     *regexp.Regexp
	weight float64
}

var urgencyPatterns = []weighted{
	{regexp.MustCompile(`\b(urgent|emergency|asap|immediately|critical|important|deadline)\b`), 1.5},
	{regexp.MustCompile(`\b(today|tonight|now|right away|this morning|this afternoon)\b`), 1.5},
	{regexp.MustCompile(`\b(help|problem|issue|broken|not working|failed)\b`), 1.5},
	{regexp.MustCompile(`!{2,}`), 1.5},
	{regexp.MustCompile(`\b(tomorrow|this week|soon|quickly|need to|have to|should|must)\b`), 0.5},
	{regexp.MustCompile(`\b(meeting|appointment|call|interview|deadline)\b`), 0.5},
	{regexp.MustCompile(`\b(maybe|perhaps|sometime|eventually|when you get a chance)\b`), -0.5},
	{regexp.MustCompile(`\b(idea|thought|consider|think about)\b`), -0.5},
}

type categoryPatterns struct {
	category string
	patterns []*regexp.Regexp
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// Later entries win ties.
var categoryTable = []categoryPatterns{
	{CategoryTask, patterns(
		`\b(buy|get|pick up|purchase|order|book|reserve|schedule|call|email|send)\b`,
		`\b(clean|organize|fix|repair|install|update|complete|finish|do)\b`,
		`\b(need to|have to|should|must|don't forget to)\b`,
		`\b(todo|to do|task|chore)\b`,
	)},
	{CategoryEvent, patterns(
		`\b(meeting|appointment|dinner|lunch|party|conference|call)\b`,
		`\b(visit|trip|vacation|birthday|anniversary|wedding|graduation)\b`,
		`\b(concert|show|movie|theater|game|match)\b`,
		`\b(at \d{1,2}:\d{2}|on \w+day|next week|tomorrow at)\b`,
	)},
	{CategoryReminder, patterns(
		`\b(remind|reminder|don't forget|remember to|note to self)\b`,
		`\b(remind me|set reminder|alert me)\b`,
	)},
	{CategoryQuestion, patterns(
		`\?`,
		`\b(what|when|where|who|how|why|which|should|could|would)\b`,
	)},
	{CategoryNote, patterns(
		`\b(note|idea|thought|observation|remember that)\b`,
		`\b(interesting|noticed|realized|learned)\b`,
	)},
}

var intentTable = []struct {
	re     *regexp.Regexp
	intent string
}{
	{regexp.MustCompile(`\b(buy|purchase|get|pick up|order)\b`), "purchase"},
	{regexp.MustCompile(`\b(schedule|book|reserve|set up)\b`), "schedule"},
	{regexp.MustCompile(`\b(call|phone|contact)\b`), "communicate"},
	{regexp.MustCompile(`\b(email|send|message)\b`), "communicate"},
	{regexp.MustCompile(`\b(clean|organize|fix|repair)\b`), "maintain"},
	{regexp.MustCompile(`\b(learn|research|find out|look up)\b`), "research"},
	{regexp.MustCompile(`\b(remember|remind|note)\b`), "remember"},
	{regexp.MustCompile(`\b(plan|prepare|arrange)\b`), "plan"},
	{regexp.MustCompile(`\?`), "question"},
}

var (
	fullNameRe  = regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`)
	ruleDateRes = patterns(
		`(?i)\b(?:today|tomorrow|yesterday)\b`,
		`(?i)\b(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`,
		`\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b`,
		`\b\d{1,2}-\d{1,2}(?:-\d{2,4})?\b`,
		`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]* \d{1,2}\b`,
	)
	ruleTimeRe  = regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}(?:\s*(?:am|pm))?\b`)
	rulePlaceRe = regexp.MustCompile(`\b(?:at|in|on|near|by|to)\s+([A-Z][A-Za-z]*(?:\s+[A-Z][A-Za-z]*)*)`)
	emailRe     = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRe     = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\b[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}\b`)
	urlRe       = regexp.MustCompile(`https?://[^\s]+`)
	punctRe     = regexp.MustCompile(`[^\w\s]`)
)

var stopWords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`the a an and or but in on at to for of with by is are was were be been
		being have has had do does did will would could should i you he she it we they me him her us them`) {
		stopWords[w] = true
	}
}

// RuleBased is the keyword analyzer. It never fails and needs no I/O.
type RuleBased struct{}

func (RuleBased) Name() string { return MethodRuleBased }

// Analyze scores urgency, category and intent from keyword tables and pulls
// flat entity lists, suggested actions and keywords out of the text.
func (RuleBased) Analyze(_ context.Context, in Input) (*Result, error) {
	return AnalyzeRules(in.Text), nil
}

// AnalyzeRules is RuleBased.Analyze without the interface plumbing.
func AnalyzeRules(text string) *Result {
	r := &Result{
		Analyzer:   MethodRuleBased,
		Urgency:    ruleUrgency(text),
		Category:   ruleCategory(text),
		Entities:   ruleEntities(text),
		Intent:     ruleIntent(text),
		Keywords:   Keywords(text),
		Confidence: ruleConfidence,
	}
	r.SuggestedActions = suggestActions(r)
	return r
}

func ruleUrgency(text string) int {
	lower := strings.ToLower(text)
	score := float64(extract.DefaultUrgency)
	for _, p := range urgencyPatterns {
		score += p.weight * float64(len(p.re.FindAllStringIndex(lower, -1)))
	}
	score += 0.3 * float64(strings.Count(text, "?"))
	if shouting(text) {
		score++
	}
	return extract.ClampScore(score)
}

// shouting reports an all-caps message longer than three characters.
func shouting(text string) bool {
	if len(text) <= 3 || text != strings.ToUpper(text) {
		return false
	}
	return strings.IndexFunc(text, unicode.IsLetter) >= 0
}

func ruleCategory(text string) string {
	lower := strings.ToLower(text)
	best, bestScore := CategoryNote, 0
	for _, c := range categoryTable {
		score := 0
		for _, re := range c.patterns {
			if re.MatchString(lower) {
				score++
			}
		}
		if score > 0 && score >= bestScore {
			best, bestScore = c.category, score
		}
	}
	return best
}

func ruleIntent(text string) string {
	lower := strings.ToLower(text)
	for _, it := range intentTable {
		if it.re.MatchString(lower) {
			return it.intent
		}
	}
	return "note"
}

func ruleEntities(text string) Entities {
	var e Entities
	e.People = union(nil, fullNameRe.FindAllString(text, -1))
	for _, re := range ruleDateRes {
		e.Dates = union(e.Dates, re.FindAllString(text, -1))
	}
	e.Times = union(nil, ruleTimeRe.FindAllString(text, -1))
	for _, m := range rulePlaceRe.FindAllStringSubmatch(text, -1) {
		if place := strings.TrimSpace(m[1]); len(place) > 1 {
			e.Places = union(e.Places, []string{place})
		}
	}
	e.Emails = union(nil, emailRe.FindAllString(text, -1))
	e.Phones = union(nil, phoneRe.FindAllString(text, -1))
	e.URLs = union(nil, urlRe.FindAllString(text, -1))
	return e
}

func suggestActions(r *Result) []string {
	var actions []string
	add := func(a ...string) { actions = append(actions, a...) }
	e := r.Entities

	switch r.Category {
	case CategoryTask:
		add("Convert to task")
		if r.Urgency >= 4 {
			add("Set as high priority")
		}
		if len(e.Dates) > 0 {
			add("Set due date")
		}
	case CategoryEvent:
		add("Convert to calendar event")
		if len(e.Times) > 0 {
			add("Set event time")
		}
		if len(e.Places) > 0 {
			add("Set event location")
		}
	case CategoryReminder:
		add("Set reminder", "Schedule notification")
	}

	if r.Intent == "communicate" && len(e.People) > 0 {
		add("Add contact information")
	}
	if r.Intent == "schedule" {
		add("Check calendar availability")
	}
	if r.Urgency >= 4 {
		add("Mark as urgent", "Send immediate notification")
	}
	if len(e.Dates) > 0 || len(e.Times) > 0 {
		add("Add to calendar")
	}
	if len(e.People) > 0 {
		add("Tag relevant people")
	}
	return union(nil, actions)
}

// Keywords returns up to ten non-stop-words longer than two characters,
// most frequent first, ties in order of first appearance.
func Keywords(text string) []string {
	counts := map[string]int{}
	var order []string
	for _, w := range strings.Fields(punctRe.ReplaceAllString(strings.ToLower(text), " ")) {
		if len(w) <= 2 || stopWords[w] {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > 10 {
		order = order[:10]
	}
	return order
}
