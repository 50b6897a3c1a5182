// Package analysis scores a captured text with several independent
// analyzers and merges their opinions into one Final classification.
//
// The rule-based analyzer always runs. The statistical (entity extraction
// and segmentation) and generative (LLM) analyzers are optional and best
// effort: when they fail or time out the merge falls back to what the rules
// produced.
package analysis

import (
	"context"
	"time"

	"github.com/scottring/family-planner-sub006/pkg/extract"
	"github.com/scottring/family-planner-sub006/pkg/family"
	"github.com/scottring/family-planner-sub006/pkg/segment"
)

// Analyzer names, also used in Final.ProcessingMethods and Provenance.
const (
	MethodRuleBased = "rule_based"
	MethodNLP       = "nlp"
	MethodAI        = "ai"
	MethodSource    = "source_enhanced"
	MethodFallback  = "fallback"
)

// Categories produced by the analyzers. Source context and OCR may also
// produce the activity buckets (school, sports, medical, ...).
const (
	CategoryTask     = "task"
	CategoryEvent    = "event"
	CategoryReminder = "reminder"
	CategoryQuestion = "question"
	CategoryNote     = "note"
	CategorySchool   = "school"
)

// Input is what every analyzer sees.
type Input struct {
	Text   string
	Roster family.Roster
	Now    time.Time
}

func (in Input) now() time.Time {
	if in.Now.IsZero() {
		return time.Now()
	}
	return in.Now
}

// Analyzer produces a Result for one input.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, in Input) (*Result, error)
}

// Entities are the flat entity lists shared by all analyzers.
type Entities struct {
	People []string `json:"people"`
	Places []string `json:"places"`
	Dates  []string `json:"dates"`
	Times  []string `json:"times"`
	Emails []string `json:"emails,omitempty"`
	Phones []string `json:"phones,omitempty"`
	URLs   []string `json:"urls,omitempty"`
}

func (e Entities) union(o Entities) Entities {
	return Entities{
		People: union(e.People, o.People),
		Places: union(e.Places, o.Places),
		Dates:  union(e.Dates, o.Dates),
		Times:  union(e.Times, o.Times),
		Emails: union(e.Emails, o.Emails),
		Phones: union(e.Phones, o.Phones),
		URLs:   union(e.URLs, o.URLs),
	}
}

// Result is one analyzer's opinion. Zero values mean "no opinion".
type Result struct {
	Analyzer         string   `json:"analyzer"`
	Urgency          int      `json:"urgency"`
	Category         string   `json:"category"`
	Entities         Entities `json:"entities"`
	Intent           string   `json:"intent"`
	SuggestedActions []string `json:"suggestedActions"`
	Keywords         []string `json:"keywords"`
	Confidence       float64  `json:"confidence"`

	// Set by the statistical analyzer only.
	Parse           *segment.Result `json:"parse,omitempty"`
	ExplicitUrgency bool            `json:"explicitUrgency,omitempty"`
}

// Final is the merged analysis stored on a capture item.
type Final struct {
	Urgency          int      `json:"urgency"`
	Category         string   `json:"category"`
	Entities         Entities `json:"entities"`
	Intent           string   `json:"intent"`
	SuggestedActions []string `json:"suggestedActions"`
	Keywords         []string `json:"keywords"`

	InferredType   segment.ItemType     `json:"inferredType,omitempty"`
	Items          []segment.ParsedItem `json:"items,omitempty"`
	ParsedEntities *extract.EntityBag   `json:"parsedEntities,omitempty"`
	Suggestions    []segment.Suggestion `json:"suggestions,omitempty"`

	AIEnhanced        bool              `json:"aiEnhanced"`
	SourceContext     map[string]any    `json:"sourceContext,omitempty"`
	Confidence        float64           `json:"confidence"`
	ProcessingMethods []string          `json:"processingMethods"`
	Provenance        map[string]string `json:"provenance"`
	Warnings          []string          `json:"warnings,omitempty"`
	Fallback          bool              `json:"fallback,omitempty"`
}

// Fallback is the analysis stored when the pipeline could not run at all.
func Fallback(reason string) Final {
	f := Final{
		Urgency:           extract.DefaultUrgency,
		Category:          CategoryNote,
		Confidence:        0,
		ProcessingMethods: []string{MethodFallback},
		Provenance:        map[string]string{"urgency": MethodFallback, "category": MethodFallback},
		Fallback:          true,
	}
	if reason != "" {
		f.Warnings = []string{reason}
	}
	return f
}

// union appends the entries of b missing from a, keeping order.
func union(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
