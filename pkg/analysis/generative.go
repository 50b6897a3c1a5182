package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/scottring/family-planner-sub006/pkg/ai"
	"github.com/scottring/family-planner-sub006/pkg/extract"
)

// defaultAIConfidence is used when the model does not report one.
const defaultAIConfidence = 0.8

var aiCategories = map[string]bool{
	CategoryTask: true, CategoryEvent: true, CategoryNote: true,
	CategoryReminder: true, CategoryQuestion: true,
}

// Generative asks an LLM for the capture analysis JSON.
type Generative struct {
	gen ai.Generator
}

// NewGenerative wraps gen. A nil generator makes every call fail, which the
// runner records as a degraded stage.
func NewGenerative(gen ai.Generator) *Generative {
	return &Generative{gen: gen}
}

func (g *Generative) Name() string { return MethodAI }

func (g *Generative) Analyze(ctx context.Context, in Input) (*Result, error) {
	if g.gen == nil {
		return nil, fmt.Errorf("no AI provider configured")
	}
	reply, err := g.gen.GenerateText(ctx, ai.CaptureAnalysisPrompt(in.Text))
	if err != nil {
		return nil, fmt.Errorf("failed to generate analysis: %w", err)
	}
	a, err := ai.ParseCaptureAnalysis(reply)
	if err != nil {
		return nil, err
	}

	r := &Result{
		Analyzer: MethodAI,
		Entities: Entities{
			People: a.Entities.People,
			Places: a.Entities.Places,
			Dates:  a.Entities.Dates,
			Times:  a.Entities.Times,
		},
		Intent:           a.Intent,
		SuggestedActions: a.SuggestedActions,
		Keywords:         a.Keywords,
		Confidence:       a.Confidence,
	}
	if a.UrgencyScore != 0 {
		r.Urgency = extract.ClampUrgency(a.UrgencyScore)
	}
	if c := strings.ToLower(strings.TrimSpace(a.Category)); aiCategories[c] {
		r.Category = c
	}
	if r.Confidence <= 0 || r.Confidence > 1 {
		r.Confidence = defaultAIConfidence
	}
	return r, nil
}
