package analysis

import (
	"math"

	"github.com/scottring/family-planner-sub006/pkg/extract"
)

// nlpThreshold is the parse confidence above which the statistical result
// is trusted.
const nlpThreshold = 0.5

// ruleFloor is the lowest confidence a merged analysis reports.
const ruleFloor = 0.9

// Merge reconciles the analyzer results in precedence order: rules, then
// the statistical parse, then the generative model, then the channel's own
// context. nlp, gen and src may be nil; a nil rule result yields the
// fallback analysis.
func Merge(rule, nlp, gen *Result, src *SourceContext) Final {
	if rule == nil {
		return Fallback("rule-based analysis missing")
	}

	f := Final{
		Urgency:          extract.ClampUrgency(rule.Urgency),
		Category:         rule.Category,
		Entities:         rule.Entities,
		Intent:           rule.Intent,
		SuggestedActions: rule.SuggestedActions,
		Keywords:         rule.Keywords,
		Provenance: map[string]string{
			"urgency":  MethodRuleBased,
			"category": MethodRuleBased,
			"intent":   MethodRuleBased,
		},
	}
	if f.Category == "" {
		f.Category = CategoryNote
	}
	var methods []string
	confidence := 0.0

	if nlp != nil && nlp.Confidence > nlpThreshold {
		methods = append(methods, MethodNLP)
		confidence = math.Max(confidence, nlp.Confidence)
		f.Entities = f.Entities.union(nlp.Entities)
		if p := nlp.Parse; p != nil {
			f.Items = p.Items
			entities := p.Entities
			f.ParsedEntities = &entities
			f.Suggestions = p.Suggestions
			f.InferredType = p.Type
		}
		if nlp.ExplicitUrgency {
			f.set("urgency", MethodNLP, func() { f.Urgency = extract.ClampUrgency(nlp.Urgency) })
		}
	}

	if gen != nil {
		methods = append(methods, MethodAI)
		confidence = math.Max(confidence, gen.Confidence)
		if gen.Urgency != 0 {
			f.set("urgency", MethodAI, func() { f.Urgency = extract.ClampUrgency(gen.Urgency) })
		}
		if gen.Category != "" {
			f.set("category", MethodAI, func() { f.Category = gen.Category })
		}
		if gen.Intent != "" {
			f.set("intent", MethodAI, func() { f.Intent = gen.Intent })
		}
		f.Entities = f.Entities.union(gen.Entities)
		f.SuggestedActions = union(f.SuggestedActions, gen.SuggestedActions)
		f.Keywords = union(f.Keywords, gen.Keywords)
		f.AIEnhanced = true
	}

	methods = append(methods, MethodRuleBased)
	if src != nil && src.apply(&f) {
		methods = append(methods, MethodSource)
	}

	f.Urgency = extract.ClampUrgency(f.Urgency)
	f.Confidence = math.Max(confidence, ruleFloor)
	f.ProcessingMethods = methods
	return f
}

func (f *Final) set(field, method string, apply func()) {
	apply()
	f.Provenance[field] = method
}
