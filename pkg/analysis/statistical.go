package analysis

import (
	"context"

	"github.com/scottring/family-planner-sub006/pkg/extract"
	"github.com/scottring/family-planner-sub006/pkg/segment"
)

// Statistical runs the pattern extractor and segmenter over the input.
type Statistical struct{}

func (Statistical) Name() string { return MethodNLP }

func (Statistical) Analyze(ctx context.Context, in Input) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bag := extract.New(in.Roster, in.now()).Extract(in.Text)
	parse := segment.Parse(in.Text, bag)

	r := &Result{
		Analyzer:        MethodNLP,
		Urgency:         bag.Urgency,
		Entities:        bagEntities(bag),
		Confidence:      parse.Confidence,
		Parse:           &parse,
		ExplicitUrgency: bag.HasExplicitUrgency(),
	}
	if parse.Type.IsEvent() {
		r.Category = CategoryEvent
	} else {
		r.Category = CategoryTask
	}
	return r, nil
}

func bagEntities(bag extract.EntityBag) Entities {
	var e Entities
	for _, p := range bag.People {
		e.People = union(e.People, []string{p.Name})
	}
	for _, l := range bag.Locations {
		e.Places = union(e.Places, []string{l.Location})
	}
	for _, d := range bag.Dates {
		e.Dates = union(e.Dates, []string{d.Formatted})
	}
	for _, t := range bag.Times {
		if t.Formatted != "" {
			e.Times = union(e.Times, []string{t.Formatted})
		}
	}
	return e
}
