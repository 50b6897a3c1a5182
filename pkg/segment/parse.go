package segment

import (
	"fmt"

	"github.com/scottring/family-planner-sub006/pkg/extract"
)

// Suggestion asks the user for something an item is missing.
type Suggestion struct {
	Type      string `json:"type"` // missing_time, missing_assignee, missing_location
	Message   string `json:"message"`
	ItemIndex int    `json:"itemIndex"`
}

// Result is the full parse of one text.
type Result struct {
	Type        ItemType          `json:"type"`
	Items       []ParsedItem      `json:"items"`
	Entities    extract.EntityBag `json:"entities"`
	Confidence  float64           `json:"confidence"`
	Suggestions []Suggestion      `json:"suggestions"`
}

// Parse classifies text, segments it and scores the result.
func Parse(text string, bag extract.EntityBag) Result {
	t := Classify(text, bag)
	items := Segment(text, bag, t)
	return Result{
		Type:        t,
		Items:       items,
		Entities:    bag,
		Confidence:  Confidence(bag, t),
		Suggestions: Suggestions(items),
	}
}

// Suggestions lists the follow-up questions for items: events without a
// time or place, and plain events or tasks without anyone assigned.
func Suggestions(items []ParsedItem) []Suggestion {
	var out []Suggestion
	for i, it := range items {
		if it.Type == TypeEvent && it.StartTime == "" {
			out = append(out, Suggestion{
				Type:      "missing_time",
				Message:   fmt.Sprintf("What time is the %s?", it.Title),
				ItemIndex: i,
			})
		}
		if (it.Type == TypeEvent || it.Type == TypeTask) && it.AssignedTo == "" {
			out = append(out, Suggestion{
				Type:      "missing_assignee",
				Message:   fmt.Sprintf("Who is responsible for %s?", it.Title),
				ItemIndex: i,
			})
		}
		if it.Type == TypeEvent && it.Location == "" {
			out = append(out, Suggestion{
				Type:      "missing_location",
				Message:   fmt.Sprintf("Where is %s taking place?", it.Title),
				ItemIndex: i,
			})
		}
	}
	return out
}
