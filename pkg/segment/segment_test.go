package segment

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottring/family-planner-sub006/pkg/extract"
	"github.com/scottring/family-planner-sub006/pkg/family"
)

var wednesday = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

var roster = family.Roster{{Name: "Jack", Role: "child"}, {Name: "Emma", Role: "child"}}

func parse(text string) Result {
	return Parse(text, extract.New(roster, wednesday).Extract(text))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want ItemType
	}{
		{"soccer tomorrow", TypeEvent},
		{"pick up at 3pm", TypeEvent},
		{"every day take vitamins", TypeRecurringTask},
		{"piano every tuesday at 4pm", TypeRecurringEvent},
		{"need to buy milk", TypeTask},
		{"don't forget the permission slip", TypeTask},
		{"call grandma", TypeEvent},
		{"dentist appointment", TypeEvent},
		{"buy milk", TypeTask},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			bag := extract.New(roster, wednesday).Extract(tt.text)
			assert.Equal(t, tt.want, Classify(tt.text, bag))
		})
	}
}

func TestSoccerPractice(t *testing.T) {
	res := parse("soccer practice tomorrow at 4pm at Lincoln Park")

	assert.Equal(t, TypeEvent, res.Type)
	require.Len(t, res.Items, 1)
	it := res.Items[0]
	assert.Equal(t, "soccer practice tomorrow", it.Title)
	assert.Equal(t, "16:00", it.StartTime)
	assert.Equal(t, "2026-10-15", it.DueDate)
	assert.Contains(t, it.Location, "Lincoln Park")
	require.Len(t, it.Entities.Dates, 1)
	assert.Equal(t, "2026-10-15", it.Entities.Dates[0].Formatted)
	assert.Equal(t, 0.7, it.Confidence)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestObligationPrefixStripped(t *testing.T) {
	res := parse("remember to call the dentist")

	assert.Equal(t, TypeTask, res.Type)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "call the dentist", res.Items[0].Title)
	assert.Empty(t, res.Items[0].AssignedTo)
	assert.Equal(t, 3, res.Items[0].Priority)
	assert.InDelta(t, 0.6, res.Confidence, 1e-9)
}

func TestSingleSentenceRoundTrip(t *testing.T) {
	for _, text := range []string{"Buy milk", "Water the plants.", "Fix the fence"} {
		res := parse(text)
		require.Len(t, res.Items, 1, text)
		assert.Equal(t, strings.TrimSuffix(text, "."), res.Items[0].Title)
	}
}

func TestSplitsOnConjunctions(t *testing.T) {
	res := parse("Buy milk and pick up Jack from school. Call the plumber!")

	require.Len(t, res.Items, 3)
	assert.Equal(t, "Buy milk", res.Items[0].Title)
	assert.Equal(t, "pick up Jack from school", res.Items[1].Title)
	assert.Equal(t, "Jack", res.Items[1].AssignedTo)
	assert.Empty(t, res.Items[0].AssignedTo)
	assert.Equal(t, "Call the plumber", res.Items[2].Title)
}

func TestRecurringDaysStayTogether(t *testing.T) {
	res := parse("Swim on Monday and Wednesday at 5pm")

	assert.Equal(t, TypeRecurringEvent, res.Type)
	require.Len(t, res.Items, 1)
	it := res.Items[0]
	assert.Equal(t, "Swim", it.Title)
	assert.Equal(t, "17:00", it.StartTime)
	require.NotNil(t, it.Recurrence)
	assert.Equal(t, extract.Rule{Frequency: "weekly", Interval: 1, DaysOfWeek: []int{1, 3}}, *it.Recurrence)
}

func TestTimeRange(t *testing.T) {
	res := parse("team meeting 2-3pm")
	require.Len(t, res.Items, 1)
	assert.Equal(t, "14:00", res.Items[0].StartTime)
	assert.Equal(t, "15:00", res.Items[0].EndTime)
}

func TestRosterPreferredAsAssignee(t *testing.T) {
	res := parse("Mrs Baker drives Emma to practice at 5pm")
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Emma", res.Items[0].AssignedTo)
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "take out the trash", CleanTitle("Don't forget to take out the trash"))
	assert.Equal(t, "water the garden", CleanTitle("every morning water the garden"))
	assert.Equal(t, "dinner", CleanTitle("dinner at Mario's on Friday"))

	long := strings.Repeat("é", 150)
	assert.Equal(t, 100, len([]rune(CleanTitle(long))))
}

func TestSuggestions(t *testing.T) {
	res := parse("call grandma")

	require.Len(t, res.Items, 1)
	var kinds []string
	for _, s := range res.Suggestions {
		kinds = append(kinds, s.Type)
		assert.Equal(t, 0, s.ItemIndex)
	}
	assert.Equal(t, []string{"missing_time", "missing_assignee", "missing_location"}, kinds)
	assert.Equal(t, "What time is the call grandma?", res.Suggestions[0].Message)
}

func TestFilter(t *testing.T) {
	bag := extract.New(roster, wednesday).Extract("Jack has soccer at 4pm and Emma has piano at 6pm")
	sub := Filter("Emma has piano at 6pm", bag)

	require.Len(t, sub.People, 1)
	assert.Equal(t, "Emma", sub.People[0].Name)
	require.Len(t, sub.Times, 1)
	assert.Equal(t, "18:00", sub.Times[0].Formatted)
	assert.Equal(t, bag.Urgency, sub.Urgency)
}
