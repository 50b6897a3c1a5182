package extract

import "time"

// Entity sources.
const (
	SourcePattern    = "pattern"
	SourceDictionary = "dictionary"
	SourceRoster     = "roster"
	SourceExtraction = "extraction"
)

// TimeEntity is a clock time, a time range, a relative offset or a casual
// part of day.
type TimeEntity struct {
	Kind       string    `json:"kind"` // specific, range, relative, casual
	Raw        string    `json:"raw"`
	Formatted  string    `json:"formatted,omitempty"` // HH:MM, start of a range
	End        string    `json:"end,omitempty"`
	Amount     int       `json:"amount,omitempty"`
	Unit       string    `json:"unit,omitempty"`
	At         time.Time `json:"at,omitempty"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
}

// DateEntity is a resolved calendar day.
type DateEntity struct {
	Kind       string    `json:"kind"` // numeric, written, relative
	Raw        string    `json:"raw"`
	Date       time.Time `json:"date"`
	Formatted  string    `json:"formatted"` // YYYY-MM-DD
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
}

// LocationEntity is a place mention.
type LocationEntity struct {
	Kind       string  `json:"kind"` // general, venue, address
	Raw        string  `json:"raw"`
	Location   string  `json:"location"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// PersonEntity is a roster member or an unknown capitalised name.
type PersonEntity struct {
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	Raw        string  `json:"raw"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// ActivityEntity is a keyword hit in one of the activity buckets.
type ActivityEntity struct {
	Activity   string  `json:"activity"`
	Category   string  `json:"category"`
	Raw        string  `json:"raw"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Rule describes how an item repeats. DaysOfWeek uses 1=Monday..7=Sunday.
type Rule struct {
	Frequency  string `json:"frequency"` // daily, weekly, monthly
	Interval   int    `json:"interval"`
	DaysOfWeek []int  `json:"daysOfWeek,omitempty"`
}

// RecurrenceEntity is a repetition phrase and the rule it implies.
type RecurrenceEntity struct {
	Kind       string  `json:"kind"` // daily, weekly, biweekly, monthly, multiple_days
	Raw        string  `json:"raw"`
	Rule       Rule    `json:"rule"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// EntityBag is everything extracted from one span of text.
type EntityBag struct {
	Times       []TimeEntity       `json:"times"`
	Dates       []DateEntity       `json:"dates"`
	Locations   []LocationEntity   `json:"locations"`
	People      []PersonEntity     `json:"people"`
	Activities  []ActivityEntity   `json:"activities"`
	Recurring   []RecurrenceEntity `json:"recurring"`
	Urgency     int                `json:"urgency"`
	UrgencyCues []string           `json:"urgencyCues,omitempty"`
}

// HasSchedule reports whether any time or date was found.
func (b EntityBag) HasSchedule() bool {
	return len(b.Times) > 0 || len(b.Dates) > 0
}

// ActivityCategory returns the bucket of the first activity hit, or "".
func (b EntityBag) ActivityCategory() string {
	if len(b.Activities) == 0 {
		return ""
	}
	return b.Activities[0].Category
}
