package family

import (
	"context"
	"strings"
)

// Member is one person in the household.
type Member struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Roster is the ordered list of household members used to recognise names
// in captured text.
type Roster []Member

// Find returns the member whose name matches case-insensitively.
func (r Roster) Find(name string) (Member, bool) {
	for _, m := range r {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return Member{}, false
}

// Names returns member names in roster order.
func (r Roster) Names() []string {
	names := make([]string, 0, len(r))
	for _, m := range r {
		names = append(names, m.Name)
	}
	return names
}

// Source loads the roster for a household owner.
type Source interface {
	Roster(ctx context.Context, ownerID string) (Roster, error)
}

// Static is a fixed roster, handy for the CLI and tests.
type Static Roster

// Roster implements Source.
func (s Static) Roster(_ context.Context, _ string) (Roster, error) {
	return Roster(s), nil
}
