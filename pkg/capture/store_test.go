package capture

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/scottring/family-planner-sub006/pkg/analysis"
)

// memStore is an in-memory Store for manager tests.
type memStore struct {
	mu       sync.Mutex
	items    map[string]*Item
	order    []string
	atts     map[string]*Attachment
	settings map[string]*Settings
	targets  []*Target
}

func newMemStore() *memStore {
	return &memStore{
		items:    map[string]*Item{},
		atts:     map[string]*Attachment{},
		settings: map[string]*Settings{},
	}
}

func (s *memStore) CreateItem(_ context.Context, item *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.items[item.ID] = &cp
	s.order = append(s.order, item.ID)
	return nil
}

func (s *memStore) GetItem(_ context.Context, id string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (s *memStore) ListItems(_ context.Context, f Filter) ([]*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Item
	for i := len(s.order) - 1; i >= 0; i-- {
		item := s.items[s.order[i]]
		if item.OwnerID != f.OwnerID ||
			(f.Status != "" && item.Status != f.Status) ||
			(f.Contains != "" && !strings.Contains(strings.ToLower(item.RawContent), strings.ToLower(f.Contains))) {
			continue
		}
		cp := *item
		out = append(out, &cp)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) SaveAnalysis(_ context.Context, id string, a *analysis.Final, processedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.items[id]
	item.Analysis = a
	item.UrgencyScore = a.Urgency
	item.Category = a.Category
	item.ProcessedAt = &processedAt
	return nil
}

func (s *memStore) SetAttachment(_ context.Context, itemID, attID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[itemID].AttachmentID = attID
	return nil
}

func (s *memStore) CompareAndSetStatus(_ context.Context, id string, from []Status, to Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if item.Status == f {
			item.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) Convert(_ context.Context, id string, from []Status, target *Target) (*ConversionRef, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, false, nil
	}
	for _, f := range from {
		if item.Status == f {
			s.targets = append(s.targets, target)
			ref := &ConversionRef{Type: target.Type, ID: newID()}
			item.Status = StatusConverted
			item.ConvertedTo = ref
			return ref, true, nil
		}
	}
	return nil, false, nil
}

func (s *memStore) CreateAttachment(_ context.Context, att *Attachment) error {
	return s.UpdateAttachment(context.Background(), att)
}

func (s *memStore) UpdateAttachment(_ context.Context, att *Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *att
	s.atts[att.ID] = &cp
	return nil
}

func (s *memStore) GetAttachment(_ context.Context, id string) (*Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	att, ok := s.atts[id]
	if !ok {
		return nil, nil
	}
	cp := *att
	return &cp, nil
}

func (s *memStore) Stats(_ context.Context, ownerID string) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &Stats{ByStatus: map[string]int{}, ByChannel: map[string]int{}, ByCategory: map[string]int{}}
	for _, item := range s.items {
		if item.OwnerID != ownerID {
			continue
		}
		st.Total++
		st.ByStatus[string(item.Status)]++
		if item.Status == StatusPending {
			st.Pending++
		}
	}
	return st, nil
}

func (s *memStore) GetSettings(_ context.Context, ownerID string) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settings[ownerID]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (s *memStore) SaveSettings(_ context.Context, st *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *st
	s.settings[st.OwnerID] = &cp
	return nil
}

func (s *memStore) OwnerByPhone(_ context.Context, digits string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for owner, st := range s.settings {
		if d := Digits(st.SMS.PhoneNumber); d != "" && strings.Contains(d, digits) {
			return owner, nil
		}
	}
	return "", nil
}
