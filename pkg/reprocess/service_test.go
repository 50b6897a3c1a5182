package reprocess

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/scottring/family-planner-sub006/pkg/analysis"
	"github.com/scottring/family-planner-sub006/pkg/capture"
)

type stubStore struct {
	items     []*capture.Item
	olderThan time.Time
	limit     int
}

func (s *stubStore) PendingItems(_ context.Context, olderThan time.Time, limit int) ([]*capture.Item, error) {
	s.olderThan, s.limit = olderThan, limit
	return s.items, nil
}

type stubManager struct {
	calls   []string
	recover map[string]bool
	fail    map[string]bool
}

func (m *stubManager) Reprocess(_ context.Context, id string) (*capture.Item, error) {
	m.calls = append(m.calls, id)
	if m.fail[id] {
		return nil, errors.New("provider down")
	}
	item := &capture.Item{ID: id, Status: capture.StatusPending}
	if m.recover[id] {
		item.Analysis = &analysis.Final{Urgency: 3, Category: "school"}
	} else {
		fb := analysis.Fallback("ai timeout")
		item.Analysis = &fb
	}
	return item, nil
}

var now = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func pending(id string, a *analysis.Final) *capture.Item {
	return &capture.Item{ID: id, Status: capture.StatusPending, Analysis: a}
}

func TestRunOnceRetriesDegradedOnly(t *testing.T) {
	healthy := &analysis.Final{Urgency: 2, Category: "note"}
	fb := analysis.Fallback("ai timeout")
	store := &stubStore{items: []*capture.Item{
		pending("c1", nil),
		pending("c2", healthy),
		pending("c3", &fb),
	}}
	mgr := &stubManager{recover: map[string]bool{"c1": true}}
	svc := NewService(store, mgr, 10*time.Minute, WithClock(func() time.Time { return now }), WithBatch(5))

	n := svc.RunOnce(context.Background())

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"c1", "c3"}, mgr.calls)
	assert.Equal(t, now.Add(-10*time.Minute), store.olderThan)
	assert.Equal(t, 5, store.limit)
}

func TestRunOnceStopsAfterMaxAttempts(t *testing.T) {
	store := &stubStore{items: []*capture.Item{pending("c1", nil), pending("c2", nil)}}
	mgr := &stubManager{fail: map[string]bool{"c2": true}}
	svc := NewService(store, mgr, time.Minute, WithMaxAttempts(2))

	for i := 0; i < 4; i++ {
		svc.RunOnce(context.Background())
	}

	counts := map[string]int{}
	for _, id := range mgr.calls {
		counts[id]++
	}
	assert.Equal(t, 2, counts["c1"])
	assert.Equal(t, 2, counts["c2"])
}

func TestRecoveredItemsForgetAttempts(t *testing.T) {
	store := &stubStore{items: []*capture.Item{pending("c1", nil)}}
	mgr := &stubManager{recover: map[string]bool{"c1": true}}
	svc := NewService(store, mgr, time.Minute, WithMaxAttempts(1))

	svc.RunOnce(context.Background())
	_, tracked := svc.attempts.Get("c1")
	assert.False(t, tracked)
}

func TestStartStop(t *testing.T) {
	svc := NewService(&stubStore{}, &stubManager{}, time.Millisecond)
	svc.Start(context.Background())
	time.Sleep(5 * time.Millisecond)
	svc.Stop()
}
