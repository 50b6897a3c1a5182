package calendar

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/scottring/family-planner-sub006/pkg/capture"
	"github.com/scottring/family-planner-sub006/pkg/db"
)

// mockCalendarAPI is a test double for CalendarAPI.
type mockCalendarAPI struct {
	created      []Event
	updatedCalls []updateCall
	fail         error
}

type updateCall struct {
	EventID string
	Event   Event
}

func (m *mockCalendarAPI) CreateEvent(_ context.Context, e Event) (string, error) {
	if m.fail != nil {
		return "", m.fail
	}
	m.created = append(m.created, e)
	return "mock-" + e.Summary, nil
}

func (m *mockCalendarAPI) UpdateEvent(_ context.Context, eventID string, e Event) error {
	m.updatedCalls = append(m.updatedCalls, updateCall{EventID: eventID, Event: e})
	return nil
}

func setupTestDB(t *testing.T) *db.Repository {
	t.Helper()
	database, err := db.NewDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return db.NewRepository(database)
}

func conversion(start time.Time, allDay bool) (*capture.Item, *capture.Target, *capture.ConversionRef) {
	end := start.Add(time.Hour)
	if allDay {
		end = start.AddDate(0, 0, 1)
	}
	item := &capture.Item{ID: "c1", InputChannel: capture.ChannelSMS}
	target := &capture.Target{
		Type:        capture.TargetEvent,
		Title:       "Dentist",
		Description: "dentist thursday 4pm",
		Location:    "Main St Clinic",
		AssignedTo:  "Emma",
		Start:       &start,
		End:         &end,
		AllDay:      allDay,
	}
	return item, target, &capture.ConversionRef{Type: capture.TargetEvent, ID: "evt-1"}
}

func TestSinkCreatesAndRecords(t *testing.T) {
	repo := setupTestDB(t)
	api := &mockCalendarAPI{}
	sink := NewSink(api, repo)
	start := time.Date(2026, 10, 15, 16, 0, 0, 0, time.UTC)
	item, target, ref := conversion(start, false)

	if err := sink.Deliver(context.Background(), item, target, ref); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(api.created) != 1 {
		t.Fatalf("expected 1 created event, got %d", len(api.created))
	}
	e := api.created[0]
	if e.Summary != "Dentist" || !e.StartTime.Equal(start) || e.Location != "Main St Clinic" {
		t.Errorf("event = %+v", e)
	}
	if !strings.Contains(e.Description, "Who: Emma") || !strings.Contains(e.Description, "Captured via sms (c1)") {
		t.Errorf("description = %q", e.Description)
	}

	rec, err := repo.GetCalendarSync(context.Background(), "evt-1")
	if err != nil || rec == nil || rec.CalendarEventID != "mock-Dentist" {
		t.Fatalf("sync record = %+v, %v", rec, err)
	}

	// A second delivery updates instead of duplicating.
	if err := sink.Deliver(context.Background(), item, target, ref); err != nil {
		t.Fatalf("redeliver: %v", err)
	}
	if len(api.created) != 1 || len(api.updatedCalls) != 1 || api.updatedCalls[0].EventID != "mock-Dentist" {
		t.Errorf("created %d, updates %+v", len(api.created), api.updatedCalls)
	}
}

func TestSinkIgnoresTasks(t *testing.T) {
	api := &mockCalendarAPI{}
	sink := NewSink(api, setupTestDB(t))
	item := &capture.Item{ID: "c1"}
	err := sink.Deliver(context.Background(), item, &capture.Target{Type: capture.TargetTask}, &capture.ConversionRef{Type: capture.TargetTask, ID: "t1"})
	if err != nil || len(api.created) != 0 {
		t.Errorf("task delivered to calendar: %v, %d", err, len(api.created))
	}
}

func TestSinkPropagatesErrors(t *testing.T) {
	api := &mockCalendarAPI{fail: errors.New("quota")}
	sink := NewSink(api, setupTestDB(t))
	item, target, ref := conversion(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), true)
	if err := sink.Deliver(context.Background(), item, target, ref); err == nil {
		t.Error("expected error")
	}
}

func TestToGCalEvent(t *testing.T) {
	start := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	ev := toGCalEvent(Event{Summary: "Field trip", StartTime: start, EndTime: start.AddDate(0, 0, 1), AllDay: true})
	if ev.Start.Date != "2026-10-15" || ev.End.Date != "2026-10-16" || ev.Start.DateTime != "" {
		t.Errorf("all-day event = %+v / %+v", ev.Start, ev.End)
	}

	timed := toGCalEvent(Event{Summary: "Dentist", StartTime: start.Add(16 * time.Hour), EndTime: start.Add(17 * time.Hour)})
	if timed.Start.DateTime != "2026-10-15T16:00:00Z" || timed.End.DateTime != "2026-10-15T17:00:00Z" {
		t.Errorf("timed event = %+v / %+v", timed.Start, timed.End)
	}
}
