package calendar

import (
	"context"
	"fmt"
	"strings"

	"github.com/scottring/family-planner-sub006/pkg/capture"
	"github.com/scottring/family-planner-sub006/pkg/db"
)

// SyncRecords remembers which calendar event each converted event became.
type SyncRecords interface {
	GetCalendarSync(ctx context.Context, eventID string) (*db.CalendarSync, error)
	InsertCalendarSync(ctx context.Context, eventID, calendarEventID string) error
}

// Sink creates a calendar event for every capture converted to an event.
type Sink struct {
	api     CalendarAPI
	records SyncRecords
}

var _ capture.Sink = (*Sink)(nil)

// NewSink creates a calendar sink.
func NewSink(api CalendarAPI, records SyncRecords) *Sink {
	return &Sink{api: api, records: records}
}

func (s *Sink) Name() string { return "calendar" }

// Deliver implements capture.Sink. Tasks are ignored.
func (s *Sink) Deliver(ctx context.Context, item *capture.Item, target *capture.Target, ref *capture.ConversionRef) error {
	if ref.Type != capture.TargetEvent || target.Start == nil || target.End == nil {
		return nil
	}
	e := Event{
		Summary:     target.Title,
		Description: describe(item, target),
		Location:    target.Location,
		StartTime:   *target.Start,
		EndTime:     *target.End,
		AllDay:      target.AllDay,
	}

	rec, err := s.records.GetCalendarSync(ctx, ref.ID)
	if err != nil {
		return err
	}
	if rec != nil {
		return s.api.UpdateEvent(ctx, rec.CalendarEventID, e)
	}
	id, err := s.api.CreateEvent(ctx, e)
	if err != nil {
		return err
	}
	if err := s.records.InsertCalendarSync(ctx, ref.ID, id); err != nil {
		return fmt.Errorf("calendar event %s created but not recorded: %w", id, err)
	}
	return nil
}

func describe(item *capture.Item, target *capture.Target) string {
	var b strings.Builder
	b.WriteString(target.Description)
	if target.AssignedTo != "" {
		b.WriteString("\n\nWho: " + target.AssignedTo)
	}
	fmt.Fprintf(&b, "\n\nCaptured via %s (%s)", item.InputChannel, item.ID)
	return strings.TrimSpace(b.String())
}
