// Package calendar pushes converted events to Google Calendar.
package calendar

import (
	"context"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Event is a simplified calendar event.
type Event struct {
	Summary     string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	AllDay      bool
}

// CalendarAPI is the part of Google Calendar the sink uses.
type CalendarAPI interface {
	CreateEvent(ctx context.Context, e Event) (string, error)
	UpdateEvent(ctx context.Context, eventID string, e Event) error
}

// Service wraps the Google Calendar API.
type Service struct {
	srv        *gcal.Service
	calendarID string
}

var _ CalendarAPI = (*Service)(nil)

// NewService creates a Calendar service for calendarID.
func NewService(ctx context.Context, calendarID string, opts ...option.ClientOption) (*Service, error) {
	srv, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Service{srv: srv, calendarID: calendarID}, nil
}

// CreateEvent creates a new event and returns its ID.
func (s *Service) CreateEvent(ctx context.Context, e Event) (string, error) {
	created, err := s.srv.Events.Insert(s.calendarID, toGCalEvent(e)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create event: %w", err)
	}
	return created.Id, nil
}

// UpdateEvent replaces an existing event.
func (s *Service) UpdateEvent(ctx context.Context, eventID string, e Event) error {
	_, err := s.srv.Events.Update(s.calendarID, eventID, toGCalEvent(e)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

func toGCalEvent(e Event) *gcal.Event {
	ev := &gcal.Event{
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
	}
	if e.AllDay {
		// The end date is exclusive.
		ev.Start = &gcal.EventDateTime{Date: e.StartTime.Format("2006-01-02")}
		ev.End = &gcal.EventDateTime{Date: e.EndTime.Format("2006-01-02")}
		return ev
	}
	ev.Start = &gcal.EventDateTime{DateTime: e.StartTime.Format(time.RFC3339)}
	ev.End = &gcal.EventDateTime{DateTime: e.EndTime.Format(time.RFC3339)}
	return ev
}
