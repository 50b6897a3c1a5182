package capture

import (
	"context"
	"time"

	"github.com/scottring/family-planner-sub006/pkg/analysis"
)

// Store persists capture items, attachments, settings and conversion
// targets. Getters return nil, nil when the record does not exist.
type Store interface {
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, id string) (*Item, error)
	ListItems(ctx context.Context, f Filter) ([]*Item, error)
	SaveAnalysis(ctx context.Context, id string, a *analysis.Final, processedAt time.Time) error
	SetAttachment(ctx context.Context, itemID, attachmentID string) error

	// CompareAndSetStatus moves id to `to` only if its current status is one
	// of from. It reports whether the row changed.
	CompareAndSetStatus(ctx context.Context, id string, from []Status, to Status) (bool, error)

	// Convert atomically moves id from one of from to converted, inserts the
	// target record and records the reference. ok is false when the status
	// guard failed and nothing was written.
	Convert(ctx context.Context, id string, from []Status, target *Target) (ref *ConversionRef, ok bool, err error)

	CreateAttachment(ctx context.Context, att *Attachment) error
	UpdateAttachment(ctx context.Context, att *Attachment) error
	GetAttachment(ctx context.Context, id string) (*Attachment, error)

	Stats(ctx context.Context, ownerID string) (*Stats, error)

	GetSettings(ctx context.Context, ownerID string) (*Settings, error)
	SaveSettings(ctx context.Context, s *Settings) error
	OwnerByPhone(ctx context.Context, digits string) (string, error)
}

// Sink receives every successful conversion after the store has recorded
// it. Sink failures are logged and never undo the conversion.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, item *Item, target *Target, ref *ConversionRef) error
}

// Recorder receives pipeline measurements.
type Recorder interface {
	analysis.Observer
	ObserveCapture(channel string, d time.Duration, degraded bool)
	ObserveOCR(outcome string, d time.Duration)
	ObserveConversion(target, outcome string)
}
