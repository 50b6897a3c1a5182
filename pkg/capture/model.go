// Package capture owns capture items from the moment a channel hands them
// over until they are converted, archived or deleted.
package capture

import (
	"strconv"
	"strings"
	"time"

	"github.com/scottring/family-planner-sub006/pkg/analysis"
	capterr "github.com/scottring/family-planner-sub006/pkg/errors"
	"github.com/scottring/family-planner-sub006/pkg/ocr"
)

// Channel is how a capture arrived.
type Channel string

const (
	ChannelText  Channel = "text"
	ChannelVoice Channel = "voice"
	ChannelImage Channel = "image"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func (c Channel) valid() bool {
	switch c {
	case ChannelText, ChannelVoice, ChannelImage, ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

// SourceType groups channels by origin.
type SourceType string

const (
	SourceManual SourceType = "manual"
	SourceEmail  SourceType = "email"
	SourceSMS    SourceType = "sms"
	SourceImage  SourceType = "image"
)

func sourceFor(c Channel) SourceType {
	switch c {
	case ChannelEmail:
		return SourceEmail
	case ChannelSMS:
		return SourceSMS
	case ChannelImage:
		return SourceImage
	}
	return SourceManual
}

// Status is a capture item's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusConverted  Status = "converted"
	StatusArchived   Status = "archived"
	StatusDeleted    Status = "deleted"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusConverted, StatusArchived, StatusDeleted},
	StatusProcessing: {StatusPending, StatusConverted, StatusArchived, StatusDeleted},
	StatusArchived:   {StatusDeleted},
}

// CanTransition reports whether an item may move from one status to another.
// Converted and deleted are terminal.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// sourcesOf lists every status that may move to `to`.
func sourcesOf(to Status) []Status {
	var out []Status
	for _, from := range []Status{StatusPending, StatusProcessing, StatusArchived} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// Target types for conversion.
const (
	TargetEvent = "event"
	TargetTask  = "task"
)

// ConversionRef points at the event or task an item became.
type ConversionRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Item is one unit of captured input.
type Item struct {
	ID             string            `json:"id"`
	OwnerID        string            `json:"ownerId"`
	RawContent     string            `json:"rawContent"`
	InputChannel   Channel           `json:"inputChannel"`
	SourceType     SourceType        `json:"sourceType"`
	Status         Status            `json:"status"`
	UrgencyScore   int               `json:"urgencyScore"`
	Category       string            `json:"category"`
	Analysis       *analysis.Final   `json:"analysis,omitempty"`
	AttachmentID   string            `json:"attachmentId,omitempty"`
	ConvertedTo    *ConversionRef    `json:"convertedTo,omitempty"`
	SourceMetadata map[string]string `json:"sourceMetadata,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	ProcessedAt    *time.Time        `json:"processedAt,omitempty"`
}

// AttachmentStatus is the OCR state of an attachment.
type AttachmentStatus string

const (
	AttachmentPending    AttachmentStatus = "pending"
	AttachmentProcessing AttachmentStatus = "processing"
	AttachmentCompleted  AttachmentStatus = "completed"
	AttachmentFailed     AttachmentStatus = "failed"
)

// Attachment is an uploaded image and what OCR made of it.
type Attachment struct {
	ID               string           `json:"id"`
	CaptureItemID    string           `json:"captureItemId"`
	FilePath         string           `json:"filePath"`
	FileType         string           `json:"fileType"`
	FileSize         int64            `json:"fileSize"`
	ProcessingStatus AttachmentStatus `json:"processingStatus"`
	OCRText          string           `json:"ocrText,omitempty"`
	OCRConfidence    float64          `json:"ocrConfidence"`
	ExtractedData    *ocr.Fields      `json:"extractedData,omitempty"`
	ProcessingError  string           `json:"processingError,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// Metadata keys understood in Envelope.SourceMetadata.
const (
	MetaEmailFrom      = "from"
	MetaEmailSubject   = "subject"
	MetaEmailCategory  = "email_category"
	MetaEmailUrgency   = "email_urgency"
	MetaHasAttachments = "has_attachments"
	MetaSMSCommand     = "command"
	MetaSMSFrom        = "sms_from"
	MetaOCRThreshold   = "ocr_confidence_threshold"
	MetaMessageID      = "message_id"
)

// Envelope is what a channel adapter hands to the manager.
type Envelope struct {
	OwnerID         string            `json:"ownerId"`
	InputChannel    Channel           `json:"inputChannel"`
	RawContent      string            `json:"rawContent"`
	AttachmentBytes []byte            `json:"-"`
	AttachmentName  string            `json:"attachmentName,omitempty"`
	SourceMetadata  map[string]string `json:"sourceMetadata,omitempty"`
}

// Validate rejects envelopes the pipeline cannot accept.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.OwnerID) == "" {
		return capterr.NewValidation("ownerId is required")
	}
	if !validOwnerID(e.OwnerID) {
		return capterr.NewValidation("ownerId must not contain path separators or '..'")
	}
	if !e.InputChannel.valid() {
		return capterr.NewValidation("unknown input channel: " + string(e.InputChannel))
	}
	if strings.TrimSpace(e.RawContent) == "" && len(e.AttachmentBytes) == 0 {
		return capterr.NewValidation("rawContent or an attachment is required")
	}
	if e.InputChannel == ChannelImage && len(e.AttachmentBytes) == 0 {
		return capterr.NewValidation("image captures need an attachment")
	}
	if v, ok := e.SourceMetadata[MetaOCRThreshold]; ok {
		if t, err := strconv.ParseFloat(v, 64); err != nil || t < 0 || t > 1 {
			return capterr.NewValidation("ocr_confidence_threshold must be a number between 0 and 1")
		}
	}
	return nil
}

// validOwnerID reports whether id is safe to use as an upload directory name.
func validOwnerID(id string) bool {
	return !strings.ContainsAny(id, `/\`+"\x00") && !strings.Contains(id, "..")
}

// Overrides replace analysis-derived fields during conversion.
type Overrides struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Start       *time.Time `json:"startTime,omitempty"`
	End         *time.Time `json:"endTime,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Location    string     `json:"location,omitempty"`
	AssignedTo  string     `json:"assignedTo,omitempty"`
	Priority    int        `json:"priority,omitempty"`
	Category    string     `json:"category,omitempty"`
}

// Target is the event or task record produced by a conversion.
type Target struct {
	ID          string     `json:"id,omitempty"`
	Type        string     `json:"type"`
	OwnerID     string     `json:"ownerId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Start       *time.Time `json:"startTime,omitempty"`
	End         *time.Time `json:"endTime,omitempty"`
	AllDay      bool       `json:"allDay,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Location    string     `json:"location,omitempty"`
	AssignedTo  string     `json:"assignedTo,omitempty"`
	Priority    int        `json:"priority"`
	Category    string     `json:"category"`
	SourceItem  string     `json:"sourceItemId"`
	Completed   bool       `json:"completed,omitempty"`
}

// Filter narrows List.
type Filter struct {
	OwnerID  string
	Status   Status
	Channel  Channel
	Category string
	Contains string
	Limit    int
}

// Stats summarises one owner's inbox.
type Stats struct {
	Total      int            `json:"total"`
	Pending    int            `json:"pending"`
	ByStatus   map[string]int `json:"byStatus"`
	ByChannel  map[string]int `json:"byChannel"`
	ByCategory map[string]int `json:"byCategory"`
	Urgent     int            `json:"urgent"`
}
