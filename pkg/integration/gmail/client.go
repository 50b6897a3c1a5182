package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Email is the part of a Gmail message the capture pipeline uses.
type Email struct {
	ID             string
	From           string
	Subject        string
	Body           string
	HasAttachments bool
	Image          *Attachment
}

// Attachment is the first image attached to an email.
type Attachment struct {
	Name string
	Data []byte
}

// Mailbox lists unread mail and marks it read.
type Mailbox interface {
	Fetch(ctx context.Context, user, query string) ([]Email, error)
	MarkRead(ctx context.Context, user, id string) error
}

// Service wraps the Gmail API service
type Service struct {
	srv *gmail.Service
}

var _ Mailbox = (*Service)(nil)

// NewService creates a new Gmail service using an authenticated HTTP client
func NewService(ctx context.Context, client *http.Client) (*Service, error) {
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Gmail client: %w", err)
	}

	return &Service{srv: srv}, nil
}

// Fetch returns the messages of user matching query. user is an address
// the credentials may impersonate, or "me".
func (s *Service) Fetch(ctx context.Context, user, query string) ([]Email, error) {
	r, err := s.srv.Users.Messages.List(user).Q(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve messages: %w", err)
	}

	var emails []Email
	for _, m := range r.Messages {
		msg, err := s.srv.Users.Messages.Get(user, m.Id).Format("full").Context(ctx).Do()
		if err != nil {
			continue // Skip if fail to get details
		}
		email := Email{
			ID:      msg.Id,
			From:    header(msg, "From"),
			Subject: header(msg, "Subject"),
			Body:    GetBody(msg),
		}
		if part := imagePart(msg.Payload); part != nil {
			email.HasAttachments = true
			if data, err := s.attachment(ctx, user, msg.Id, part); err == nil {
				email.Image = &Attachment{Name: part.Filename, Data: data}
			}
		} else {
			email.HasAttachments = hasFiles(msg.Payload)
		}
		emails = append(emails, email)
	}

	return emails, nil
}

// MarkRead removes the UNREAD label.
func (s *Service) MarkRead(ctx context.Context, user, id string) error {
	req := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{"UNREAD"}}
	if _, err := s.srv.Users.Messages.Modify(user, id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to mark message %s read: %w", id, err)
	}
	return nil
}

func (s *Service) attachment(ctx context.Context, user, msgID string, part *gmail.MessagePart) ([]byte, error) {
	if part.Body.Data != "" {
		return decode(part.Body.Data)
	}
	body, err := s.srv.Users.Messages.Attachments.Get(user, msgID, part.Body.AttachmentId).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to download attachment: %w", err)
	}
	return decode(body.Data)
}

func header(msg *gmail.Message, name string) string {
	if msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// GetBody extracts the text body of a message, preferring text/plain over
// text/html.
func GetBody(msg *gmail.Message) string {
	if msg.Payload == nil {
		return ""
	}
	if text := findBody(msg.Payload, "text/plain"); text != "" {
		return text
	}
	if html := findBody(msg.Payload, "text/html"); html != "" {
		return stripTags(html)
	}
	if msg.Payload.Body != nil && msg.Payload.Body.Data != "" {
		data, _ := decode(msg.Payload.Body.Data)
		return string(data)
	}
	return ""
}

func findBody(part *gmail.MessagePart, mimeType string) string {
	if part.MimeType == mimeType && part.Filename == "" && part.Body != nil && part.Body.Data != "" {
		data, err := decode(part.Body.Data)
		if err == nil {
			return string(data)
		}
	}
	for _, p := range part.Parts {
		if text := findBody(p, mimeType); text != "" {
			return text
		}
	}
	return ""
}

func imagePart(part *gmail.MessagePart) *gmail.MessagePart {
	if part == nil {
		return nil
	}
	if part.Filename != "" && strings.HasPrefix(part.MimeType, "image/") && part.Body != nil {
		return part
	}
	for _, p := range part.Parts {
		if found := imagePart(p); found != nil {
			return found
		}
	}
	return nil
}

func hasFiles(part *gmail.MessagePart) bool {
	if part == nil {
		return false
	}
	if part.Filename != "" {
		return true
	}
	for _, p := range part.Parts {
		if hasFiles(p) {
			return true
		}
	}
	return false
}

// decode accepts both padded and unpadded URL-safe base64, which Gmail mixes.
func decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func stripTags(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
