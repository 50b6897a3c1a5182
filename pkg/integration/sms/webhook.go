// Package sms turns Twilio-style SMS/MMS webhooks into capture commands and
// answers with TwiML.
package sms

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/scottring/family-planner-sub006/pkg/capture"
	"github.com/scottring/family-planner-sub006/pkg/command"
)

const (
	replyDisabled    = "SMS capture is not enabled for your account."
	replyPhotoFailed = "Sorry, I couldn't process the photo. Please try again."
	replyPhotoEmpty  = "Photo received, but I couldn't extract any useful information from it."

	maxMediaBytes = 10 << 20
)

// Captures is what the webhook needs from the capture manager.
type Captures interface {
	OwnerByPhone(ctx context.Context, phone string) (string, error)
	Settings(ctx context.Context, ownerID string) (*capture.Settings, error)
	AttachImage(ctx context.Context, ownerID, name string, data []byte, caption string, meta map[string]string) (*capture.Item, error)
}

// Commands executes text messages.
type Commands interface {
	Execute(ctx context.Context, req command.Request) string
}

// MediaFetcher downloads an MMS attachment.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Message is the parsed webhook form.
type Message struct {
	From  string
	To    string
	Body  string
	Media []Media
}

// Media is one MMS attachment reference.
type Media struct {
	URL         string
	ContentType string
}

// ParseMessage reads the Twilio form fields of r.
func ParseMessage(r *http.Request) (Message, error) {
	if err := r.ParseForm(); err != nil {
		return Message{}, fmt.Errorf("failed to parse webhook form: %w", err)
	}
	msg := Message{
		From: r.PostForm.Get("From"),
		To:   r.PostForm.Get("To"),
		Body: strings.TrimSpace(r.PostForm.Get("Body")),
	}
	n, _ := strconv.Atoi(r.PostForm.Get("NumMedia"))
	for i := 0; i < n; i++ {
		url := r.PostForm.Get(fmt.Sprintf("MediaUrl%d", i))
		if url == "" {
			continue
		}
		msg.Media = append(msg.Media, Media{URL: url, ContentType: r.PostForm.Get(fmt.Sprintf("MediaContentType%d", i))})
	}
	return msg, nil
}

// Handler serves the SMS webhook.
type Handler struct {
	captures Captures
	commands Commands
	media    MediaFetcher
	logger   *slog.Logger
}

// NewHandler creates the webhook handler. media may be nil, in which case
// photos are refused.
func NewHandler(c Captures, cmds Commands, media MediaFetcher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{captures: c, commands: cmds, media: media, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	msg, err := ParseMessage(r)
	if err != nil {
		http.Error(w, "Invalid webhook payload", http.StatusBadRequest)
		return
	}
	if msg.From == "" {
		http.Error(w, "From is required", http.StatusBadRequest)
		return
	}
	writeTwiML(w, h.Reply(r.Context(), msg))
}

// Reply handles msg and returns the text to send back.
func (h *Handler) Reply(ctx context.Context, msg Message) string {
	owner, err := h.captures.OwnerByPhone(ctx, msg.From)
	if err != nil {
		h.logger.Error("phone lookup failed", "error", err)
		return command.ReplyFailed
	}
	if owner == "" {
		return command.ReplyUnknownNumber
	}
	settings, err := h.captures.Settings(ctx, owner)
	if err != nil {
		h.logger.Error("settings lookup failed", "owner", owner, "error", err)
		return command.ReplyFailed
	}
	if !settings.SMS.Enabled {
		return replyDisabled
	}

	meta := map[string]string{capture.MetaSMSFrom: msg.From}
	if len(msg.Media) > 0 {
		return h.photos(ctx, owner, msg, meta)
	}
	return h.commands.Execute(ctx, command.Request{
		OwnerID:  owner,
		Channel:  capture.ChannelSMS,
		Text:     msg.Body,
		Metadata: meta,
	})
}

func (h *Handler) photos(ctx context.Context, owner string, msg Message, meta map[string]string) string {
	if h.media == nil {
		return replyPhotoFailed
	}
	var found []string
	for i, m := range msg.Media {
		if !strings.HasPrefix(m.ContentType, "image/") {
			continue
		}
		data, err := h.media.Fetch(ctx, m.URL)
		if err != nil {
			h.logger.Warn("media download failed", "owner", owner, "error", err)
			return replyPhotoFailed
		}
		name := fmt.Sprintf("sms-%d-%d%s", time.Now().Unix(), i, extFor(m.ContentType))
		item, err := h.captures.AttachImage(ctx, owner, name, data, msg.Body, meta)
		if err != nil {
			h.logger.Warn("photo capture failed", "owner", owner, "error", err)
			return replyPhotoFailed
		}
		found = append(found, formTitle(item))
	}
	switch len(found) {
	case 0:
		return replyPhotoEmpty
	case 1:
		return fmt.Sprintf("Photo processed! I found: \"%s\". Check your inbox for details.", found[0])
	}
	return fmt.Sprintf("%d photos processed! Check your inbox for details.", len(found))
}

func formTitle(item *capture.Item) string {
	if item.Analysis != nil {
		if ft, ok := item.Analysis.SourceContext["formType"]; ok {
			if s := fmt.Sprint(ft); s != "" {
				return s
			}
		}
	}
	return "Unknown document"
}

func extFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ".jpg"
}

type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

func writeTwiML(w http.ResponseWriter, reply string) {
	w.Header().Set("Content-Type", "text/xml")
	io.WriteString(w, xml.Header)
	if err := xml.NewEncoder(w).Encode(twiml{Message: reply}); err != nil {
		slog.Default().Error("failed to write TwiML", "error", err)
	}
}

// HTTPFetcher downloads media with HTTP basic auth, as Twilio requires.
type HTTPFetcher struct {
	client     *http.Client
	accountSID string
	authToken  string
}

// NewHTTPFetcher creates a fetcher using the account credentials.
func NewHTTPFetcher(accountSID, authToken string) *HTTPFetcher {
	return &HTTPFetcher{
		client:     &http.Client{Timeout: 30 * time.Second},
		accountSID: accountSID,
		authToken:  authToken,
	}
}

// Fetch implements MediaFetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build media request: %w", err)
	}
	if f.accountSID != "" {
		req.SetBasicAuth(f.accountSID, f.authToken)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", path.Base(url), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s: status %d", path.Base(url), resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read media: %w", err)
	}
	return data, nil
}
