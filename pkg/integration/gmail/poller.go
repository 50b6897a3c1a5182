package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/scottring/family-planner-sub006/pkg/analysis"
	"github.com/scottring/family-planner-sub006/pkg/capture"
)

// Captures accepts email envelopes.
type Captures interface {
	Submit(ctx context.Context, env capture.Envelope) (*capture.Item, error)
}

// SeenStore remembers which messages already became captures.
type SeenStore interface {
	EmailSeen(ctx context.Context, ownerID, messageID string) (bool, error)
	MarkEmailSeen(ctx context.Context, ownerID, messageID, captureItemID string) (bool, error)
}

// Poller checks one owner's mailbox periodically
type Poller struct {
	ownerID  string
	user     string
	query    string
	interval time.Duration
	mailbox  Mailbox
	captures Captures
	seen     SeenStore
	logger   *slog.Logger
	stop     chan struct{}
	done     chan struct{}
}

// Start polls once, then on every tick until Stop. Stop cancels an
// in-flight poll.
func (p *Poller) Start() {
	defer close(p.done)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-p.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	p.pollAndLog(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.pollAndLog(ctx)
		case <-p.stop:
			return
		}
	}
}

func (p *Poller) pollAndLog(ctx context.Context) {
	if err := p.poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Warn("gmail poll failed", "owner", p.ownerID, "error", err)
	}
}

// Stop stops the poller and waits for it to return.
func (p *Poller) Stop() {
	close(p.stop)
	<-p.done
}

func (p *Poller) poll(ctx context.Context) error {
	emails, err := p.mailbox.Fetch(ctx, p.user, p.query)
	if err != nil {
		return err
	}

	for _, e := range emails {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen, err := p.seen.EmailSeen(ctx, p.ownerID, e.ID)
		if err != nil {
			return err
		}
		if !seen {
			item, err := p.captures.Submit(ctx, Envelope(p.ownerID, e))
			if err != nil {
				p.logger.Warn("failed to capture email", "owner", p.ownerID, "message", e.ID, "error", err)
				continue
			}
			if _, err := p.seen.MarkEmailSeen(ctx, p.ownerID, e.ID, item.ID); err != nil {
				p.logger.Error("failed to record email", "message", e.ID, "error", err)
			}
			p.logger.Info("email captured", "owner", p.ownerID, "message", e.ID, "capture", item.ID)
		}
		if err := p.mailbox.MarkRead(ctx, p.user, e.ID); err != nil {
			p.logger.Warn("failed to mark email read", "message", e.ID, "error", err)
		}
	}
	return nil
}

// Envelope builds the capture envelope for e. The raw content is the
// subject followed by the body.
func Envelope(ownerID string, e Email) capture.Envelope {
	subject := e.Subject
	if subject == "" {
		subject = "No Subject"
	}
	env := capture.Envelope{
		OwnerID:      ownerID,
		InputChannel: capture.ChannelEmail,
		RawContent:   strings.TrimSpace(subject + "\n\n" + strings.TrimSpace(e.Body)),
		SourceMetadata: map[string]string{
			capture.MetaEmailFrom:      e.From,
			capture.MetaEmailSubject:   subject,
			capture.MetaHasAttachments: strconv.FormatBool(e.HasAttachments),
			capture.MetaMessageID:      e.ID,
			capture.MetaEmailCategory:  analysis.CategorizeEmail(e.From, subject),
			capture.MetaEmailUrgency:   strconv.Itoa(analysis.EmailUrgency(subject, e.Body, e.From)),
		},
	}
	if e.Image != nil {
		env.AttachmentBytes = e.Image.Data
		env.AttachmentName = e.Image.Name
	}
	return env
}

// Query builds the Gmail search for settings: the base query restricted to
// the monitored senders.
func Query(s capture.EmailSettings) string {
	q := s.Query
	if q == "" {
		q = "is:unread"
	}
	var from []string
	for _, addr := range s.MonitoredAddresses {
		if addr = strings.TrimSpace(addr); addr != "" {
			from = append(from, "from:"+addr)
		}
	}
	switch len(from) {
	case 0:
		return q
	case 1:
		return q + " " + from[0]
	}
	return fmt.Sprintf("%s {%s}", q, strings.Join(from, " "))
}

// Monitor runs one poller per owner with email capture enabled.
type Monitor struct {
	mailbox  Mailbox
	captures Captures
	seen     SeenStore
	user     string
	logger   *slog.Logger

	mu      sync.Mutex
	pollers map[string]*Poller
}

var _ capture.SettingsListener = (*Monitor)(nil)

// NewMonitor creates a monitor. user is the mailbox read for every owner
// ("me" for the credentials' own account).
func NewMonitor(mailbox Mailbox, captures Captures, seen SeenStore, user string, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if user == "" {
		user = "me"
	}
	return &Monitor{
		mailbox:  mailbox,
		captures: captures,
		seen:     seen,
		user:     user,
		logger:   logger,
		pollers:  make(map[string]*Poller),
	}
}

// SettingsChanged starts, restarts or stops the owner's poller.
func (m *Monitor) SettingsChanged(s *capture.Settings) {
	if s.Email.Enabled {
		m.Start(s)
		return
	}
	m.Stop(s.OwnerID)
}

// Start (re)starts polling for the owner of s.
func (m *Monitor) Start(s *capture.Settings) {
	interval := s.Email.PollInterval
	if interval <= 0 {
		interval = capture.DefaultPollInterval
	}
	p := &Poller{
		ownerID:  s.OwnerID,
		user:     m.user,
		query:    Query(s.Email),
		interval: interval,
		mailbox:  m.mailbox,
		captures: m.captures,
		seen:     m.seen,
		logger:   m.logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	m.mu.Lock()
	old := m.pollers[s.OwnerID]
	m.pollers[s.OwnerID] = p
	m.mu.Unlock()
	if old != nil {
		old.Stop()
	}

	go p.Start()
	m.logger.Info("email monitoring started", "owner", s.OwnerID, "interval", interval)
}

// Stop stops the owner's poller, if any.
func (m *Monitor) Stop(ownerID string) {
	m.mu.Lock()
	p, ok := m.pollers[ownerID]
	delete(m.pollers, ownerID)
	m.mu.Unlock()
	if ok {
		p.Stop()
		m.logger.Info("email monitoring stopped", "owner", ownerID)
	}
}

// Running reports whether the owner is being polled.
func (m *Monitor) Running(ownerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pollers[ownerID]
	return ok
}

// StopAll stops every poller.
func (m *Monitor) StopAll() {
	m.mu.Lock()
	owners := make([]string, 0, len(m.pollers))
	for owner := range m.pollers {
		owners = append(owners, owner)
	}
	m.mu.Unlock()
	for _, owner := range owners {
		m.Stop(owner)
	}
}
