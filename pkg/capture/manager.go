package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/scottring/family-planner-sub006/pkg/analysis"
	capterr "github.com/scottring/family-planner-sub006/pkg/errors"
	"github.com/scottring/family-planner-sub006/pkg/family"
	"github.com/scottring/family-planner-sub006/pkg/ocr"
)

// Manager runs the capture pipeline and guards the item lifecycle.
type Manager struct {
	store       Store
	roster      family.Source
	nlp         analysis.Analyzer
	ai          analysis.Analyzer
	ocr         *ocr.Processor
	uploadDir   string
	sinks       []Sink
	listeners   []SettingsListener
	autoConvert float64
	timeout     time.Duration
	recorder    Recorder
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithRoster sets where family rosters come from.
func WithRoster(src family.Source) Option {
	return func(m *Manager) { m.roster = src }
}

// WithAnalyzers sets the optional statistical and generative analyzers.
// Either may be nil.
func WithAnalyzers(nlp, ai analysis.Analyzer) Option {
	return func(m *Manager) { m.nlp, m.ai = nlp, ai }
}

// WithOCR enables photo recognition. Uploaded files are written under dir.
func WithOCR(p *ocr.Processor, dir string) Option {
	return func(m *Manager) { m.ocr, m.uploadDir = p, dir }
}

func WithSinks(sinks ...Sink) Option {
	return func(m *Manager) { m.sinks = append(m.sinks, sinks...) }
}

func WithSettingsListener(l SettingsListener) Option {
	return func(m *Manager) { m.listeners = append(m.listeners, l) }
}

// WithAutoConvert turns on automatic conversion of single, fully scheduled
// events whose merged confidence reaches threshold.
func WithAutoConvert(threshold float64) Option {
	return func(m *Manager) { m.autoConvert = threshold }
}

func WithAnalyzerTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager over store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		roster:    family.Static(nil),
		timeout:   analysis.DefaultTimeout,
		recorder:  nopRecorder{},
		logger:    slog.Default(),
		now:       time.Now,
		uploadDir: "uploads",
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func newID() string { return ulid.Make().String() }

// Submit creates a pending capture from env and runs the pipeline over it.
// Only validation, disabled channels and storage failures return an error;
// every other failure degrades the analysis.
func (m *Manager) Submit(ctx context.Context, env Envelope) (*Item, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	settings, err := m.Settings(ctx, env.OwnerID)
	if err != nil {
		return nil, err
	}
	if err := channelEnabled(settings, env.InputChannel); err != nil {
		return nil, err
	}

	start := m.now()
	item := &Item{
		ID:             newID(),
		OwnerID:        env.OwnerID,
		RawContent:     rawContent(env),
		InputChannel:   env.InputChannel,
		SourceType:     sourceFor(env.InputChannel),
		Status:         StatusPending,
		UrgencyScore:   analysis.Fallback("").Urgency,
		Category:       analysis.CategoryNote,
		SourceMetadata: env.SourceMetadata,
		CreatedAt:      start,
		UpdatedAt:      start,
	}
	if err := m.store.CreateItem(ctx, item); err != nil {
		return nil, capterr.NewInternal(fmt.Errorf("failed to create capture: %w", err))
	}
	m.logger.Info("capture created", "id", item.ID, "owner", item.OwnerID, "channel", item.InputChannel)

	var att *Attachment
	if len(env.AttachmentBytes) > 0 {
		att, err = m.saveAttachment(ctx, item, env.AttachmentName, env.AttachmentBytes)
		if err != nil {
			m.logger.Warn("attachment not stored", "id", item.ID, "error", err)
		} else if m.ocr != nil && settings.OCR.Enabled && settings.OCR.AutoProcess {
			m.recognize(ctx, att, ocrThreshold(env.SourceMetadata, settings))
		}
	}

	m.process(ctx, item, att, settings)
	m.recorder.ObserveCapture(string(item.InputChannel), m.now().Sub(start), degraded(item.Analysis))
	m.maybeAutoConvert(ctx, item)
	return item, nil
}

// AttachImage submits a photo capture. caption becomes the raw content.
func (m *Manager) AttachImage(ctx context.Context, ownerID, name string, data []byte, caption string, meta map[string]string) (*Item, error) {
	return m.Submit(ctx, Envelope{
		OwnerID:         ownerID,
		InputChannel:    ChannelImage,
		RawContent:      caption,
		AttachmentBytes: data,
		AttachmentName:  name,
		SourceMetadata:  meta,
	})
}

// Reprocess reruns OCR (for attachments that are not completed) and the
// analysis of a pending item.
func (m *Manager) Reprocess(ctx context.Context, id string) (*Item, error) {
	item, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status != StatusPending {
		return nil, capterr.NewInvalidTransition(id, string(item.Status), string(StatusProcessing))
	}
	settings, err := m.Settings(ctx, item.OwnerID)
	if err != nil {
		return nil, err
	}

	var att *Attachment
	if item.AttachmentID != "" {
		att, err = m.store.GetAttachment(ctx, item.AttachmentID)
		if err != nil {
			return nil, capterr.NewInternal(fmt.Errorf("failed to load attachment: %w", err))
		}
		if att != nil && att.ProcessingStatus != AttachmentCompleted && m.ocr != nil && settings.OCR.Enabled {
			m.recognize(ctx, att, ocrThreshold(item.SourceMetadata, settings))
		}
	}

	m.process(ctx, item, att, settings)
	return item, nil
}

// process claims the item, analyses it and releases it back to pending.
func (m *Manager) process(ctx context.Context, item *Item, att *Attachment, settings *Settings) {
	ok, err := m.store.CompareAndSetStatus(ctx, item.ID, []Status{StatusPending}, StatusProcessing)
	if err != nil || !ok {
		m.logger.Warn("capture not claimed for processing", "id", item.ID, "error", err)
		return
	}
	defer func() {
		// Release even when ctx was cancelled so the item is never stuck.
		release := context.WithoutCancel(ctx)
		if _, err := m.store.CompareAndSetStatus(release, item.ID, []Status{StatusProcessing}, StatusPending); err != nil {
			m.logger.Error("failed to release capture", "id", item.ID, "error", err)
		}
		item.Status = StatusPending
	}()

	final := m.analyze(ctx, item, att, settings)
	processed := m.now()
	if err := m.store.SaveAnalysis(context.WithoutCancel(ctx), item.ID, &final, processed); err != nil {
		m.logger.Error("failed to store analysis", "id", item.ID, "error", err)
		return
	}
	item.Analysis = &final
	item.UrgencyScore = final.Urgency
	item.Category = final.Category
	item.ProcessedAt = &processed
	item.UpdatedAt = processed
}

func (m *Manager) analyze(ctx context.Context, item *Item, att *Attachment, settings *Settings) (final analysis.Final) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("analysis panicked", "id", item.ID, "panic", r)
			final = analysis.Fallback(fmt.Sprint("analysis failed: ", r))
		}
	}()

	text := item.RawContent
	var fields *ocr.Fields
	if att != nil && att.ProcessingStatus == AttachmentCompleted {
		if att.OCRText != "" {
			text = strings.TrimSpace(text + "\n" + att.OCRText)
		}
		fields = att.ExtractedData
	}

	var warnings []string
	roster, err := m.roster.Roster(ctx, item.OwnerID)
	if err != nil {
		warnings = append(warnings, capterr.NewExtractionDegraded("roster", err).Message)
		m.logger.Warn("roster unavailable", "owner", item.OwnerID, "error", err)
	}

	var optional []analysis.Analyzer
	if settings.NLP.Enabled {
		optional = append(optional, m.nlp)
	}
	if settings.NLP.AIEnabled {
		optional = append(optional, m.ai)
	}
	runner := analysis.NewRunner(optional,
		analysis.WithTimeout(m.timeout),
		analysis.WithLogger(m.logger),
		analysis.WithObserver(m.recorder),
	)
	final = runner.Run(ctx, analysis.Input{Text: text, Roster: roster, Now: m.now()}, sourceContext(item, fields, m.now()))
	final.Warnings = append(warnings, final.Warnings...)
	return final
}

func sourceContext(item *Item, fields *ocr.Fields, now time.Time) *analysis.SourceContext {
	meta := item.SourceMetadata
	switch item.InputChannel {
	case ChannelEmail:
		hasAtt, _ := strconv.ParseBool(meta[MetaHasAttachments])
		urgency, _ := strconv.Atoi(meta[MetaEmailUrgency])
		return &analysis.SourceContext{
			Channel:        analysis.SourceEmail,
			EmailFrom:      meta[MetaEmailFrom],
			EmailSubject:   meta[MetaEmailSubject],
			HasAttachments: hasAtt,
			EmailCategory:  meta[MetaEmailCategory],
			EmailUrgency:   urgency,
			Now:            now,
		}
	case ChannelSMS:
		return &analysis.SourceContext{Channel: analysis.SourceSMS, SMSCommand: meta[MetaSMSCommand], Now: now}
	case ChannelImage:
		return &analysis.SourceContext{Channel: analysis.SourceImage, OCR: fields, Now: now}
	}
	return nil
}

func (m *Manager) maybeAutoConvert(ctx context.Context, item *Item) {
	if m.autoConvert <= 0 || item.Analysis == nil {
		return
	}
	a := item.Analysis
	if len(a.Items) != 1 || !a.Items[0].Type.IsEvent() || a.Confidence < m.autoConvert {
		return
	}
	if a.Items[0].StartTime == "" || len(a.Items[0].Entities.Dates) == 0 {
		return
	}
	converted, err := m.Convert(ctx, item.ID, TargetEvent, Overrides{})
	if err != nil {
		m.logger.Warn("auto-conversion failed", "id", item.ID, "error", err)
		return
	}
	*item = *converted
}

// Convert turns a capture into an event or task. Converting an item that is
// already converted or deleted fails with a conversion conflict.
func (m *Manager) Convert(ctx context.Context, id, targetType string, ov Overrides) (*Item, error) {
	if targetType != TargetEvent && targetType != TargetTask {
		return nil, capterr.NewValidation("target type must be event or task")
	}
	item, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status == StatusConverted || item.Status == StatusDeleted {
		m.recorder.ObserveConversion(targetType, "conflict")
		return nil, capterr.NewConversionConflict(id, string(item.Status))
	}

	target := BuildTarget(item, targetType, ov, m.now())
	ref, ok, err := m.store.Convert(ctx, id, sourcesOf(StatusConverted), target)
	if err != nil {
		m.recorder.ObserveConversion(targetType, "error")
		return nil, capterr.NewInternal(fmt.Errorf("failed to convert capture: %w", err))
	}
	if !ok {
		m.recorder.ObserveConversion(targetType, "conflict")
		status := "unknown"
		if current, _ := m.store.GetItem(ctx, id); current != nil {
			status = string(current.Status)
		}
		return nil, capterr.NewConversionConflict(id, status)
	}
	m.recorder.ObserveConversion(targetType, "ok")

	item.Status = StatusConverted
	item.ConvertedTo = ref
	item.UpdatedAt = m.now()
	m.logger.Info("capture converted", "id", id, "target", ref.Type, "target_id", ref.ID)

	for _, s := range m.sinks {
		if err := s.Deliver(ctx, item, target, ref); err != nil {
			m.logger.Warn("conversion sink failed", "sink", s.Name(), "id", id, "error", err)
		}
	}
	return item, nil
}

// Archive hides an unconverted item.
func (m *Manager) Archive(ctx context.Context, id string) (*Item, error) {
	return m.move(ctx, id, StatusArchived)
}

// Delete marks an item deleted. Raw content is kept.
func (m *Manager) Delete(ctx context.Context, id string) (*Item, error) {
	return m.move(ctx, id, StatusDeleted)
}

func (m *Manager) move(ctx context.Context, id string, to Status) (*Item, error) {
	item, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(item.Status, to) {
		return nil, capterr.NewInvalidTransition(id, string(item.Status), string(to))
	}
	ok, err := m.store.CompareAndSetStatus(ctx, id, sourcesOf(to), to)
	if err != nil {
		return nil, capterr.NewInternal(fmt.Errorf("failed to update status: %w", err))
	}
	if !ok {
		return nil, capterr.NewInvalidTransition(id, "changed", string(to))
	}
	item.Status = to
	item.UpdatedAt = m.now()
	return item, nil
}

// Get returns one item.
func (m *Manager) Get(ctx context.Context, id string) (*Item, error) {
	item, err := m.store.GetItem(ctx, id)
	if err != nil {
		return nil, capterr.NewInternal(fmt.Errorf("failed to load capture: %w", err))
	}
	if item == nil {
		return nil, capterr.NewNotFound("capture", id)
	}
	return item, nil
}

// List returns items matching f, newest first.
func (m *Manager) List(ctx context.Context, f Filter) ([]*Item, error) {
	if f.OwnerID == "" {
		return nil, capterr.NewValidation("ownerId is required")
	}
	items, err := m.store.ListItems(ctx, f)
	if err != nil {
		return nil, capterr.NewInternal(fmt.Errorf("failed to list captures: %w", err))
	}
	return items, nil
}

// FindPending returns the newest pending item of owner whose raw content
// contains text, or nil.
func (m *Manager) FindPending(ctx context.Context, ownerID, text string) (*Item, error) {
	items, err := m.List(ctx, Filter{OwnerID: ownerID, Status: StatusPending, Contains: text, Limit: 1})
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

// Stats summarises owner's captures.
func (m *Manager) Stats(ctx context.Context, ownerID string) (*Stats, error) {
	s, err := m.store.Stats(ctx, ownerID)
	if err != nil {
		return nil, capterr.NewInternal(fmt.Errorf("failed to load stats: %w", err))
	}
	return s, nil
}

// Settings returns owner's settings, or the defaults.
func (m *Manager) Settings(ctx context.Context, ownerID string) (*Settings, error) {
	s, err := m.store.GetSettings(ctx, ownerID)
	if err != nil {
		return nil, capterr.NewInternal(fmt.Errorf("failed to load settings: %w", err))
	}
	if s == nil {
		s = DefaultSettings(ownerID)
	}
	return s, nil
}

// UpdateSettings merges patch into owner's settings and notifies listeners.
func (m *Manager) UpdateSettings(ctx context.Context, ownerID string, patch SettingsPatch) (*Settings, error) {
	s, err := m.Settings(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	patch.Apply(s)
	if err := m.store.SaveSettings(ctx, s); err != nil {
		return nil, capterr.NewInternal(fmt.Errorf("failed to save settings: %w", err))
	}
	for _, l := range m.listeners {
		l.SettingsChanged(s)
	}
	return s, nil
}

// OwnerByPhone maps an SMS sender to an owner. Only digits are compared.
func (m *Manager) OwnerByPhone(ctx context.Context, phone string) (string, error) {
	digits := Digits(phone)
	if digits == "" {
		return "", nil
	}
	return m.store.OwnerByPhone(ctx, digits)
}

// Digits strips everything but 0-9 from a phone number.
func Digits(phone string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
}

// NeedsReprocess reports whether an item's analysis is missing or degraded.
func NeedsReprocess(item *Item) bool {
	return item.Status == StatusPending && degraded(item.Analysis)
}

func degraded(a *analysis.Final) bool {
	return a == nil || a.Fallback || len(a.Warnings) > 0
}

func channelEnabled(s *Settings, c Channel) error {
	switch c {
	case ChannelEmail:
		if !s.Email.Enabled {
			return capterr.NewDisabled(string(c))
		}
	case ChannelSMS:
		if !s.SMS.Enabled {
			return capterr.NewDisabled(string(c))
		}
	}
	return nil
}

func rawContent(env Envelope) string {
	if text := strings.TrimSpace(env.RawContent); text != "" {
		return text
	}
	if env.AttachmentName != "" {
		return "Photo: " + env.AttachmentName
	}
	return "Photo"
}

func ocrThreshold(meta map[string]string, s *Settings) float64 {
	if v, ok := meta[MetaOCRThreshold]; ok {
		if t, err := strconv.ParseFloat(v, 64); err == nil && t >= 0 && t <= 1 {
			return t
		}
	}
	return s.OCR.ConfidenceThreshold
}

type nopRecorder struct{}

func (nopRecorder) ObserveAnalyzer(string, string, time.Duration) {}
func (nopRecorder) ObserveCapture(string, time.Duration, bool)    {}
func (nopRecorder) ObserveOCR(string, time.Duration)              {}
func (nopRecorder) ObserveConversion(string, string)              {}
