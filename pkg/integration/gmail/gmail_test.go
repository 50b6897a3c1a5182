package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"

	"github.com/scottring/family-planner-sub006/pkg/capture"
)

type fakeMailbox struct {
	mu     sync.Mutex
	emails []Email
	read   []string
	query  string
}

func (f *fakeMailbox) Fetch(_ context.Context, _, query string) ([]Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.query = query
	return f.emails, nil
}

func (f *fakeMailbox) MarkRead(_ context.Context, _, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read = append(f.read, id)
	return nil
}

type fakeCaptures struct {
	mu   sync.Mutex
	envs []capture.Envelope
	fail bool
	got  chan struct{}
}

func (f *fakeCaptures) Submit(_ context.Context, env capture.Envelope) (*capture.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("store down")
	}
	f.envs = append(f.envs, env)
	if f.got != nil {
		select {
		case f.got <- struct{}{}:
		default:
		}
	}
	return &capture.Item{ID: "c-" + env.SourceMetadata[capture.MetaMessageID]}, nil
}

type memSeen struct {
	mu   sync.Mutex
	seen map[string]string
}

func (m *memSeen) EmailSeen(_ context.Context, owner, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[owner+"/"+id]
	return ok, nil
}

func (m *memSeen) MarkEmailSeen(_ context.Context, owner, id, item string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[owner+"/"+id]; ok {
		return false, nil
	}
	m.seen[owner+"/"+id] = item
	return true, nil
}

func newPoller(mb *fakeMailbox, caps *fakeCaptures, seen *memSeen) *Poller {
	return &Poller{
		ownerID:  "owner-1",
		user:     "me",
		query:    "is:unread",
		interval: time.Hour,
		mailbox:  mb,
		captures: caps,
		seen:     seen,
		logger:   testLogger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func TestPollCapturesOnce(t *testing.T) {
	mb := &fakeMailbox{emails: []Email{
		{ID: "m1", From: "office@lincoln-school.org", Subject: "URGENT: early dismissal", Body: "School closes at noon tomorrow."},
		{ID: "m2", From: "coach@club.com", Subject: "", Body: "Practice moved", HasAttachments: true},
	}}
	caps := &fakeCaptures{}
	seen := &memSeen{seen: map[string]string{}}
	p := newPoller(mb, caps, seen)

	require.NoError(t, p.poll(context.Background()))
	require.NoError(t, p.poll(context.Background()))

	require.Len(t, caps.envs, 2, "a message is captured only once")
	first := caps.envs[0]
	assert.Equal(t, capture.ChannelEmail, first.InputChannel)
	assert.Equal(t, "URGENT: early dismissal\n\nSchool closes at noon tomorrow.", first.RawContent)
	assert.Equal(t, "office@lincoln-school.org", first.SourceMetadata[capture.MetaEmailFrom])
	assert.Equal(t, "school", first.SourceMetadata[capture.MetaEmailCategory])
	assert.Equal(t, "5", first.SourceMetadata[capture.MetaEmailUrgency])

	second := caps.envs[1]
	assert.Equal(t, "No Subject\n\nPractice moved", second.RawContent)
	assert.Equal(t, "true", second.SourceMetadata[capture.MetaHasAttachments])

	assert.Equal(t, "c-m1", seen.seen["owner-1/m1"])
	assert.Equal(t, []string{"m1", "m2", "m1", "m2"}, mb.read)
}

func TestPollLeavesFailedMessagesUnread(t *testing.T) {
	mb := &fakeMailbox{emails: []Email{{ID: "m1", Subject: "hi", Body: "x"}}}
	caps := &fakeCaptures{fail: true}
	seen := &memSeen{seen: map[string]string{}}

	require.NoError(t, newPoller(mb, caps, seen).poll(context.Background()))
	assert.Empty(t, mb.read)
	assert.Empty(t, seen.seen)
}

func TestEnvelopeCarriesImage(t *testing.T) {
	env := Envelope("owner-1", Email{ID: "m1", Subject: "Flyer", Image: &Attachment{Name: "flyer.png", Data: []byte("png")}})
	assert.Equal(t, "flyer.png", env.AttachmentName)
	assert.Equal(t, []byte("png"), env.AttachmentBytes)
	assert.NoError(t, env.Validate())
}

func TestQuery(t *testing.T) {
	assert.Equal(t, "is:unread", Query(capture.EmailSettings{}))
	assert.Equal(t, "is:unread from:office@school.org",
		Query(capture.EmailSettings{MonitoredAddresses: []string{"office@school.org"}}))
	assert.Equal(t, "label:family {from:a@x.com from:b@y.com}",
		Query(capture.EmailSettings{Query: "label:family", MonitoredAddresses: []string{"a@x.com", " ", "b@y.com"}}))
}

func encode(s string) string { return base64.URLEncoding.EncodeToString([]byte(s)) }

func TestGetBody(t *testing.T) {
	plain := &gmail.Message{Payload: &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmail.MessagePart{
			{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<p>Hello <b>there</b></p>")}},
			{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("Hello there")}},
		},
	}}
	assert.Equal(t, "Hello there", GetBody(plain))

	html := &gmail.Message{Payload: &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmail.MessagePart{
			{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<p>Game at <b>5pm</b></p>")}},
		},
	}}
	assert.Equal(t, "Game at 5pm", GetBody(html))

	single := &gmail.Message{Payload: &gmail.MessagePart{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("one part")}}}
	assert.Equal(t, "one part", GetBody(single))
}

func TestAttachmentDetection(t *testing.T) {
	payload := &gmail.MessagePart{Parts: []*gmail.MessagePart{
		{MimeType: "text/plain", Body: &gmail.MessagePartBody{}},
		{MimeType: "application/pdf", Filename: "form.pdf", Body: &gmail.MessagePartBody{}},
		{MimeType: "image/jpeg", Filename: "slip.jpg", Body: &gmail.MessagePartBody{AttachmentId: "att-1"}},
	}}
	part := imagePart(payload)
	require.NotNil(t, part)
	assert.Equal(t, "slip.jpg", part.Filename)
	assert.True(t, hasFiles(payload))
	assert.Nil(t, imagePart(&gmail.MessagePart{MimeType: "text/plain"}))
}

func TestMonitorFollowsSettings(t *testing.T) {
	mb := &fakeMailbox{emails: []Email{{ID: "m1", Subject: "hello", Body: "x"}}}
	caps := &fakeCaptures{got: make(chan struct{}, 1)}
	m := NewMonitor(mb, caps, &memSeen{seen: map[string]string{}}, "", testLogger())

	s := capture.DefaultSettings("owner-1")
	s.Email.Enabled = true
	s.Email.MonitoredAddresses = []string{"office@school.org"}
	m.SettingsChanged(s)
	assert.True(t, m.Running("owner-1"))

	select {
	case <-caps.got:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not run")
	}

	s.Email.Enabled = false
	m.SettingsChanged(s)
	assert.False(t, m.Running("owner-1"))

	mb.mu.Lock()
	assert.Equal(t, "is:unread from:office@school.org", mb.query)
	mb.mu.Unlock()
	m.StopAll()
}

// stallingMailbox blocks every fetch until its context ends.
type stallingMailbox struct {
	fetching chan struct{}
}

func (b *stallingMailbox) Fetch(ctx context.Context, _, _ string) ([]Email, error) {
	select {
	case b.fetching <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *stallingMailbox) MarkRead(context.Context, string, string) error { return nil }

func TestStopCancelsInFlightPoll(t *testing.T) {
	mb := &stallingMailbox{fetching: make(chan struct{}, 1)}
	m := NewMonitor(mb, &fakeCaptures{}, &memSeen{seen: map[string]string{}}, "", testLogger())

	s := capture.DefaultSettings("owner-1")
	s.Email.Enabled = true
	m.Start(s)

	select {
	case <-mb.fetching:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never fetched")
	}

	stopped := make(chan struct{})
	go func() {
		m.Stop("owner-1")
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop waited for the blocked fetch")
	}
}

func TestPollStopsOnCancelledContext(t *testing.T) {
	mb := &fakeMailbox{emails: []Email{{ID: "m1", Subject: "hi", Body: "x"}}}
	caps := &fakeCaptures{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newPoller(mb, caps, &memSeen{seen: map[string]string{}}).poll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, caps.envs)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
