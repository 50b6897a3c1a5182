package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/scottring/family-planner-sub006/pkg/capture"
	capterr "github.com/scottring/family-planner-sub006/pkg/errors"
	"github.com/scottring/family-planner-sub006/pkg/segment"
)

// Replies that do not depend on stored data.
const (
	ReplyUnknownNumber = "I don't recognize this number. Please register your phone number in the family planner app first."
	ReplyFailed        = "Sorry, I couldn't process your command. Type 'help' for available commands."
	ReplyUpdatePending = "Update functionality coming soon. Please use the web app to modify items."
)

const listLimit = 5

// Captures is the part of the capture manager commands use.
type Captures interface {
	Submit(ctx context.Context, env capture.Envelope) (*capture.Item, error)
	FindPending(ctx context.Context, ownerID, text string) (*capture.Item, error)
	Delete(ctx context.Context, id string) (*capture.Item, error)
	Stats(ctx context.Context, ownerID string) (*capture.Stats, error)
}

// Agenda reads converted events and tasks.
type Agenda interface {
	Events(ctx context.Context, ownerID string, from, to time.Time) ([]capture.Target, error)
	OpenTasks(ctx context.Context, ownerID string, limit int) ([]capture.Target, error)
}

// Request is one incoming message from an identified owner.
type Request struct {
	OwnerID  string
	Channel  capture.Channel
	Text     string
	Metadata map[string]string
}

// Interpreter runs commands and composes the reply text.
type Interpreter struct {
	captures Captures
	agenda   Agenda
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLocation sets the zone used for "today" and for printed times.
func WithLocation(loc *time.Location) Option {
	return func(in *Interpreter) {
		if loc != nil {
			in.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(in *Interpreter) { in.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(in *Interpreter) {
		if l != nil {
			in.logger = l
		}
	}
}

// NewInterpreter creates an interpreter over the capture manager and the
// event/task store.
func NewInterpreter(c Captures, a Agenda, opts ...Option) *Interpreter {
	in := &Interpreter{
		captures: c,
		agenda:   a,
		loc:      time.Local,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(in)
	}
	return in
}

// Execute parses req.Text, runs the command and returns the reply. Errors
// are logged and turned into a reply.
func (in *Interpreter) Execute(ctx context.Context, req Request) string {
	cmd := Parse(req.Text)
	reply, err := in.run(ctx, req, cmd)
	if err != nil {
		in.logger.Warn("command failed", "owner", req.OwnerID, "command", cmd.Kind, "error", err)
		if capterr.Is(err, capterr.ErrDisabled) {
			return disabledReply(req.Channel)
		}
		return ReplyFailed
	}
	return reply
}

func (in *Interpreter) run(ctx context.Context, req Request, cmd Command) (string, error) {
	switch cmd.Kind {
	case KindAddTask:
		return in.addTask(ctx, req, cmd)
	case KindAddEvent:
		return in.addEvent(ctx, req, cmd)
	case KindList:
		return in.list(ctx, req.OwnerID, scopeOf(cmd.Text))
	case KindHelp:
		return HelpText, nil
	case KindStatus:
		return in.status(ctx, req.OwnerID)
	case KindDelete:
		return in.remove(ctx, req.OwnerID, cmd.Arg)
	case KindUpdate:
		return ReplyUpdatePending, nil
	}
	return in.quickAdd(ctx, req, cmd)
}

func (in *Interpreter) submit(ctx context.Context, req Request, cmd Command) (*capture.Item, error) {
	meta := make(map[string]string, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	meta[capture.MetaSMSCommand] = string(cmd.Kind)
	return in.captures.Submit(ctx, capture.Envelope{
		OwnerID:        req.OwnerID,
		InputChannel:   req.Channel,
		RawContent:     cmd.Arg,
		SourceMetadata: meta,
	})
}

func (in *Interpreter) addTask(ctx context.Context, req Request, cmd Command) (string, error) {
	item, err := in.submit(ctx, req, cmd)
	if err != nil {
		return "", err
	}
	pi := parsedItem(item, false)
	if pi == nil {
		return fmt.Sprintf("Task added: \"%s\"", cmd.Arg), nil
	}
	reply := fmt.Sprintf("Task added: \"%s\"", pi.Title)
	if pi.AssignedTo != "" {
		reply += fmt.Sprintf(" (assigned to %s)", pi.AssignedTo)
	}
	return reply, nil
}

func (in *Interpreter) addEvent(ctx context.Context, req Request, cmd Command) (string, error) {
	item, err := in.submit(ctx, req, cmd)
	if err != nil {
		return "", err
	}
	pi := parsedItem(item, true)
	if pi == nil {
		return fmt.Sprintf("Event added: \"%s\"", cmd.Arg), nil
	}
	reply := fmt.Sprintf("Event added: \"%s\"", pi.Title)
	if pi.StartTime != "" {
		reply += " at " + pi.StartTime
	}
	if pi.Location != "" {
		reply += " at " + pi.Location
	}
	return reply, nil
}

func (in *Interpreter) quickAdd(ctx context.Context, req Request, cmd Command) (string, error) {
	item, err := in.submit(ctx, req, cmd)
	if err != nil {
		return "", err
	}
	if item.Analysis == nil || len(item.Analysis.Items) == 0 {
		return fmt.Sprintf("Added to inbox: \"%s\"", cmd.Arg), nil
	}
	kind := "Task"
	if item.Analysis.InferredType.IsEvent() {
		kind = "Event"
	}
	return fmt.Sprintf("%s added: \"%s\"", kind, item.Analysis.Items[0].Title), nil
}

// parsedItem returns the first parsed item of the wanted kind, else the
// first one.
func parsedItem(item *capture.Item, event bool) *segment.ParsedItem {
	if item.Analysis == nil || len(item.Analysis.Items) == 0 {
		return nil
	}
	items := item.Analysis.Items
	for i := range items {
		if items[i].Type.IsEvent() == event {
			return &items[i]
		}
	}
	return &items[0]
}

func (in *Interpreter) day(offset int) (time.Time, time.Time) {
	now := in.now().In(in.loc)
	start := time.Date(now.Year(), now.Month(), now.Day()+offset, 0, 0, 0, 0, in.loc)
	return start, start.AddDate(0, 0, 1)
}

func (in *Interpreter) list(ctx context.Context, ownerID string, scope listScope) (string, error) {
	var (
		title string
		lines []string
	)
	switch scope {
	case listToday, listTomorrow:
		offset, heading := 0, "Today's events"
		if scope == listTomorrow {
			offset, heading = 1, "Tomorrow's events"
		}
		from, to := in.day(offset)
		events, err := in.agenda.Events(ctx, ownerID, from, to)
		if err != nil {
			return "", err
		}
		title = heading
		for i, e := range events {
			if i == listLimit {
				break
			}
			lines = append(lines, in.eventLine(e))
		}
	case listTasks:
		tasks, err := in.agenda.OpenTasks(ctx, ownerID, listLimit)
		if err != nil {
			return "", err
		}
		title = "Open tasks"
		for _, t := range tasks {
			lines = append(lines, in.taskLine(t))
		}
	default:
		return in.schedule(ctx, ownerID)
	}

	if len(lines) == 0 {
		return fmt.Sprintf("No %s found.", strings.ToLower(title)), nil
	}
	return title + ":\n\n" + strings.Join(lines, "\n"), nil
}

// schedule is the reply to a bare "list": a few of today's events and open
// tasks.
func (in *Interpreter) schedule(ctx context.Context, ownerID string) (string, error) {
	const perSection = 3
	from, to := in.day(0)
	events, err := in.agenda.Events(ctx, ownerID, from, to)
	if err != nil {
		return "", err
	}
	tasks, err := in.agenda.OpenTasks(ctx, ownerID, perSection)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Today's schedule:\n\n")
	if len(events) > 0 {
		b.WriteString("Events:\n")
		for i, e := range events {
			if i == perSection {
				break
			}
			b.WriteString(in.eventLine(e) + "\n")
		}
	}
	if len(tasks) > 0 {
		if len(events) > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Open tasks:\n")
		for _, t := range tasks {
			b.WriteString("• " + t.Title + "\n")
		}
	}
	if len(events) == 0 && len(tasks) == 0 {
		b.WriteString("No events or tasks scheduled.")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (in *Interpreter) eventLine(e capture.Target) string {
	if e.Start == nil || e.AllDay {
		return "• " + e.Title
	}
	return "• " + e.Title + " " + e.Start.In(in.loc).Format("15:04")
}

func (in *Interpreter) taskLine(t capture.Target) string {
	if t.DueDate == nil {
		return "• " + t.Title
	}
	return "• " + t.Title + " (due " + t.DueDate.In(in.loc).Format("Jan 2") + ")"
}

func (in *Interpreter) status(ctx context.Context, ownerID string) (string, error) {
	stats, err := in.captures.Stats(ctx, ownerID)
	if err != nil {
		return "", err
	}
	from, to := in.day(0)
	events, err := in.agenda.Events(ctx, ownerID, from, to)
	if err != nil {
		return "", err
	}
	tasks, err := in.agenda.OpenTasks(ctx, ownerID, 0)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("📊 Status Summary:\n• %d items in inbox\n• %d events today\n• %d open tasks\n\nReply \"list\" to see details.",
		stats.Pending, len(events), len(tasks)), nil
}

func (in *Interpreter) remove(ctx context.Context, ownerID, text string) (string, error) {
	item, err := in.captures.FindPending(ctx, ownerID, text)
	if err != nil {
		return "", err
	}
	if item == nil {
		return fmt.Sprintf("No pending item matching \"%s\" found.", text), nil
	}
	if _, err := in.captures.Delete(ctx, item.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted: \"%s\"", item.RawContent), nil
}

func disabledReply(c capture.Channel) string {
	switch c {
	case capture.ChannelSMS:
		return "SMS capture is not enabled for your account."
	case capture.ChannelEmail:
		return "Email capture is not enabled for your account."
	}
	return ReplyFailed
}
