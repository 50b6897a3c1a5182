package command

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottring/family-planner-sub006/pkg/analysis"
	"github.com/scottring/family-planner-sub006/pkg/capture"
	"github.com/scottring/family-planner-sub006/pkg/db"
)

var wednesday = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func TestParse(t *testing.T) {
	tests := []struct {
		text string
		kind Kind
		arg  string
	}{
		{"add task: buy milk", KindAddTask, "buy milk"},
		{"Task buy milk", KindAddTask, "buy milk"},
		{"todo: fix the fence", KindAddTask, "fix the fence"},
		{"add event: dinner at 7pm", KindAddEvent, "dinner at 7pm"},
		{"calendar: dentist friday", KindAddEvent, "dentist friday"},
		{"add: soccer 4pm", KindQuickAdd, "soccer 4pm"},
		{"quick pizza night", KindQuickAdd, "pizza night"},
		{"list", KindList, ""},
		{"LIST tomorrow", KindList, ""},
		{"show tasks", KindList, ""},
		{"help", KindHelp, ""},
		{"?", KindHelp, ""},
		{"status", KindStatus, ""},
		{"inbox", KindStatus, ""},
		{"delete: milk", KindDelete, "milk"},
		{"cancel dentist", KindDelete, "dentist"},
		{"update: dentist moved to 5pm", KindUpdate, "dentist moved to 5pm"},
		{"address for the party", KindQuickAdd, "address for the party"},
		{"tasks for the weekend", KindQuickAdd, "tasks for the weekend"},
		{"what time is practice", KindQuickAdd, "what time is practice"},
		{"  pick up Emma at 3  ", KindQuickAdd, "pick up Emma at 3"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd := Parse(tt.text)
			assert.Equal(t, tt.kind, cmd.Kind)
			assert.Equal(t, tt.arg, cmd.Arg)
		})
	}
}

func TestScopeOf(t *testing.T) {
	assert.Equal(t, listToday, scopeOf("list today"))
	assert.Equal(t, listTomorrow, scopeOf("show tomorrow"))
	assert.Equal(t, listTasks, scopeOf("list tasks"))
	assert.Equal(t, listDefault, scopeOf("list"))
}

type fixture struct {
	repo    *db.Repository
	manager *capture.Manager
	in      *Interpreter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.InitSchema())
	repo := db.NewRepository(database)

	clock := func() time.Time { return wednesday }
	m := capture.NewManager(repo,
		capture.WithClock(clock),
		capture.WithAnalyzers(analysis.Statistical{}, nil),
	)
	_, err = m.UpdateSettings(context.Background(), "owner-1", capture.SettingsPatch{
		SMS: &capture.SMSSettings{Enabled: true, PhoneNumber: "555-123-4567"},
	})
	require.NoError(t, err)

	return &fixture{
		repo:    repo,
		manager: m,
		in:      NewInterpreter(m, repo, WithClock(clock), WithLocation(time.UTC)),
	}
}

func (f *fixture) send(text string) string {
	return f.in.Execute(context.Background(), Request{OwnerID: "owner-1", Channel: capture.ChannelSMS, Text: text})
}

func TestAddCommands(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, `Task added: "Buy milk"`, f.send("add: Buy milk"))
	assert.Equal(t, `Task added: "Call the plumber"`, f.send("task: Call the plumber"))

	reply := f.send("event: soccer practice tomorrow at 4pm at Lincoln Park")
	assert.True(t, strings.HasPrefix(reply, `Event added: "soccer practice tomorrow" at 16:00 at `), reply)
	assert.Contains(t, reply, "Lincoln Park")

	items, err := f.manager.List(context.Background(), capture.Filter{OwnerID: "owner-1"})
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, item := range items {
		assert.Equal(t, capture.SourceSMS, item.SourceType)
		assert.NotEmpty(t, item.SourceMetadata[capture.MetaSMSCommand])
	}
}

func TestStatusAndDelete(t *testing.T) {
	f := newFixture(t)
	f.send("add: Buy milk")
	f.send("add: Water the plants")

	assert.Equal(t, "📊 Status Summary:\n• 2 items in inbox\n• 0 events today\n• 0 open tasks\n\nReply \"list\" to see details.", f.send("status"))

	assert.Equal(t, `Deleted: "Buy milk"`, f.send("delete: milk"))
	assert.Equal(t, `No pending item matching "milk" found.`, f.send("delete: milk"))
	assert.Contains(t, f.send("status"), "• 1 items in inbox")
}

func TestListReplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, "Today's schedule:\n\nNo events or tasks scheduled.", f.send("list"))
	assert.Equal(t, "No today's events found.", f.send("list today"))
	assert.Equal(t, "No open tasks found.", f.send("list tasks"))

	f.send("event: soccer practice tomorrow at 4pm at Lincoln Park")
	f.send("add: Buy milk")
	items, err := f.manager.List(ctx, capture.Filter{OwnerID: "owner-1"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	milk, soccer := items[0], items[1]

	_, err = f.manager.Convert(ctx, soccer.ID, capture.TargetEvent, capture.Overrides{})
	require.NoError(t, err)
	_, err = f.manager.Convert(ctx, milk.ID, capture.TargetTask, capture.Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "Tomorrow's events:\n\n• soccer practice tomorrow 16:00", f.send("list tomorrow"))
	assert.Equal(t, "Open tasks:\n\n• Buy milk", f.send("list tasks"))
	assert.Equal(t, "Today's schedule:\n\nOpen tasks:\n• Buy milk", f.send("list"))
	assert.Contains(t, f.send("status"), "• 1 open tasks")
}

func TestFixedReplies(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, HelpText, f.send("help"))
	assert.Equal(t, ReplyUpdatePending, f.send("update: dentist is at 5"))
}

func TestDisabledChannel(t *testing.T) {
	f := newFixture(t)
	reply := f.in.Execute(context.Background(), Request{OwnerID: "owner-2", Channel: capture.ChannelSMS, Text: "add: Buy milk"})
	assert.Equal(t, "SMS capture is not enabled for your account.", reply)
}
