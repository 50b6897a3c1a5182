// Package command interprets the short text commands people send by SMS or
// chat and runs them against the capture pipeline.
package command

import (
	"regexp"
	"strings"
)

// Kind names a recognised command.
type Kind string

const (
	KindAddTask  Kind = "add_task"
	KindAddEvent Kind = "add_event"
	KindQuickAdd Kind = "quick_add"
	KindList     Kind = "list"
	KindHelp     Kind = "help"
	KindStatus   Kind = "status"
	KindDelete   Kind = "delete"
	KindUpdate   Kind = "update"
)

// Command is a parsed message. Arg is the free text after the keyword.
type Command struct {
	Kind Kind
	Arg  string
	Text string
}

type pattern struct {
	kind Kind
	re   *regexp.Regexp
}

// Checked in order; the first match wins. A keyword must be followed by a
// colon or a space so "address" or "tasks" do not trigger it.
var patterns = []pattern{
	{KindAddTask, regexp.MustCompile(`(?i)^(?:add task|task|todo)(?::|\s)\s*(.+)`)},
	{KindAddEvent, regexp.MustCompile(`(?i)^(?:add event|event|calendar)(?::|\s)\s*(.+)`)},
	{KindQuickAdd, regexp.MustCompile(`(?i)^(?:add|quick)(?::|\s)\s*(.+)`)},
	{KindList, regexp.MustCompile(`(?i)^(?:list|show|what)(?:\s+(?:tasks?|events?|today|tomorrow))?\s*$`)},
	{KindHelp, regexp.MustCompile(`(?i)^(?:help|\?|commands)\s*$`)},
	{KindStatus, regexp.MustCompile(`(?i)^(?:status|inbox)\s*$`)},
	{KindDelete, regexp.MustCompile(`(?i)^(?:delete|remove|cancel)(?::|\s)\s*(.+)`)},
	{KindUpdate, regexp.MustCompile(`(?i)^(?:update|change|modify)(?::|\s)\s*(.+)`)},
}

// Parse maps text to a command. Anything that matches no keyword is a
// quick add of the whole text.
func Parse(text string) Command {
	text = strings.TrimSpace(text)
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		cmd := Command{Kind: p.kind, Text: text}
		if len(m) > 1 {
			cmd.Arg = strings.TrimSpace(m[1])
		}
		return cmd
	}
	return Command{Kind: KindQuickAdd, Arg: text, Text: text}
}

// listScope picks what a list command shows.
type listScope int

const (
	listDefault listScope = iota
	listToday
	listTomorrow
	listTasks
)

func scopeOf(text string) listScope {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "today"):
		return listToday
	case strings.Contains(lower, "tomorrow"):
		return listTomorrow
	case strings.Contains(lower, "task"):
		return listTasks
	}
	return listDefault
}

// HelpText lists the available commands.
const HelpText = `Family Planner SMS Commands:

📋 QUICK ADD:
• "add: soccer practice 4pm"
• "task: buy groceries"
• "event: dinner at 7pm"

📝 SPECIFIC COMMANDS:
• "add task: [description]"
• "add event: [description]"
• "list" - today's schedule
• "list today/tomorrow/tasks"
• "status" - inbox summary
• "delete: [text]" - remove a pending item

📸 PHOTOS:
• Send photos of flyers, forms, schedules
• Add a caption for context

Type any message to add it to your inbox!`
