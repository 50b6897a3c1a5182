package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scottring/family-planner-sub006/pkg/capture"
)

// WriteNote writes frontmatter and body to path, creating directories as
// needed.
func WriteNote(path string, frontmatter any, body string) error {
	fmData, err := yaml.Marshal(frontmatter)
	if err != nil {
		return fmt.Errorf("failed to marshal frontmatter: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	content := fmt.Sprintf("---\n%s---\n%s", fmData, body)
	return os.WriteFile(path, []byte(content), 0644)
}

// SanitizeFilename removes characters invalid in filenames.
func SanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", "\n"}
	for _, char := range invalid {
		name = strings.ReplaceAll(name, char, "-")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "untitled"
	}
	return name
}

// Committer records the exported files, typically in git.
type Committer interface {
	Sync(message string) error
}

// Exporter is a conversion sink that writes each converted capture to
// <dir>/events or <dir>/tasks.
type Exporter struct {
	dir       string
	committer Committer
	logger    *slog.Logger
	now       func() time.Time
	mu        sync.Mutex
}

var _ capture.Sink = (*Exporter)(nil)

// NewExporter creates an exporter rooted at dir. committer may be nil.
func NewExporter(dir string, committer Committer, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{dir: dir, committer: committer, logger: logger, now: time.Now}
}

func (e *Exporter) Name() string { return "vault" }

// Dir is the export root.
func (e *Exporter) Dir() string { return e.dir }

// Deliver implements capture.Sink.
func (e *Exporter) Deliver(_ context.Context, item *capture.Item, target *capture.Target, ref *capture.ConversionRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	path, fm := e.note(item, target, ref)
	body := fmt.Sprintf("# %s\n\n%s\n", target.Title, strings.TrimSpace(target.Description))
	if err := WriteNote(path, fm, body); err != nil {
		return fmt.Errorf("failed to export %s %s: %w", ref.Type, ref.ID, err)
	}
	e.logger.Debug("exported note", "path", path, "capture", item.ID)

	if e.committer == nil {
		return nil
	}
	msg := fmt.Sprintf("Add %s: %s", ref.Type, target.Title)
	if err := e.committer.Sync(msg); err != nil {
		return fmt.Errorf("failed to commit export: %w", err)
	}
	return nil
}

func (e *Exporter) note(item *capture.Item, target *capture.Target, ref *capture.ConversionRef) (string, any) {
	created := e.now().Format(time.RFC3339)
	var tags []string
	if target.Category != "" {
		tags = []string{target.Category}
	}

	var (
		sub, day string
		fm       any
	)
	switch ref.Type {
	case capture.TargetEvent:
		sub = "events"
		n := EventNote{
			Type:       ref.Type,
			ID:         ref.ID,
			CaptureID:  item.ID,
			Created:    created,
			AllDay:     target.AllDay,
			Location:   target.Location,
			AssignedTo: target.AssignedTo,
			Priority:   target.Priority,
			Category:   target.Category,
			Channel:    string(item.InputChannel),
			Tags:       tags,
		}
		if target.Start != nil {
			n.Start = formatWhen(*target.Start, target.AllDay)
			day = target.Start.Format("2006-01-02")
		}
		if target.End != nil {
			n.End = formatWhen(*target.End, target.AllDay)
		}
		fm = n
	default:
		sub = "tasks"
		n := TaskNote{
			Type:       ref.Type,
			ID:         ref.ID,
			CaptureID:  item.ID,
			Created:    created,
			Status:     "open",
			AssignedTo: target.AssignedTo,
			Priority:   target.Priority,
			Category:   target.Category,
			Channel:    string(item.InputChannel),
			Tags:       tags,
		}
		if target.Completed {
			n.Status = "done"
		}
		if target.DueDate != nil {
			n.DueDate = target.DueDate.Format("2006-01-02")
			day = n.DueDate
		}
		fm = n
	}

	name := SanitizeFilename(target.Title)
	if day != "" {
		name = day + " " + name
	}
	path := filepath.Join(e.dir, sub, name+".md")
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		path = filepath.Join(e.dir, sub, name+" "+ref.ID+".md")
	}
	return path, fm
}

func formatWhen(t time.Time, allDay bool) string {
	if allDay {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}
