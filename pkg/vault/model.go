// Package vault exports converted captures as markdown notes with YAML
// front-matter, one file per event or task.
package vault

// EventNote is the front-matter of an exported event.
type EventNote struct {
	Type       string   `yaml:"type"`
	ID         string   `yaml:"id"`
	CaptureID  string   `yaml:"capture_id"`
	Created    string   `yaml:"created"`
	Start      string   `yaml:"start"`
	End        string   `yaml:"end,omitempty"`
	AllDay     bool     `yaml:"all_day,omitempty"`
	Location   string   `yaml:"location,omitempty"`
	AssignedTo string   `yaml:"assigned_to,omitempty"`
	Priority   int      `yaml:"priority"`
	Category   string   `yaml:"category,omitempty"`
	Channel    string   `yaml:"channel"`
	Tags       []string `yaml:"tags,omitempty"`
}

// TaskNote is the front-matter of an exported task.
type TaskNote struct {
	Type       string   `yaml:"type"`
	ID         string   `yaml:"id"`
	CaptureID  string   `yaml:"capture_id"`
	Created    string   `yaml:"created"`
	Status     string   `yaml:"status"` // open, done
	DueDate    string   `yaml:"due_date,omitempty"`
	AssignedTo string   `yaml:"assigned_to,omitempty"`
	Priority   int      `yaml:"priority"`
	Category   string   `yaml:"category,omitempty"`
	Channel    string   `yaml:"channel"`
	Tags       []string `yaml:"tags,omitempty"`
}

// Note represents a parsed markdown note
type Note struct {
	Path        string
	Frontmatter map[string]any
	Content     string // The markdown content after frontmatter
}
