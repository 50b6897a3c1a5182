package vault

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReadNote reads a markdown file and parses its frontmatter and content
func ReadNote(path string) (*Note, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var fmLines, contentLines []string
	inFrontmatter := false
	first := true

	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			if line == "---" {
				inFrontmatter = true
				continue
			}
		}
		if inFrontmatter {
			if line == "---" {
				inFrontmatter = false
				continue
			}
			fmLines = append(fmLines, line)
			continue
		}
		contentLines = append(contentLines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	var fm map[string]any
	if len(fmLines) > 0 {
		if err := yaml.Unmarshal([]byte(strings.Join(fmLines, "\n")), &fm); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
	}

	return &Note{
		Path:        path,
		Frontmatter: fm,
		Content:     strings.Join(contentLines, "\n"),
	}, nil
}

// Decode maps the note's frontmatter onto v, typically an EventNote or
// TaskNote.
func (n *Note) Decode(v any) error {
	data, err := yaml.Marshal(n.Frontmatter)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, v)
}
