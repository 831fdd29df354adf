// Package parser extracts YAML frontmatter and the markdown body from raw
// post files.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/models"
)

// Frontmatter holds the metadata keys consumed from a post file. Missing keys
// stay zero-valued; callers apply defaults.
type Frontmatter struct {
	Title       string        `yaml:"title"`
	Date        string        `yaml:"date"`
	Tags        StringList    `yaml:"tags"`
	Description string        `yaml:"description"`
	Cover       string        `yaml:"cover"`
	Author      models.Author `yaml:"author"`
}

// StringList decodes either a YAML sequence or a single scalar into a slice,
// tolerating hand-written frontmatter like "tags: go".
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = trimNonEmpty(items)
		return nil
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = trimNonEmpty([]string{s})
		return nil
	default:
		return fmt.Errorf("parser: tags must be a list or string")
	}
}

func trimNonEmpty(items []string) []string {
	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Result holds the output of parsing a post file.
type Result struct {
	Frontmatter *Frontmatter
	Body        string
}

// Parse separates YAML frontmatter (between leading --- delimiters) from the
// markdown body. Files without frontmatter, and files whose frontmatter is not
// valid YAML, fall back to a nil Frontmatter with the entire content as body.
func Parse(data []byte) (*Result, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return &Result{Body: string(data)}, nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter, treat everything as body.
		return &Result{Body: string(data)}, nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm Frontmatter
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return &Result{Body: string(data)}, nil
	}

	return &Result{Frontmatter: &fm, Body: body}, nil
}
