package generation

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
)

// DefaultPromptTemplate asks for a two to three sentence summary.
const DefaultPromptTemplate = "Create a very short summary (2-3 sentences) of the following news content, " +
	"only the summary is required, don't say here is the summary etc... :\n\n{{.Content}}"

type promptData struct {
	Content string
}

// PromptBuilder renders the summarization prompt for a piece of content.
type PromptBuilder struct {
	tmpl *template.Template
}

// NewPromptBuilder parses the template at path, or DefaultPromptTemplate when
// path is empty.
func NewPromptBuilder(path string) (*PromptBuilder, error) {
	text := DefaultPromptTemplate
	name := "default"

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read prompt template from %s: %v",
				ErrInvalidConfig, path, err)
		}
		text = string(content)
		name = path
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", ErrInvalidConfig, err)
	}

	return &PromptBuilder{tmpl: tmpl}, nil
}

// Build renders the prompt for content.
func (b *PromptBuilder) Build(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}

	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, promptData{Content: content}); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	return buf.String(), nil
}
