package usecase

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"perspective/internal/domain"
)

//go:embed templates/*.txt
var promptTemplates embed.FS

// SystemPrompt is the synthesis instruction sent with every perspective request.
const SystemPrompt = "You are a thoughtful analyst who synthesizes information from multiple sources to provide insightful perspectives on questions about the world, industry, and technology."

var perspectiveTemplate = template.Must(
	template.ParseFS(promptTemplates, "templates/perspective_prompt.txt"),
)

// PromptData fills the perspective prompt template.
type PromptData struct {
	Categories []domain.CategoryInfo
	Context    string
	Query      string
}

// BuildSystemPrompt prefixes the synthesis instruction with an optional persona sentence.
func BuildSystemPrompt(persona string) string {
	persona = strings.TrimSpace(persona)
	if persona == "" {
		return SystemPrompt
	}
	return persona + " " + SystemPrompt
}

// BuildPerspectivePrompt renders the user message for a packed context and query.
func BuildPerspectivePrompt(context, query string) (string, error) {
	var buf bytes.Buffer
	err := perspectiveTemplate.Execute(&buf, PromptData{
		Categories: domain.Categories,
		Context:    context,
		Query:      query,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
