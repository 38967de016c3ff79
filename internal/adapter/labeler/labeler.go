// Package labeler assigns a category and a one-sentence summary to raw text.
package labeler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"perspective/internal/domain"
	"perspective/internal/logging"
	"perspective/internal/port"
)

// PromptVersion changes whenever the labeling prompt changes, invalidating cached labels.
const PromptVersion = 1

// FallbackSummary is used when the model cannot label a text.
const FallbackSummary = "Unable to generate summary"

const systemPrompt = "You are a text categorization assistant. Always respond with valid JSON only."

// LLMLabeler labels text with a chat model.
type LLMLabeler struct {
	llm         port.LLM
	temperature float64
}

// NewLLMLabeler creates a labeler. Temperature 0 uses 0.3.
func NewLLMLabeler(llm port.LLM, temperature float64) *LLMLabeler {
	if temperature <= 0 {
		temperature = 0.3
	}
	return &LLMLabeler{llm: llm, temperature: temperature}
}

type labelResponse struct {
	Summary  string `json:"summary"`
	Category string `json:"category"`
}

// Label never fails: errors are logged and produce the fallback fragment.
func (l *LLMLabeler) Label(ctx context.Context, text string) domain.Fragment {
	out, err := l.llm.GenerateWithSystem(ctx, systemPrompt, buildPrompt(text), port.GenerateOptions{
		Temperature: l.temperature,
		JSON:        true,
	})
	if err != nil {
		logging.Warnf("labeling failed: %v", err)
		return Fallback(text)
	}

	frag, err := parseLabel(text, out)
	if err != nil {
		logging.Warnf("labeling returned unusable output: %v", err)
		return Fallback(text)
	}
	logging.Debugf("labeled %q as %s", truncate(text, 50), frag.Category)
	return frag
}

// Fallback is the fragment stored for text that could not be labeled.
func Fallback(text string) domain.Fragment {
	return domain.Fragment{Text: text, Summary: FallbackSummary, Category: domain.DefaultCategory}
}

func parseLabel(text, raw string) (domain.Fragment, error) {
	raw = strings.TrimSpace(raw)
	// Some models wrap JSON in a fenced block even in JSON mode
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var resp labelResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &resp); err != nil {
		return domain.Fragment{}, fmt.Errorf("invalid JSON: %w", err)
	}

	category := strings.ToLower(strings.TrimSpace(resp.Category))
	if category == "" {
		category = domain.DefaultCategory
	}
	return domain.Fragment{
		Text:     text,
		Summary:  strings.TrimSpace(resp.Summary),
		Category: category,
	}, nil
}

func buildPrompt(text string) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following text and provide:\n")
	sb.WriteString("1. A single sentence summary\n")
	sb.WriteString(`2. A category: one of "industry", "company", or "world"` + "\n")
	sb.WriteString(`   - "industry": Technical/industry insights, trends, or professional content` + "\n")
	sb.WriteString(`   - "company": Content about the founder's own company, products, or services` + "\n")
	sb.WriteString(`   - "world": Non-technical views, personal opinions, or general world topics` + "\n\n")
	sb.WriteString("Text to analyze:\n")
	sb.WriteString(text)
	sb.WriteString("\n\nRespond in JSON format with exactly these fields:\n")
	sb.WriteString("{\n")
	sb.WriteString(`    "summary": "single sentence summary here",` + "\n")
	sb.WriteString(`    "category": "industry" or "company" or "world"` + "\n")
	sb.WriteString("}\n")
	return sb.String()
}

// ProgressFunc reports labeling progress.
type ProgressFunc func(done, total int)

// LabelAll labels texts in order, batchSize at a time between progress reports.
func LabelAll(ctx context.Context, l port.Labeler, texts []string, batchSize int, progress ProgressFunc) ([]domain.Fragment, error) {
	if batchSize <= 0 {
		batchSize = 10
	}

	fragments := make([]domain.Fragment, 0, len(texts))
	for i := 0; i < len(texts); i += batchSize {
		if err := ctx.Err(); err != nil {
			return fragments, err
		}
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		for _, text := range texts[i:end] {
			fragments = append(fragments, l.Label(ctx, text))
		}
		if progress != nil {
			progress(len(fragments), len(texts))
		}
	}
	return fragments, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
