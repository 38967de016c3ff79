package labeler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"perspective/internal/domain"
	"perspective/internal/logging"
)

// labeledRecord is one JSON line. Missing fields default like the labeler does.
type labeledRecord struct {
	Text     string  `json:"text"`
	Summary  string  `json:"summary"`
	Category *string `json:"category"`
}

// ReadResult holds labeled fragments read from a JSON-lines file.
type ReadResult struct {
	Texts     []string
	Fragments []domain.Fragment
	Skipped   int
}

// ReadLabeled reads a JSON-lines file of {text, summary, category} records.
// Blank lines are ignored, invalid lines are skipped and counted.
func ReadLabeled(path string) (*ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	result := &ReadResult{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec labeledRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			logging.Warnf("%s:%d: skipping invalid JSON line: %v", path, lineNo, err)
			result.Skipped++
			continue
		}

		category := domain.DefaultCategory
		if rec.Category != nil {
			category = *rec.Category
		}
		result.Texts = append(result.Texts, rec.Text)
		result.Fragments = append(result.Fragments, domain.Fragment{
			Text:     rec.Text,
			Summary:  rec.Summary,
			Category: category,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return result, nil
}

// Output formats for WriteLabeled.
const (
	FormatJSON = "json"
	FormatText = "txt"
)

// WriteLabeled writes fragments as JSON lines or as a readable text listing.
func WriteLabeled(path string, fragments []domain.Fragment, format string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, frag := range fragments {
			if err := enc.Encode(frag); err != nil {
				return err
			}
		}
	case FormatText:
		for i, frag := range fragments {
			fmt.Fprintf(w, "=== Entry %d ===\n", i+1)
			fmt.Fprintf(w, "Category: %s\n", frag.Category)
			fmt.Fprintf(w, "Summary: %s\n", frag.Summary)
			fmt.Fprintf(w, "Text: %s\n\n", frag.Text)
		}
	default:
		return fmt.Errorf("unknown format: %s (use json or txt)", format)
	}

	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// ReadRawTexts splits a plain text file into texts separated by blank lines.
func ReadRawTexts(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var texts []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			texts = append(texts, strings.Join(current, "\n"))
			current = current[:0]
		}
	}
	for _, line := range strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, strings.TrimRight(line, " \t"))
	}
	flush()
	return texts, nil
}
