package usecase

import (
	"fmt"
	"sort"
	"strings"

	"perspective/internal/domain"
)

var (
	heavyRule = strings.Repeat("=", 70)
	lightRule = strings.Repeat("-", 70)
)

// FormatPerspective renders a perspective for terminal output. Sources
// without a rank are numbered by position.
func FormatPerspective(p *domain.Perspective) string {
	lines := []string{
		heavyRule,
		"QUERY: " + p.Query,
		heavyRule,
		"\nPERSPECTIVE:",
		lightRule,
		p.Answer,
		"\n" + lightRule,
	}

	if len(p.Sources) > 0 {
		lines = append(lines, fmt.Sprintf("\nSOURCES (%d):", len(p.Sources)), lightRule)
		for i, src := range p.Sources {
			rank := src.Rank
			if rank == 0 {
				rank = i + 1
			}
			lines = append(lines, fmt.Sprintf("\n[%d] Category: %s", rank, src.Category))
			if src.RelevanceScore != nil {
				lines = append(lines, fmt.Sprintf("    Relevance: %.4f", *src.RelevanceScore))
			}
			lines = append(lines, "    Summary: "+src.Summary)
		}
	}

	if p.Error != "" {
		lines = append(lines, "\nERROR: "+p.Error)
	}

	lines = append(lines, "\n"+heavyRule)
	return strings.Join(lines, "\n")
}

// FormatHits renders search hits, one block per hit.
func FormatHits(hits []SearchHit) string {
	if len(hits) == 0 {
		return "No matching fragments."
	}

	var sb strings.Builder
	for i, h := range hits {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "[%d] Category: %s", h.Rank, h.Fragment.Category)
		switch {
		case h.Distance != nil:
			fmt.Fprintf(&sb, "  Distance: %.4f", *h.Distance)
		case h.Score != nil:
			fmt.Fprintf(&sb, "  Score: %.4f", *h.Score)
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "    Summary: %s\n", h.Fragment.Summary)
		fmt.Fprintf(&sb, "    Text: %s\n", h.Fragment.Text)
	}
	return sb.String()
}

// FormatStoreInfo renders a store summary with a category histogram.
func FormatStoreInfo(info domain.StoreInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Model:      %s\n", info.Model)
	fmt.Fprintf(&sb, "Dimension:  %d\n", info.Dimension)
	fmt.Fprintf(&sb, "Fragments:  %d\n", info.Count)
	if len(info.Categories) == 0 {
		return sb.String()
	}

	sb.WriteString("Categories:\n")
	seen := make(map[string]bool)
	for _, c := range domain.Categories {
		seen[c.Name] = true
		fmt.Fprintf(&sb, "  %-10s %d\n", c.Name, info.Categories[c.Name])
	}
	var other []string
	for name := range info.Categories {
		if !seen[name] {
			other = append(other, name)
		}
	}
	sort.Strings(other)
	for _, name := range other {
		fmt.Fprintf(&sb, "  %-10s %d\n", name, info.Categories[name])
	}
	return sb.String()
}
