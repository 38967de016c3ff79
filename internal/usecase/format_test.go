package usecase

import (
	"strings"
	"testing"

	"perspective/internal/domain"
)

func TestFormatPerspective(t *testing.T) {
	score := 0.5
	p := &domain.Perspective{
		Query:  "Why?",
		Answer: "Because.",
		Sources: []domain.Source{
			{Rank: 1, Category: "industry", Summary: "S1", RelevanceScore: &score},
		},
	}

	heavy := strings.Repeat("=", 70)
	light := strings.Repeat("-", 70)
	want := strings.Join([]string{
		heavy,
		"QUERY: Why?",
		heavy,
		"\nPERSPECTIVE:",
		light,
		"Because.",
		"\n" + light,
		"\nSOURCES (1):",
		light,
		"\n[1] Category: industry",
		"    Relevance: 0.5000",
		"    Summary: S1",
		"\n" + heavy,
	}, "\n")

	if got := FormatPerspective(p); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatDegradedPerspective(t *testing.T) {
	p := &domain.Perspective{
		Query:   "q",
		Answer:  "sorry",
		Sources: []domain.Source{{Category: "world", Summary: "a"}, {Category: "company", Summary: "b"}},
		Error:   "timeout",
	}
	out := FormatPerspective(p)
	if !strings.Contains(out, "\n[2] Category: company\n    Summary: b") {
		t.Errorf("unranked sources should be numbered by position:\n%s", out)
	}
	if strings.Contains(out, "Relevance:") {
		t.Error("degraded sources have no relevance")
	}
	if !strings.Contains(out, "ERROR: timeout") {
		t.Error("error should be shown")
	}
}

func TestFormatNoSources(t *testing.T) {
	out := FormatPerspective(&domain.Perspective{Query: "q", Answer: NoResultsAnswer, Sources: []domain.Source{}})
	if strings.Contains(out, "SOURCES") {
		t.Error("no sources section expected")
	}
}

func TestFormatStoreInfo(t *testing.T) {
	out := FormatStoreInfo(domain.StoreInfo{
		Model: "m", Dimension: 3, Count: 4,
		Categories: map[string]int{"industry": 2, "world": 1, "sports": 1},
	})
	for _, want := range []string{"Model:      m", "Fragments:  4", "  company    0", "  sports     1"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}
