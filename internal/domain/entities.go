package domain

import (
	"math"
	"time"
)

// Expected fragment categories. Category is an open string: values outside
// this set are stored and surfaced as-is.
const (
	CategoryIndustry = "industry"
	CategoryCompany  = "company"
	CategoryWorld    = "world"
)

// DefaultCategory is used when a label is missing or labeling failed.
const DefaultCategory = CategoryWorld

// Categories lists the expected categories with their descriptions, in prompt order.
var Categories = []CategoryInfo{
	{Name: CategoryIndustry, Description: "Technical/industry insights and trends"},
	{Name: CategoryCompany, Description: "Information about companies, products, or services"},
	{Name: CategoryWorld, Description: "General world topics and non-technical views"},
}

type CategoryInfo struct {
	Name        string
	Description string
}

// IsKnownCategory reports whether c is one of the expected categories.
func IsKnownCategory(c string) bool {
	for _, info := range Categories {
		if info.Name == c {
			return true
		}
	}
	return false
}

// Fragment is one unit of retrievable knowledge.
type Fragment struct {
	Text     string `json:"text"`
	Category string `json:"category"`
	Summary  string `json:"summary"`
}

// RetrievalResult is a single search hit. Distance is squared Euclidean,
// Rank is 1-based in ascending distance order.
type RetrievalResult struct {
	Fragment Fragment `json:"fragment"`
	Distance float64  `json:"distance"`
	Rank     int      `json:"rank"`
}

// Perspective is the synthesized answer to a query.
type Perspective struct {
	Query   string   `json:"query"`
	Answer  string   `json:"perspective"`
	Sources []Source `json:"sources"`
	Error   string   `json:"error,omitempty"`
}

// Degraded reports whether synthesis failed and only sources are available.
func (p *Perspective) Degraded() bool {
	return p.Error != ""
}

// Source attributes part of a perspective to a retrieved fragment.
// Degraded perspectives carry neither Rank nor RelevanceScore.
type Source struct {
	Rank           int      `json:"rank,omitempty"`
	Category       string   `json:"category"`
	Summary        string   `json:"summary"`
	RelevanceScore *float64 `json:"relevance_score,omitempty"`
}

// minRelevance is the smallest score distinguishable after rounding.
const minRelevance = 0.0001

// RelevanceScore maps a distance into (0,1] for display, rounded to 4 places.
// Very distant fragments floor at minRelevance rather than rounding to zero.
func RelevanceScore(distance float64) float64 {
	if distance <= 0 {
		return 1.0
	}
	return math.Max(math.Round(1.0/(1.0+distance)*10000)/10000, minRelevance)
}

// ProfileState holds per-person state used to adopt a voice when answering.
type ProfileState struct {
	Name       string    `json:"name"`
	TextPrompt string    `json:"text_prompt,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// JournalEntry records one answered query.
type JournalEntry struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	Answer      string    `json:"answer"`
	SourceCount int       `json:"source_count"`
	Degraded    bool      `json:"degraded"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// StoreInfo summarizes a persisted vector store.
type StoreInfo struct {
	Model      string         `json:"model"`
	Dimension  int            `json:"dimension"`
	Count      int            `json:"count"`
	Categories map[string]int `json:"categories"`
}

// KeywordHit is a full-text match against a stored fragment.
type KeywordHit struct {
	Position int      `json:"position"`
	Score    float64  `json:"score"`
	Fragment Fragment `json:"fragment"`
}
