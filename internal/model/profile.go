package model

import (
	"strings"
	"time"
)

// ScoredLabel is a detected label with an unnormalized hit-count confidence.
// Confidence counts matched trigger keywords, not a percentage.
type ScoredLabel struct {
	Label      string `json:"label"`
	Confidence int    `json:"confidence"`
}

// BusinessProfile summarizes a business's likely sector, relevant subsidy
// categories, location, and keywords, derived from page text. Profiles are
// transient and rebuilt per analysis.
type BusinessProfile struct {
	URL                 string        `json:"url"`
	Title               string        `json:"title"`
	BusinessTypes       []ScoredLabel `json:"business_types"`
	DetectedCategories  []ScoredLabel `json:"detected_categories"`
	Keywords            []string      `json:"keywords"`
	SuggestedPrefecture string        `json:"suggested_prefecture,omitempty"`

	// Confidence is the overall extraction confidence in [0,100], distinct
	// from the per-label hit counts above.
	Confidence int `json:"confidence"`
}

// MatchedSubsidy is a scored association between a profile and one record.
type MatchedSubsidy struct {
	Subsidy SubsidyRecord `json:"subsidy"`

	// Score is the raw accumulated relevance, unbounded above; used for ranking.
	Score int `json:"score"`

	// MatchReasons holds up to three deduplicated explanation strings in the
	// order the score contributions were accumulated.
	MatchReasons []string `json:"match_reasons"`

	// MatchPercentage is Score clamped into [0,100] for display.
	MatchPercentage int `json:"match_percentage"`
}

// PageContent is the plain-text extraction of a fetched web page.
type PageContent struct {
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	MetaKeywords string   `json:"meta_keywords,omitempty"`
	Headings     []string `json:"headings,omitempty"`
	Body         string   `json:"body"`
}

// CombinedText concatenates all extracted text in analysis order:
// title, meta description, meta keywords, headings, body.
func (p *PageContent) CombinedText() string {
	parts := make([]string, 0, 4+len(p.Headings))
	parts = append(parts, p.Title, p.Description, p.MetaKeywords)
	parts = append(parts, p.Headings...)
	parts = append(parts, p.Body)
	return strings.Join(parts, " ")
}

// AnalysisRun is one completed website analysis: the derived profile and the
// ranked matches it produced.
type AnalysisRun struct {
	ID         string           `json:"id"`
	URL        string           `json:"url"`
	Strategy   string           `json:"strategy"`
	Profile    BusinessProfile  `json:"profile"`
	Matches    []MatchedSubsidy `json:"matches"`
	AnalyzedAt time.Time        `json:"analyzed_at"`
}

// Extraction strategies recorded on AnalysisRun.
const (
	StrategyHeuristic = "heuristic"
	StrategyAssisted  = "assisted"
)
