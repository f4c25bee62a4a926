// Package profile derives a BusinessProfile from extracted page text,
// either by a local keyword heuristic or with model assistance.
package profile

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/width"

	"github.com/fukui-lab/subsidy-cli/internal/model"
)

const (
	// maxKeywords is the number of frequent tokens kept on a profile.
	maxKeywords = 10

	// minTokenLen is the minimum token length (in code points) to count.
	minTokenLen = 2
)

// Extractor derives a BusinessProfile from page content.
type Extractor interface {
	Extract(ctx context.Context, page *model.PageContent) (*model.BusinessProfile, error)
	Strategy() string
}

// HeuristicExtractor builds profiles by counting trigger-keyword hits against
// the lexicon. It is a pure function of its input: deterministic, no I/O.
type HeuristicExtractor struct {
	lex *Lexicon
}

// NewHeuristicExtractor creates a HeuristicExtractor. If lex is nil the
// default lexicon is used.
func NewHeuristicExtractor(lex *Lexicon) *HeuristicExtractor {
	if lex == nil {
		lex = DefaultLexicon()
	}
	return &HeuristicExtractor{lex: lex}
}

// Strategy identifies this extractor on analysis runs.
func (e *HeuristicExtractor) Strategy() string { return model.StrategyHeuristic }

// Extract derives a profile from the page. Empty pages yield an empty
// profile with confidence 0, never an error.
func (e *HeuristicExtractor) Extract(_ context.Context, page *model.PageContent) (*model.BusinessProfile, error) {
	text := Normalize(page.CombinedText())

	prof := &model.BusinessProfile{
		URL:                 page.URL,
		Title:               page.Title,
		BusinessTypes:       detectLabels(text, e.lex.BusinessTypes),
		DetectedCategories:  detectLabels(text, e.lex.Categories),
		Keywords:            extractKeywords(text),
		SuggestedPrefecture: detectPrefecture(text, e.lex.Prefectures),
	}
	prof.Confidence = overallConfidence(prof)

	zap.L().Debug("profile: heuristic extraction",
		zap.String("url", page.URL),
		zap.Int("business_types", len(prof.BusinessTypes)),
		zap.Int("categories", len(prof.DetectedCategories)),
		zap.Int("confidence", prof.Confidence),
	)

	return prof, nil
}

// Normalize folds full-width characters to their half-width forms and
// lower-cases the result, so triggers like "it" also hit "ＩＴ".
func Normalize(text string) string {
	return strings.ToLower(width.Fold.String(text))
}

// detectLabels counts, for each table entry, how many of its triggers occur
// as substrings of the normalized text. Entries with at least one hit are
// returned sorted by hit count descending; ties keep table order.
func detectLabels(text string, table []LabelTriggers) []model.ScoredLabel {
	var labels []model.ScoredLabel
	for _, entry := range table {
		hits := 0
		for _, trigger := range entry.Triggers {
			if strings.Contains(text, trigger) {
				hits++
			}
		}
		if hits > 0 {
			labels = append(labels, model.ScoredLabel{Label: entry.Label, Confidence: hits})
		}
	}

	sort.SliceStable(labels, func(i, j int) bool {
		return labels[i].Confidence > labels[j].Confidence
	})
	return labels
}

// detectPrefecture returns the canonical name of the first region whose
// short name occurs in the text. First-match-wins over the fixed region
// order; no frequency weighting.
func detectPrefecture(text string, regions []Region) string {
	for _, r := range regions {
		if strings.Contains(text, r.Name) {
			return r.Canonical
		}
	}
	return ""
}

// extractKeywords returns the top 10 most frequent word runs of length >= 2.
// A word run is a maximal sequence of letter or ideograph code points (the
// prolonged sound mark ー counts as part of a katakana word). Ties are broken
// by first appearance in the text.
func extractKeywords(text string) []string {
	counts := make(map[string]int)
	var order []string

	var run []rune
	flush := func() {
		if len(run) >= minTokenLen {
			word := string(run)
			if counts[word] == 0 {
				order = append(order, word)
			}
			counts[word]++
		}
		run = run[:0]
	}

	for _, r := range text {
		if unicode.IsLetter(r) || r == 'ー' {
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > maxKeywords {
		order = order[:maxKeywords]
	}
	return order
}

// overallConfidence derives the profile-level [0,100] confidence from the
// total trigger-hit volume across business types and categories.
func overallConfidence(p *model.BusinessProfile) int {
	total := 0
	for _, bt := range p.BusinessTypes {
		total += bt.Confidence
	}
	for _, c := range p.DetectedCategories {
		total += c.Confidence
	}

	conf := int(math.Round(float64(total) / 10 * 100))
	if conf > 100 {
		conf = 100
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}
