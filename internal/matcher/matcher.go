// Package matcher scores subsidy records against a business profile and
// returns the ranked matches.
package matcher

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fukui-lab/subsidy-cli/internal/model"
)

const (
	// regionBonus is added for an exact prefecture match.
	regionBonus = 30

	// nationwideBonus is added when the program is open nationwide and the
	// profile names a prefecture.
	nationwideBonus = 10

	// keywordBonus is added per profile keyword found in the record text.
	keywordBonus = 5

	// activeBonus is added for currently open programs.
	activeBonus = 10

	// expiredFactor scales the whole accumulated score of closed programs.
	expiredFactor = 0.3

	// maxResults caps the ranked list.
	maxResults = 20

	// maxReasons caps the explanation strings per match.
	maxReasons = 3
)

// Weights parameterize the scorer for the two extraction strategies.
type Weights struct {
	// CategoryWeight multiplies the category hit-count on overlap.
	CategoryWeight float64

	// BusinessTypeWeight multiplies the business-type hit-count on relevance.
	BusinessTypeWeight float64

	// IncludeEligibility extends business-type matching to eligibility text.
	IncludeEligibility bool

	// ApplyOverallConfidence scales the accumulated score by the profile's
	// overall confidence before the status adjustment.
	ApplyOverallConfidence bool
}

// HeuristicWeights returns the weights for locally extracted profiles.
func HeuristicWeights() Weights {
	return Weights{CategoryWeight: 10, BusinessTypeWeight: 8}
}

// AssistedWeights returns the weights for model-assisted profiles, which
// trust the extractor's confidences more.
func AssistedWeights() Weights {
	return Weights{
		CategoryWeight:         15,
		BusinessTypeWeight:     10,
		IncludeEligibility:     true,
		ApplyOverallConfidence: true,
	}
}

// WeightsFor returns the weights matching an extraction strategy.
func WeightsFor(strategy string) Weights {
	if strategy == model.StrategyAssisted {
		return AssistedWeights()
	}
	return HeuristicWeights()
}

// Matcher scores a corpus against profiles. A Matcher is stateless and safe
// for concurrent use; the corpus is never mutated during a pass.
type Matcher struct {
	weights Weights
}

// New creates a Matcher with the given weights.
func New(weights Weights) *Matcher {
	return &Matcher{weights: weights}
}

// Match scores every record against the profile and returns the top ranked
// matches, at most 20. Scoring is deterministic: identical inputs produce
// identical output, and equal scores keep corpus order (stable sort).
// An empty corpus yields an empty slice.
func (m *Matcher) Match(profile *model.BusinessProfile, corpus []model.SubsidyRecord) []model.MatchedSubsidy {
	results := make([]model.MatchedSubsidy, 0, len(corpus))
	for i := range corpus {
		results = append(results, m.scoreRecord(profile, &corpus[i]))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > maxResults {
		results = results[:maxResults]
	}

	zap.L().Debug("matcher: scoring complete",
		zap.Int("corpus_size", len(corpus)),
		zap.Int("returned", len(results)),
	)

	return results
}

// scoreRecord accumulates all score contributions for one record.
func (m *Matcher) scoreRecord(profile *model.BusinessProfile, rec *model.SubsidyRecord) model.MatchedSubsidy {
	var score float64
	var reasons []string

	// Category overlap: substring containment in either direction, so a
	// detected "DX・デジタル化" overlaps a record category "デジタル化".
	// A missing category list simply contributes nothing.
	for _, detected := range profile.DetectedCategories {
		for _, cat := range rec.Category {
			if strings.Contains(cat, detected.Label) || strings.Contains(detected.Label, cat) {
				score += float64(detected.Confidence) * m.weights.CategoryWeight
				reasons = append(reasons, fmt.Sprintf("カテゴリ「%s」が一致", cat))
			}
		}
	}

	// Region match.
	if profile.SuggestedPrefecture != "" {
		switch {
		case rec.Prefecture == profile.SuggestedPrefecture:
			score += regionBonus
			reasons = append(reasons, fmt.Sprintf("対象地域「%s」が一致", profile.SuggestedPrefecture))
		case rec.Nationwide():
			score += nationwideBonus
			reasons = append(reasons, "全国対象の補助金")
		}
	}

	recText := strings.ToLower(rec.Title + " " + rec.Description)
	typeText := recText
	if m.weights.IncludeEligibility && len(rec.Eligibility) > 0 {
		typeText += " " + strings.ToLower(strings.Join(rec.Eligibility, " "))
	}

	// Keyword relevance.
	for _, kw := range profile.Keywords {
		if strings.Contains(recText, strings.ToLower(kw)) {
			score += keywordBonus
			reasons = append(reasons, fmt.Sprintf("キーワード「%s」が関連", kw))
		}
	}

	// Business-type relevance.
	for _, bt := range profile.BusinessTypes {
		if strings.Contains(typeText, strings.ToLower(bt.Label)) {
			score += float64(bt.Confidence) * m.weights.BusinessTypeWeight
			reasons = append(reasons, fmt.Sprintf("業種「%s」が関連", bt.Label))
		}
	}

	// Overall extraction confidence, before the status adjustment.
	if m.weights.ApplyOverallConfidence && profile.Confidence > 0 {
		score *= float64(profile.Confidence) / 100
	}

	// Status adjustment last: open programs get a flat bonus; closed
	// programs have the entire accumulated score scaled down.
	switch rec.Status {
	case model.StatusActive:
		score += activeBonus
	case model.StatusExpired:
		score *= expiredFactor
	}

	rounded := int(math.Round(score))
	return model.MatchedSubsidy{
		Subsidy:         *rec,
		Score:           rounded,
		MatchReasons:    dedupeReasons(reasons),
		MatchPercentage: clampPercentage(rounded),
	}
}

// dedupeReasons removes duplicate reason strings preserving first-occurrence
// order and truncates to the reason cap.
func dedupeReasons(reasons []string) []string {
	seen := make(map[string]struct{}, len(reasons))
	out := make([]string, 0, maxReasons)
	for _, r := range reasons {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
		if len(out) == maxReasons {
			break
		}
	}
	return out
}

// clampPercentage maps a raw score into the [0,100] display range. Scores
// above 100 saturate the percentage; the raw score keeps ranking them.
func clampPercentage(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
