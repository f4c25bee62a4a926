package profile

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fukui-lab/subsidy-cli/internal/model"
)

func extract(t *testing.T, page *model.PageContent) *model.BusinessProfile {
	t.Helper()
	prof, err := NewHeuristicExtractor(nil).Extract(context.Background(), page)
	require.NoError(t, err)
	return prof
}

func TestExtractEmptyPage(t *testing.T) {
	prof := extract(t, &model.PageContent{URL: "https://example.jp"})

	assert.Equal(t, "https://example.jp", prof.URL)
	assert.Empty(t, prof.BusinessTypes)
	assert.Empty(t, prof.DetectedCategories)
	assert.Empty(t, prof.Keywords)
	assert.Empty(t, prof.SuggestedPrefecture)
	assert.Equal(t, 0, prof.Confidence)
}

func TestExtractBusinessTypes(t *testing.T) {
	page := &model.PageContent{
		Title: "株式会社サンプル",
		Body:  "システム開発とwebアプリの受託。dx支援も行う。",
	}
	prof := extract(t, page)

	require.NotEmpty(t, prof.BusinessTypes)
	// システム, web, アプリ, dx, 開発 all trigger IT・ソフトウェア.
	assert.Equal(t, "IT・ソフトウェア", prof.BusinessTypes[0].Label)
	assert.Equal(t, 5, prof.BusinessTypes[0].Confidence)
}

func TestExtractBusinessTypesSortedDescending(t *testing.T) {
	page := &model.PageContent{
		Body: "農業を営む農家。野菜の販売も少し。",
	}
	prof := extract(t, page)

	require.GreaterOrEqual(t, len(prof.BusinessTypes), 2)
	for i := 1; i < len(prof.BusinessTypes); i++ {
		assert.GreaterOrEqual(t,
			prof.BusinessTypes[i-1].Confidence,
			prof.BusinessTypes[i].Confidence,
		)
	}
	assert.Equal(t, "農業", prof.BusinessTypes[0].Label)
}

func TestExtractTieKeepsTableOrder(t *testing.T) {
	// 製造 and 建設 each hit exactly one trigger; 製造業 precedes 建設 in
	// the table, so it must come first after the stable sort.
	page := &model.PageContent{Body: "製造 建設"}
	prof := extract(t, page)

	require.Len(t, prof.BusinessTypes, 2)
	assert.Equal(t, "製造業", prof.BusinessTypes[0].Label)
	assert.Equal(t, "建設", prof.BusinessTypes[1].Label)
}

func TestExtractCategories(t *testing.T) {
	page := &model.PageContent{
		Body: "テレワーク導入で働き方を見直し、省エネ設備を購入しました。",
	}
	prof := extract(t, page)

	labels := make([]string, len(prof.DetectedCategories))
	for i, c := range prof.DetectedCategories {
		labels[i] = c.Label
	}
	assert.Contains(t, labels, "働き方改革")
	assert.Contains(t, labels, "設備投資")
	assert.Contains(t, labels, "省エネ・環境")
}

func TestDetectPrefectureFirstMatchWins(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"single", "福井のものづくり企業", "福井県"},
		{"canonicalized hokkaido", "北海道の酪農", "北海道"},
		{"tokyo suffix", "東京都渋谷区", "東京都"},
		{"osaka", "大阪のたこ焼き屋", "大阪府"},
		// 東京都 contains the characters 京都; 東京 is earlier in the
		// fixed order, so it wins.
		{"tokyo beats kyoto substring", "本社は東京都内", "東京都"},
		// Order-dependent: 宮城 precedes 福井 in the region list.
		{"multi region resolves to first listed", "宮城と福井に拠点", "宮城県"},
		{"none", "どこにも触れないテキスト", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectPrefecture(Normalize(tt.text), DefaultLexicon().Prefectures)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractKeywords(t *testing.T) {
	text := Normalize("りんご りんご りんご みかん みかん ぶどう x y z")
	got := extractKeywords(text)

	require.GreaterOrEqual(t, len(got), 3)
	assert.Equal(t, "りんご", got[0])
	assert.Equal(t, "みかん", got[1])
	assert.Equal(t, "ぶどう", got[2])

	// Single code point tokens are dropped.
	assert.NotContains(t, got, "x")
}

func TestExtractKeywordsCapAndTieOrder(t *testing.T) {
	words := []string{"あか", "あお", "きいろ", "みどり", "むらさき", "しろ", "くろ",
		"はいいろ", "ちゃいろ", "もも", "だいだい", "こん"}
	text := strings.Join(words, " ")
	got := extractKeywords(Normalize(text))

	// Capped at 10; all frequencies equal, so first-seen order is kept.
	require.Len(t, got, 10)
	assert.Equal(t, words[:10], got)
}

func TestExtractKeywordsSplitsOnNonLetters(t *testing.T) {
	got := extractKeywords("abc123def あいう、えお")
	assert.Contains(t, got, "abc")
	assert.Contains(t, got, "def")
	assert.Contains(t, got, "あいう")
	assert.Contains(t, got, "えお")
}

func TestNormalizeFoldsWidthAndCase(t *testing.T) {
	assert.Equal(t, "it system", Normalize("ＩＴ ＳＹＳＴＥＭ"))
	assert.Equal(t, "dx", Normalize("DX"))
}

func TestOverallConfidence(t *testing.T) {
	tests := []struct {
		name  string
		types []model.ScoredLabel
		cats  []model.ScoredLabel
		want  int
	}{
		{"empty", nil, nil, 0},
		{"three hits", []model.ScoredLabel{{Label: "a", Confidence: 2}},
			[]model.ScoredLabel{{Label: "b", Confidence: 1}}, 30},
		{"clamped", []model.ScoredLabel{{Label: "a", Confidence: 8}},
			[]model.ScoredLabel{{Label: "b", Confidence: 7}}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &model.BusinessProfile{BusinessTypes: tt.types, DetectedCategories: tt.cats}
			assert.Equal(t, tt.want, overallConfidence(p))
		})
	}
}

func TestExtractDeterministic(t *testing.T) {
	page := &model.PageContent{
		Title:    "福井の製造業",
		Body:     "工場で機械加工。設備投資と人材育成に注力。",
		Headings: []string{"事業内容"},
	}

	first := extract(t, page)
	second := extract(t, page)
	assert.Equal(t, first, second)
}
