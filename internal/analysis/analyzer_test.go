package analysis

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fukui-lab/subsidy-cli/internal/model"
	"github.com/fukui-lab/subsidy-cli/internal/profile"
	"github.com/fukui-lab/subsidy-cli/internal/store"
)

type fakePages struct {
	pages map[string]*model.PageContent
	err   error
	calls atomic.Int32
}

func (f *fakePages) FetchPage(_ context.Context, url string) (*model.PageContent, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if page, ok := f.pages[url]; ok {
		return page, nil
	}
	return &model.PageContent{URL: url, Body: "システム開発とwebアプリの受託。"}, nil
}

func testCorpus() []model.SubsidyRecord {
	return []model.SubsidyRecord{
		{
			ID:          "subsidy-001",
			Title:       "中小企業デジタル化支援補助金",
			Description: "県内中小企業のDX推進を支援します。",
			Status:      model.StatusActive,
			Category:    []string{"DX・デジタル化"},
			Prefecture:  "福井県",
		},
		{
			ID:         "subsidy-002",
			Title:      "省エネ設備導入補助金",
			Status:     model.StatusExpired,
			Category:   []string{"省エネ・環境"},
			Prefecture: "福井県",
		},
	}
}

func TestAnalyzeURL(t *testing.T) {
	st := store.NewMemoryWithRecords(testCorpus())
	a := New(st, &fakePages{}, profile.NewHeuristicExtractor(profile.DefaultLexicon()))

	run, err := a.AnalyzeURL(context.Background(), "https://example.jp")
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "https://example.jp", run.URL)
	assert.Equal(t, model.StrategyHeuristic, run.Strategy)
	assert.False(t, run.AnalyzedAt.IsZero())

	// The IT page matches the DX subsidy.
	require.NotEmpty(t, run.Matches)
	assert.Equal(t, "subsidy-001", run.Matches[0].Subsidy.ID)
	assert.Greater(t, run.Matches[0].Score, 0)

	// The run was persisted.
	saved, err := st.GetAnalysis(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.URL, saved.URL)
}

func TestAnalyzeURLFetchError(t *testing.T) {
	st := store.NewMemory()
	a := New(st, &fakePages{err: assert.AnError}, profile.NewHeuristicExtractor(profile.DefaultLexicon()))

	_, err := a.AnalyzeURL(context.Background(), "https://example.jp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch https://example.jp")

	runs, err := st.ListAnalyses(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestAnalyzeURLEmptyCorpus(t *testing.T) {
	a := New(store.NewMemory(), &fakePages{}, profile.NewHeuristicExtractor(profile.DefaultLexicon()))

	run, err := a.AnalyzeURL(context.Background(), "https://example.jp")
	require.NoError(t, err)
	assert.Empty(t, run.Matches)
}

func TestAnalyzeAll(t *testing.T) {
	st := store.NewMemoryWithRecords(testCorpus())
	pages := &fakePages{}
	a := New(st, pages, profile.NewHeuristicExtractor(profile.DefaultLexicon()))

	urls := []string{"https://a.example.jp", "https://b.example.jp", "https://c.example.jp"}
	runs, err := a.AnalyzeAll(context.Background(), urls, 2)
	require.NoError(t, err)

	require.Len(t, runs, 3)
	for i, run := range runs {
		assert.Equal(t, urls[i], run.URL)
	}
	assert.Equal(t, int32(3), pages.calls.Load())
}

func TestAnalyzeAllPropagatesError(t *testing.T) {
	a := New(store.NewMemory(), &fakePages{err: assert.AnError}, profile.NewHeuristicExtractor(profile.DefaultLexicon()))

	_, err := a.AnalyzeAll(context.Background(), []string{"https://a.example.jp"}, 0)
	require.Error(t, err)
}
