// Package analysis orchestrates one website analysis: fetch the page,
// extract a business profile, and score it against the subsidy corpus.
package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fukui-lab/subsidy-cli/internal/matcher"
	"github.com/fukui-lab/subsidy-cli/internal/model"
	"github.com/fukui-lab/subsidy-cli/internal/profile"
	"github.com/fukui-lab/subsidy-cli/internal/store"
)

// PageSource fetches page content for a URL. fetcher.PageFetcher satisfies it.
type PageSource interface {
	FetchPage(ctx context.Context, url string) (*model.PageContent, error)
}

// Analyzer runs the fetch -> extract -> match pipeline and records the result.
type Analyzer struct {
	store     store.Store
	pages     PageSource
	extractor profile.Extractor
}

// New creates an Analyzer.
func New(st store.Store, pages PageSource, ex profile.Extractor) *Analyzer {
	return &Analyzer{store: st, pages: pages, extractor: ex}
}

// AnalyzeURL analyzes a single website URL against the current corpus
// snapshot and persists the completed run. A failure to persist is logged
// but does not fail the analysis.
func (a *Analyzer) AnalyzeURL(ctx context.Context, rawURL string) (*model.AnalysisRun, error) {
	page, err := a.pages.FetchPage(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: fetch %s", rawURL)
	}

	prof, err := a.extractor.Extract(ctx, page)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: extract profile for %s", rawURL)
	}

	corpus, err := a.store.Snapshot(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: corpus snapshot")
	}

	strategy := a.extractor.Strategy()
	m := matcher.New(matcher.WeightsFor(strategy))
	matches := m.Match(prof, corpus)

	run := &model.AnalysisRun{
		ID:         uuid.NewString(),
		URL:        rawURL,
		Strategy:   strategy,
		Profile:    *prof,
		Matches:    matches,
		AnalyzedAt: time.Now().UTC(),
	}

	if err := a.store.SaveAnalysis(ctx, run); err != nil {
		zap.L().Warn("analysis: failed to persist run",
			zap.String("run_id", run.ID),
			zap.String("url", rawURL),
			zap.Error(err),
		)
	}

	zap.L().Info("analysis complete",
		zap.String("run_id", run.ID),
		zap.String("url", rawURL),
		zap.String("strategy", strategy),
		zap.Int("matches", len(matches)),
		zap.Int("profile_confidence", prof.Confidence),
	)
	return run, nil
}

// AnalyzeAll analyzes multiple URLs with bounded concurrency. Results keep
// input order; the first error cancels the remaining work.
func (a *Analyzer) AnalyzeAll(ctx context.Context, urls []string, concurrency int) ([]*model.AnalysisRun, error) {
	if concurrency <= 0 {
		concurrency = 4
	}

	runs := make([]*model.AnalysisRun, len(urls))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, u := range urls {
		g.Go(func() error {
			run, err := a.AnalyzeURL(ctx, u)
			if err != nil {
				return err
			}
			runs[i] = run
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return runs, nil
}
