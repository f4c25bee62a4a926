package notion

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fukui-lab/subsidy-cli/internal/model"
)

// Exporter writes analysis matches into a Notion database, one page per
// matched subsidy. The target database needs these properties:
// 補助金名 (title), スコア (number), 一致率 (number), ステータス (select),
// 分析対象 (url), 補助金URL (url), 一致理由 (rich text).
type Exporter struct {
	client Client
	dbID   string
}

// NewExporter creates an Exporter targeting the given database.
func NewExporter(c Client, dbID string) *Exporter {
	return &Exporter{client: c, dbID: dbID}
}

// ExportRun writes every match of the run to the database. Returns the
// number of pages created; stops at the first API error.
func (e *Exporter) ExportRun(ctx context.Context, run *model.AnalysisRun) (int, error) {
	for i := range run.Matches {
		req := e.pageRequest(run, &run.Matches[i])
		if _, err := e.client.CreatePage(ctx, req); err != nil {
			return i, eris.Wrapf(err, "notion: export match %s", run.Matches[i].Subsidy.ID)
		}
	}

	zap.L().Info("exported analysis to notion",
		zap.String("run_id", run.ID),
		zap.String("database", e.dbID),
		zap.Int("pages", len(run.Matches)),
	)
	return len(run.Matches), nil
}

func (e *Exporter) pageRequest(run *model.AnalysisRun, m *model.MatchedSubsidy) *notionapi.PageCreateRequest {
	props := notionapi.Properties{
		"補助金名": notionapi.TitleProperty{
			Title: richText(m.Subsidy.Title),
		},
		"スコア": notionapi.NumberProperty{
			Number: float64(m.Score),
		},
		"一致率": notionapi.NumberProperty{
			Number: float64(m.MatchPercentage),
		},
		"ステータス": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(m.Subsidy.Status)},
		},
		"一致理由": notionapi.RichTextProperty{
			RichText: richText(strings.Join(m.MatchReasons, " / ")),
		},
	}
	if run.URL != "" {
		props["分析対象"] = notionapi.URLProperty{URL: run.URL}
	}
	if m.Subsidy.URL != "" {
		props["補助金URL"] = notionapi.URLProperty{URL: m.Subsidy.URL}
	}

	return &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(e.dbID),
		},
		Properties: props,
	}
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}},
	}
}
