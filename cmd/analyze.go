package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fukui-lab/subsidy-cli/internal/model"
	"github.com/fukui-lab/subsidy-cli/pkg/notion"
)

var (
	analyzeAssisted     bool
	analyzeTop          int
	analyzeJSON         bool
	analyzeExportNotion bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url> [url...]",
	Short: "Analyze business websites and rank matching subsidies",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		analyzer, st, err := initAnalyzer(ctx, analyzeAssisted)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := analyzer.AnalyzeAll(ctx, args, cfg.Analysis.Concurrency)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		var exporter *notion.Exporter
		if analyzeExportNotion {
			if cfg.Notion.Token == "" || cfg.Notion.MatchDB == "" {
				return eris.New("notion token and match DB are required for --export-notion (SUBSIDY_NOTION_TOKEN, SUBSIDY_NOTION_MATCH_DB)")
			}
			exporter = notion.NewExporter(notion.NewClient(cfg.Notion.Token), cfg.Notion.MatchDB)
		}

		for _, run := range runs {
			if analyzeTop > 0 && len(run.Matches) > analyzeTop {
				run.Matches = run.Matches[:analyzeTop]
			}

			if analyzeJSON {
				if err := json.NewEncoder(os.Stdout).Encode(run); err != nil {
					return eris.Wrap(err, "encode run")
				}
			} else {
				printRun(run)
			}

			if exporter != nil {
				pages, err := exporter.ExportRun(ctx, run)
				if err != nil {
					return eris.Wrap(err, "export to notion")
				}
				zap.L().Info("exported to notion", zap.String("url", run.URL), zap.Int("pages", pages))
			}
		}

		return nil
	},
}

func printRun(run *model.AnalysisRun) {
	fmt.Printf("分析結果: %s (strategy=%s, confidence=%d%%)\n", run.URL, run.Strategy, run.Profile.Confidence)
	if len(run.Profile.BusinessTypes) > 0 {
		fmt.Printf("  業種: ")
		for i, bt := range run.Profile.BusinessTypes {
			if i > 0 {
				fmt.Print(", ")
			}
			fmt.Print(bt.Label)
		}
		fmt.Println()
	}
	if run.Profile.SuggestedPrefecture != "" {
		fmt.Printf("  地域: %s\n", run.Profile.SuggestedPrefecture)
	}

	if len(run.Matches) == 0 {
		fmt.Println("  一致する補助金はありません")
		return
	}
	for i, m := range run.Matches {
		fmt.Printf("  %2d. [%3d%%] %s (%s)\n", i+1, m.MatchPercentage, m.Subsidy.Title, m.Subsidy.Status)
		for _, reason := range m.MatchReasons {
			fmt.Printf("        - %s\n", reason)
		}
	}
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeAssisted, "assisted", false, "use Claude-assisted profile extraction")
	analyzeCmd.Flags().IntVar(&analyzeTop, "top", 0, "show only the top N matches")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output raw JSON")
	analyzeCmd.Flags().BoolVar(&analyzeExportNotion, "export-notion", false, "export matches to the Notion match database")
	rootCmd.AddCommand(analyzeCmd)
}
