package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fukui-lab/subsidy-cli/internal/matcher"
	"github.com/fukui-lab/subsidy-cli/internal/model"
)

var (
	matchAnalysisID  string
	matchProfilePath string
	matchJSON        bool
	matchTop         int
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Re-score a saved profile against the current corpus",
	Long:  "Scores a business profile (from a saved analysis run or a JSON file) against the current subsidy corpus, without re-fetching the website.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var prof *model.BusinessProfile
		strategy := model.StrategyHeuristic

		switch {
		case matchAnalysisID != "":
			run, err := st.GetAnalysis(ctx, matchAnalysisID)
			if err != nil {
				return eris.Wrapf(err, "load analysis %s", matchAnalysisID)
			}
			prof = &run.Profile
			strategy = run.Strategy
		case matchProfilePath != "":
			data, err := os.ReadFile(matchProfilePath)
			if err != nil {
				return eris.Wrap(err, "read profile file")
			}
			prof = &model.BusinessProfile{}
			if err := json.Unmarshal(data, prof); err != nil {
				return eris.Wrap(err, "decode profile file")
			}
		default:
			return eris.New("either --analysis or --profile is required")
		}

		corpus, err := st.Snapshot(ctx)
		if err != nil {
			return eris.Wrap(err, "corpus snapshot")
		}

		m := matcher.New(matcher.WeightsFor(strategy))
		matches := m.Match(prof, corpus)
		if matchTop > 0 && len(matches) > matchTop {
			matches = matches[:matchTop]
		}

		if matchJSON {
			return json.NewEncoder(os.Stdout).Encode(matches)
		}

		run := &model.AnalysisRun{URL: prof.URL, Strategy: strategy, Profile: *prof, Matches: matches}
		printRun(run)
		return nil
	},
}

func init() {
	matchCmd.Flags().StringVar(&matchAnalysisID, "analysis", "", "saved analysis run id")
	matchCmd.Flags().StringVar(&matchProfilePath, "profile", "", "path to a business profile JSON file")
	matchCmd.Flags().BoolVar(&matchJSON, "json", false, "output raw JSON")
	matchCmd.Flags().IntVar(&matchTop, "top", 0, "show only the top N matches")
	rootCmd.AddCommand(matchCmd)
}
