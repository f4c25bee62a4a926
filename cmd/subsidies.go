package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fukui-lab/subsidy-cli/internal/model"
	"github.com/fukui-lab/subsidy-cli/internal/store"
)

var (
	subsidiesStatus     string
	subsidiesCategory   string
	subsidiesPrefecture string
	subsidiesSearch     string
	subsidiesLimit      int
	subsidiesJSON       bool
)

var subsidiesCmd = &cobra.Command{
	Use:   "subsidies",
	Short: "Browse the subsidy corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.ListSubsidies(ctx, store.SubsidyFilter{
			Status:     model.SubsidyStatus(subsidiesStatus),
			Category:   subsidiesCategory,
			Prefecture: subsidiesPrefecture,
			Search:     subsidiesSearch,
			Limit:      subsidiesLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list subsidies")
		}

		if subsidiesJSON {
			return json.NewEncoder(os.Stdout).Encode(records)
		}

		for _, rec := range records {
			deadline := "期限なし"
			if rec.Deadline != nil {
				deadline = rec.Deadline.Format("2006-01-02")
			}
			fmt.Printf("%-14s %-10s %-10s %s (%s)\n", rec.ID, rec.Status, deadline, rec.Title, rec.Prefecture)
		}
		fmt.Printf("合計: %d件\n", len(records))
		return nil
	},
}

var subsidiesGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one subsidy record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.GetSubsidy(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "get subsidy %s", args[0])
		}
		return json.NewEncoder(os.Stdout).Encode(rec)
	},
}

var subsidiesMetaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Show distinct categories and prefectures in the corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cats, err := st.ListCategories(ctx)
		if err != nil {
			return eris.Wrap(err, "list categories")
		}
		prefs, err := st.ListPrefectures(ctx)
		if err != nil {
			return eris.Wrap(err, "list prefectures")
		}

		return json.NewEncoder(os.Stdout).Encode(map[string][]string{
			"categories":  cats,
			"prefectures": prefs,
		})
	},
}

func init() {
	subsidiesCmd.Flags().StringVar(&subsidiesStatus, "status", "", "filter by status (active, expired, upcoming)")
	subsidiesCmd.Flags().StringVar(&subsidiesCategory, "category", "", "filter by category substring")
	subsidiesCmd.Flags().StringVar(&subsidiesPrefecture, "prefecture", "", "filter by prefecture (includes nationwide)")
	subsidiesCmd.Flags().StringVar(&subsidiesSearch, "search", "", "free-text search over title, description, organization")
	subsidiesCmd.Flags().IntVar(&subsidiesLimit, "limit", 0, "maximum records to show")
	subsidiesCmd.Flags().BoolVar(&subsidiesJSON, "json", false, "output raw JSON")

	subsidiesCmd.AddCommand(subsidiesGetCmd)
	subsidiesCmd.AddCommand(subsidiesMetaCmd)
	rootCmd.AddCommand(subsidiesCmd)
}
