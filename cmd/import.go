package main

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fukui-lab/subsidy-cli/internal/fetcher"
	"github.com/fukui-lab/subsidy-cli/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import <path-or-url>",
	Short: "Import a subsidy corpus file (JSON, YAML, or XLSX)",
	Long:  "Imports subsidy records from a local file or a remote URL (http, https, or ftp). Format is determined by the file extension.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		source := args[0]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		im := importer.New(st, initHTTPFetcher(), fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout: time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		}))

		var n int
		if strings.Contains(source, "://") {
			n, err = im.ImportURL(ctx, source)
		} else {
			n, err = im.ImportFile(ctx, source)
		}
		if err != nil {
			return eris.Wrapf(err, "import %s", source)
		}

		zap.L().Info("import complete", zap.String("source", source), zap.Int("records", n))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
