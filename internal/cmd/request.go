package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgegate/edgegate/internal/core/requestlog"
)

var requestCmd = &cobra.Command{
	Use:   "request <request-id>",
	Short: "Look up a request snapshot in the shared store",
	Long: `Fetch the sanitized snapshot stored for a request ID. Snapshots
expire after the configured retention window, so old IDs return an error.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		counter, err := openCounter(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = counter.Close() }()

		correlator := requestlog.NewCorrelator(counter, nil, cfg.Requests)

		record, ok, err := correlator.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no snapshot for request %s (expired or never recorded)", args[0])
		}

		return printJSON(record)
	},
}

func init() {
	rootCmd.AddCommand(requestCmd)
}
