package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/docintel/internal/monitoring"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Alert on decision failure and fallback rates",
	Long:  "Periodically summarizes recent decisions and posts alerts to the configured webhook. With --once, runs a single check and prints the snapshot.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		checker := monitoring.NewChecker(
			monitoring.NewCollector(st),
			monitoring.NewAlerter(cfg.Monitoring),
			cfg.Monitoring,
		)

		if once, _ := cmd.Flags().GetBool("once"); once {
			res, err := checker.Check(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%d alert(s) triggered, %d sent.\n", len(res.Alerts), res.Sent)
			return writeJSON(os.Stdout, res)
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		checker.Run(ctx)
		return nil
	},
}

func init() {
	monitorCmd.Flags().Bool("once", false, "run a single check and exit")
	rootCmd.AddCommand(monitorCmd)
}
