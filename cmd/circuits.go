package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/docintel/internal/router"
)

var circuitsCmd = &cobra.Command{
	Use:   "circuits",
	Short: "Show the configured model slots per task class",
	Long:  "Prints each task strategy in fallback order, whether the slot's provider has credentials, and the slot's circuit state in this process.",
	RunE: func(_ *cobra.Command, _ []string) error {
		rt := buildRouter(cfg)
		formatStrategies(os.Stdout, rt, cfg.ProviderKeys())
		return nil
	},
}

// formatStrategies writes one line per slot, in routing order.
func formatStrategies(out io.Writer, rt *router.Router, keyed map[string]bool) {
	open := make(map[string]string)
	for _, c := range rt.Circuits() {
		open[c.Key] = c.State.String()
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TASK\t#\tSLOT\tVISION\tTIMEOUT\tKEY\tCIRCUIT")
	for _, task := range []router.TaskClass{router.TaskExtraction, router.TaskVerification, router.TaskReasoning} {
		for i, spec := range rt.Strategy(task) {
			state, ok := open[spec.Key()]
			if !ok {
				state = "closed"
			}
			key := "missing"
			if keyed[spec.Provider] {
				key = "ok"
			}
			_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%t\t%s\t%s\t%s\n", task, i+1, spec.Key(), spec.Vision, spec.Timeout, key, state)
		}
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(circuitsCmd)
}
