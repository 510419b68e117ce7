package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/resilience"
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Assess one loan application from a manifest",
	Long:  "Loads the documents listed in a YAML manifest, runs every document pipeline, and prints the lending decision.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path, _ := cmd.Flags().GetString("manifest")
		asJSON, _ := cmd.Flags().GetBool("json")
		showCircuits, _ := cmd.Flags().GetBool("circuits")

		m, err := loadManifest(path)
		if err != nil {
			return err
		}

		env, err := initAssess(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		docs, unreadable := env.Loader.LoadAll(ctx, m.Documents)
		zap.L().Info("assessing application",
			zap.String("applicant", m.Loan.ApplicantID),
			zap.String("loan_type", string(m.Loan.Type)),
			zap.Int("documents", len(docs)),
			zap.Int("unreadable", unreadable),
		)

		d := env.Engine.Assess(ctx, model.Application{Request: m.Loan, Documents: docs})

		if asJSON {
			err = writeJSON(os.Stdout, d)
		} else {
			formatDecision(os.Stdout, d)
		}
		if showCircuits {
			formatCircuits(os.Stderr, env.Router.Circuits())
		}
		return err
	},
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode json")
}

// formatDecision writes a human-readable summary of d to out.
func formatDecision(out io.Writer, d *model.Decision) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Decision:\t%s\n", d.Label)
	_, _ = fmt.Fprintf(w, "Confidence:\t%.2f\n", d.Confidence)
	_, _ = fmt.Fprintf(w, "Eligibility:\t%.2f (eligible=%t)\n", d.Eligibility.Score, d.Eligibility.Eligible)
	_, _ = fmt.Fprintf(w, "Risk:\t%.2f %s\n", d.Risk.Score, d.Risk.Band)
	if d.Affordability.EMI > 0 {
		_, _ = fmt.Fprintf(w, "EMI:\t%.2f\n", d.Affordability.EMI)
		_, _ = fmt.Fprintf(w, "FOIR:\t%.2f%%\n", d.Affordability.FOIR)
	}
	_ = w.Flush()

	section(out, "Reasons", d.Reasons)
	section(out, "Conditions", d.Conditions)
	section(out, "Next steps", d.NextSteps)
	if len(d.Risk.Flags) > 0 {
		_, _ = fmt.Fprintln(out, "\nRisk flags:")
		for _, f := range d.Risk.Flags {
			_, _ = fmt.Fprintf(out, "  [%s] %s -%.0f: %s\n", f.Severity, f.Code, f.Points, f.Detail)
		}
	}
}

func section(out io.Writer, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	_, _ = fmt.Fprintf(out, "\n%s:\n", title)
	for _, l := range lines {
		_, _ = fmt.Fprintf(out, "  - %s\n", l)
	}
}

// formatCircuits writes the router's slot health to out.
func formatCircuits(out io.Writer, circuits []resilience.CircuitStatus) {
	if len(circuits) == 0 {
		_, _ = fmt.Fprintln(out, "All provider circuits closed.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SLOT\tSTATE\tFAILURES\tLAST_FAILURE")
	for _, c := range circuits {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			c.Key,
			strings.ToUpper(c.State.String()),
			c.ConsecutiveFailures,
			c.LastFailure.Format("15:04:05"),
		)
	}
	_ = w.Flush()
}

func init() {
	assessCmd.Flags().String("manifest", "", "path to the application manifest (YAML)")
	assessCmd.Flags().Bool("json", false, "print the full decision as JSON")
	assessCmd.Flags().Bool("circuits", false, "print provider circuit state after the run")
	_ = assessCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(assessCmd)
}
