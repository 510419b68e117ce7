package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/store"
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Inspect stored lending decisions",
	Long:  "Commands for listing, viewing, and summarizing stored decisions.",
}

// -- decisions list --

var decisionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List decisions, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		applicant, _ := cmd.Flags().GetString("applicant")
		label, _ := cmd.Flags().GetString("label")
		limit, _ := cmd.Flags().GetInt("limit")

		ds, err := st.ListDecisions(ctx, store.DecisionFilter{
			ApplicantID: applicant,
			Label:       model.DecisionLabel(label),
			Limit:       limit,
		})
		if err != nil {
			return eris.Wrap(err, "decisions list")
		}

		if len(ds) == 0 {
			fmt.Fprintln(os.Stderr, "No decisions found.")
			return nil
		}

		formatDecisionsList(os.Stdout, ds)
		return nil
	},
}

// -- decisions show --

var decisionsShowCmd = &cobra.Command{
	Use:   "show <decision-id>",
	Short: "Show full details of a decision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		d, err := st.GetDecision(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "decisions show")
		}
		return writeJSON(os.Stdout, d)
	},
}

// -- decisions stats --

var decisionsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count decisions by label",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ds, err := st.ListDecisions(ctx, store.DecisionFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "decisions stats")
		}
		formatDecisionStats(os.Stdout, computeDecisionStats(ds))
		return nil
	},
}

// -- reports --

var reportsCmd = &cobra.Command{
	Use:   "reports <applicant-id>",
	Short: "List the pipeline reports of an applicant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		reps, err := st.ListReports(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "reports")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, reps)
		}
		if len(reps) == 0 {
			fmt.Fprintln(os.Stderr, "No reports found.")
			return nil
		}
		formatReportsList(os.Stdout, reps)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the store schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		fmt.Fprintf(os.Stderr, "Store %s is up to date.\n", cfg.Store.Driver)
		return nil
	},
}

func init() {
	decisionsListCmd.Flags().String("applicant", "", "filter by applicant ID")
	decisionsListCmd.Flags().String("label", "", "filter by label (APPROVED, REVIEW, REJECTED, INCOMPLETE, FAILED)")
	decisionsListCmd.Flags().Int("limit", 50, "max number of decisions to display")

	reportsCmd.Flags().Bool("json", false, "print the full reports as JSON")

	decisionsCmd.AddCommand(decisionsListCmd)
	decisionsCmd.AddCommand(decisionsShowCmd)
	decisionsCmd.AddCommand(decisionsStatsCmd)
	rootCmd.AddCommand(decisionsCmd)
	rootCmd.AddCommand(reportsCmd)
	rootCmd.AddCommand(migrateCmd)
}

// formatDecisionsList writes a tabular list of decisions to w.
func formatDecisionsList(out io.Writer, ds []model.Decision) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tAPPLICANT\tLOAN\tLABEL\tCONFIDENCE\tRISK\tDECIDED")
	_, _ = fmt.Fprintln(w, "--\t---------\t----\t-----\t----------\t----\t-------")

	for _, d := range ds {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
			truncateID(d.ID),
			d.ApplicantID,
			d.LoanType,
			d.Label,
			d.Confidence,
			d.Risk.Band,
			d.DecidedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatReportsList writes one line per pipeline report to w.
func formatReportsList(out io.Writer, reps []model.PipelineReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tVALID\tVERIFIED\tISSUES\tFINISHED")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-----\t--------\t------\t--------")

	for _, r := range reps {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%d\t%s\n",
			truncateID(r.ID),
			r.DocumentType,
			r.Status,
			r.Validation.Valid,
			r.Verification.Verified,
			len(r.Validation.Issues),
			r.FinishedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

type decisionStats struct {
	Total         int
	ByLabel       map[model.DecisionLabel]int
	AvgConfidence float64
}

func computeDecisionStats(ds []model.Decision) decisionStats {
	s := decisionStats{Total: len(ds), ByLabel: make(map[model.DecisionLabel]int)}
	var sum float64
	for _, d := range ds {
		s.ByLabel[d.Label]++
		sum += d.Confidence
	}
	if len(ds) > 0 {
		s.AvgConfidence = sum / float64(len(ds))
	}
	return s
}

// formatDecisionStats writes aggregate stats to w.
func formatDecisionStats(out io.Writer, s decisionStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total decisions:\t%d\n", s.Total)

	labels := make([]string, 0, len(s.ByLabel))
	for l := range s.ByLabel {
		labels = append(labels, string(l))
	}
	sort.Strings(labels)
	for _, l := range labels {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", l, s.ByLabel[model.DecisionLabel(l)])
	}
	if s.Total > 0 {
		_, _ = fmt.Fprintf(w, "Avg confidence:\t%.1f\n", s.AvgConfidence)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
