package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/comp-benchmark/internal/model"
	"github.com/sells-group/comp-benchmark/internal/store"
)

var (
	runsLimit       int
	runsFingerprint string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent benchmark builds",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("cache"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Fingerprint: runsFingerprint,
			Limit:       runsLimit,
		})
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
			return nil
		}
		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "max runs to show")
	runsCmd.Flags().StringVar(&runsFingerprint, "fingerprint", "", "only runs for this input fingerprint")
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular run list to w.
func formatRunsList(out io.Writer, runs []model.BuildRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tFINGERPRINT\tROWS\tCACHE\tCURRENCY\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-----------\t----\t-----\t--------\t-------")

	for _, r := range runs {
		cache := "miss"
		if r.CacheHit {
			cache = "hit"
		}
		currency := r.Currency
		if currency == "" {
			currency = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			truncateID(r.ID),
			shortFingerprint(r.Fingerprint),
			r.Rows,
			cache,
			currency,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of an ID.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
