package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/sells-group/comp-benchmark/internal/model"
)

var (
	lookupRegion     string
	lookupFamily     string
	lookupLevel      string
	lookupPercentile string
)

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Show the survey percentiles matched for one region, family and level",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initBuildEnv(cmd.Context(), "lookup", false)
		if err != nil {
			return err
		}
		eng, err := env.Engine()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if lookupPercentile != "" {
			v, ok := eng.Percentile(lookupRegion, lookupFamily, lookupLevel, lookupPercentile)
			if !ok {
				_, _ = fmt.Fprintf(out, "%s: not found\n", strings.ToUpper(lookupPercentile))
				return nil
			}
			_, _ = fmt.Fprintf(out, "%s: %s\n", strings.ToUpper(lookupPercentile), formatAmount(v))
			return nil
		}

		formatVector(out, eng.Pick(lookupRegion, lookupFamily, lookupLevel))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show internal pay statistics for one region, family and level",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initBuildEnv(cmd.Context(), "lookup", false)
		if err != nil {
			return err
		}
		eng, err := env.Engine()
		if err != nil {
			return err
		}

		formatStats(cmd.OutOrStdout(), eng.Stats(lookupRegion, lookupFamily, lookupLevel))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{pickCmd, statsCmd} {
		c.Flags().StringVar(&lookupRegion, "region", "", "region label")
		c.Flags().StringVar(&lookupFamily, "family", "", "family code (stats also accepts a display name)")
		c.Flags().StringVar(&lookupLevel, "level", "", "internal level, e.g. \"L5 IC\"")
		_ = c.MarkFlagRequired("region")
		_ = c.MarkFlagRequired("family")
		_ = c.MarkFlagRequired("level")
		rootCmd.AddCommand(c)
	}
	pickCmd.Flags().StringVar(&lookupPercentile, "percentile", "", "single percentile to show, e.g. P50")
}

// formatVector writes the percentiles of v in ascending order.
func formatVector(out io.Writer, v model.Vector) {
	if !v.HasNumeric() {
		_, _ = fmt.Fprintln(out, "no survey percentiles found")
		return
	}

	names := make([]string, 0, len(v))
	for name := range v {
		if _, ok := v.Get(name); ok {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return percentileRank(names[i]) < percentileRank(names[j])
	})

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PERCENTILE\tVALUE")
	for _, name := range names {
		x, _ := v.Get(name)
		_, _ = fmt.Fprintf(w, "%s\t%s\n", name, formatAmount(x))
	}
	_ = w.Flush()
}

// formatStats writes one stats bucket.
func formatStats(out io.Writer, s model.Stats) {
	if s.Empty() {
		_, _ = fmt.Fprintln(out, "no internal pay data found")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Count:\t%d\n", s.Count)
	_, _ = fmt.Fprintf(w, "Min:\t%s\n", formatNull(s.Min))
	_, _ = fmt.Fprintf(w, "Median:\t%s\n", formatNull(s.Median))
	_, _ = fmt.Fprintf(w, "Max:\t%s\n", formatNull(s.Max))
	_ = w.Flush()
}

func percentileRank(name string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(name, "P"))
	if err != nil {
		return 1 << 30
	}
	return n
}

func formatAmount(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func formatNull(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.String()
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
