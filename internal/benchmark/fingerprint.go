package benchmark

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
	"strconv"

	"github.com/sells-group/comp-benchmark/internal/model"
)

// Fingerprint hashes the input tables and build options into a stable
// content key. Identical inputs always produce the same fingerprint.
func Fingerprint(t *model.Tables, opts Options) string {
	h := sha256.New()
	if t != nil {
		writeTables(h, t)
	}
	fmt.Fprintf(h, "opts\x1f%s\x1f%d\x1f%q\x1f%q\x1f%x\n",
		opts.ReferenceCurrency, opts.ExecutiveThreshold,
		opts.FinancePrefixes, opts.HighPrefixes, opts.PolicyYAML)
	return hex.EncodeToString(h.Sum(nil))
}

func writeTables(h hash.Hash, t *model.Tables) {
	regions := make([]string, 0, len(t.Surveys))
	for r := range t.Surveys {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	for _, region := range regions {
		fmt.Fprintf(h, "survey\x1f%s\n", region)
		for _, r := range t.Surveys[region] {
			fmt.Fprintf(h, "row\x1f%s\x1f%s\x1f%s\x1f%s\x1f%s\n",
				r.Region, r.FamilyCode, r.FamilyName, r.LevelToken, vectorString(r.Percentiles))
		}
	}
	for _, e := range t.Employees {
		fmt.Fprintf(h, "emp\x1f%s\x1f%s\x1f%s\x1f%s\x1f%s\x1f%s\x1f%t\x1f%t\n",
			e.EmployeeID, e.Region, e.FamilyCode, e.FamilyName, e.InternalLevel,
			formatFloat(e.BasePay), e.PayValid, e.Active)
	}
	for _, l := range t.LevelMap {
		fmt.Fprintf(h, "level\x1f%s\x1f%s\n", l.InternalLevel, l.ExternalToken)
	}
	for _, a := range t.FamilyAliases {
		fmt.Fprintf(h, "alias\x1f%s\x1f%s\n", a.FromCode, a.ToCode)
	}
	for _, c := range t.Categories {
		fmt.Fprintf(h, "category\x1f%s\x1f%s\n", c.FamilyCode, c.Category)
	}
	for _, fx := range t.FxRates {
		fmt.Fprintf(h, "fx\x1f%s\x1f%s\n", fx.Region, formatFloat(fx.Rate))
	}
}

func vectorString(v model.Vector) string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]byte, 0, len(names)*12)
	for _, name := range names {
		out = append(out, name...)
		out = append(out, '=')
		out = append(out, formatFloat(v[name])...)
		out = append(out, ';')
	}
	return string(out)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
