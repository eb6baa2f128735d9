// Package stats aggregates internal employee pay by (region, family, level).
package stats

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/comp-benchmark/internal/alias"
	"github.com/sells-group/comp-benchmark/internal/level"
	"github.com/sells-group/comp-benchmark/internal/model"
)

type bucketKey struct {
	region string
	family string
	level  string
}

// Index holds summarised pay per bucket. It is read-only after Build.
type Index struct {
	buckets map[bucketKey]model.Stats
}

// Build makes one pass over the employee records. Each active record is added
// to the bucket of every equivalent family key (see FamilyKeys). Records
// without a region, level, family code or numeric pay are skipped.
func Build(records []model.EmployeeRecord, aliases *alias.Resolver) *Index {
	pays := make(map[bucketKey][]float64)
	skipped := 0
	for _, rec := range records {
		if !rec.Active {
			continue
		}
		region := model.RegionKey(rec.Region)
		lvl := level.Canonical(rec.InternalLevel)
		if region == "" || lvl == "" || !rec.PayValid || !model.IsFinite(rec.BasePay) || alias.NormalizeCode(rec.FamilyCode) == "" {
			skipped++
			continue
		}
		for _, fk := range FamilyKeys(rec, aliases) {
			k := bucketKey{region: region, family: fk, level: lvl}
			pays[k] = append(pays[k], rec.BasePay)
		}
	}

	ix := &Index{buckets: make(map[bucketKey]model.Stats, len(pays))}
	for k, values := range pays {
		ix.buckets[k] = Summarize(values)
	}

	zap.L().Debug("stats: index built",
		zap.Int("records", len(records)),
		zap.Int("buckets", len(ix.buckets)),
		zap.Int("skipped", skipped),
	)
	return ix
}

// FamilyKeys returns the equivalent keys one employee is filed under: every
// alias-resolved form of the family code plus the friendly family name. Two
// names for the same compensation bucket are modelled as one key set.
func FamilyKeys(rec model.EmployeeRecord, aliases *alias.Resolver) []string {
	var codes []string
	if aliases != nil {
		codes = aliases.Candidates(rec.FamilyCode)
	} else if c := alias.NormalizeCode(rec.FamilyCode); c != "" {
		codes = []string{c}
	}

	keys := make([]string, 0, len(codes)+1)
	seen := make(map[string]bool, len(codes)+1)
	for _, c := range codes {
		fk := familyKey(c)
		if !seen[fk] {
			seen[fk] = true
			keys = append(keys, fk)
		}
	}
	if name := familyKey(rec.FamilyName); name != "" && !seen[name] {
		keys = append(keys, name)
	}
	return keys
}

func familyKey(s string) string {
	return model.FoldKey(strings.TrimSpace(s))
}

// Summarize sorts a copy of the values and returns min, median, max and count.
// The median of an even count is the mean of the two central values.
func Summarize(values []float64) model.Stats {
	if len(values) == 0 {
		return model.Stats{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	var median float64
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return model.Stats{
		Min:    nullDecimal(sorted[0]),
		Median: nullDecimal(median),
		Max:    nullDecimal(sorted[n-1]),
		Count:  n,
	}
}

func nullDecimal(f float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromFloat(f))
}

// Lookup returns the stats for a region, family key (code or friendly name)
// and internal level. Misses return empty stats.
func (ix *Index) Lookup(region, family, internalLevel string) model.Stats {
	return ix.buckets[bucketKey{
		region: model.RegionKey(region),
		family: familyKey(family),
		level:  level.Canonical(internalLevel),
	}]
}

// LookupFirst tries each family key in order and returns the first bucket
// with data.
func (ix *Index) LookupFirst(region string, families []string, internalLevel string) model.Stats {
	for _, f := range families {
		if s := ix.Lookup(region, f, internalLevel); !s.Empty() {
			return s
		}
	}
	return model.Stats{}
}

// Len returns the number of buckets.
func (ix *Index) Len() int {
	return len(ix.buckets)
}
