// Package benchmark builds the full benchmark table: every region × family ×
// internal level, with the proposed range from survey percentiles and the
// internal pay statistics side by side.
package benchmark

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/comp-benchmark/internal/alias"
	"github.com/sells-group/comp-benchmark/internal/level"
	"github.com/sells-group/comp-benchmark/internal/model"
	"github.com/sells-group/comp-benchmark/internal/picker"
	"github.com/sells-group/comp-benchmark/internal/rangesel"
	"github.com/sells-group/comp-benchmark/internal/stats"
	"github.com/sells-group/comp-benchmark/internal/survey"
)

// Options configures an Engine.
type Options struct {
	// ReferenceCurrency, when set, converts every money figure with the
	// region's FX rate.
	ReferenceCurrency  string   `json:"reference_currency,omitempty"`
	ExecutiveThreshold int      `json:"executive_threshold,omitempty"`
	FinancePrefixes    []string `json:"finance_prefixes,omitempty"`
	HighPrefixes       []string `json:"high_prefixes,omitempty"`
	// PolicyYAML holds category definition overrides (see rangesel.Policy.ApplyYAML).
	PolicyYAML    []byte `json:"policy_yaml,omitempty"`
	PickCacheSize int    `json:"-"`
}

// TableError reports a required source table that is absent or empty.
type TableError struct {
	Table string
}

func (e *TableError) Error() string {
	return fmt.Sprintf("benchmark: required table %q is missing or has no rows", e.Table)
}

// Family is one entry of the family catalog.
type Family struct {
	Code        string
	DisplayName string
}

// Engine holds the indices of one set of loaded tables. It is read-only
// after construction and safe for concurrent use.
type Engine struct {
	opts        Options
	fingerprint string
	aliases     *alias.Resolver
	levels      *level.Translator
	survey      *survey.Index
	picker      *picker.Picker
	stats       *stats.Index
	policy      *rangesel.Policy
	fx          *rangesel.FxTable
	families    []Family
	regions     []string
}

// Validate checks that every required table is present and non-empty.
func Validate(t *model.Tables) error {
	if t == nil {
		return &TableError{Table: model.TableSurveys}
	}
	surveyRows := 0
	for _, rows := range t.Surveys {
		surveyRows += len(rows)
	}
	switch {
	case surveyRows == 0:
		return &TableError{Table: model.TableSurveys}
	case len(t.Employees) == 0:
		return &TableError{Table: model.TableEmployees}
	case len(t.LevelMap) == 0:
		return &TableError{Table: model.TableLevelMap}
	}
	return nil
}

// NewEngine validates the tables and builds every index.
func NewEngine(t *model.Tables, opts Options) (*Engine, error) {
	if err := Validate(t); err != nil {
		return nil, err
	}

	fp := Fingerprint(t, opts)

	policy := rangesel.NewPolicy(t.Categories, opts.HighPrefixes)
	if len(opts.PolicyYAML) > 0 {
		if err := policy.ApplyYAML(opts.PolicyYAML); err != nil {
			return nil, eris.Wrap(err, "benchmark: apply policy")
		}
	}

	e := &Engine{
		opts:        opts,
		fingerprint: fp,
		aliases:     alias.NewResolver(t.FamilyAliases),
		levels:      level.NewTranslator(t.LevelMap),
		survey: survey.NewIndex(t.Surveys, survey.Options{
			ExecutiveThreshold: opts.ExecutiveThreshold,
			FinancePrefixes:    opts.FinancePrefixes,
		}),
		policy: policy,
		fx:     rangesel.NewFxTable(t.FxRates),
	}
	e.stats = stats.Build(t.Employees, e.aliases)

	var err error
	e.picker, err = picker.New(e.survey, e.levels, e.aliases, picker.Options{
		Token:     fp,
		CacheSize: opts.PickCacheSize,
	})
	if err != nil {
		return nil, err
	}
	e.families = catalog(t, e.aliases)
	e.regions = tableRegions(t, e.survey)
	return e, nil
}

// tableRegions lists the survey regions plus regions that only active
// employees mention, sorted. Survey labels are canonical; an employee-only
// region keeps its first-seen label.
func tableRegions(t *model.Tables, ix *survey.Index) []string {
	out := ix.Regions()
	seen := make(map[string]bool, len(out))
	for _, r := range out {
		seen[model.RegionKey(r)] = true
	}
	for _, rec := range t.Employees {
		k := model.RegionKey(rec.Region)
		if !rec.Active || k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, strings.TrimSpace(rec.Region))
	}
	sort.Strings(out)
	return out
}

// catalog lists the known families: every survey family code with each of
// its display names, plus employee families that no survey code covers even
// through an alias. Sorted by code, then display name.
func catalog(t *model.Tables, aliases *alias.Resolver) []Family {
	names := make(map[string]map[string]bool)
	add := func(code, name string) {
		code = alias.NormalizeCode(code)
		if code == "" {
			return
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = code
		}
		if names[code] == nil {
			names[code] = make(map[string]bool)
		}
		names[code][name] = true
	}

	for _, rows := range t.Surveys {
		for _, r := range rows {
			add(r.FamilyCode, r.FamilyName)
		}
	}
	surveyCodes := make(map[string]bool, len(names))
	for code := range names {
		surveyCodes[code] = true
	}
	for _, rec := range t.Employees {
		covered := false
		for _, c := range aliases.Candidates(rec.FamilyCode) {
			if surveyCodes[c] {
				covered = true
				break
			}
		}
		if !covered {
			add(rec.FamilyCode, rec.FamilyName)
		}
	}

	out := make([]Family, 0, len(names))
	for code, set := range names {
		// A real name beats the code placeholder.
		if len(set) > 1 {
			delete(set, code)
		}
		for name := range set {
			out = append(out, Family{Code: code, DisplayName: name})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].DisplayName < out[j].DisplayName
	})
	return out
}

// Fingerprint returns the content fingerprint the engine was built for.
func (e *Engine) Fingerprint() string {
	return e.fingerprint
}

// Families returns the family catalog.
func (e *Engine) Families() []Family {
	out := make([]Family, len(e.families))
	copy(out, e.families)
	return out
}

// Regions returns the table regions: survey regions plus employee-only
// regions, sorted.
func (e *Engine) Regions() []string {
	out := make([]string, len(e.regions))
	copy(out, e.regions)
	return out
}

// Levels returns the fixed internal level list.
func (e *Engine) Levels() []string {
	return e.levels.Levels()
}

// Pick returns the percentile vector for a triple; nil when nothing matches.
func (e *Engine) Pick(region, family, internalLevel string) model.Vector {
	return e.picker.Pick(region, family, internalLevel)
}

// Percentile returns one named percentile for a triple.
func (e *Engine) Percentile(region, family, internalLevel, name string) (float64, bool) {
	return e.picker.Percentile(region, family, internalLevel, strings.ToUpper(strings.TrimSpace(name)))
}

// Stats returns internal pay statistics by friendly name or code. Codes are
// tried through their aliases. Misses return empty stats.
func (e *Engine) Stats(region, familyKeyOrCode, internalLevel string) model.Stats {
	keys := append([]string{familyKeyOrCode}, e.aliases.Candidates(familyKeyOrCode)...)
	return e.stats.LookupFirst(region, keys, internalLevel)
}

// Category returns the category assigned to a family code.
func (e *Engine) Category(code string) model.Category {
	return e.policy.Category(e.aliases.Candidates(code)...)
}

// Row assembles the benchmark row of one combination. Data gaps leave fields
// empty.
func (e *Engine) Row(region string, fam Family, internalLevel string) model.BenchmarkRow {
	cat := e.Category(fam.Code)
	rng := e.policy.SelectRange(cat, e.picker.Pick(region, fam.Code, internalLevel))

	keys := append([]string{fam.DisplayName}, e.aliases.Candidates(fam.Code)...)
	st := e.stats.LookupFirst(region, keys, internalLevel)

	if e.opts.ReferenceCurrency != "" {
		rate := e.fx.Rate(region)
		rng = rangesel.ConvertRange(rng, rate)
		st = rangesel.ConvertStats(st, rate)
	}

	return model.BenchmarkRow{
		Region:            region,
		FamilyCode:        fam.Code,
		FamilyDisplayName: fam.DisplayName,
		InternalLevel:     internalLevel,
		Category:          cat,
		RangeStart:        rng.Start,
		RangeMid:          rng.Mid,
		RangeEnd:          rng.End,
		InternalMin:       st.Min,
		InternalMedian:    st.Median,
		InternalMax:       st.Max,
		InternalCount:     st.Count,
		LookupKey:         model.LookupKey(fam.DisplayName, internalLevel, region),
	}
}

// Table materialises every region × family × level combination. Rows whose
// lookup key was already emitted are dropped; the first one wins.
func (e *Engine) Table() []model.BenchmarkRow {
	start := time.Now()
	regions := e.Regions()
	levels := e.Levels()

	rows := make([]model.BenchmarkRow, 0, len(regions)*len(e.families)*len(levels))
	seen := make(map[string]bool, cap(rows))
	dupes := 0
	for _, region := range regions {
		for _, fam := range e.families {
			for _, lvl := range levels {
				row := e.Row(region, fam, lvl)
				if seen[row.LookupKey] {
					dupes++
					continue
				}
				seen[row.LookupKey] = true
				rows = append(rows, row)
			}
		}
	}

	zap.L().Info("benchmark: table built",
		zap.Int("rows", len(rows)),
		zap.Int("regions", len(regions)),
		zap.Int("families", len(e.families)),
		zap.Int("levels", len(levels)),
		zap.Int("duplicate_keys", dupes),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rows
}

// Build validates the tables and materialises the benchmark table. The
// context is only checked before the build starts.
func Build(ctx context.Context, t *model.Tables, opts Options) ([]model.BenchmarkRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "benchmark: build cancelled")
	}
	e, err := NewEngine(t, opts)
	if err != nil {
		return nil, err
	}
	return e.Table(), nil
}
