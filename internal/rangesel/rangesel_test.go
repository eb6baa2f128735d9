package rangesel

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/comp-benchmark/internal/model"
)

func str(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func TestRound100(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{110000, "110000"},
		{50049.99, "50000"},
		{50050, "50100"},
		{49, "0"},
		{-150, "-200"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round100(decimal.NewFromFloat(tt.in)).String(), "in=%v", tt.in)
	}
}

func TestSelect_StandardFallback(t *testing.T) {
	p := NewPolicy(nil, nil)
	r := p.SelectRange(model.CategoryStandard, model.Vector{"P25": 50000, "P50": 61234, "P75": 88888})

	assert.Equal(t, "50000", str(r.Start), "P10 absent falls back to P25")
	assert.Equal(t, "61200", str(r.Mid))
	assert.Equal(t, "88900", str(r.End), "P90 absent falls back to P75")
}

func TestSelect_ExhaustedChainIsEmpty(t *testing.T) {
	r := Select(DefaultDefinitions()[model.CategoryStandard], model.Vector{"P50": 60000})
	assert.False(t, r.Start.Valid)
	assert.Equal(t, "60000", str(r.Mid))
	assert.False(t, r.End.Valid)

	empty := Select(DefaultDefinitions()[model.CategoryHigh], nil)
	assert.Equal(t, model.Range{}, empty)
}

func TestResolve_UsesRawValues(t *testing.T) {
	// A raw 40 rounds to 0 but is still present, so the chain stops there.
	x, ok := Resolve(Slot{Primary: "P10", Fallbacks: []string{"P25"}}, model.Vector{"P10": 40, "P25": 50000})
	require.True(t, ok)
	assert.Equal(t, 40.0, x)
}

func TestCategory(t *testing.T) {
	p := NewPolicy([]model.CategoryAssignment{
		{FamilyCode: "en.sode", Category: "high"},
		{FamilyCode: "SA.ACCT", Category: model.CategoryStandard},
		{FamilyCode: "HR.GENL", Category: "bogus"},
	}, nil)

	assert.Equal(t, model.CategoryHigh, p.Category("EN.SODE"))
	assert.Equal(t, model.CategoryStandard, p.Category("SA.ACCT"), "explicit entry beats prefix rule")
	assert.Equal(t, model.CategoryHigh, p.Category("SA.INSD"), "structural prefix rule")
	assert.Equal(t, model.CategoryStandard, p.Category("HR.GENL"), "unknown tag falls through to default")
	assert.Equal(t, model.CategoryHigh, p.Category("EN.SWDV", "EN.SODE"), "explicit entry found on alias")
	assert.Equal(t, model.CategoryStandard, p.Category())
}

func TestDefinition_UnknownCategory(t *testing.T) {
	p := NewPolicy(nil, nil)
	assert.Equal(t, DefaultDefinitions()[model.CategoryStandard], p.Definition("other"))
}

func TestApplyYAML(t *testing.T) {
	p := NewPolicy(nil, nil)
	err := p.ApplyYAML([]byte(`
high_prefixes: ["pd."]
categories:
  broad-band-high:
    start:
      primary: p40
      fallbacks: [p25]
`))
	require.NoError(t, err)

	def := p.Definition(model.CategoryHigh)
	assert.Equal(t, Slot{Primary: "P40", Fallbacks: []string{"P25"}}, def.Start)
	assert.Equal(t, DefaultDefinitions()[model.CategoryHigh].Mid, def.Mid)
	assert.Equal(t, model.CategoryHigh, p.Category("PD.PMGT"))
	assert.Equal(t, model.CategoryStandard, p.Category("SA.INSD"))
}

func TestApplyYAML_UnknownCategory(t *testing.T) {
	err := NewPolicy(nil, nil).ApplyYAML([]byte("categories:\n  mystery: {}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")
}

func TestApplyYAML_ClearsHighPrefixes(t *testing.T) {
	p := NewPolicy(nil, nil)
	require.NoError(t, p.ApplyYAML([]byte("high_prefixes: []\n")))
	assert.Equal(t, model.CategoryStandard, p.Category("EX.GENM"))

	require.Error(t, p.ApplyYAML([]byte("categories: [")))
}

func TestFxTable(t *testing.T) {
	fx := NewFxTable([]model.FxRate{
		{Region: "Japan", Rate: 0.0067},
		{Region: "japan", Rate: 9},
		{Region: "Germany", Rate: 0},
	})
	assert.Equal(t, 0.0067, fx.Rate("JAPAN"))
	assert.Equal(t, 1.0, fx.Rate("Germany"))
	assert.Equal(t, 1.0, fx.Rate("Brazil"))
	assert.Equal(t, 1.0, (*FxTable)(nil).Rate("Japan"))
}

func TestConvert_RoundTrip(t *testing.T) {
	orig := decimal.NewFromFloat(123456.78)
	rate := 0.0067

	back := Convert(Convert(orig, rate), 1/rate)
	diff, _ := back.Sub(orig).Abs().Float64()
	assert.Less(t, diff, 1e-6)
}

func TestConvertRange(t *testing.T) {
	r := model.Range{
		Start: decimal.NewNullDecimal(decimal.NewFromInt(15000000)),
		End:   decimal.NewNullDecimal(decimal.NewFromInt(22000000)),
	}
	got := ConvertRange(r, 0.0067)
	assert.Equal(t, "100500", str(got.Start))
	assert.False(t, got.Mid.Valid)
	assert.Equal(t, "147400", str(got.End))
}

func TestConvertStats(t *testing.T) {
	s := model.Stats{
		Min:    decimal.NewNullDecimal(decimal.NewFromInt(1000)),
		Median: decimal.NewNullDecimal(decimal.NewFromInt(2000)),
		Max:    decimal.NewNullDecimal(decimal.NewFromInt(3000)),
		Count:  3,
	}
	got := ConvertStats(s, 1.5)
	assert.Equal(t, "1500", str(got.Min))
	assert.Equal(t, "3000", str(got.Median))
	assert.Equal(t, "4500", str(got.Max))
	assert.Equal(t, 3, got.Count)
}
