package stats

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/comp-benchmark/internal/alias"
	"github.com/sells-group/comp-benchmark/internal/model"
)

func dec(t *testing.T, d decimal.NullDecimal) string {
	t.Helper()
	require.True(t, d.Valid)
	return d.Decimal.String()
}

func emp(region, code, name, lvl string, pay float64) model.EmployeeRecord {
	return model.EmployeeRecord{
		Region: region, FamilyCode: code, FamilyName: name,
		InternalLevel: lvl, BasePay: pay, PayValid: true, Active: true,
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name             string
		in               []float64
		min, median, max string
		count            int
	}{
		{"odd", []float64{100000, 70000, 85000}, "70000", "85000", "100000", 3},
		{"even", []float64{90000, 70000, 100000, 80000}, "70000", "85000", "100000", 4},
		{"single", []float64{50000}, "50000", "50000", "50000", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize(tt.in)
			assert.Equal(t, tt.min, dec(t, s.Min))
			assert.Equal(t, tt.median, dec(t, s.Median))
			assert.Equal(t, tt.max, dec(t, s.Max))
			assert.Equal(t, tt.count, s.Count)
		})
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.True(t, s.Empty())
	assert.False(t, s.Min.Valid)
}

func TestSummarize_DoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	Summarize(in)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestBuild_SkipsInvalidAndInactive(t *testing.T) {
	inactive := emp("Japan", "EN.SODE", "", "L5 IC", 1)
	inactive.Active = false
	badPay := emp("Japan", "EN.SODE", "", "L5 IC", 0)
	badPay.PayValid = false

	ix := Build([]model.EmployeeRecord{
		emp("Japan", "EN.SODE", "", "L5 IC", 70000),
		emp("Japan", "EN.SODE", "", "L5 IC", 80000),
		inactive,
		badPay,
		emp("", "EN.SODE", "", "L5 IC", 1),
		emp("Japan", "EN.SODE", "", "", 1),
		emp("Japan", "  ", "Software", "L5 IC", 1),
	}, alias.NewResolver(nil))

	s := ix.Lookup("Japan", "EN.SODE", "L5 IC")
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, "75000", dec(t, s.Median))

	assert.True(t, ix.Lookup("Japan", "Software", "L5 IC").Empty())
}

func TestBuild_DualKeys(t *testing.T) {
	ix := Build([]model.EmployeeRecord{
		emp("japan ", "EN.SODE", "Software Engineering", "l5 ic", 90000),
	}, alias.NewResolver(nil))

	byName := ix.Lookup("Japan", "software engineering", "L5 IC")
	byCode := ix.Lookup("JAPAN", "EN.SODE", "L5 IC")
	assert.Equal(t, byName, byCode)
	assert.Equal(t, 1, byCode.Count)
}

func TestBuild_AliasKeys(t *testing.T) {
	res := alias.NewResolver([]model.FamilyAlias{{FromCode: "FI.OLDC", ToCode: "FI.NEWC"}})
	ix := Build([]model.EmployeeRecord{
		emp("Japan", "FI.OLDC", "", "L4 IC", 60000),
	}, res)

	assert.Equal(t, 1, ix.Lookup("Japan", "FI.NEWC", "L4 IC").Count)
	assert.Equal(t, 1, ix.Lookup("Japan", "FI.OLDC", "L4 IC").Count)
}

func TestFamilyKeys(t *testing.T) {
	res := alias.NewResolver([]model.FamilyAlias{{FromCode: "FI.OLDC", ToCode: "FI.NEWC"}})
	keys := FamilyKeys(emp("Japan", "fi.oldc", "Accounting ", "L4 IC", 1), res)
	assert.Equal(t, []string{"fi.oldc", "fi.newc", "accounting"}, keys)

	keys = FamilyKeys(emp("Japan", "HR.GENL", "", "L4 IC", 1), nil)
	assert.Equal(t, []string{"hr.genl"}, keys)
}

func TestLookupFirst(t *testing.T) {
	ix := Build([]model.EmployeeRecord{
		emp("Japan", "EN.SODE", "", "L5 IC", 70000),
	}, nil)

	s := ix.LookupFirst("Japan", []string{"Software Engineering", "EN.SODE"}, "L5 IC")
	assert.Equal(t, 1, s.Count)
	assert.True(t, ix.LookupFirst("Japan", []string{"X"}, "L5 IC").Empty())
	assert.Equal(t, 1, ix.Len())
}

func TestBuild_SkipsNonFinitePay(t *testing.T) {
	ix := Build([]model.EmployeeRecord{
		emp("Japan", "EN.SODE", "", "L5 IC", math.NaN()),
		emp("Japan", "EN.SODE", "", "L5 IC", math.Inf(1)),
		emp("Japan", "EN.SODE", "", "L5 IC", 70000),
	}, nil)

	s := ix.Lookup("Japan", "EN.SODE", "L5 IC")
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, "70000", dec(t, s.Median))

	assert.True(t, Build([]model.EmployeeRecord{
		emp("Japan", "EN.SODE", "", "L5 IC", math.NaN()),
	}, nil).Lookup("Japan", "EN.SODE", "L5 IC").Empty())
}
