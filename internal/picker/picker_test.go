package picker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/comp-benchmark/internal/alias"
	"github.com/sells-group/comp-benchmark/internal/level"
	"github.com/sells-group/comp-benchmark/internal/model"
	"github.com/sells-group/comp-benchmark/internal/survey"
)

var testLevels = []model.LevelMapping{
	{InternalLevel: "L5 IC", ExternalToken: "P5"},
	{InternalLevel: "L5.5 IC"},
	{InternalLevel: "L6 IC", ExternalToken: "P6"},
	{InternalLevel: "L6.5 IC"},
	{InternalLevel: "L7 IC", ExternalToken: "P7"},
}

func newTestPicker(t *testing.T, aliases []model.FamilyAlias, rows ...model.SurveyRow) *Picker {
	t.Helper()
	ix := survey.NewIndex(map[string][]model.SurveyRow{"Japan": rows}, survey.Options{})
	p, err := New(ix, level.NewTranslator(testLevels), alias.NewResolver(aliases), Options{Token: "test"})
	require.NoError(t, err)
	return p
}

func surveyRow(family, token string, v model.Vector) model.SurveyRow {
	return model.SurveyRow{Region: "Japan", FamilyCode: family, LevelToken: token, Percentiles: v}
}

func TestPick_WholeLevel(t *testing.T) {
	p := newTestPicker(t, nil, surveyRow("EN.SODE", "P5", model.Vector{"P25": 100000}))

	v := p.Pick("Japan", "EN.SODE", "L5 IC")
	assert.Equal(t, model.Vector{"P25": 100000}, v)

	got, ok := p.Percentile("japan", "en.sode", "l5 ic", "P25")
	require.True(t, ok)
	assert.Equal(t, 100000.0, got)

	_, ok = p.Percentile("Japan", "EN.SODE", "L5 IC", "P90")
	assert.False(t, ok)
}

func TestPick_HalfLevelAverages(t *testing.T) {
	p := newTestPicker(t, nil,
		surveyRow("EN.SODE", "P5", model.Vector{"P50": 70000}),
		surveyRow("EN.SODE", "P6", model.Vector{"P50": 90000}),
	)
	got, ok := p.Percentile("Japan", "EN.SODE", "L5.5 IC", "P50")
	require.True(t, ok)
	assert.Equal(t, 80000.0, got)
}

func TestPick_HalfLevelMissingNeighbor(t *testing.T) {
	p := newTestPicker(t, nil, surveyRow("EN.SODE", "P5", model.Vector{"P50": 70000}))

	got, ok := p.Percentile("Japan", "EN.SODE", "L5.5 IC", "P50")
	require.True(t, ok)
	assert.Equal(t, 70000.0, got)

	assert.Nil(t, p.Pick("Japan", "EN.SODE", "L6.5 IC"), "both neighbours absent")
}

func TestPick_Unmapped(t *testing.T) {
	p := newTestPicker(t, nil, surveyRow("EN.SODE", "P5", model.Vector{"P50": 70000}))

	assert.Nil(t, p.Pick("Japan", "EN.SODE", "Director"))
	assert.Nil(t, p.Pick("Japan", "EN.SODE", "L9 IC"), "level without mapping")
}

func TestPick_AliasTransparency(t *testing.T) {
	aliases := []model.FamilyAlias{{FromCode: "EN.OLDC", ToCode: "EN.NEWC"}}

	t.Run("survey uses new code", func(t *testing.T) {
		p := newTestPicker(t, aliases, surveyRow("EN.NEWC", "P5", model.Vector{"P50": 70000}))
		assert.Equal(t, p.Pick("Japan", "EN.OLDC", "L5 IC"), p.Pick("Japan", "EN.NEWC", "L5 IC"))
		assert.NotNil(t, p.Pick("Japan", "EN.OLDC", "L5 IC"))
	})

	t.Run("survey uses old code", func(t *testing.T) {
		p := newTestPicker(t, aliases, surveyRow("EN.OLDC", "P5", model.Vector{"P50": 70000}))
		assert.Equal(t, p.Pick("Japan", "EN.OLDC", "L5 IC"), p.Pick("Japan", "EN.NEWC", "L5 IC"))
		assert.NotNil(t, p.Pick("Japan", "EN.NEWC", "L5 IC"))
	})
}

func TestPick_AliasSkipsEmptyCandidates(t *testing.T) {
	aliases := []model.FamilyAlias{{FromCode: "EN.OLDC", ToCode: "EN.NEWC"}}
	p := newTestPicker(t, aliases,
		surveyRow("EN.OLDC", "P5", model.Vector{}),
		surveyRow("EN.NEWC", "P5", model.Vector{"P50": 75000}),
	)
	got, ok := p.Percentile("Japan", "EN.OLDC", "L5 IC", "P50")
	require.True(t, ok)
	assert.Equal(t, 75000.0, got)
}

func TestPick_ResultIsACopy(t *testing.T) {
	p := newTestPicker(t, nil, surveyRow("EN.SODE", "P5", model.Vector{"P50": 70000}))

	v := p.Pick("Japan", "EN.SODE", "L5 IC")
	v["P50"] = 1

	got, _ := p.Percentile("Japan", "EN.SODE", "L5 IC", "P50")
	assert.Equal(t, 70000.0, got)
}

func TestPick_EndToEndHalfLevel(t *testing.T) {
	p := newTestPicker(t, nil,
		surveyRow("EN.SODE", "P5", model.Vector{"P25": 100000, "P90": 200000}),
		surveyRow("EN.SODE", "P6", model.Vector{"P25": 120000, "P90": 240000}),
	)
	v := p.Pick("Japan", "EN.SODE", "L5.5 IC")
	assert.Equal(t, model.Vector{"P25": 110000, "P90": 220000}, v)
}
