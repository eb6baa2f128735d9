package tables

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/comp-benchmark/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeXLSX(t *testing.T, dir, name string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, f.Save(path))
	return path
}

func TestFileSource_Load(t *testing.T) {
	dir := t.TempDir()
	src := FileSource{
		Surveys: []SurveyFile{
			{Region: "Japan", Path: writeFile(t, dir, "jp.csv", "code,family,P25,P90\nEN.SODE.P5,Software Development,100000,200000\n")},
			{Region: "Germany", Path: writeXLSX(t, dir, "de.xlsx", [][]string{
				{"code", "family", "P10"},
				{"EN.SODE.P5", "Software Development", "55000"},
			})},
			{Region: "Japan", Path: writeFile(t, dir, "jp2.csv", "code,P25\nSA.INSD.P5,60000\n")},
		},
		Employees:     writeFile(t, dir, "emp.csv", "region,family_code,level,base_pay,active\nJapan,EN.SODE,L5 IC,\"70,000\",yes\n"),
		LevelMap:      writeFile(t, dir, "levels.csv", "internal_level,external_token\nL5 IC,P5\nL5.5 IC,\n"),
		FamilyAliases: writeFile(t, dir, "aliases.csv", "from_code,to_code\nEN.SWDV,EN.SODE\n"),
		FxRates:       writeFile(t, dir, "fx.csv", "region,rate\nJapan,0.0067\n"),
	}

	tbl, err := src.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, tbl.Surveys["Japan"], 2, "files for the same region are concatenated in order")
	assert.Equal(t, "EN.SODE", tbl.Surveys["Japan"][0].FamilyCode)
	assert.Equal(t, "SA.INSD", tbl.Surveys["Japan"][1].FamilyCode)
	assert.Equal(t, model.Vector{"P10": 55000}, tbl.Surveys["Germany"][0].Percentiles)

	require.Len(t, tbl.Employees, 1)
	assert.Equal(t, 70000.0, tbl.Employees[0].BasePay)
	assert.Len(t, tbl.LevelMap, 2)
	assert.Len(t, tbl.FamilyAliases, 1)
	assert.Empty(t, tbl.Categories, "unconfigured optional table stays empty")
	assert.Len(t, tbl.FxRates, 1)
}

func TestFileSource_HeaderErrorNamesTable(t *testing.T) {
	dir := t.TempDir()
	src := FileSource{
		LevelMap: writeFile(t, dir, "levels.csv", "level,whatever\nL5 IC,P5\n"),
	}

	_, err := src.Load(context.Background())
	require.Error(t, err)

	var he *HeaderError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, model.TableLevelMap, he.Table)
	assert.Contains(t, err.Error(), "level_map")
}

func TestFileSource_MissingFile(t *testing.T) {
	src := FileSource{Employees: filepath.Join(t.TempDir(), "nope.csv")}

	_, err := src.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tables: load employees")
}
