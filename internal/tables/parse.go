// Package tables converts raw source grids (CSV, XLSX, Postgres) into the
// model tables of a benchmark build, and writes finished benchmark tables
// back out.
package tables

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/comp-benchmark/internal/model"
)

var percentileHeader = regexp.MustCompile(`^p(\d+)$`)

// HeaderError reports a required column that is absent from a table's
// header row.
type HeaderError struct {
	Table  string
	Column string
}

func (e *HeaderError) Error() string {
	return "tables: " + e.Table + ": missing required column " + strconv.Quote(e.Column)
}

// normHeader lower-cases a header cell and drops spaces, underscores and
// hyphens so "Base Pay", "base_pay" and "BASEPAY" compare equal.
func normHeader(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case ' ', '_', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// header indexes the columns of a header row. The first occurrence of a
// column name wins.
type header struct {
	table string
	cols  map[string]int
}

func newHeader(table string, row []string) header {
	h := header{table: table, cols: make(map[string]int, len(row))}
	for i, cell := range row {
		key := normHeader(cell)
		if key == "" {
			continue
		}
		if _, seen := h.cols[key]; !seen {
			h.cols[key] = i
		}
	}
	return h
}

// find returns the index of the first listed name that is present.
func (h header) find(names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := h.cols[normHeader(n)]; ok {
			return i, true
		}
	}
	return -1, false
}

// require is find with a HeaderError naming the first alternative.
func (h header) require(names ...string) (int, error) {
	if i, ok := h.find(names...); ok {
		return i, nil
	}
	return -1, &HeaderError{Table: h.table, Column: names[0]}
}

// cell returns the trimmed value at i, or "" when i is out of range.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ParseNumber parses a pay or percentile figure. Thousands separators,
// currency symbols and surrounding spaces are ignored. Blank cells and
// placeholders such as "-" or "n/a" are not numbers.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', '$', '€', '£', '¥', ' ', '\u00a0':
			return -1
		}
		return r
	}, s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseActive interprets an active-flag cell.
func ParseActive(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "active", "t":
		return true
	}
	return false
}

func emptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ParseSurvey converts one region's survey grid. The header must carry a
// compound "code" column (family code and level token joined by the last
// "."); "family" is the display name; every P<digits> column is a
// percentile. Rows whose code has no "." are skipped.
func ParseSurvey(region string, grid [][]string) ([]model.SurveyRow, error) {
	if len(grid) == 0 {
		return nil, &HeaderError{Table: model.TableSurveys, Column: "code"}
	}
	h := newHeader(model.TableSurveys, grid[0])
	codeCol, err := h.require("code", "job_code")
	if err != nil {
		return nil, err
	}
	nameCol, _ := h.find("family", "family_name", "job_family")

	type pcol struct {
		name string
		idx  int
	}
	var pcols []pcol
	seen := make(map[string]bool)
	for i, raw := range grid[0] {
		m := percentileHeader.FindStringSubmatch(normHeader(raw))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		name := "P" + strconv.Itoa(n)
		if seen[name] {
			continue
		}
		seen[name] = true
		pcols = append(pcols, pcol{name: name, idx: i})
	}

	rows := make([]model.SurveyRow, 0, len(grid)-1)
	skipped := 0
	for _, raw := range grid[1:] {
		if emptyRow(raw) {
			continue
		}
		code := cell(raw, codeCol)
		dot := strings.LastIndex(code, ".")
		if dot <= 0 || dot == len(code)-1 {
			skipped++
			continue
		}
		vec := make(model.Vector, len(pcols))
		for _, pc := range pcols {
			if x, ok := ParseNumber(cell(raw, pc.idx)); ok {
				vec[pc.name] = x
			}
		}
		rows = append(rows, model.SurveyRow{
			Region:      region,
			FamilyCode:  code[:dot],
			FamilyName:  cell(raw, nameCol),
			LevelToken:  code[dot+1:],
			Percentiles: vec,
		})
	}
	if skipped > 0 {
		zap.L().Debug("tables: skipped survey rows without a compound code",
			zap.String("region", region), zap.Int("skipped", skipped))
	}
	return rows, nil
}

// ParseEmployees converts the employee grid. Rows with a blank family code
// are dropped here; records with an unusable region, level or pay are kept
// and left for the statistics builder to skip.
func ParseEmployees(grid [][]string) ([]model.EmployeeRecord, error) {
	if len(grid) == 0 {
		return nil, &HeaderError{Table: model.TableEmployees, Column: "region"}
	}
	h := newHeader(model.TableEmployees, grid[0])
	regionCol, err := h.require("region", "location")
	if err != nil {
		return nil, err
	}
	codeCol, err := h.require("family_code", "job_family_code")
	if err != nil {
		return nil, err
	}
	levelCol, err := h.require("level", "internal_level")
	if err != nil {
		return nil, err
	}
	payCol, err := h.require("base_pay", "salary")
	if err != nil {
		return nil, err
	}
	nameCol, _ := h.find("family_name", "mapped_family_name")
	activeCol, hasActive := h.find("active", "active_flag", "status")
	idCol, _ := h.find("employee_id", "id")

	out := make([]model.EmployeeRecord, 0, len(grid)-1)
	for _, raw := range grid[1:] {
		if emptyRow(raw) {
			continue
		}
		code := cell(raw, codeCol)
		if code == "" {
			continue
		}
		pay, ok := ParseNumber(cell(raw, payCol))
		out = append(out, model.EmployeeRecord{
			EmployeeID:    cell(raw, idCol),
			Region:        cell(raw, regionCol),
			FamilyCode:    code,
			FamilyName:    cell(raw, nameCol),
			InternalLevel: cell(raw, levelCol),
			BasePay:       pay,
			PayValid:      ok,
			Active:        !hasActive || ParseActive(cell(raw, activeCol)),
		})
	}
	return out, nil
}

// ParseLevelMap converts the level mapping grid. A blank token marks an
// interpolated level.
func ParseLevelMap(grid [][]string) ([]model.LevelMapping, error) {
	if len(grid) == 0 {
		return nil, &HeaderError{Table: model.TableLevelMap, Column: "internal_level"}
	}
	h := newHeader(model.TableLevelMap, grid[0])
	lvlCol, err := h.require("internal_level", "level")
	if err != nil {
		return nil, err
	}
	tokCol, err := h.require("external_token", "survey_level", "token")
	if err != nil {
		return nil, err
	}

	out := make([]model.LevelMapping, 0, len(grid)-1)
	for _, raw := range grid[1:] {
		lvl := cell(raw, lvlCol)
		if lvl == "" {
			continue
		}
		out = append(out, model.LevelMapping{InternalLevel: lvl, ExternalToken: cell(raw, tokCol)})
	}
	return out, nil
}

// ParseAliases converts the family alias grid.
func ParseAliases(grid [][]string) ([]model.FamilyAlias, error) {
	if len(grid) == 0 {
		return nil, nil
	}
	h := newHeader(model.TableFamilyAliases, grid[0])
	fromCol, err := h.require("from_code", "old_code")
	if err != nil {
		return nil, err
	}
	toCol, err := h.require("to_code", "new_code")
	if err != nil {
		return nil, err
	}

	var out []model.FamilyAlias
	for _, raw := range grid[1:] {
		from, to := cell(raw, fromCol), cell(raw, toCol)
		if from == "" || to == "" {
			continue
		}
		out = append(out, model.FamilyAlias{FromCode: from, ToCode: to})
	}
	return out, nil
}

// ParseCategories converts the category assignment grid. Tags are kept as
// written; the range policy decides which it understands.
func ParseCategories(grid [][]string) ([]model.CategoryAssignment, error) {
	if len(grid) == 0 {
		return nil, nil
	}
	h := newHeader(model.TableCategories, grid[0])
	codeCol, err := h.require("family_code", "code")
	if err != nil {
		return nil, err
	}
	catCol, err := h.require("category", "range_category")
	if err != nil {
		return nil, err
	}

	var out []model.CategoryAssignment
	for _, raw := range grid[1:] {
		code := cell(raw, codeCol)
		if code == "" {
			continue
		}
		out = append(out, model.CategoryAssignment{FamilyCode: code, Category: model.Category(cell(raw, catCol))})
	}
	return out, nil
}

// ParseFxRates converts the FX grid. Unparseable rates are dropped.
func ParseFxRates(grid [][]string) ([]model.FxRate, error) {
	if len(grid) == 0 {
		return nil, nil
	}
	h := newHeader(model.TableFxRates, grid[0])
	regionCol, err := h.require("region")
	if err != nil {
		return nil, err
	}
	rateCol, err := h.require("rate", "fx_rate")
	if err != nil {
		return nil, err
	}

	var out []model.FxRate
	for _, raw := range grid[1:] {
		region := cell(raw, regionCol)
		rate, ok := ParseNumber(cell(raw, rateCol))
		if region == "" || !ok {
			continue
		}
		out = append(out, model.FxRate{Region: region, Rate: rate})
	}
	return out, nil
}

// wrapTable names the table in a parse error unless it already carries it.
func wrapTable(err error, table string) error {
	var he *HeaderError
	if errors.As(err, &he) {
		return err
	}
	return eris.Wrapf(err, "tables: load %s", table)
}
