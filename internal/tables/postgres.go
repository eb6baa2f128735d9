package tables

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/comp-benchmark/internal/db"
	"github.com/sells-group/comp-benchmark/internal/model"
)

// Source-table queries. ordinal preserves the row order of the original
// export so first-wins rules behave the same as with files.
const (
	selectSurveys    = `SELECT region, family_code, family_name, level_token, percentile, value FROM survey_percentiles ORDER BY ordinal, region, family_code, level_token`
	selectEmployees  = `SELECT employee_id, region, family_code, family_name, internal_level, base_pay, active FROM employees ORDER BY ordinal`
	selectLevelMap   = `SELECT internal_level, external_token FROM level_map ORDER BY ordinal`
	selectAliases    = `SELECT from_code, to_code FROM family_aliases ORDER BY ordinal`
	selectCategories = `SELECT family_code, category FROM family_categories ORDER BY ordinal`
	selectFxRates    = `SELECT region, rate FROM fx_rates ORDER BY ordinal`
)

// PostgresSource reads the tables from the source schema created by
// db.Migrate.
type PostgresSource struct {
	Pool db.Pool
}

// Load queries every source table. Queries run sequentially on the pool.
func (s PostgresSource) Load(ctx context.Context) (*model.Tables, error) {
	start := time.Now()
	t := &model.Tables{}

	surveys, err := s.loadSurveys(ctx)
	if err != nil {
		return nil, err
	}
	t.Surveys = surveys

	t.Employees, err = queryAll(ctx, s.Pool, model.TableEmployees, selectEmployees, func(r pgx.Rows) (model.EmployeeRecord, error) {
		var e model.EmployeeRecord
		var pay *float64
		if err := r.Scan(&e.EmployeeID, &e.Region, &e.FamilyCode, &e.FamilyName, &e.InternalLevel, &pay, &e.Active); err != nil {
			return e, err
		}
		if pay != nil && model.IsFinite(*pay) {
			e.BasePay, e.PayValid = *pay, true
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}

	t.LevelMap, err = queryAll(ctx, s.Pool, model.TableLevelMap, selectLevelMap, func(r pgx.Rows) (model.LevelMapping, error) {
		var m model.LevelMapping
		var tok *string
		if err := r.Scan(&m.InternalLevel, &tok); err != nil {
			return m, err
		}
		if tok != nil {
			m.ExternalToken = *tok
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}

	t.FamilyAliases, err = queryAll(ctx, s.Pool, model.TableFamilyAliases, selectAliases, func(r pgx.Rows) (model.FamilyAlias, error) {
		var a model.FamilyAlias
		err := r.Scan(&a.FromCode, &a.ToCode)
		return a, err
	})
	if err != nil {
		return nil, err
	}

	t.Categories, err = queryAll(ctx, s.Pool, model.TableCategories, selectCategories, func(r pgx.Rows) (model.CategoryAssignment, error) {
		var c model.CategoryAssignment
		var tag string
		err := r.Scan(&c.FamilyCode, &tag)
		c.Category = model.Category(tag)
		return c, err
	})
	if err != nil {
		return nil, err
	}

	t.FxRates, err = queryAll(ctx, s.Pool, model.TableFxRates, selectFxRates, func(r pgx.Rows) (model.FxRate, error) {
		var f model.FxRate
		err := r.Scan(&f.Region, &f.Rate)
		return f, err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("tables: loaded from postgres",
		zap.Int("survey_regions", len(t.Surveys)),
		zap.Int("employees", len(t.Employees)),
		zap.Int("levels", len(t.LevelMap)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return t, nil
}

// loadSurveys folds the long percentile rows back into one SurveyRow per
// (region, family code, level token), keeping first-seen order.
func (s PostgresSource) loadSurveys(ctx context.Context) (map[string][]model.SurveyRow, error) {
	type key struct{ region, code, token string }
	type pctCell struct {
		key
		name, percentile string
		value            float64
	}

	cells, err := queryAll(ctx, s.Pool, model.TableSurveys, selectSurveys, func(r pgx.Rows) (pctCell, error) {
		var c pctCell
		err := r.Scan(&c.region, &c.code, &c.name, &c.token, &c.percentile, &c.value)
		return c, err
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string][]model.SurveyRow)
	pos := make(map[key]int)
	for _, c := range cells {
		i, ok := pos[c.key]
		if !ok {
			i = len(out[c.region])
			pos[c.key] = i
			out[c.region] = append(out[c.region], model.SurveyRow{
				Region:      c.region,
				FamilyCode:  c.code,
				FamilyName:  c.name,
				LevelToken:  c.token,
				Percentiles: model.Vector{},
			})
		}
		row := &out[c.region][i]
		if !model.IsFinite(c.value) {
			continue
		}
		if _, dup := row.Percentiles[c.percentile]; !dup {
			row.Percentiles[c.percentile] = c.value
		}
	}
	return out, nil
}

func queryAll[T any](ctx context.Context, pool db.Pool, table, sql string, scan func(pgx.Rows) (T, error)) ([]T, error) {
	rows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrapf(err, "tables: query %s", table)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "tables: scan %s", table)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "tables: iterate %s", table)
	}
	return out, nil
}

// Publish replaces the Postgres source tables with t. Each table is
// replaced in its own transaction.
func Publish(ctx context.Context, pool db.Pool, t *model.Tables) (map[string]int64, error) {
	type load struct {
		table   string
		columns []string
		rows    [][]any
	}

	var surveyRows [][]any
	for _, region := range sortedRegions(t.Surveys) {
		for _, r := range t.Surveys[region] {
			for _, name := range sortedPercentiles(r.Percentiles) {
				x, ok := r.Percentiles.Get(name)
				if !ok {
					continue
				}
				surveyRows = append(surveyRows, []any{region, r.FamilyCode, r.FamilyName, r.LevelToken, name, x, len(surveyRows)})
			}
		}
	}

	var empRows [][]any
	for i, e := range t.Employees {
		var pay any
		if e.PayValid {
			pay = e.BasePay
		}
		empRows = append(empRows, []any{e.EmployeeID, e.Region, e.FamilyCode, e.FamilyName, e.InternalLevel, pay, e.Active, i})
	}

	var lvlRows [][]any
	for i, m := range t.LevelMap {
		var tok any
		if m.ExternalToken != "" {
			tok = m.ExternalToken
		}
		lvlRows = append(lvlRows, []any{m.InternalLevel, tok, i})
	}

	var aliasRows [][]any
	for i, a := range t.FamilyAliases {
		aliasRows = append(aliasRows, []any{a.FromCode, a.ToCode, i})
	}

	var catRows [][]any
	for i, c := range t.Categories {
		catRows = append(catRows, []any{c.FamilyCode, string(c.Category), i})
	}

	var fxRows [][]any
	for i, f := range t.FxRates {
		fxRows = append(fxRows, []any{f.Region, f.Rate, i})
	}

	loads := []load{
		{db.TableSurveyPercentiles, []string{"region", "family_code", "family_name", "level_token", "percentile", "value", "ordinal"}, surveyRows},
		{db.TableEmployees, []string{"employee_id", "region", "family_code", "family_name", "internal_level", "base_pay", "active", "ordinal"}, empRows},
		{db.TableLevelMap, []string{"internal_level", "external_token", "ordinal"}, lvlRows},
		{db.TableFamilyAliases, []string{"from_code", "to_code", "ordinal"}, aliasRows},
		{db.TableFamilyCategories, []string{"family_code", "category", "ordinal"}, catRows},
		{db.TableFxRates, []string{"region", "rate", "ordinal"}, fxRows},
	}

	counts := make(map[string]int64, len(loads))
	for _, l := range loads {
		n, err := db.ReplaceTable(ctx, pool, l.table, l.columns, l.rows)
		if err != nil {
			return counts, err
		}
		counts[l.table] = n
		zap.L().Info("tables: published", zap.String("table", l.table), zap.Int64("rows", n))
	}
	return counts, nil
}

func sortedRegions(m map[string][]model.SurveyRow) []string {
	out := make([]string, 0, len(m))
	for r := range m {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func sortedPercentiles(v model.Vector) []string {
	out := make([]string, 0, len(v))
	for name := range v {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
