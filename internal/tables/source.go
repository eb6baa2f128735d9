package tables

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/comp-benchmark/internal/fetcher"
	"github.com/sells-group/comp-benchmark/internal/model"
)

// Source loads every input table of a benchmark build.
type Source interface {
	Load(ctx context.Context) (*model.Tables, error)
}

// SurveyFile is one region's survey export.
type SurveyFile struct {
	Region string `yaml:"region" mapstructure:"region"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// FileSource reads the tables from CSV or XLSX files. Empty paths leave the
// table empty; whether that is acceptable is decided by the engine.
type FileSource struct {
	Surveys       []SurveyFile
	Employees     string
	LevelMap      string
	FamilyAliases string
	Categories    string
	FxRates       string
}

// Load reads every configured file concurrently.
func (s FileSource) Load(ctx context.Context) (*model.Tables, error) {
	start := time.Now()
	t := &model.Tables{}
	surveys := make([][]model.SurveyRow, len(s.Surveys))

	g, gctx := errgroup.WithContext(ctx)
	for i, sf := range s.Surveys {
		i, sf := i, sf
		g.Go(func() error {
			grid, err := fetcher.ReadTable(gctx, sf.Path)
			if err != nil {
				return eris.Wrapf(err, "tables: load survey %s", sf.Region)
			}
			rows, err := ParseSurvey(sf.Region, grid)
			if err != nil {
				return wrapTable(err, model.TableSurveys)
			}
			surveys[i] = rows
			return nil
		})
	}
	loadFile(gctx, g, s.Employees, model.TableEmployees, func(grid [][]string) (err error) {
		t.Employees, err = ParseEmployees(grid)
		return err
	})
	loadFile(gctx, g, s.LevelMap, model.TableLevelMap, func(grid [][]string) (err error) {
		t.LevelMap, err = ParseLevelMap(grid)
		return err
	})
	loadFile(gctx, g, s.FamilyAliases, model.TableFamilyAliases, func(grid [][]string) (err error) {
		t.FamilyAliases, err = ParseAliases(grid)
		return err
	})
	loadFile(gctx, g, s.Categories, model.TableCategories, func(grid [][]string) (err error) {
		t.Categories, err = ParseCategories(grid)
		return err
	})
	loadFile(gctx, g, s.FxRates, model.TableFxRates, func(grid [][]string) (err error) {
		t.FxRates, err = ParseFxRates(grid)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t.Surveys = make(map[string][]model.SurveyRow, len(s.Surveys))
	for i, sf := range s.Surveys {
		t.Surveys[sf.Region] = append(t.Surveys[sf.Region], surveys[i]...)
	}

	zap.L().Info("tables: loaded from files",
		zap.Int("survey_regions", len(t.Surveys)),
		zap.Int("employees", len(t.Employees)),
		zap.Int("levels", len(t.LevelMap)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return t, nil
}

func loadFile(ctx context.Context, g *errgroup.Group, path, table string, parse func([][]string) error) {
	if path == "" {
		return
	}
	g.Go(func() error {
		grid, err := fetcher.ReadTable(ctx, path)
		if err != nil {
			return eris.Wrapf(err, "tables: load %s", table)
		}
		if err := parse(grid); err != nil {
			return wrapTable(err, table)
		}
		return nil
	})
}
