package db

import (
	"context"

	"github.com/rotisserie/eris"
)

// Source table names.
const (
	TableSurveyPercentiles = "survey_percentiles"
	TableEmployees         = "employees"
	TableLevelMap          = "level_map"
	TableFamilyAliases     = "family_aliases"
	TableFamilyCategories  = "family_categories"
	TableFxRates           = "fx_rates"
)

// Survey percentiles are stored long: one row per (region, code, token,
// percentile) so any percentile set fits without schema changes.
const sourceSchema = `
CREATE TABLE IF NOT EXISTS survey_percentiles (
	region      TEXT NOT NULL,
	family_code TEXT NOT NULL,
	family_name TEXT NOT NULL DEFAULT '',
	level_token TEXT NOT NULL,
	percentile  TEXT NOT NULL,
	value       DOUBLE PRECISION NOT NULL,
	ordinal     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_survey_percentiles_region ON survey_percentiles(region);

CREATE TABLE IF NOT EXISTS employees (
	employee_id    TEXT NOT NULL DEFAULT '',
	region         TEXT NOT NULL DEFAULT '',
	family_code    TEXT NOT NULL,
	family_name    TEXT NOT NULL DEFAULT '',
	internal_level TEXT NOT NULL DEFAULT '',
	base_pay       DOUBLE PRECISION,
	active         BOOLEAN NOT NULL DEFAULT true,
	ordinal        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS level_map (
	internal_level TEXT NOT NULL,
	external_token TEXT,
	ordinal        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS family_aliases (
	from_code TEXT NOT NULL,
	to_code   TEXT NOT NULL,
	ordinal   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS family_categories (
	family_code TEXT NOT NULL,
	category    TEXT NOT NULL,
	ordinal     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS fx_rates (
	region  TEXT NOT NULL,
	rate    DOUBLE PRECISION NOT NULL,
	ordinal INTEGER NOT NULL DEFAULT 0
);
`

// Migrate creates the source tables if they do not exist.
func Migrate(ctx context.Context, pool Pool) error {
	_, err := pool.Exec(ctx, sourceSchema)
	return eris.Wrap(err, "db: migrate")
}
