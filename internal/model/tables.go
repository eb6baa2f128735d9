package model

import "math"

// Vector maps a percentile name (e.g. "P25") to a pay figure. Only finite
// numbers are ever stored; an absent key means the percentile is missing.
type Vector map[string]float64

// Get returns the percentile value and whether it is present and finite.
func (v Vector) Get(name string) (float64, bool) {
	if v == nil {
		return 0, false
	}
	x, ok := v[name]
	if !ok || !IsFinite(x) {
		return 0, false
	}
	return x, true
}

// HasNumeric reports whether at least one percentile is present.
func (v Vector) HasNumeric() bool {
	for name := range v {
		if _, ok := v.Get(name); ok {
			return true
		}
	}
	return false
}

// Finite returns a copy of v without NaN or infinite entries; nil when v is
// nil.
func (v Vector) Finite() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	for k, x := range v {
		if IsFinite(x) {
			out[k] = x
		}
	}
	return out
}

// IsFinite reports whether x is neither NaN nor infinite.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Clone returns an independent copy of the vector.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	for k, x := range v {
		out[k] = x
	}
	return out
}

// SurveyRow is one row of a regional market survey.
type SurveyRow struct {
	Region      string `json:"region"`
	FamilyCode  string `json:"family_code"`
	FamilyName  string `json:"family_name"`
	LevelToken  string `json:"level_token"`
	Percentiles Vector `json:"percentiles"`
}

// LevelMapping maps an internal level label to an external survey token.
// ExternalToken is empty for interpolation points (".5" levels).
type LevelMapping struct {
	InternalLevel string `json:"internal_level"`
	ExternalToken string `json:"external_token,omitempty"`
}

// FamilyAlias is a directed job-family code rename.
type FamilyAlias struct {
	FromCode string `json:"from_code"`
	ToCode   string `json:"to_code"`
}

// Category tags a range-selection policy.
type Category string

const (
	CategoryHigh     Category = "broad-band-high"
	CategoryStandard Category = "broad-band-standard"
)

// CategoryAssignment pins a family code to a category.
type CategoryAssignment struct {
	FamilyCode string   `json:"family_code"`
	Category   Category `json:"category"`
}

// EmployeeRecord is one employee as exported by the HR system.
type EmployeeRecord struct {
	EmployeeID    string  `json:"employee_id,omitempty"`
	Region        string  `json:"region"`
	FamilyCode    string  `json:"family_code"`
	FamilyName    string  `json:"family_name,omitempty"` // friendlier mapped alias
	InternalLevel string  `json:"internal_level"`
	BasePay       float64 `json:"base_pay"`
	PayValid      bool    `json:"pay_valid"`
	Active        bool    `json:"active"`
}

// FxRate converts a region's local currency into the reference currency.
type FxRate struct {
	Region string  `json:"region"`
	Rate   float64 `json:"rate"`
}

// Tables bundles every input table of a benchmark build. Surveys is keyed by
// the region's display label.
type Tables struct {
	Surveys       map[string][]SurveyRow `json:"surveys"`
	Employees     []EmployeeRecord       `json:"employees"`
	LevelMap      []LevelMapping         `json:"level_map"`
	FamilyAliases []FamilyAlias          `json:"family_aliases"`
	Categories    []CategoryAssignment   `json:"categories"`
	FxRates       []FxRate               `json:"fx_rates"`
}

// Table names used in configuration errors.
const (
	TableSurveys       = "surveys"
	TableEmployees     = "employees"
	TableLevelMap      = "level_map"
	TableFamilyAliases = "family_aliases"
	TableCategories    = "categories"
	TableFxRates       = "fx_rates"
)
