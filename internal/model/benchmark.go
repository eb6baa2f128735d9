package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stats summarises internal pay for one (region, family key, level) bucket.
// Count is zero when the bucket has no data; the other fields are then empty.
type Stats struct {
	Min    decimal.NullDecimal `json:"min"`
	Median decimal.NullDecimal `json:"median"`
	Max    decimal.NullDecimal `json:"max"`
	Count  int                 `json:"count"`
}

// Empty reports whether the stats carry no data.
func (s Stats) Empty() bool {
	return s.Count == 0
}

// Range is a proposed pay range. Any slot may be empty.
type Range struct {
	Start decimal.NullDecimal `json:"start"`
	Mid   decimal.NullDecimal `json:"mid"`
	End   decimal.NullDecimal `json:"end"`
}

// BenchmarkRow is one (family, level, region) line of the benchmark table.
type BenchmarkRow struct {
	Region            string              `json:"region"`
	FamilyCode        string              `json:"family_code"`
	FamilyDisplayName string              `json:"family_display_name"`
	InternalLevel     string              `json:"internal_level"`
	Category          Category            `json:"category"`
	RangeStart        decimal.NullDecimal `json:"range_start"`
	RangeMid          decimal.NullDecimal `json:"range_mid"`
	RangeEnd          decimal.NullDecimal `json:"range_end"`
	InternalMin       decimal.NullDecimal `json:"internal_min"`
	InternalMedian    decimal.NullDecimal `json:"internal_median"`
	InternalMax       decimal.NullDecimal `json:"internal_max"`
	InternalCount     int                 `json:"internal_count"`
	LookupKey         string              `json:"lookup_key"`
}

// LookupKey joins display name, level and region into the consumer join key.
func LookupKey(displayName, internalLevel, region string) string {
	return displayName + "|" + internalLevel + "|" + region
}

// BuildRun records one benchmark build.
type BuildRun struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	Rows        int       `json:"rows"`
	CacheHit    bool      `json:"cache_hit"`
	Currency    string    `json:"currency,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CachedBuild is a benchmark table stored under its input fingerprint.
type CachedBuild struct {
	ID          string         `json:"id"`
	Fingerprint string         `json:"fingerprint"`
	Rows        []BenchmarkRow `json:"rows"`
	BuiltAt     time.Time      `json:"built_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
}
