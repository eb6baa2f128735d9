package rangesel

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/sells-group/comp-benchmark/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Resolve returns the slot's primary percentile, or the first present
// fallback in declared order. Presence is judged on raw values.
func Resolve(slot Slot, v model.Vector) (float64, bool) {
	if x, ok := v.Get(slot.Primary); ok {
		return x, true
	}
	for _, name := range slot.Fallbacks {
		if x, ok := v.Get(name); ok {
			return x, true
		}
	}
	return 0, false
}

// Select picks start/mid/end from the vector with the definition's fallback
// chains and rounds each resolved value to the nearest 100. Exhausted chains
// leave the slot empty.
func Select(def Definition, v model.Vector) model.Range {
	return model.Range{
		Start: resolveRounded(def.Start, v),
		Mid:   resolveRounded(def.Mid, v),
		End:   resolveRounded(def.End, v),
	}
}

// SelectRange applies the policy's definition for a category.
func (p *Policy) SelectRange(cat model.Category, v model.Vector) model.Range {
	return Select(p.Definition(cat), v)
}

func resolveRounded(slot Slot, v model.Vector) decimal.NullDecimal {
	x, ok := Resolve(slot, v)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(Round100(decimal.NewFromFloat(x)))
}

// Round100 rounds to the nearest 100 currency units, halves away from zero.
func Round100(d decimal.Decimal) decimal.Decimal {
	return d.Div(hundred).Round(0).Mul(hundred)
}

// Convert multiplies a value by an FX rate without rounding.
func Convert(d decimal.Decimal, rate float64) decimal.Decimal {
	return d.Mul(decimal.NewFromFloat(rate))
}

// convertRounded converts a reported value and re-rounds it.
func convertRounded(d decimal.NullDecimal, rate float64) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	return decimal.NewNullDecimal(Round100(Convert(d.Decimal, rate)))
}

// ConvertRange converts every present slot into the reference currency.
func ConvertRange(r model.Range, rate float64) model.Range {
	return model.Range{
		Start: convertRounded(r.Start, rate),
		Mid:   convertRounded(r.Mid, rate),
		End:   convertRounded(r.End, rate),
	}
}

// ConvertStats converts internal min/median/max into the reference currency.
func ConvertStats(s model.Stats, rate float64) model.Stats {
	return model.Stats{
		Min:    convertRounded(s.Min, rate),
		Median: convertRounded(s.Median, rate),
		Max:    convertRounded(s.Max, rate),
		Count:  s.Count,
	}
}

// FxTable maps regions to their conversion rate.
type FxTable struct {
	rates map[string]float64
}

// NewFxTable indexes FX rates by region. Non-positive or non-finite rates are
// ignored; the first entry for a region wins.
func NewFxTable(rates []model.FxRate) *FxTable {
	t := &FxTable{rates: make(map[string]float64, len(rates))}
	for _, r := range rates {
		key := model.RegionKey(r.Region)
		if key == "" || r.Rate <= 0 || math.IsNaN(r.Rate) || math.IsInf(r.Rate, 0) {
			continue
		}
		if _, seen := t.rates[key]; !seen {
			t.rates[key] = r.Rate
		}
	}
	return t
}

// Rate returns the region's rate, or 1 when the region has none.
func (t *FxTable) Rate(region string) float64 {
	if t == nil {
		return 1
	}
	if r, ok := t.rates[model.RegionKey(region)]; ok {
		return r
	}
	return 1
}
