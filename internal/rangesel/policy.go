// Package rangesel turns a percentile vector into a proposed pay range using
// the family's category policy, and handles rounding and currency conversion.
package rangesel

import (
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/comp-benchmark/internal/alias"
	"github.com/sells-group/comp-benchmark/internal/model"
)

// Slot names one percentile and the alternatives tried, in order, when it
// is absent.
type Slot struct {
	Primary   string   `yaml:"primary"`
	Fallbacks []string `yaml:"fallbacks"`
}

// Definition is the start/mid/end triple of one category.
type Definition struct {
	Start Slot `yaml:"start"`
	Mid   Slot `yaml:"mid"`
	End   Slot `yaml:"end"`
}

// DefaultHighPrefixes mark families that use the high band when no explicit
// category is assigned.
var DefaultHighPrefixes = []string{"EX.", "SA."}

// DefaultDefinitions returns the two built-in category definitions.
func DefaultDefinitions() map[model.Category]Definition {
	return map[model.Category]Definition{
		model.CategoryStandard: {
			Start: Slot{Primary: "P10", Fallbacks: []string{"P25", "P40"}},
			Mid:   Slot{Primary: "P50", Fallbacks: []string{"P60", "P40"}},
			End:   Slot{Primary: "P90", Fallbacks: []string{"P75"}},
		},
		model.CategoryHigh: {
			Start: Slot{Primary: "P25", Fallbacks: []string{"P40", "P10"}},
			Mid:   Slot{Primary: "P60", Fallbacks: []string{"P50", "P75"}},
			End:   Slot{Primary: "P90", Fallbacks: []string{"P75"}},
		},
	}
}

// Policy assigns categories to families and holds their definitions.
type Policy struct {
	definitions  map[model.Category]Definition
	assignments  map[string]model.Category
	highPrefixes []string
}

// NewPolicy builds a policy from the category-assignment table. A nil
// highPrefixes uses DefaultHighPrefixes. Rows with an unknown tag are ignored.
func NewPolicy(assignments []model.CategoryAssignment, highPrefixes []string) *Policy {
	if highPrefixes == nil {
		highPrefixes = DefaultHighPrefixes
	}
	p := &Policy{
		definitions:  DefaultDefinitions(),
		assignments:  make(map[string]model.Category, len(assignments)),
		highPrefixes: make([]string, 0, len(highPrefixes)),
	}
	for _, hp := range highPrefixes {
		if hp = alias.NormalizeCode(hp); hp != "" {
			p.highPrefixes = append(p.highPrefixes, hp)
		}
	}
	for _, a := range assignments {
		code := alias.NormalizeCode(a.FamilyCode)
		cat, ok := ParseCategory(string(a.Category))
		if code == "" || !ok {
			continue
		}
		if _, seen := p.assignments[code]; !seen {
			p.assignments[code] = cat
		}
	}
	return p
}

// ParseCategory accepts the full tags and the short forms "high"/"standard".
func ParseCategory(s string) (model.Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(model.CategoryHigh), "high":
		return model.CategoryHigh, true
	case string(model.CategoryStandard), "standard":
		return model.CategoryStandard, true
	}
	return "", false
}

// Category returns the explicit assignment of the first listed code that has
// one, else the structural prefix rule, else the standard category.
func (p *Policy) Category(codes ...string) model.Category {
	for _, c := range codes {
		if cat, ok := p.assignments[alias.NormalizeCode(c)]; ok {
			return cat
		}
	}
	if len(codes) > 0 {
		code := alias.NormalizeCode(codes[0])
		for _, hp := range p.highPrefixes {
			if strings.HasPrefix(code, hp) {
				return model.CategoryHigh
			}
		}
	}
	return model.CategoryStandard
}

// Definition returns the definition of a category. Unknown categories use
// the standard definition.
func (p *Policy) Definition(cat model.Category) Definition {
	if d, ok := p.definitions[cat]; ok {
		return d
	}
	return p.definitions[model.CategoryStandard]
}

// policyFile is the YAML layout accepted by ApplyYAML.
type policyFile struct {
	HighPrefixes []string              `yaml:"high_prefixes"`
	Categories   map[string]Definition `yaml:"categories"`
}

// ApplyYAML applies category definition overrides from a YAML policy
// document. Slots left blank keep their defaults.
func (p *Policy) ApplyYAML(data []byte) error {
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return eris.Wrap(err, "rangesel: parse policy")
	}

	for tag, def := range f.Categories {
		cat, ok := ParseCategory(tag)
		if !ok {
			return eris.Errorf("rangesel: unknown category %q in policy", tag)
		}
		cur := p.definitions[cat]
		cur.Start = mergeSlot(cur.Start, def.Start)
		cur.Mid = mergeSlot(cur.Mid, def.Mid)
		cur.End = mergeSlot(cur.End, def.End)
		p.definitions[cat] = cur
	}
	if f.HighPrefixes != nil {
		p.highPrefixes = p.highPrefixes[:0]
		for _, hp := range f.HighPrefixes {
			if hp = alias.NormalizeCode(hp); hp != "" {
				p.highPrefixes = append(p.highPrefixes, hp)
			}
		}
	}
	return nil
}

func mergeSlot(cur, override Slot) Slot {
	if override.Primary == "" {
		return cur
	}
	out := Slot{Primary: strings.ToUpper(strings.TrimSpace(override.Primary))}
	for _, fb := range override.Fallbacks {
		out.Fallbacks = append(out.Fallbacks, strings.ToUpper(strings.TrimSpace(fb)))
	}
	return out
}
