// Package alias resolves job-family code renames in both directions so that
// historical and current survey codes match.
package alias

import (
	"strings"

	"github.com/sells-group/comp-benchmark/internal/model"
)

// DefaultAliases is always part of the alias table, even when the source
// table is empty. The survey vendor renamed its software-development family.
var DefaultAliases = []model.FamilyAlias{
	{FromCode: "EN.SWDV", ToCode: "EN.SODE"},
}

// Resolver answers forward and reverse alias lookups.
type Resolver struct {
	forward map[string]string
	reverse map[string]string
}

// NewResolver builds a resolver from the alias table plus DefaultAliases.
// When a code appears more than once the first entry wins.
func NewResolver(aliases []model.FamilyAlias) *Resolver {
	r := &Resolver{
		forward: make(map[string]string),
		reverse: make(map[string]string),
	}
	all := make([]model.FamilyAlias, 0, len(aliases)+len(DefaultAliases))
	all = append(all, aliases...)
	all = append(all, DefaultAliases...)
	for _, a := range all {
		from, to := NormalizeCode(a.FromCode), NormalizeCode(a.ToCode)
		if from == "" || to == "" || from == to {
			continue
		}
		if _, ok := r.forward[from]; !ok {
			r.forward[from] = to
		}
		if _, ok := r.reverse[to]; !ok {
			r.reverse[to] = from
		}
	}
	return r
}

// NormalizeCode trims and upper-cases a family code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Forward returns the code this code was renamed to.
func (r *Resolver) Forward(code string) string {
	return r.forward[NormalizeCode(code)]
}

// Reverse returns the code that was renamed to this code.
func (r *Resolver) Reverse(code string) string {
	return r.reverse[NormalizeCode(code)]
}

// Candidates returns the code, its forward alias and its reverse alias,
// deduplicated in that order with empties dropped. Lookups try each in turn.
func (r *Resolver) Candidates(code string) []string {
	c := NormalizeCode(code)
	out := make([]string, 0, 3)
	for _, cand := range []string{c, r.forward[c], r.reverse[c]} {
		if cand == "" || contains(out, cand) {
			continue
		}
		out = append(out, cand)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
