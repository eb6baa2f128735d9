// Package picker resolves (region, family, internal level) to a survey
// percentile vector, combining level translation, alias fallback and the
// percentile table index.
package picker

import (
	"github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/comp-benchmark/internal/alias"
	"github.com/sells-group/comp-benchmark/internal/level"
	"github.com/sells-group/comp-benchmark/internal/model"
	"github.com/sells-group/comp-benchmark/internal/survey"
)

// DefaultCacheSize bounds the memo when Options.CacheSize is unset.
const DefaultCacheSize = 4096

// Options configures a Picker.
type Options struct {
	// Token identifies the loaded tables (normally their content
	// fingerprint). It is part of every memo key.
	Token     string
	CacheSize int
}

type pickKey struct {
	token  string
	region string
	family string
	level  string
}

// Picker produces percentile vectors. It is safe for concurrent use.
type Picker struct {
	index   *survey.Index
	levels  *level.Translator
	aliases *alias.Resolver
	token   string
	memo    *lru.Cache[pickKey, model.Vector]
}

// New creates a Picker over loaded tables.
func New(index *survey.Index, levels *level.Translator, aliases *alias.Resolver, opts Options) (*Picker, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	memo, err := lru.New[pickKey, model.Vector](size)
	if err != nil {
		return nil, eris.Wrap(err, "picker: create memo")
	}
	return &Picker{
		index:   index,
		levels:  levels,
		aliases: aliases,
		token:   opts.Token,
		memo:    memo,
	}, nil
}

// Pick returns the percentile vector for the triple, or nil when no path
// yields a numeric percentile. The result is a copy owned by the caller.
func (p *Picker) Pick(region, family, internalLevel string) model.Vector {
	key := pickKey{
		token:  p.token,
		region: model.RegionKey(region),
		family: alias.NormalizeCode(family),
		level:  level.Canonical(internalLevel),
	}
	if v, ok := p.memo.Get(key); ok {
		return v.Clone()
	}
	v := p.resolve(region, family, internalLevel)
	p.memo.Add(key, v)
	return v.Clone()
}

// Percentile returns a single named percentile for the triple.
func (p *Picker) Percentile(region, family, internalLevel, name string) (float64, bool) {
	return p.Pick(region, family, internalLevel).Get(name)
}

func (p *Picker) resolve(region, family, internalLevel string) model.Vector {
	lvl, ok := level.Parse(internalLevel)
	if !ok {
		return nil
	}
	if !lvl.Half {
		return p.whole(region, family, lvl)
	}

	lo, hi := lvl.Neighbors()
	a := p.whole(region, family, lo)
	b := p.whole(region, family, hi)
	if a == nil && b == nil {
		return nil
	}
	return level.Interpolate(a, b)
}

// whole queries the index for a whole level, trying each alias candidate in
// order. The first candidate with a numeric percentile wins.
func (p *Picker) whole(region, family string, lvl level.Level) model.Vector {
	tok, ok := p.levels.Token(lvl)
	if !ok {
		return nil
	}
	for _, cand := range p.aliases.Candidates(family) {
		v, ok := p.index.Match(region, survey.Query{Family: cand, Token: tok, Level: lvl.Base})
		if ok {
			return v
		}
	}
	return nil
}
