// Package survey indexes market-survey percentile tables per region by
// (family code, level token).
package survey

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/comp-benchmark/internal/alias"
	"github.com/sells-group/comp-benchmark/internal/model"
)

// DefaultExecutiveThreshold is the internal level number at which executive
// token matching applies.
const DefaultExecutiveThreshold = 7

// DefaultFinancePrefixes flags finance families for the P→F fallback.
var DefaultFinancePrefixes = []string{"FI."}

// compositeBands is a fixed business rule: the executive survey reports two
// collapsed sub-bands under composite tokens. It is not derived from the
// token text and must not be generalised.
var compositeBands = []struct {
	token string
	band  [2]int
}{
	{token: "E3-4", band: [2]int{3, 4}},
	{token: "E1-2", band: [2]int{1, 2}},
}

var tokenRe = regexp.MustCompile(`^([A-Z]+)(\d+)$`)

// Token is a parsed survey level token such as "P5".
type Token struct {
	Letter string
	Number int
}

// ParseToken parses tokens of the form <letters><digits>.
func ParseToken(s string) (Token, bool) {
	m := tokenRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return Token{}, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return Token{}, false
	}
	return Token{Letter: m[1], Number: n}, true
}

func (t Token) String() string {
	return t.Letter + strconv.Itoa(t.Number)
}

// Options tunes token matching.
type Options struct {
	ExecutiveThreshold int
	FinancePrefixes    []string
}

// Query describes one table lookup.
type Query struct {
	Family string
	Token  string
	// Level is the internal level number being resolved. At or above the
	// executive threshold, tokens match by number and composite bands apply.
	Level int
}

type regionIndex struct {
	label  string
	rows   map[string]model.Vector
	tokens map[string][]string // family -> sorted tokens
}

// Index is the per-region percentile table index.
type Index struct {
	opts    Options
	regions map[string]*regionIndex // keyed by model.RegionKey
}

// NewIndex indexes survey rows. Rows with a blank family or token are skipped
// and non-finite percentile cells are dropped.
// When a (family, token) pair repeats within a region the first row wins;
// region labels that fold to the same key are merged in sorted order.
func NewIndex(surveys map[string][]model.SurveyRow, opts Options) *Index {
	if opts.ExecutiveThreshold <= 0 {
		opts.ExecutiveThreshold = DefaultExecutiveThreshold
	}
	if opts.FinancePrefixes == nil {
		opts.FinancePrefixes = DefaultFinancePrefixes
	}

	ix := &Index{opts: opts, regions: make(map[string]*regionIndex, len(surveys))}
	labels := make([]string, 0, len(surveys))
	for label := range surveys {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	skipped := 0
	for _, label := range labels {
		rows := surveys[label]
		key := model.RegionKey(label)
		ri, ok := ix.regions[key]
		if !ok {
			ri = &regionIndex{
				label:  strings.TrimSpace(label),
				rows:   make(map[string]model.Vector),
				tokens: make(map[string][]string),
			}
			ix.regions[key] = ri
		}
		for _, r := range rows {
			family := alias.NormalizeCode(r.FamilyCode)
			token := strings.ToUpper(strings.TrimSpace(r.LevelToken))
			if family == "" || token == "" {
				skipped++
				continue
			}
			if t, ok := ParseToken(token); ok {
				token = t.String()
			}
			k := rowKey(family, token)
			if _, dup := ri.rows[k]; dup {
				continue
			}
			ri.rows[k] = r.Percentiles.Finite()
			ri.tokens[family] = append(ri.tokens[family], token)
		}
	}
	for _, ri := range ix.regions {
		for _, toks := range ri.tokens {
			sort.Strings(toks)
		}
	}

	zap.L().Debug("survey: index built",
		zap.Int("regions", len(ix.regions)),
		zap.Int("skipped_rows", skipped),
	)
	return ix
}

func rowKey(family, token string) string {
	return family + "|" + token
}

// Regions returns the display labels of every indexed region, sorted.
func (ix *Index) Regions() []string {
	out := make([]string, 0, len(ix.regions))
	for _, ri := range ix.regions {
		out = append(out, ri.label)
	}
	sort.Strings(out)
	return out
}

// RegionLabel returns the canonical label for a region in any spelling.
func (ix *Index) RegionLabel(region string) (string, bool) {
	ri, ok := ix.regions[model.RegionKey(region)]
	if !ok {
		return "", false
	}
	return ri.label, true
}

// IsFinance reports whether a family code carries a finance prefix.
func (ix *Index) IsFinance(family string) bool {
	family = alias.NormalizeCode(family)
	for _, p := range ix.opts.FinancePrefixes {
		if strings.HasPrefix(family, strings.ToUpper(p)) {
			return true
		}
	}
	return false
}

// ExecutiveThreshold returns the configured executive level threshold.
func (ix *Index) ExecutiveThreshold() int {
	return ix.opts.ExecutiveThreshold
}

// Match returns the first row for the query that carries at least one numeric
// percentile. The returned vector is shared and must not be mutated.
func (ix *Index) Match(region string, p Query) (model.Vector, bool) {
	ri, ok := ix.regions[model.RegionKey(region)]
	if !ok {
		return nil, false
	}
	family := alias.NormalizeCode(p.Family)
	want, ok := ParseToken(p.Token)
	if !ok {
		// Unstructured tokens can still match verbatim.
		return ri.get(family, strings.ToUpper(strings.TrimSpace(p.Token)))
	}

	for _, tok := range ix.candidates(ri, family, want, p.Level) {
		if v, ok := ri.get(family, tok); ok {
			return v, true
		}
	}
	return nil, false
}

// candidates lists tokens to try, in order, for a wanted token.
func (ix *Index) candidates(ri *regionIndex, family string, want Token, lvl int) []string {
	out := []string{want.String()}

	if lvl >= ix.opts.ExecutiveThreshold {
		for _, tok := range ri.tokens[family] {
			t, ok := ParseToken(tok)
			if ok && t.Number == want.Number && tok != want.String() {
				out = append(out, tok)
			}
		}
		for _, cb := range compositeBands {
			if want.Number == cb.band[0] || want.Number == cb.band[1] {
				out = append(out, cb.token)
			}
		}
		return out
	}

	if want.Letter == "P" && want.Number < ix.opts.ExecutiveThreshold && ix.IsFinance(family) {
		out = append(out, Token{Letter: "F", Number: want.Number}.String())
	}
	return out
}

func (ri *regionIndex) get(family, token string) (model.Vector, bool) {
	v, ok := ri.rows[rowKey(family, token)]
	if !ok || !v.HasNumeric() {
		return nil, false
	}
	return v, true
}
