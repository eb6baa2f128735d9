// Package level translates internal level labels ("L5 IC", "L5.5 Mgr") into
// external survey level tokens.
package level

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/comp-benchmark/internal/model"
)

// Role is the track of an internal level.
type Role string

const (
	RoleIC  Role = "IC"
	RoleMgr Role = "Mgr"
)

// Level is a parsed internal level.
type Level struct {
	Base int
	Half bool
	Role Role
}

var levelRe = regexp.MustCompile(`(?i)^L\s*(\d+)(\.5)?\s+(IC|MGR)$`)

// Parse parses an internal level label. It returns false for anything that
// does not look like `L<number>[.5] (IC|Mgr)`; callers treat that as
// "no percentile available".
func Parse(s string) (Level, bool) {
	m := levelRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Level{}, false
	}
	base, err := strconv.Atoi(m[1])
	if err != nil {
		return Level{}, false
	}
	role := RoleIC
	if strings.EqualFold(m[3], "mgr") {
		role = RoleMgr
	}
	return Level{Base: base, Half: m[2] != "", Role: role}, true
}

// String renders the canonical label, e.g. "L5 IC" or "L5.5 Mgr".
func (l Level) String() string {
	if l.Half {
		return fmt.Sprintf("L%d.5 %s", l.Base, l.Role)
	}
	return fmt.Sprintf("L%d %s", l.Base, l.Role)
}

// Neighbors returns the two whole levels a half level sits between.
func (l Level) Neighbors() (Level, Level) {
	return Level{Base: l.Base, Role: l.Role}, Level{Base: l.Base + 1, Role: l.Role}
}

// Canonical normalises a label when it parses, and trims it otherwise.
func Canonical(s string) string {
	if l, ok := Parse(s); ok {
		return l.String()
	}
	return strings.TrimSpace(s)
}

// Translator resolves whole levels to survey tokens using the level-alias table.
type Translator struct {
	tokens map[string]string
	order  []string
}

// NewTranslator indexes the level mapping. The first entry for a label wins.
func NewTranslator(mappings []model.LevelMapping) *Translator {
	t := &Translator{tokens: make(map[string]string, len(mappings))}
	for _, m := range mappings {
		label := Canonical(m.InternalLevel)
		if label == "" {
			continue
		}
		if _, seen := t.tokens[label]; seen {
			continue
		}
		t.tokens[label] = strings.ToUpper(strings.TrimSpace(m.ExternalToken))
		t.order = append(t.order, label)
	}
	return t
}

// Levels returns the fixed level list in table order.
func (t *Translator) Levels() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Token returns the external token mapped to a whole level.
func (t *Translator) Token(l Level) (string, bool) {
	if l.Half {
		return "", false
	}
	tok := t.tokens[l.String()]
	return tok, tok != ""
}

// Interpolate averages two whole-level vectors percentile by percentile. A
// percentile present on one side only takes that side's value; one absent on
// both sides stays absent.
func Interpolate(lo, hi model.Vector) model.Vector {
	out := make(model.Vector)
	for name := range lo {
		a, aok := lo.Get(name)
		b, bok := hi.Get(name)
		switch {
		case aok && bok:
			out[name] = (a + b) / 2
		case aok:
			out[name] = a
		}
	}
	for name := range hi {
		if _, done := out[name]; done {
			continue
		}
		if b, ok := hi.Get(name); ok {
			out[name] = b
		}
	}
	return out
}
