// Package parser turns a raw query string into clauses. It only handles
// syntax; terms are pushed through the index pipeline later by the
// executor.
//
// Grammar, per whitespace separated expression:
//
//	[+|-][field:]term[^boost][~[distance]][*]
//
// The trailing modifiers may appear in any order. A modifier that does not
// parse is kept as part of the term. Fuzziness wins over prefix: term~1*
// is a fuzzy clause with no prefix expansion. The uppercase keywords AND and OR set
// the boolean mode of the whole query and NOT forbids the next expression.
package parser

import (
	"math"
	"strconv"
	"strings"
)

// Presence says how a clause takes part in the boolean combination.
type Presence int

const (
	Optional Presence = iota
	Required
	Forbidden
)

func (p Presence) String() string {
	switch p {
	case Required:
		return "required"
	case Forbidden:
		return "forbidden"
	default:
		return "optional"
	}
}

// Mode is the boolean combination of non-forbidden clauses.
type Mode int

const (
	// ModeDefault defers to the searcher's configured mode.
	ModeDefault Mode = iota
	ModeAND
	ModeOR
)

// ParseMode maps "AND" and "OR" (any case) to a Mode.
func ParseMode(s string) Mode {
	switch strings.ToUpper(s) {
	case "AND":
		return ModeAND
	case "OR":
		return ModeOR
	default:
		return ModeDefault
	}
}

func (m Mode) String() string {
	switch m {
	case ModeAND:
		return "AND"
	case ModeOR:
		return "OR"
	default:
		return "default"
	}
}

// MaxFuzziness caps the edit distance a clause may ask for.
const MaxFuzziness = 3

type Clause struct {
	Term      string
	Field     string
	Fuzziness int
	Prefix    bool
	Boost     float64
	Presence  Presence
}

type Query struct {
	Raw     string
	Clauses []Clause
	Mode    Mode
}

// Empty reports whether the query has no clauses at all.
func (q *Query) Empty() bool {
	return len(q.Clauses) == 0
}

// Parse never fails; input it cannot interpret becomes literal terms.
func Parse(raw string) *Query {
	q := &Query{Raw: raw}
	forbidNext := false
	for _, expr := range strings.Fields(raw) {
		switch expr {
		case "AND":
			q.Mode = ModeAND
			continue
		case "OR":
			q.Mode = ModeOR
			continue
		case "NOT":
			forbidNext = true
			continue
		}
		c, ok := parseClause(expr)
		if !ok {
			continue
		}
		if forbidNext {
			c.Presence = Forbidden
			forbidNext = false
		}
		q.Clauses = append(q.Clauses, c)
	}
	return q
}

func parseClause(expr string) (Clause, bool) {
	c := Clause{Boost: 1}
	if len(expr) > 1 {
		switch expr[0] {
		case '+':
			c.Presence = Required
			expr = expr[1:]
		case '-':
			c.Presence = Forbidden
			expr = expr[1:]
		}
	}
	if i := strings.IndexByte(expr, ':'); i > 0 && i < len(expr)-1 {
		c.Field = expr[:i]
		expr = expr[i+1:]
	}
	c.Term = parseModifiers(expr, &c)
	if c.Fuzziness > 0 {
		c.Prefix = false
	}
	return c, c.Term != ""
}

// parseModifiers strips trailing ^N, ~N, ~ and * from term, each at most
// once, and returns what is left.
func parseModifiers(term string, c *Clause) string {
	var boosted, fuzzed bool
	for len(term) > 1 {
		if strings.HasSuffix(term, "*") && !c.Prefix {
			c.Prefix = true
			term = term[:len(term)-1]
			continue
		}
		i := strings.LastIndexAny(term, "^~")
		if i <= 0 {
			break
		}
		arg := term[i+1:]
		switch term[i] {
		case '^':
			b, err := strconv.ParseFloat(arg, 64)
			if boosted || err != nil || !(b > 0) || math.IsInf(b, 1) {
				return term
			}
			c.Boost, boosted = b, true
		case '~':
			d := 1
			if arg != "" {
				n, err := strconv.Atoi(arg)
				if err != nil || n < 0 {
					return term
				}
				d = n
			}
			if fuzzed {
				return term
			}
			c.Fuzziness, fuzzed = min(d, MaxFuzziness), true
		}
		term = term[:i]
	}
	return term
}
