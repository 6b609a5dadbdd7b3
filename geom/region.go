package geom

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenKind tags one token of a cell's boolean region expression.
type TokenKind int

const (
	// TokSurface tests which side of a surface the point is on.
	TokSurface TokenKind = iota
	// TokUnion joins two clauses; adjacency means intersection.
	TokUnion
	// TokComplement flips the following factor.
	TokComplement
	TokLParen
	TokRParen
)

// Token is one element of a region expression. For TokSurface, Surface
// holds a surface reference (a user ID before Model.Finalize, a handle
// after) and Positive gives the required sense.
type Token struct {
	Kind     TokenKind
	Surface  int
	Positive bool
}

// ParseRegion lexes a region expression such as "-1 2 | ~(3 -4)" into a
// token sequence. Signed integers are surface IDs (the sign selects the
// half-space), '|' is union, '~' complement, and parentheses group.
// Adjacent tokens intersect implicitly.
func ParseRegion(expr string) ([]Token, error) {
	var toks []Token
	i := 0
	for i < len(expr) {
		ch := expr[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n':
			i++
		case ch == '|':
			toks = append(toks, Token{Kind: TokUnion})
			i++
		case ch == '~':
			toks = append(toks, Token{Kind: TokComplement})
			i++
		case ch == '(':
			toks = append(toks, Token{Kind: TokLParen})
			i++
		case ch == ')':
			toks = append(toks, Token{Kind: TokRParen})
			i++
		case ch == '+' || ch == '-' || (ch >= '0' && ch <= '9'):
			j := i + 1
			for j < len(expr) && expr[j] >= '0' && expr[j] <= '9' {
				j++
			}
			id, err := strconv.Atoi(strings.TrimPrefix(expr[i:j], "+"))
			if err != nil {
				return nil, fmt.Errorf("region %q: bad surface token %q",
					expr, expr[i:j])
			}
			tok := Token{Kind: TokSurface, Surface: id, Positive: id > 0}
			if id < 0 {
				tok.Surface = -id
			}
			toks = append(toks, tok)
			i = j
		default:
			return nil, fmt.Errorf("region %q: unexpected character %q",
				expr, ch)
		}
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("region %q: empty expression", expr)
	}
	return toks, nil
}

// regionEval walks a token sequence with a cursor. Evaluation is
// short-circuit: once a union clause is known true or an intersection
// clause known false, the rest of the clause is parsed dead, without
// touching the surfaces.
type regionEval struct {
	m    *Model
	toks []Token
	pos  int
	p, u *Vec
	err  error
}

func (e *regionEval) fail(format string, args ...interface{}) {
	if e.err == nil {
		e.err = fmt.Errorf(format, args...)
	}
}

func (e *regionEval) peek() (TokenKind, bool) {
	if e.pos >= len(e.toks) || e.err != nil {
		return 0, false
	}
	return e.toks[e.pos].Kind, true
}

// expr := term ('|' term)*
func (e *regionEval) expr(live bool) bool {
	v := e.term(live)
	for {
		k, ok := e.peek()
		if !ok || k != TokUnion {
			return v
		}
		e.pos++
		t := e.term(live && !v)
		v = v || t
	}
}

// term := factor factor*
func (e *regionEval) term(live bool) bool {
	v := e.factor(live)
	for {
		k, ok := e.peek()
		if !ok || k == TokUnion || k == TokRParen {
			return v
		}
		f := e.factor(live && v)
		v = v && f
	}
}

// factor := '~' factor | '(' expr ')' | surface
func (e *regionEval) factor(live bool) bool {
	k, ok := e.peek()
	if !ok {
		e.fail("region expression ends mid-clause")
		return false
	}
	switch k {
	case TokComplement:
		e.pos++
		return !e.factor(live)
	case TokLParen:
		e.pos++
		v := e.expr(live)
		if k, ok := e.peek(); !ok || k != TokRParen {
			e.fail("unbalanced parenthesis in region expression")
			return false
		}
		e.pos++
		return v
	case TokSurface:
		tok := e.toks[e.pos]
		e.pos++
		if !live {
			return false
		}
		s := &e.m.Surfaces[tok.Surface]
		return s.Sense(e.p, e.u) == tok.Positive
	default:
		e.fail("unexpected operator in region expression")
		return false
	}
}

// evalRegion reports whether the point p (with direction u for on-surface
// tie-breaking) satisfies the token sequence. Tokens must hold surface
// handles, not user IDs.
func (m *Model) evalRegion(toks []Token, p, u *Vec) bool {
	e := regionEval{m: m, toks: toks, p: p, u: u}
	v := e.expr(true)
	return v && e.err == nil && e.pos == len(toks)
}

// validateRegion checks that a token sequence is well formed: balanced
// parentheses, valid operator arity, full consumption.
func validateRegion(toks []Token) error {
	e := regionEval{m: nil, toks: toks}
	e.expr(false)
	if e.err != nil {
		return e.err
	}
	if e.pos != len(toks) {
		return fmt.Errorf("trailing tokens in region expression")
	}
	return nil
}
