package querytext

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fluxstore"
)

// Parser is a recursive-descent parser over the query mini-language:
//
//	expr       := orExpr
//	orExpr     := andExpr ( ("||" | "or") andExpr )*
//	andExpr    := unary ( ("&&" | "and") unary )*
//	unary      := ("!" | "not") unary | primary
//	primary    := "(" expr ")" | comparison
//	comparison := path "exists" | path op rhs
//	path       := "measurement" | "time" | "tags." IDENT | "fields." IDENT
//	op         := "==" | "!=" | "<" | "<=" | ">" | ">="
//	rhs        := STRING | NUMBER
//
// grounded on the shape of querylang's lexer/parser pair, cut down to the
// leaf/compound grammar spec.md §4.2 requires (no pipelines, no glob index,
// no arithmetic).
type Parser struct {
	lex *Lexer
	cur Token
}

// Parse parses expr into a fluxstore.Query ready for Database.Search et al.
func Parse(expr string) (fluxstore.Query, error) {
	p := &Parser{lex: NewLexer(expr)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	q, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokEOF {
		return nil, fmt.Errorf("querytext: unexpected trailing token %q at %d", p.cur.Kind, p.cur.Pos)
	}
	return q, nil
}

func (p *Parser) advance() error {
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *Parser) expect(kind TokenKind) (Token, error) {
	if p.cur.Kind != kind {
		return Token{}, fmt.Errorf("querytext: expected %s, got %s at %d", kind, p.cur.Kind, p.cur.Pos)
	}
	tok := p.cur
	return tok, p.advance()
}

func (p *Parser) parseOr() (fluxstore.Query, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []fluxstore.Query{left}
	for p.cur.Kind == TokOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return fluxstore.Or(terms...), nil
}

func (p *Parser) parseAnd() (fluxstore.Query, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	terms := []fluxstore.Query{left}
	for p.cur.Kind == TokAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return fluxstore.And(terms...), nil
}

func (p *Parser) parseUnary() (fluxstore.Query, error) {
	if p.cur.Kind == TokNot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return fluxstore.Not(inner), nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (fluxstore.Query, error) {
	if p.cur.Kind == TokLParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (fluxstore.Query, error) {
	pathTok, err := p.expect(TokIdent)
	if err != nil {
		return nil, fmt.Errorf("querytext: expected a path (measurement, time, tags.<k>, fields.<k>): %w", err)
	}
	facet, key, err := splitPath(pathTok.Lit)
	if err != nil {
		return nil, err
	}

	if p.cur.Kind == TokExists {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return fluxstore.NewLeaf(facet, key, fluxstore.OpExists, nil)
	}

	op, err := p.parseOp()
	if err != nil {
		return nil, err
	}

	rhs, err := p.parseRHS(facet)
	if err != nil {
		return nil, err
	}
	return fluxstore.NewLeaf(facet, key, op, rhs)
}

func (p *Parser) parseOp() (fluxstore.Op, error) {
	var op fluxstore.Op
	switch p.cur.Kind {
	case TokEq:
		op = fluxstore.OpEq
	case TokNe:
		op = fluxstore.OpNe
	case TokLt:
		op = fluxstore.OpLt
	case TokLe:
		op = fluxstore.OpLe
	case TokGt:
		op = fluxstore.OpGt
	case TokGe:
		op = fluxstore.OpGe
	default:
		return 0, fmt.Errorf("querytext: expected a comparison operator at %d, got %s", p.cur.Pos, p.cur.Kind)
	}
	return op, p.advance()
}

func (p *Parser) parseRHS(facet fluxstore.Facet) (any, error) {
	tok := p.cur
	switch tok.Kind {
	case TokString:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if facet == fluxstore.FacetTime {
			t, err := time.Parse(time.RFC3339, tok.Lit)
			if err != nil {
				return nil, fmt.Errorf("querytext: bad time literal %q: %w", tok.Lit, err)
			}
			return t, nil
		}
		return tok.Lit, nil
	case TokNumber:
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err := strconv.ParseFloat(tok.Lit, 64)
		if err != nil {
			return nil, fmt.Errorf("querytext: bad number literal %q: %w", tok.Lit, err)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("querytext: expected a string or number at %d, got %s", tok.Pos, tok.Kind)
	}
}

func splitPath(lit string) (fluxstore.Facet, string, error) {
	switch {
	case lit == "measurement":
		return fluxstore.FacetMeasurement, "", nil
	case lit == "time":
		return fluxstore.FacetTime, "", nil
	case strings.HasPrefix(lit, "tags."):
		key := lit[len("tags."):]
		if key == "" {
			return 0, "", fmt.Errorf("querytext: tags. path needs a key, got %q", lit)
		}
		return fluxstore.FacetTags, key, nil
	case strings.HasPrefix(lit, "fields."):
		key := lit[len("fields."):]
		if key == "" {
			return 0, "", fmt.Errorf("querytext: fields. path needs a key, got %q", lit)
		}
		return fluxstore.FacetFields, key, nil
	default:
		return 0, "", fmt.Errorf("querytext: unknown path %q (want measurement, time, tags.<k>, or fields.<k>)", lit)
	}
}
