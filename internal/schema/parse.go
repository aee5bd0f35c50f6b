package schema

import (
	"errors"
	"fmt"
	"strconv"
)

// Declaration grammar:
//
//	decl      := name ":" typeexpr ";"
//	typeexpr  := primitive | blob | name
//	           | "{" fields "}"
//	           | "product" "{" fields "}"
//	           | "sum" "{" fields "}"
//	fields    := field ("," field)* [","]
//	field     := name ":" fieldtype
//	fieldtype := primitive | blob | name
//	blob      := "b" digits
//
// "product" and "sum" are reserved and cannot name a type or field.
// A bare name in type position declares an alias.

var ErrParse = errors.New("schema: parse error")

type tokenKind uint8

const (
	tokIdent tokenKind = iota
	tokColon
	tokSemi
	tokComma
	tokLBrace
	tokRBrace
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type scanner struct {
	src []byte
	pos int
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	// Dots appear in field names produced by flattening nested products,
	// and re-parsed when loading saved type definitions.
	return isIdentStart(c) || c == '.' || (c >= '0' && c <= '9')
}

func (s *scanner) next() (token, error) {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			s.pos++
			continue
		}
		break
	}
	if s.pos >= len(s.src) {
		return token{kind: tokEOF, pos: s.pos}, nil
	}
	start := s.pos
	c := s.src[s.pos]
	switch c {
	case ':':
		s.pos++
		return token{kind: tokColon, text: ":", pos: start}, nil
	case ';':
		s.pos++
		return token{kind: tokSemi, text: ";", pos: start}, nil
	case ',':
		s.pos++
		return token{kind: tokComma, text: ",", pos: start}, nil
	case '{':
		s.pos++
		return token{kind: tokLBrace, text: "{", pos: start}, nil
	case '}':
		s.pos++
		return token{kind: tokRBrace, text: "}", pos: start}, nil
	}
	if !isIdentStart(c) {
		return token{}, fmt.Errorf("%w: unexpected byte %q at offset %d", ErrParse, c, start)
	}
	for s.pos < len(s.src) && isIdentCont(s.src[s.pos]) {
		s.pos++
	}
	return token{kind: tokIdent, text: string(s.src[start:s.pos]), pos: start}, nil
}

type parser struct {
	sc  *scanner
	tok token
}

func (p *parser) advance() error {
	t, err := p.sc.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	if p.tok.kind != k {
		return token{}, fmt.Errorf("%w: expected %s at offset %d, found %q", ErrParse, what, p.tok.pos, p.tok.text)
	}
	t := p.tok
	if err := p.advance(); err != nil {
		return token{}, err
	}
	return t, nil
}

func checkName(name string, pos int) error {
	if name == "product" || name == "sum" {
		return fmt.Errorf("%w: %q is reserved at offset %d", ErrParse, name, pos)
	}
	if len(name) > MaxNameLen {
		return fmt.Errorf("%w: name %q exceeds %d bytes", ErrParse, name, MaxNameLen)
	}
	return nil
}

// parseDatatype interprets an identifier in type position: a primitive
// keyword, a bN blob width, or a reference to another component type.
func parseDatatype(text string, pos int) (Datatype, error) {
	if k, ok := primitiveNames[text]; ok {
		return Datatype{Kind: k}, nil
	}
	if len(text) > 1 && text[0] == 'b' {
		if n, err := strconv.Atoi(text[1:]); err == nil {
			if n <= 0 {
				return Datatype{}, fmt.Errorf("%w: blob width must be positive, got %q at offset %d", ErrParse, text, pos)
			}
			return Datatype{Kind: KindBlob, Size: n}, nil
		}
	}
	if err := checkName(text, pos); err != nil {
		return Datatype{}, err
	}
	return Datatype{Kind: KindComp, Comp: text}, nil
}

func (p *parser) parseFields() ([]Field, error) {
	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	var fields []Field
	seen := make(map[string]bool)
	for p.tok.kind != tokRBrace {
		nameTok, err := p.expect(tokIdent, "field name")
		if err != nil {
			return nil, err
		}
		if err := checkName(nameTok.text, nameTok.pos); err != nil {
			return nil, err
		}
		if seen[nameTok.text] {
			return nil, fmt.Errorf("%w: duplicate field %q at offset %d", ErrParse, nameTok.text, nameTok.pos)
		}
		seen[nameTok.text] = true
		if _, err := p.expect(tokColon, "':'"); err != nil {
			return nil, err
		}
		typeTok, err := p.expect(tokIdent, "field type")
		if err != nil {
			return nil, err
		}
		dt, err := parseDatatype(typeTok.text, typeTok.pos)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: nameTok.text, Datatype: dt})
		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(tokRBrace, "'}'"); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty field list", ErrParse)
	}
	return fields, nil
}

func (p *parser) parseDecl() (*ComponentType, error) {
	nameTok, err := p.expect(tokIdent, "type name")
	if err != nil {
		return nil, err
	}
	if err := checkName(nameTok.text, nameTok.pos); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokColon, "':'"); err != nil {
		return nil, err
	}

	ct := &ComponentType{Name: nameTok.text}
	switch {
	case p.tok.kind == tokLBrace:
		ct.Kind = Product
		ct.Fields, err = p.parseFields()
	case p.tok.kind == tokIdent && p.tok.text == "product":
		if err = p.advance(); err == nil {
			ct.Kind = Product
			ct.Fields, err = p.parseFields()
		}
	case p.tok.kind == tokIdent && p.tok.text == "sum":
		if err = p.advance(); err == nil {
			ct.Kind = Sum
			ct.Fields, err = p.parseFields()
		}
	case p.tok.kind == tokIdent:
		var dt Datatype
		dt, err = parseDatatype(p.tok.text, p.tok.pos)
		if err == nil {
			ct.Kind = Alias
			ct.Fields = []Field{{Name: SelfField, Datatype: dt}}
			err = p.advance()
		}
	default:
		err = fmt.Errorf("%w: expected type expression at offset %d, found %q", ErrParse, p.tok.pos, p.tok.text)
	}
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokSemi, "';'"); err != nil {
		return nil, err
	}
	return ct, nil
}

// Parse parses zero or more declarations. Any error discards the whole
// input; no partial result is returned.
func Parse(src string) ([]*ComponentType, error) {
	p := &parser{sc: &scanner{src: []byte(src)}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var decls []*ComponentType
	for p.tok.kind != tokEOF {
		ct, err := p.parseDecl()
		if err != nil {
			return nil, err
		}
		decls = append(decls, ct)
	}
	return decls, nil
}
