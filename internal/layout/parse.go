package layout

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseError reports a syntax error in a layout string.
type ParseError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("layout %q at %d: %s", e.Input, e.Pos, e.Msg)
}

// Parse reads a layout written in the syntax produced by Layout.String.
//
//	i1 i8 i16 i32 i64 f32 f64 bool u8 str rec
//	list<L>  dict<K, V>  {L, ...}  fn(L, ...) -> L
//	union[(L, ...) | ...]  rec_union[...]  nnu(L, ...)
//	nw<k>[(...) | ...]  nu<k>(L, ...)
func Parse(s string) (Layout, error) {
	p := &parser{src: s}
	l, err := p.layout()
	if err != nil {
		return Layout{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return Layout{}, p.errorf("unexpected trailing input %q", p.src[p.pos:])
	}
	if err := Validate(l); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// MustParse is Parse for literals in code and tests.
func MustParse(s string) Layout {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Input: p.src, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) expect(c byte) error {
	if p.peek() != c {
		return p.errorf("expected %q", c)
	}
	p.pos++
	return nil
}

func (p *parser) word() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) layout() (Layout, error) {
	switch p.peek() {
	case '{':
		p.pos++
		fields, err := p.list('}')
		if err != nil {
			return Layout{}, err
		}
		return Struct(fields...), nil
	case 0:
		return Layout{}, p.errorf("unexpected end of input")
	}
	start := p.pos
	w := p.word()
	switch w {
	case "":
		return Layout{}, p.errorf("unexpected %q", p.src[p.pos])
	case "bool":
		return Bool(), nil
	case "u8":
		return U8(), nil
	case "str":
		return Str(), nil
	case "rec":
		return RecursivePointer(), nil
	case "list":
		if err := p.expect('<'); err != nil {
			return Layout{}, err
		}
		elem, err := p.layout()
		if err != nil {
			return Layout{}, err
		}
		return List(elem), p.expect('>')
	case "dict":
		if err := p.expect('<'); err != nil {
			return Layout{}, err
		}
		k, err := p.layout()
		if err != nil {
			return Layout{}, err
		}
		if err := p.expect(','); err != nil {
			return Layout{}, err
		}
		v, err := p.layout()
		if err != nil {
			return Layout{}, err
		}
		return Dict(k, v), p.expect('>')
	case "fn":
		if err := p.expect('('); err != nil {
			return Layout{}, err
		}
		args, err := p.list(')')
		if err != nil {
			return Layout{}, err
		}
		if err := p.expect('-'); err != nil {
			return Layout{}, err
		}
		if err := p.expect('>'); err != nil {
			return Layout{}, err
		}
		res, err := p.layout()
		if err != nil {
			return Layout{}, err
		}
		return FunctionPointer(args, res), nil
	case "union", "rec_union":
		tags, err := p.variants()
		if err != nil {
			return Layout{}, err
		}
		if w == "union" {
			return NonRecursive(tags...), nil
		}
		return Recursive(tags...), nil
	case "nnu":
		fields, err := p.variant()
		if err != nil {
			return Layout{}, err
		}
		return NonNullableUnwrapped(fields...), nil
	case "nw", "nu":
		id, err := p.nullableID()
		if err != nil {
			return Layout{}, err
		}
		if w == "nw" {
			tags, err := p.variants()
			if err != nil {
				return Layout{}, err
			}
			return NullableWrapped(id, tags...), nil
		}
		fields, err := p.variant()
		if err != nil {
			return Layout{}, err
		}
		return NullableUnwrapped(id, fields...), nil
	}
	if len(w) > 1 && (w[0] == 'i' || w[0] == 'f') {
		width, err := strconv.Atoi(w[1:])
		if err == nil {
			if w[0] == 'i' {
				return Int(width), nil
			}
			return Float(width), nil
		}
	}
	p.pos = start
	return Layout{}, p.errorf("unknown layout %q", w)
}

func (p *parser) nullableID() (int, error) {
	if err := p.expect('<'); err != nil {
		return 0, err
	}
	w := p.word()
	id, err := strconv.Atoi(w)
	if err != nil {
		return 0, p.errorf("bad nullable id %q", w)
	}
	return id, p.expect('>')
}

func (p *parser) list(end byte) ([]Layout, error) {
	var out []Layout
	if p.peek() == end {
		p.pos++
		return out, nil
	}
	for {
		l, err := p.layout()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
		switch p.peek() {
		case ',':
			p.pos++
		case end:
			p.pos++
			return out, nil
		default:
			return nil, p.errorf("expected ',' or %q", end)
		}
	}
}

func (p *parser) variant() ([]Layout, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	return p.list(')')
}

func (p *parser) variants() ([][]Layout, error) {
	if err := p.expect('['); err != nil {
		return nil, err
	}
	var tags [][]Layout
	for {
		v, err := p.variant()
		if err != nil {
			return nil, err
		}
		tags = append(tags, v)
		switch p.peek() {
		case '|':
			p.pos++
		case ']':
			p.pos++
			return tags, nil
		default:
			return nil, p.errorf("expected '|' or ']'")
		}
	}
}

// Key is a canonical, compact identity for l, suitable as a map key.
func Key(l Layout) string {
	return strings.ReplaceAll(l.String(), " ", "")
}
