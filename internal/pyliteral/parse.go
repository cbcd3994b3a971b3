package pyliteral

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrInvalid marks text that is not a supported literal.
var ErrInvalid = errors.New("invalid literal")

// ParseError reports the byte offset of a malformed literal.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Offset, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrInvalid }

// Parse reads exactly one literal from s.
func Parse(s string) (Value, error) {
	p := &parser{src: s}
	p.skipSpace()
	v, err := p.value()
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return Value{}, p.errorf("unexpected trailing text %q", p.src[p.pos:])
	}
	return v, nil
}

// ParseLoose parses s as a literal and falls back to a bare string when s
// is not one, mirroring how unquoted words are accepted in experiment files.
func ParseLoose(s string) Value {
	s = strings.TrimSpace(s)
	if v, err := Parse(s); err == nil {
		return v
	}
	return String(s)
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) value() (Value, error) {
	switch c := p.peek(); {
	case c == 0:
		return Value{}, p.errorf("unexpected end of input")
	case c == '\'' || c == '"':
		s, err := p.str()
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case c == '[':
		items, err := p.sequence('[', ']')
		if err != nil {
			return Value{}, err
		}
		return List(items...), nil
	case c == '(':
		return p.tuple()
	case c == '{':
		return p.dict()
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	case isIdentStart(c):
		return p.keyword()
	default:
		return Value{}, p.errorf("unexpected character %q", c)
	}
}

func (p *parser) str() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	var sb strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return sb.String(), nil
		case c == '\\':
			if p.pos+1 >= len(p.src) {
				return "", p.errorf("unterminated escape")
			}
			esc := p.src[p.pos+1]
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\', '\'', '"':
				sb.WriteByte(esc)
			default:
				sb.WriteByte('\\')
				sb.WriteByte(esc)
			}
			p.pos += 2
		case c == '\n':
			return "", p.errorf("newline inside string literal")
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string literal")
}

func (p *parser) number() (Value, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
		if isIdentStart(p.peek()) {
			kw, err := p.keyword()
			if err != nil || kw.Kind != KindFloat {
				return Value{}, &ParseError{Offset: start, Msg: "invalid signed literal"}
			}
			if p.src[start] == '-' {
				kw.Float = -kw.Float
			}
			return kw, nil
		}
	}
	isFloat := false
scan:
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c >= '0' && c <= '9', c == '_':
		case c == '.':
			isFloat = true
		case c == 'e' || c == 'E':
			isFloat = true
			if n := p.pos + 1; n < len(p.src) && (p.src[n] == '+' || p.src[n] == '-') {
				p.pos++
			}
		default:
			break scan
		}
		p.pos++
	}
	text := strings.ReplaceAll(p.src[start:p.pos], "_", "")
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, &ParseError{Offset: start, Msg: fmt.Sprintf("invalid float %q", text)}
		}
		return Float(f), nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return Value{}, &ParseError{Offset: start, Msg: fmt.Sprintf("invalid integer %q", text)}
	}
	return Int(i), nil
}

func (p *parser) keyword() (Value, error) {
	start := p.pos
	for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
		p.pos++
	}
	switch word := p.src[start:p.pos]; word {
	case "True":
		return Bool(true), nil
	case "False":
		return Bool(false), nil
	case "None":
		return None(), nil
	case "inf":
		return Float(math.Inf(1)), nil
	case "nan":
		return Float(math.NaN()), nil
	default:
		return Value{}, &ParseError{Offset: start, Msg: fmt.Sprintf("unknown name %q", word)}
	}
}

// sequence parses opening item, item, ... closing with an optional trailing comma.
func (p *parser) sequence(opening, closing byte) ([]Value, error) {
	p.pos++ // opening
	items := []Value{}
	for {
		p.skipSpace()
		if p.peek() == closing {
			p.pos++
			return items, nil
		}
		item, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case closing:
			p.pos++
			return items, nil
		default:
			return nil, p.errorf("expected ',' or %q", closing)
		}
	}
}

func (p *parser) tuple() (Value, error) {
	start := p.pos
	p.pos++
	p.skipSpace()
	if p.peek() == ')' {
		p.pos++
		return Tuple(), nil
	}
	first, err := p.value()
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if p.peek() == ')' {
		// A parenthesized expression, not a tuple.
		p.pos++
		return first, nil
	}
	p.pos = start
	items, err := p.sequence('(', ')')
	if err != nil {
		return Value{}, err
	}
	return Tuple(items...), nil
}

func (p *parser) dict() (Value, error) {
	p.pos++ // {
	entries := orderedmap.New[string, Value]()
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			break
		}
		if c := p.peek(); c != '\'' && c != '"' {
			return Value{}, p.errorf("dict keys must be string literals")
		}
		key, err := p.str()
		if err != nil {
			return Value{}, err
		}
		p.skipSpace()
		if p.peek() != ':' {
			return Value{}, p.errorf("expected ':' after dict key %q", key)
		}
		p.pos++
		p.skipSpace()
		val, err := p.value()
		if err != nil {
			return Value{}, err
		}
		// Repeated keys keep their first position and take the last value.
		entries.Set(key, val)
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			continue
		}
		if p.peek() == '}' {
			p.pos++
			break
		}
		return Value{}, p.errorf("expected ',' or '}'")
	}
	pairs := make([]Pair, 0, entries.Len())
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		pairs = append(pairs, Pair{Key: pair.Key, Value: pair.Value})
	}
	return Dict(pairs...), nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
