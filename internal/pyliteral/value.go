// Package pyliteral parses and formats the Python-literal values that
// experiment files use for structured settings, such as dataset split
// mappings ({'en': '/data/train.en'}) and list-valued model knobs.
//
// Only literals are supported: strings, integers, floats, True, False, None,
// lists, tuples and dicts with string keys.
package pyliteral

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies the literal type held by a Value.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindTuple
	KindDict
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "str"
	case KindList:
		return "list"
	case KindTuple:
		return "tuple"
	case KindDict:
		return "dict"
	default:
		return "unknown"
	}
}

// Pair is one dict entry.
type Pair struct {
	Key   string
	Value Value
}

// Value is a parsed literal. Only the field matching Kind is meaningful.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Items []Value
	Pairs []Pair
}

func None() Value                { return Value{Kind: KindNone} }
func Bool(b bool) Value          { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value          { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value      { return Value{Kind: KindFloat, Float: f} }
func String(s string) Value      { return Value{Kind: KindString, Str: s} }
func List(items ...Value) Value  { return Value{Kind: KindList, Items: items} }
func Tuple(items ...Value) Value { return Value{Kind: KindTuple, Items: items} }
func Dict(pairs ...Pair) Value   { return Value{Kind: KindDict, Pairs: pairs} }

// Lookup returns the dict entry stored under key.
func (v Value) Lookup(key string) (Value, bool) {
	for _, p := range v.Pairs {
		if p.Key == key {
			return p.Value, true
		}
	}
	return Value{}, false
}

// Interface converts v into plain Go values: nil, bool, int64, float64,
// string, []any or map[string]any.
func (v Value) Interface() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindList, KindTuple:
		out := make([]any, len(v.Items))
		for i, item := range v.Items {
			out[i] = item.Interface()
		}
		return out
	case KindDict:
		out := make(map[string]any, len(v.Pairs))
		for _, p := range v.Pairs {
			out[p.Key] = p.Value.Interface()
		}
		return out
	default:
		return nil
	}
}

// String renders v in Python repr style so that Parse(v.String()) == v.
func (v Value) String() string {
	var sb strings.Builder
	v.format(&sb)
	return sb.String()
}

func (v Value) format(sb *strings.Builder) {
	switch v.Kind {
	case KindNone:
		sb.WriteString("None")
	case KindBool:
		if v.Bool {
			sb.WriteString("True")
		} else {
			sb.WriteString("False")
		}
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.Int, 10))
	case KindFloat:
		sb.WriteString(FormatFloat(v.Float))
	case KindString:
		sb.WriteString(Quote(v.Str))
	case KindList, KindTuple:
		opening, closing := "[", "]"
		if v.Kind == KindTuple {
			opening, closing = "(", ")"
		}
		sb.WriteString(opening)
		for i, item := range v.Items {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.format(sb)
		}
		if v.Kind == KindTuple && len(v.Items) == 1 {
			sb.WriteString(",")
		}
		sb.WriteString(closing)
	case KindDict:
		sb.WriteString("{")
		for i, p := range v.Pairs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(Quote(p.Key))
			sb.WriteString(": ")
			p.Value.format(sb)
		}
		sb.WriteString("}")
	}
}

// FormatFloat renders f the way Python's repr does for common values.
func FormatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// Quote renders s as a single-quoted Python string literal.
func Quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '\'':
			sb.WriteString(`\'`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}
