// Package interp resolves ${name} and ${section:name} references between raw
// configuration values.
//
// Resolution is order independent: every value is split into literal text and
// references, references form a dependency graph, and values are resolved in
// depth-first post-order. A reference cycle fails with the full cycle path.
// "$$" stands for a literal dollar sign; any other '$' that does not open a
// reference is an error.
package interp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/emirpasic/gods/v2/lists/arraylist"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	// ErrSyntax marks malformed reference syntax.
	ErrSyntax = errors.New("invalid interpolation syntax")
	// ErrUnresolved marks references to keys that do not exist.
	ErrUnresolved = errors.New("unresolved reference")
	// ErrCycle marks references that depend on themselves.
	ErrCycle = errors.New("reference cycle")
)

// Key identifies a value by section and name.
type Key struct {
	Section string
	Name    string
}

func (k Key) String() string {
	return k.Section + ":" + k.Name
}

// Error describes a failed resolution. Unwrap yields ErrSyntax,
// ErrUnresolved or ErrCycle.
type Error struct {
	Kind  error
	Key   Key
	Ref   Key
	Cycle []Key
	Msg   string
}

func (e *Error) Error() string {
	switch {
	case errors.Is(e.Kind, ErrCycle):
		parts := make([]string, len(e.Cycle))
		for i, k := range e.Cycle {
			parts[i] = "${" + k.String() + "}"
		}
		return fmt.Sprintf("%s: %s", e.Kind, strings.Join(parts, " -> "))
	case errors.Is(e.Kind, ErrUnresolved):
		return fmt.Sprintf("%s ${%s} in %s", e.Kind, e.Ref, e.Key)
	default:
		return fmt.Sprintf("%s in %s: %s", e.Kind, e.Key, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Kind }

// Table holds raw values in insertion order.
type Table struct {
	values *orderedmap.OrderedMap[Key, string]
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{values: orderedmap.New[Key, string]()}
}

// Set stores a raw value.
func (t *Table) Set(section, name, raw string) {
	t.values.Set(Key{Section: section, Name: name}, raw)
}

// Get returns a raw value.
func (t *Table) Get(section, name string) (string, bool) {
	return t.values.Get(Key{Section: section, Name: name})
}

// Len reports the number of values.
func (t *Table) Len() int {
	return t.values.Len()
}

// Keys returns the keys in insertion order.
func (t *Table) Keys() []Key {
	out := make([]Key, 0, t.values.Len())
	for pair := t.values.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

type segment struct {
	text  string
	ref   Key
	isRef bool
}

// References lists the keys referenced by raw, qualified against section.
func References(section, raw string) ([]Key, error) {
	segs, err := split(Key{Section: section}, raw)
	if err != nil {
		return nil, err
	}
	var refs []Key
	for _, s := range segs {
		if s.isRef {
			refs = append(refs, s.ref)
		}
	}
	return refs, nil
}

// Escape protects literal dollar signs so that resolving the result yields s.
func Escape(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

func split(owner Key, raw string) ([]segment, error) {
	var (
		segs []segment
		buf  strings.Builder
	)
	for i := 0; i < len(raw); {
		c := raw[i]
		if c != '$' {
			buf.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(raw) {
			return nil, &Error{Kind: ErrSyntax, Key: owner, Msg: "'$' must be followed by '$' or '{'"}
		}
		switch raw[i+1] {
		case '$':
			buf.WriteByte('$')
			i += 2
		case '{':
			end := strings.IndexByte(raw[i+2:], '}')
			if end < 0 {
				return nil, &Error{Kind: ErrSyntax, Key: owner, Msg: fmt.Sprintf("unterminated reference in %q", raw)}
			}
			body := raw[i+2 : i+2+end]
			ref, err := parseRef(owner, body)
			if err != nil {
				return nil, err
			}
			if buf.Len() > 0 {
				segs = append(segs, segment{text: buf.String()})
				buf.Reset()
			}
			segs = append(segs, segment{ref: ref, isRef: true})
			i += end + 3
		default:
			return nil, &Error{Kind: ErrSyntax, Key: owner, Msg: "'$' must be followed by '$' or '{'"}
		}
	}
	if buf.Len() > 0 {
		segs = append(segs, segment{text: buf.String()})
	}
	return segs, nil
}

func parseRef(owner Key, body string) (Key, error) {
	if strings.ContainsAny(body, "${") {
		return Key{}, &Error{Kind: ErrSyntax, Key: owner, Msg: fmt.Sprintf("nested reference ${%s}", body)}
	}
	section, name := owner.Section, body
	if idx := strings.IndexByte(body, ':'); idx >= 0 {
		section, name = body[:idx], body[idx+1:]
		if strings.Contains(name, ":") {
			return Key{}, &Error{Kind: ErrSyntax, Key: owner, Msg: fmt.Sprintf("too many ':' in ${%s}", body)}
		}
	}
	section = strings.ToLower(strings.TrimSpace(section))
	name = strings.ToLower(strings.TrimSpace(name))
	if section == "" || name == "" {
		return Key{}, &Error{Kind: ErrSyntax, Key: owner, Msg: fmt.Sprintf("empty reference ${%s}", body)}
	}
	return Key{Section: section, Name: name}, nil
}

const (
	unvisited = iota
	visiting
	resolved
)

type resolver struct {
	table  *Table
	state  map[Key]int
	result map[Key]string
	path   *arraylist.List[Key]
}

// Resolve substitutes every reference in t and returns the resolved values
// keyed like t. The first failure in insertion order is returned.
func Resolve(t *Table) (map[Key]string, error) {
	r := &resolver{
		table:  t,
		state:  make(map[Key]int, t.Len()),
		result: make(map[Key]string, t.Len()),
		path:   arraylist.New[Key](),
	}
	for _, key := range t.Keys() {
		if _, err := r.resolve(key); err != nil {
			return nil, err
		}
	}
	return r.result, nil
}

func (r *resolver) resolve(key Key) (string, error) {
	switch r.state[key] {
	case resolved:
		return r.result[key], nil
	case visiting:
		start := r.path.IndexOf(key)
		cycle := append([]Key{}, r.path.Values()[start:]...)
		cycle = append(cycle, key)
		return "", &Error{Kind: ErrCycle, Key: key, Cycle: cycle}
	}

	raw, _ := r.table.values.Get(key)
	segs, err := split(key, raw)
	if err != nil {
		return "", err
	}

	r.state[key] = visiting
	r.path.Add(key)

	var sb strings.Builder
	for _, seg := range segs {
		if !seg.isRef {
			sb.WriteString(seg.text)
			continue
		}
		if _, ok := r.table.values.Get(seg.ref); !ok {
			return "", &Error{Kind: ErrUnresolved, Key: key, Ref: seg.ref}
		}
		value, err := r.resolve(seg.ref)
		if err != nil {
			return "", err
		}
		sb.WriteString(value)
	}

	r.path.Remove(r.path.Size() - 1)
	r.state[key] = resolved
	r.result[key] = sb.String()
	return r.result[key], nil
}
