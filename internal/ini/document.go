package ini

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Entry is a raw key/value pair. Line is the 1-based source line of the key,
// or 0 when the entry was set programmatically.
type Entry struct {
	Key   string
	Value string
	Line  int
}

// Section is a named, ordered group of entries.
type Section struct {
	Name    string
	Line    int
	entries *orderedmap.OrderedMap[string, Entry]
}

func newSection(name string, line int) *Section {
	return &Section{
		Name:    name,
		Line:    line,
		entries: orderedmap.New[string, Entry](),
	}
}

// Get returns the entry stored under key.
func (s *Section) Get(key string) (Entry, bool) {
	return s.entries.Get(NormalizeName(key))
}

// Set stores value under key, keeping the original position when the key
// already exists.
func (s *Section) Set(key, value string, line int) {
	key = NormalizeName(key)
	s.entries.Set(key, Entry{Key: key, Value: value, Line: line})
}

// Len reports the number of entries.
func (s *Section) Len() int {
	return s.entries.Len()
}

// Entries returns the entries in document order.
func (s *Section) Entries() []Entry {
	out := make([]Entry, 0, s.entries.Len())
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Document is an ordered collection of sections.
type Document struct {
	sections *orderedmap.OrderedMap[string, *Section]
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{sections: orderedmap.New[string, *Section]()}
}

// Section returns the named section.
func (d *Document) Section(name string) (*Section, bool) {
	return d.sections.Get(NormalizeName(name))
}

// Ensure returns the named section, appending an empty one when missing.
func (d *Document) Ensure(name string) *Section {
	name = NormalizeName(name)
	if sec, ok := d.sections.Get(name); ok {
		return sec
	}
	sec := newSection(name, 0)
	d.sections.Set(name, sec)
	return sec
}

// Sections returns the sections in document order.
func (d *Document) Sections() []*Section {
	out := make([]*Section, 0, d.sections.Len())
	for pair := d.sections.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Get looks up a raw value.
func (d *Document) Get(section, key string) (Entry, bool) {
	sec, ok := d.Section(section)
	if !ok {
		return Entry{}, false
	}
	return sec.Get(key)
}

// Set stores a raw value, creating the section when needed.
func (d *Document) Set(section, key, value string) {
	d.Ensure(section).Set(key, value, 0)
}

// NormalizeName canonicalizes section and key names.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
