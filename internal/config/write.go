package config

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/pelletier/go-toml/v2"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"

	"mmtconf/internal/ini"
	"mmtconf/internal/interp"
	"mmtconf/internal/pyliteral"
)

// Export formats.
const (
	FormatINI  = "ini"
	FormatJSON = "json"
	FormatTOML = "toml"
	FormatYAML = "yaml"
)

// Formats lists the formats accepted by Export.
func Formats() []string {
	return []string{FormatINI, FormatJSON, FormatTOML, FormatYAML}
}

// Entry is one resolved value in canonical document syntax.
type Entry struct {
	Section  string
	Key      string
	Value    string
	Explicit bool
}

// Entries lists every value of c, defaults included, in canonical order.
func (c *Config) Entries() []Entry {
	var out []Entry
	add := func(section, key, value string) {
		out = append(out, Entry{Section: section, Key: key, Value: value, Explicit: c.Explicit(section, key)})
	}
	for _, s := range Schema() {
		add(s.Section, s.Name, s.format(c))
	}
	for _, o := range c.Model.Options {
		add(SectionModel, o.Name, o.Value.String())
	}
	for _, v := range c.Data.Vars {
		add(SectionData, v.Name, v.Value)
	}
	for _, split := range c.Data.Splits {
		add(SectionData, split.Split, datasetLiteral(split).String())
	}
	for _, m := range c.Vocabulary {
		add(SectionVocabulary, m.Key, m.Path)
	}
	return out
}

func datasetLiteral(split DatasetSpec) pyliteral.Value {
	pairs := make([]pyliteral.Pair, len(split.Files))
	for i, m := range split.Files {
		pairs[i] = pyliteral.Pair{Key: m.Key, Value: pyliteral.String(m.Path)}
	}
	return pyliteral.Dict(pairs...)
}

// WriteINI renders c as an experiment file. Variables are already
// substituted and literal dollar signs are escaped, so loading the output
// yields the same Config.
func (c *Config) WriteINI(w io.Writer) error {
	doc := ini.NewDocument()
	for _, sec := range knownSections {
		doc.Ensure(sec)
	}
	for _, e := range c.Entries() {
		doc.Set(e.Section, e.Key, interp.Escape(e.Value))
	}
	if err := ini.Write(w, doc); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Export renders c in one of Formats.
func (c *Config) Export(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case FormatINI:
		return c.WriteINI(w)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(c.tree(true)); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case FormatTOML:
		enc := toml.NewEncoder(w)
		enc.SetIndentTables(true)
		if err := enc.Encode(c.plainTree()); err != nil {
			return fmt.Errorf("encode toml: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c.tree(false)); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported export format %q (want one of %s)", format, strings.Join(Formats(), ", "))
	}
}

type section = orderedmap.OrderedMap[string, any]

// tree builds an ordered section → key → value view. JSON cannot carry
// non-finite floats, so those are rendered as strings when finiteOnly is set.
func (c *Config) tree(finiteOnly bool) *orderedmap.OrderedMap[string, *section] {
	out := orderedmap.New[string, *section]()
	get := func(name string) *section {
		sec, ok := out.Get(name)
		if !ok {
			sec = orderedmap.New[string, any]()
			out.Set(name, sec)
		}
		return sec
	}
	for _, s := range Schema() {
		get(s.Section).Set(s.Name, exportSetting(s, c))
	}
	for _, o := range c.Model.Options {
		get(SectionModel).Set(o.Name, exportValue(o.Value, finiteOnly))
	}
	for _, v := range c.Data.Vars {
		get(SectionData).Set(v.Name, v.Value)
	}
	for _, split := range c.Data.Splits {
		files := orderedmap.New[string, any]()
		for _, m := range split.Files {
			files.Set(m.Key, m.Path)
		}
		get(SectionData).Set(split.Split, files)
	}
	vocab := get(SectionVocabulary)
	for _, m := range c.Vocabulary {
		vocab.Set(m.Key, m.Path)
	}
	return out
}

// plainTree is tree with ordered maps flattened to Go maps and None
// spelled out, for encoders without null support.
func (c *Config) plainTree() map[string]any {
	out := map[string]any{}
	for pair := c.tree(false).Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = flatten(pair.Value)
	}
	return out
}

func flatten(v any) any {
	switch t := v.(type) {
	case *orderedmap.OrderedMap[string, any]:
		m := make(map[string]any, t.Len())
		for pair := t.Oldest(); pair != nil; pair = pair.Next() {
			m[pair.Key] = flatten(pair.Value)
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = flatten(item)
		}
		return out
	case nil:
		return "None"
	default:
		return v
	}
}

func exportSetting(s Setting, c *Config) any {
	switch p := s.field(c).(type) {
	case *int:
		return *p
	case *float64:
		return *p
	case *bool:
		return *p
	case *[]Metric:
		out := make([]string, len(*p))
		for i, m := range *p {
			out[i] = string(m)
		}
		return out
	case *[]string:
		return append([]string{}, *p...)
	default:
		return s.format(c)
	}
}

func exportValue(v pyliteral.Value, finiteOnly bool) any {
	switch v.Kind {
	case pyliteral.KindFloat:
		if finiteOnly && (math.IsInf(v.Float, 0) || math.IsNaN(v.Float)) {
			return pyliteral.FormatFloat(v.Float)
		}
		return v.Float
	case pyliteral.KindList, pyliteral.KindTuple:
		out := make([]any, len(v.Items))
		for i, item := range v.Items {
			out[i] = exportValue(item, finiteOnly)
		}
		return out
	case pyliteral.KindDict:
		out := orderedmap.New[string, any]()
		for _, p := range v.Pairs {
			out.Set(p.Key, exportValue(p.Value, finiteOnly))
		}
		return out
	default:
		return v.Interface()
	}
}
