package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"mmtconf/internal/ini"
	"mmtconf/internal/interp"
	"mmtconf/internal/logging"
	"mmtconf/internal/pyliteral"
)

var knownSections = []string{SectionTrain, SectionModel, SectionData, SectionVocabulary}

func readDocument(r io.Reader, overrides []string) (*ini.Document, error) {
	doc, err := ini.Parse(r, SectionTrain)
	if err != nil {
		var se *ini.SyntaxError
		if errors.As(err, &se) {
			return nil, &Error{Kind: ErrSyntax, Line: se.Line, Msg: se.Msg, Err: err}
		}
		return nil, err
	}
	for _, o := range overrides {
		section, key, value, err := ParseOverride(o)
		if err != nil {
			return nil, err
		}
		doc.Set(section, key, value)
	}
	return doc, nil
}

// ParseOverride splits "section.key:value" or "section.key=value". Names
// are lower-cased like document keys.
func ParseOverride(raw string) (section, key, value string, err error) {
	idx := strings.IndexAny(raw, ":=")
	if idx < 0 {
		return "", "", "", newError(ErrSyntax, "", "", "override %q: expected section.key:value", raw)
	}
	name := raw[:idx]
	section, key, ok := strings.Cut(name, ".")
	section, key = ini.NormalizeName(section), ini.NormalizeName(key)
	if !ok || section == "" || key == "" {
		return "", "", "", newError(ErrSyntax, "", "", "override %q: expected section.key:value", raw)
	}
	return section, key, strings.TrimSpace(raw[idx+1:]), nil
}

func resolveDocument(doc *ini.Document) (map[interp.Key]string, error) {
	table := interp.NewTable()
	for _, sec := range doc.Sections() {
		for _, e := range sec.Entries() {
			table.Set(sec.Name, e.Key, e.Value)
		}
	}
	resolved, err := interp.Resolve(table)
	if err == nil {
		return resolved, nil
	}

	var ie *interp.Error
	if !errors.As(err, &ie) {
		return nil, err
	}
	out := &Error{Section: ie.Key.Section, Key: ie.Key.Name, Err: err}
	if entry, ok := doc.Get(ie.Key.Section, ie.Key.Name); ok {
		out.Line = entry.Line
	}
	switch {
	case errors.Is(err, interp.ErrSyntax):
		out.Kind = ErrSyntax
		out.Msg = ie.Msg
	case errors.Is(err, interp.ErrCycle):
		out.Kind = ErrUnresolvedReference
		out.Msg = err.Error()
	default:
		out.Kind = ErrUnresolvedReference
		out.Msg = fmt.Sprintf("${%s} is not defined", ie.Ref)
	}
	return nil, out
}

type decoder struct {
	doc    *ini.Document
	values map[interp.Key]string
	logger *slog.Logger
	cfg    *Config
}

func (d *decoder) decode() (*Config, error) {
	d.cfg = &Config{explicit: map[string]struct{}{}}

	for _, sec := range d.doc.Sections() {
		if !contains(knownSections, sec.Name) {
			attrs := []logging.Attr{logging.String(logging.FieldSection, sec.Name)}
			if s := suggest(knownSections, sec.Name); s != "" {
				attrs = append(attrs, logging.String("suggestion", s))
			}
			d.logger.Warn("ignoring unknown section", logging.Args(attrs...)...)
		}
	}

	if err := d.typed(SectionTrain, trainSchema); err != nil {
		return nil, err
	}
	if err := d.typed(SectionModel, modelSchema); err != nil {
		return nil, err
	}
	d.modelOptions()
	if err := d.data(); err != nil {
		return nil, err
	}
	d.vocabulary()
	return d.cfg, nil
}

func (d *decoder) value(section, key string) (string, int, bool) {
	entry, ok := d.doc.Get(section, key)
	if !ok {
		return "", 0, false
	}
	return d.values[interp.Key{Section: section, Name: key}], entry.Line, true
}

func (d *decoder) typed(section string, schema []Setting) error {
	for _, s := range schema {
		raw, line, ok := d.value(section, s.Name)
		if !ok {
			if s.Required {
				return missingKey(section, s.Name)
			}
			raw = s.Default
			d.logger.Debug("default filled",
				logging.String(logging.FieldSection, section),
				logging.String(logging.FieldKey, s.Name),
				logging.String("value", raw),
			)
		} else {
			d.cfg.explicit[section+"."+s.Name] = struct{}{}
		}
		if err := s.assign(d.cfg, raw); err != nil {
			var ce *Error
			if errors.As(err, &ce) && ok {
				ce.Line = line
			}
			return err
		}
	}

	if section != SectionTrain {
		return nil
	}
	sec, ok := d.doc.Section(section)
	if !ok {
		return nil
	}
	names := make([]string, len(schema))
	for i, s := range schema {
		names[i] = s.Name
	}
	for _, e := range sec.Entries() {
		if contains(names, e.Key) {
			continue
		}
		attrs := []logging.Attr{logging.String(logging.FieldKey, e.Key), logging.Int("line", e.Line)}
		if s := suggest(names, e.Key); s != "" {
			attrs = append(attrs, logging.String("suggestion", s))
		}
		d.logger.Warn("ignoring unknown [train] key", logging.Args(attrs...)...)
	}
	return nil
}

func (d *decoder) modelOptions() {
	sec, ok := d.doc.Section(SectionModel)
	if !ok {
		return
	}
	for _, e := range sec.Entries() {
		if _, typed := Lookup(SectionModel, e.Key); typed {
			continue
		}
		raw := d.values[interp.Key{Section: SectionModel, Name: e.Key}]
		d.cfg.Model.Options = append(d.cfg.Model.Options, Option{Name: e.Key, Value: pyliteral.ParseLoose(raw)})
		d.cfg.explicit[SectionModel+"."+e.Key] = struct{}{}
	}
}

func (d *decoder) data() error {
	sec, ok := d.doc.Section(SectionData)
	if ok {
		for _, e := range sec.Entries() {
			raw := d.values[interp.Key{Section: SectionData, Name: e.Key}]
			d.cfg.explicit[SectionData+"."+e.Key] = struct{}{}
			if !strings.HasSuffix(e.Key, "_set") {
				d.cfg.Data.Vars = append(d.cfg.Data.Vars, Var{Name: e.Key, Value: strings.TrimSpace(raw)})
				continue
			}
			spec, err := parseDatasetSpec(e.Key, raw)
			if err != nil {
				err.Line = e.Line
				return err
			}
			d.cfg.Data.Splits = append(d.cfg.Data.Splits, spec)
		}
	}
	for _, required := range []string{"train_set", "val_set"} {
		if _, ok := d.cfg.Data.Split(required); !ok {
			return missingKey(SectionData, required)
		}
	}
	return nil
}

func parseDatasetSpec(split, raw string) (DatasetSpec, *Error) {
	v, err := pyliteral.Parse(raw)
	if err != nil {
		return DatasetSpec{}, &Error{Kind: ErrTypeCoercion, Section: SectionData, Key: split, Msg: err.Error(), Err: err}
	}
	if v.Kind != pyliteral.KindDict {
		return DatasetSpec{}, newError(ErrTypeCoercion, SectionData, split, "expected a dict of modality paths, got %s", v.Kind)
	}
	spec := DatasetSpec{Split: split}
	for _, p := range v.Pairs {
		if p.Value.Kind != pyliteral.KindString {
			return DatasetSpec{}, newError(ErrTypeCoercion, SectionData, split, "path of %q must be a string, got %s", p.Key, p.Value.Kind)
		}
		spec.Files = append(spec.Files, Modality{Key: p.Key, Path: p.Value.Str})
	}
	if len(spec.Files) == 0 {
		return DatasetSpec{}, newError(ErrTypeCoercion, SectionData, split, "no modalities listed")
	}
	return spec, nil
}

func (d *decoder) vocabulary() {
	sec, ok := d.doc.Section(SectionVocabulary)
	if !ok {
		return
	}
	for _, e := range sec.Entries() {
		raw := d.values[interp.Key{Section: SectionVocabulary, Name: e.Key}]
		d.cfg.Vocabulary = append(d.cfg.Vocabulary, Modality{Key: e.Key, Path: unquote(strings.TrimSpace(raw))})
		d.cfg.explicit[SectionVocabulary+"."+e.Key] = struct{}{}
	}
}
