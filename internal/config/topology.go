package config

import (
	"fmt"
	"strings"
)

// Data types a stream can be read as. Textual types need a vocabulary.
var streamTypes = []string{"Text", "Numpy", "NumpySequence", "ImageFolder", "Kaldi", "Shelve", "Label"}

// Stream is one input or output modality of a model.
type Stream struct {
	ID   string
	Type string
}

// Textual reports whether the stream is tokenized against a vocabulary.
func (s Stream) Textual() bool {
	return s.Type == "Text" || s.Type == "Label"
}

func (s Stream) String() string {
	return s.ID + ":" + s.Type
}

// Topology is the parsed model direction, e.g.
// "en:Text, image:Numpy -> de:Text".
type Topology struct {
	Sources []Stream
	Targets []Stream
}

// ParseTopology parses "src[:Type], ... -> trg[:Type], ...". Omitted types
// default to Text.
func ParseTopology(raw string) (Topology, error) {
	left, right, ok := strings.Cut(raw, "->")
	if !ok {
		return Topology{}, fmt.Errorf("%q: expected 'sources -> targets'", raw)
	}
	if strings.Contains(right, "->") {
		return Topology{}, fmt.Errorf("%q: more than one '->'", raw)
	}
	srcs, err := parseStreams(left)
	if err != nil {
		return Topology{}, fmt.Errorf("%q: sources: %w", raw, err)
	}
	trgs, err := parseStreams(right)
	if err != nil {
		return Topology{}, fmt.Errorf("%q: targets: %w", raw, err)
	}
	return Topology{Sources: srcs, Targets: trgs}, nil
}

func parseStreams(raw string) ([]Stream, error) {
	var out []Stream
	seen := map[string]struct{}{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, typ, hasType := strings.Cut(part, ":")
		id = strings.TrimSpace(id)
		if !validStreamID(id) {
			return nil, fmt.Errorf("invalid stream id %q", id)
		}
		stream := Stream{ID: id, Type: "Text"}
		if hasType {
			canonical, ok := matchChoice(streamTypes, strings.TrimSpace(typ))
			if !ok {
				msg := fmt.Sprintf("unknown data type %q for %s", strings.TrimSpace(typ), id)
				if s := suggest(streamTypes, typ); s != "" {
					msg += fmt.Sprintf(" (did you mean %q?)", s)
				}
				return nil, fmt.Errorf("%s", msg)
			}
			stream.Type = canonical
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("stream %q listed twice", id)
		}
		seen[id] = struct{}{}
		out = append(out, stream)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no streams")
	}
	return out, nil
}

func validStreamID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if !(r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

// Streams returns sources followed by targets.
func (t Topology) Streams() []Stream {
	out := make([]Stream, 0, len(t.Sources)+len(t.Targets))
	out = append(out, t.Sources...)
	return append(out, t.Targets...)
}

// FirstTarget is the stream decoded by single-output search.
func (t Topology) FirstTarget() (Stream, bool) {
	if len(t.Targets) == 0 {
		return Stream{}, false
	}
	return t.Targets[0], true
}

// IsZero reports whether no direction was set.
func (t Topology) IsZero() bool {
	return len(t.Sources) == 0 && len(t.Targets) == 0
}

func (t Topology) String() string {
	join := func(streams []Stream) string {
		parts := make([]string, len(streams))
		for i, s := range streams {
			parts[i] = s.String()
		}
		return strings.Join(parts, ", ")
	}
	return join(t.Sources) + " -> " + join(t.Targets)
}

// MarshalText renders the canonical direction string.
func (t Topology) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a direction string.
func (t *Topology) UnmarshalText(text []byte) error {
	parsed, err := ParseTopology(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
