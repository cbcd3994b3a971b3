package ini

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrSyntax marks malformed documents.
var ErrSyntax = errors.New("ini syntax error")

// SyntaxError reports a malformed line.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("(line %d): %s", e.Line, e.Msg)
	}
	return e.Msg
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

const maxLineBytes = 1 << 20

// Parse reads a document. Entries before the first header are placed in
// defaultSection.
func Parse(r io.Reader, defaultSection string) (*Document, error) {
	doc := NewDocument()

	tr := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	scanner := bufio.NewScanner(transform.NewReader(r, tr))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		current *Section
		lastKey string
		blanks  int
		lineNo  int
	)
	sectionFor := func() *Section {
		if current == nil {
			current = doc.Ensure(defaultSection)
		}
		return current
	}

	for scanner.Scan() {
		lineNo++
		raw := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(raw)

		// Blank lines stay part of a value when an indented line follows.
		if trimmed == "" {
			if lastKey != "" {
				blanks++
			}
			continue
		}
		if trimmed[0] == '#' || trimmed[0] == ';' {
			continue
		}

		if isIndented(raw) && lastKey != "" {
			sec := sectionFor()
			entry, _ := sec.entries.Get(lastKey)
			part := stripInlineComment(trimmed)
			if part == "" {
				continue
			}
			if entry.Value == "" {
				entry.Value = part
			} else {
				entry.Value += strings.Repeat("\n", blanks+1) + part
			}
			blanks = 0
			sec.entries.Set(lastKey, entry)
			continue
		}
		blanks = 0

		line := stripInlineComment(trimmed)
		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return nil, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("unterminated section header %q", line)}
			}
			name := NormalizeName(line[1 : len(line)-1])
			if name == "" {
				return nil, &SyntaxError{Line: lineNo, Msg: "empty section name"}
			}
			if existing, ok := doc.sections.Get(name); ok && existing.Line > 0 {
				return nil, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("section [%s] already defined on line %d", name, existing.Line)}
			} else if ok {
				// Implicit default section promoted by an explicit header.
				existing.Line = lineNo
				current = existing
			} else {
				current = newSection(name, lineNo)
				doc.sections.Set(name, current)
			}
			lastKey = ""
			continue
		}

		idx := strings.IndexAny(line, ":=")
		if idx < 0 {
			return nil, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("expected 'key: value' or 'key = value', got %q", line)}
		}
		key := NormalizeName(line[:idx])
		if key == "" {
			return nil, &SyntaxError{Line: lineNo, Msg: "empty key"}
		}
		sec := sectionFor()
		if prev, ok := sec.entries.Get(key); ok {
			return nil, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("key %q in [%s] already defined on line %d", key, sec.Name, prev.Line)}
		}
		sec.entries.Set(key, Entry{Key: key, Value: strings.TrimSpace(line[idx+1:]), Line: lineNo})
		lastKey = key
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return doc, nil
}

func isIndented(line string) bool {
	return line != "" && (line[0] == ' ' || line[0] == '\t')
}

// stripInlineComment drops a trailing comment introduced by whitespace + '#'
// outside of quoted text.
func stripInlineComment(s string) string {
	if idx := inlineCommentIndex(s); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}

func inlineCommentIndex(s string) int {
	var quote byte
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '#':
			if i > 0 && (s[i-1] == ' ' || s[i-1] == '\t') {
				return i
			}
		}
	}
	return -1
}
