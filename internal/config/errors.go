package config

import (
	"errors"
	"fmt"
	"strings"
)

// Error classes. Every load or validation failure wraps exactly one of them.
var (
	ErrSyntax              = errors.New("syntax error")
	ErrMissingKey          = errors.New("missing required key")
	ErrTypeCoercion        = errors.New("type mismatch")
	ErrUnresolvedReference = errors.New("unresolved variable reference")
	ErrUnknownEnum         = errors.New("unknown value")
	ErrConstraint          = errors.New("constraint violation")
)

// Error is a classified configuration failure.
type Error struct {
	Kind    error
	Section string
	Key     string
	Line    int
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	if e.Section != "" || e.Key != "" {
		sb.WriteString(": ")
		if e.Section != "" {
			fmt.Fprintf(&sb, "[%s]", e.Section)
		}
		if e.Key != "" {
			if e.Section != "" {
				sb.WriteByte(' ')
			}
			sb.WriteString(e.Key)
		}
	}
	if e.Line > 0 {
		fmt.Fprintf(&sb, " (line %d)", e.Line)
	}
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	return sb.String()
}

// Unwrap exposes both the class sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, section, key, format string, args ...any) *Error {
	return &Error{Kind: kind, Section: section, Key: key, Msg: fmt.Sprintf(format, args...)}
}

func missingKey(section, key string) *Error {
	return &Error{Kind: ErrMissingKey, Section: section, Key: key}
}

func constraint(section, key, format string, args ...any) *Error {
	return newError(ErrConstraint, section, key, format, args...)
}
