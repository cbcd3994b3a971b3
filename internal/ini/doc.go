// Package ini reads and writes the INI-like experiment files consumed by the
// training harness.
//
// A document is an ordered list of sections, each holding ordered raw
// key/value entries. Keys may be separated from values by ':' or '=', '#'
// starts a comment (anywhere on a line when preceded by whitespace and not
// inside quotes), ';' starts a full-line comment, and indented lines continue
// the previous value. Keys that appear before the first section header land in
// the caller-supplied default section. Keys and section names are lower-cased.
//
// The package does not interpret values: variable references, Python literals
// and typed settings are handled by the interp, pyliteral and config packages.
package ini
