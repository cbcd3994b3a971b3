// Package logging assembles the slog loggers used by the mmtconf tools.
//
// New builds a console or JSON handler from Options. Console lines read
// "2006-01-02 15:04:05 INFO component: message key=value"; JSON records use
// ts, level and msg keys. NewNop and NewComponentLogger cover wiring code
// that must not fail, and the attribute helpers keep field names consistent
// across packages.
package logging
