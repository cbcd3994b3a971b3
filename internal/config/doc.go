// Package config loads, resolves, and validates experiment files for the
// multimodal translation trainer.
//
// An experiment file is an INI-like document with [train], [model], [data]
// and [vocabulary] sections. Load reads it once, applies command-line style
// overrides, substitutes ${name} and ${section:name} references, coerces
// every [train] and [model] setting through the schema (filling documented
// defaults), normalizes paths, and validates cross-field constraints. The
// resulting Config is treated as immutable for the rest of the run.
//
// Failures are *Error values classified by the ErrSyntax, ErrMissingKey,
// ErrTypeCoercion, ErrUnresolvedReference, ErrUnknownEnum and ErrConstraint
// sentinels; match them with errors.Is. Nothing is retried and no partially
// valid Config is ever returned.
package config
