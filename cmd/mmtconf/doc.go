// Package main hosts the mmtconf CLI.
//
// The Cobra command tree loads experiment files through internal/config and
// surfaces validation, inspection, export, filesystem preflight checks and
// run preparation. Configuration overrides, logging setup and the run
// registry location are resolved once in the command context so subcommands
// only deal with presentation.
package main
