// Package preflight checks that the files and directories named by an
// experiment are usable before a training run starts.
//
// RunAll walks every dataset split, every vocabulary and the output
// directories. Each check yields a Result; a failed check never stops the
// remaining ones, so callers see the whole picture in one pass.
package preflight
