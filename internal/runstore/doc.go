// Package runstore keeps a SQLite registry of prepared training runs.
//
// Each row links a run ID to the snapshot written into its run directory,
// the experiment it came from and a few fields useful for listing runs
// (model type, early-stopping metric, device request). Writes retry briefly
// when another process holds the database.
package runstore
