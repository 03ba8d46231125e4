// Package storage provides persistent CSV-backed table storage for tally.
//
// Each module owns a directory under the data dir; each table within it
// is one CSV file with a header row of column names. All destructive
// writes go through an atomic temp-file-then-rename step guarded by the
// backup manager, so a crashed write never leaves a partial file behind.
package storage

// LogFunc is called to log messages. A nil LogFunc disables logging.
type LogFunc func(format string, args ...interface{})

func noopLog(format string, args ...interface{}) {}
