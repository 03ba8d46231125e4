package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// BackupDirName is the sibling directory holding table snapshots.
	BackupDirName = ".backups"
	// DefaultRetention is the number of snapshots kept per table.
	DefaultRetention = 5
	// backupStampFormat qualifies snapshot filenames.
	backupStampFormat = "20060102_150405"
)

// BackupManager creates, rotates, and restores timestamped snapshots
// of table files. Snapshots live in a .backups directory next to the
// live file, named <stem>_<YYYYMMDD_HHMMSS><ext>.
type BackupManager struct {
	retention int
	logf      LogFunc
}

// NewBackupManager creates a backup manager with the given retention
// count. logFn can be nil for no logging.
func NewBackupManager(retention int, logFn LogFunc) *BackupManager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logFn == nil {
		logFn = noopLog
	}
	return &BackupManager{retention: retention, logf: logFn}
}

// Retention returns the snapshot retention count.
func (b *BackupManager) Retention() int {
	return b.retention
}

// Snapshot copies the live file into the backup area and evicts
// snapshots beyond the retention count, oldest first.
func (b *BackupManager) Snapshot(livePath string) error {
	backupDir := filepath.Join(filepath.Dir(livePath), BackupDirName)
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	stem, ext := splitStem(filepath.Base(livePath))
	stamp := time.Now().Format(backupStampFormat)
	backupPath := filepath.Join(backupDir, stem+"_"+stamp+ext)

	// Several writes within one second need distinct snapshot names.
	for n := 1; ; n++ {
		if _, err := os.Stat(backupPath); os.IsNotExist(err) {
			break
		}
		backupPath = filepath.Join(backupDir, fmt.Sprintf("%s_%s_%d%s", stem, stamp, n, ext))
	}

	if err := copyFile(livePath, backupPath); err != nil {
		return fmt.Errorf("failed to copy snapshot: %w", err)
	}
	b.logf("Created backup: %s", backupPath)

	b.prune(backupDir, stem, ext)
	return nil
}

// Restore copies the most recent snapshot (by modification time) back
// over the live file. Returns false if no snapshot exists.
func (b *BackupManager) Restore(livePath string) bool {
	latest := b.latest(livePath)
	if latest == "" {
		return false
	}

	if err := copyFile(latest, livePath); err != nil {
		b.logf("Failed to restore %s from %s: %v", livePath, latest, err)
		return false
	}

	b.logf("Restored %s from backup %s", livePath, latest)
	return true
}

// List returns snapshot paths for a table, newest first.
func (b *BackupManager) List(livePath string) []string {
	backupDir := filepath.Join(filepath.Dir(livePath), BackupDirName)
	stem, ext := splitStem(filepath.Base(livePath))

	snapshots := findSnapshots(backupDir, stem, ext)
	sortByModTime(snapshots)
	return snapshots
}

// latest returns the newest snapshot path, or "".
func (b *BackupManager) latest(livePath string) string {
	snapshots := b.List(livePath)
	if len(snapshots) == 0 {
		return ""
	}
	return snapshots[0]
}

// prune evicts snapshots beyond the retention count, oldest first.
func (b *BackupManager) prune(backupDir, stem, ext string) {
	snapshots := findSnapshots(backupDir, stem, ext)
	if len(snapshots) <= b.retention {
		return
	}

	sortByModTime(snapshots)
	for _, old := range snapshots[b.retention:] {
		if err := os.Remove(old); err != nil {
			b.logf("Failed to remove old backup %s: %v", old, err)
		} else {
			b.logf("Removed old backup: %s", old)
		}
	}
}

// findSnapshots globs the backup dir for a table's snapshot files.
func findSnapshots(backupDir, stem, ext string) []string {
	matches, err := filepath.Glob(filepath.Join(backupDir, stem+"_*"+ext))
	if err != nil {
		return nil
	}
	return matches
}

// sortByModTime orders paths newest first, breaking mtime ties by name
// so same-second snapshots stay deterministic.
func sortByModTime(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		ii, ierr := os.Stat(paths[i])
		ji, jerr := os.Stat(paths[j])
		if ierr != nil || jerr != nil {
			return paths[i] > paths[j]
		}
		if !ii.ModTime().Equal(ji.ModTime()) {
			return ii.ModTime().After(ji.ModTime())
		}
		return paths[i] > paths[j]
	})
}

// splitStem splits a filename into stem and extension.
func splitStem(name string) (string, string) {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// copyFile copies a file from src to dst, syncing before returning.
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	if _, err := dstFile.ReadFrom(srcFile); err != nil {
		os.Remove(dst)
		return err
	}

	return dstFile.Sync()
}
