package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/user/tally/internal/model"
)

// changeBufferSize bounds the change notification channel. Sends are
// non-blocking; a full buffer drops the notification, and the next
// write re-notifies.
const changeBufferSize = 64

// TableStore persists tables as CSV files under a data directory.
type TableStore struct {
	dataDir string
	backups *BackupManager
	logf    LogFunc

	changes  chan model.TableKey
	notifyOn atomic.Bool
}

// StoreOption configures a TableStore.
type StoreOption func(*TableStore)

// WithRetention overrides the number of backups kept per table.
func WithRetention(n int) StoreOption {
	return func(s *TableStore) {
		s.backups = NewBackupManager(n, s.logf)
	}
}

// NewTableStore creates a table store rooted at dataDir.
// logFn can be nil for no logging.
func NewTableStore(dataDir string, logFn LogFunc, opts ...StoreOption) (*TableStore, error) {
	if logFn == nil {
		logFn = noopLog
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &TableStore{
		dataDir: dataDir,
		backups: NewBackupManager(DefaultRetention, logFn),
		logf:    logFn,
		changes: make(chan model.TableKey, changeBufferSize),
	}
	s.notifyOn.Store(true)

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// DataDir returns the root data directory.
func (s *TableStore) DataDir() string {
	return s.dataDir
}

// Backups returns the store's backup manager.
func (s *TableStore) Backups() *BackupManager {
	return s.backups
}

// Changes returns the channel on which table-changed events are
// emitted after every successful write.
func (s *TableStore) Changes() <-chan model.TableKey {
	return s.changes
}

// SetNotify enables or disables change notifications.
func (s *TableStore) SetNotify(enabled bool) {
	s.notifyOn.Store(enabled)
}

// Path returns the backing file path for a table.
func (s *TableStore) Path(key model.TableKey) string {
	return filepath.Join(s.dataDir, key.Module, key.File)
}

// EnsureModules creates the per-module directories.
func (s *TableStore) EnsureModules(modules ...string) error {
	for _, module := range modules {
		if err := os.MkdirAll(filepath.Join(s.dataDir, module), 0755); err != nil {
			return fmt.Errorf("failed to create module directory %s: %w", module, err)
		}
	}
	return nil
}

// ListModules returns the module directory names under the data dir.
func (s *TableStore) ListModules() []string {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil
	}

	var modules []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			modules = append(modules, entry.Name())
		}
	}
	return modules
}

// ListTables returns the table keys for every CSV file in a module.
func (s *TableStore) ListTables(module string) []model.TableKey {
	entries, err := os.ReadDir(filepath.Join(s.dataDir, module))
	if err != nil {
		return nil
	}

	var keys []model.TableKey
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		keys = append(keys, model.TableKey{Module: module, File: entry.Name()})
	}
	return keys
}

// Read returns all records of a table. A missing, empty, or corrupt
// file degrades to an empty table carrying the given canonical columns;
// corruption never surfaces to the caller.
func (s *TableStore) Read(key model.TableKey, defaultColumns []string) *model.Table {
	path := s.Path(key)

	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return model.NewTable(key, defaultColumns)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.logf("Error reading %s: %v", key, err)
		return model.NewTable(key, defaultColumns)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil || len(rows) == 0 {
		s.logf("Warning: %s is corrupt, treating as empty: %v", key, err)
		return model.NewTable(key, defaultColumns)
	}

	tbl := model.NewTable(key, rows[0])
	for _, col := range defaultColumns {
		tbl.AddColumn(col)
	}

	for _, row := range rows[1:] {
		rec := make(model.Record, len(rows[0]))
		for i, col := range rows[0] {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		tbl.Records = append(tbl.Records, rec)
	}

	return tbl
}

// Append adds a record to a table and persists it. A missing or invalid
// id is assigned as max(existing)+1; a colliding user-supplied id is
// silently reassigned. created_at/updated_at are stamped when those
// columns belong to the table's schema. Returns the stored record.
func (s *TableStore) Append(key model.TableKey, rec model.Record, defaultColumns []string) (model.Record, error) {
	tbl := s.Read(key, defaultColumns)
	tbl.AddColumn(model.IDColumn)

	// Fold any novel fields into the canonical column set.
	var extra []string
	for field := range rec {
		if !tbl.HasColumn(field) {
			extra = append(extra, field)
		}
	}
	sort.Strings(extra)
	for _, col := range extra {
		tbl.AddColumn(col)
	}

	cleaned := model.CleanRecord(rec, tbl.Columns)

	id, ok := cleaned.ID()
	if !ok || id <= 0 || tbl.FindByID(id) >= 0 {
		cleaned.SetID(tbl.NextID())
	}

	now := time.Now().Format(model.TimestampFormat)
	if tbl.HasColumn("created_at") {
		if _, ok := rec["created_at"]; !ok {
			cleaned["created_at"] = now
		}
	}
	if tbl.HasColumn("updated_at") {
		if _, ok := rec["updated_at"]; !ok {
			cleaned["updated_at"] = now
		}
	}

	tbl.Records = append(tbl.Records, cleaned)

	if err := s.Write(key, tbl); err != nil {
		return nil, err
	}
	return cleaned, nil
}

// Update applies a patch to the record with the given id, leaving
// other fields untouched. Returns model.ErrRecordNotFound when absent.
func (s *TableStore) Update(key model.TableKey, id int64, patch model.Record) error {
	tbl := s.Read(key, nil)

	idx := tbl.FindByID(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s id=%d", model.ErrRecordNotFound, key, id)
	}

	rec := tbl.Records[idx]
	for field, value := range patch {
		if field == model.IDColumn {
			continue
		}
		tbl.AddColumn(field)
		rec[field] = model.CleanValue(field, value)
	}
	if tbl.HasColumn("updated_at") {
		rec["updated_at"] = time.Now().Format(model.TimestampFormat)
	}

	return s.Write(key, tbl)
}

// Delete removes the record with the given id.
// Returns model.ErrRecordNotFound when absent.
func (s *TableStore) Delete(key model.TableKey, id int64) error {
	tbl := s.Read(key, nil)

	idx := tbl.FindByID(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s id=%d", model.ErrRecordNotFound, key, id)
	}

	tbl.Records = append(tbl.Records[:idx], tbl.Records[idx+1:]...)
	return s.Write(key, tbl)
}

// Write persists the full record set atomically: serialize to a temp
// file, verify it is non-empty, snapshot the live file, then rename the
// temp file into place. A failure after the snapshot restores the
// last-good state from backup.
func (s *TableStore) Write(key model.TableKey, tbl *model.Table) error {
	path := s.Path(key)
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create module directory: %w", err)
	}

	data, err := EncodeTable(tbl)
	if err != nil {
		return fmt.Errorf("failed to encode table %s: %w", key, err)
	}

	tmpFile, err := os.CreateTemp(dir, key.File+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	info, err := os.Stat(tmpPath)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("%w: %s", model.ErrEmptyTempFile, key)
	}

	// Snapshot the live file before replacing it.
	backedUp := false
	if _, err := os.Stat(path); err == nil {
		if err := s.backups.Snapshot(path); err != nil {
			s.logf("Warning: backup failed for %s: %v", key, err)
		} else {
			backedUp = true
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		if backedUp {
			s.backups.Restore(path)
		}
		return fmt.Errorf("failed to replace table file: %w", err)
	}

	s.logf("Wrote %d records to %s", len(tbl.Records), key)
	s.notifyChanged(key)
	return nil
}

// notifyChanged emits a table-changed event without blocking the writer.
func (s *TableStore) notifyChanged(key model.TableKey) {
	if !s.notifyOn.Load() {
		return
	}
	select {
	case s.changes <- key:
	default:
		s.logf("Change notification dropped for %s (channel full)", key)
	}
}

// EncodeTable serializes a table to its canonical CSV form: a header
// row of column names and one row per record, fields ordered by the
// column set.
func EncodeTable(tbl *model.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(tbl.Columns); err != nil {
		return nil, err
	}
	row := make([]string, len(tbl.Columns))
	for _, rec := range tbl.Records {
		for i, col := range tbl.Columns {
			row[i] = model.FormatValue(rec[col])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
