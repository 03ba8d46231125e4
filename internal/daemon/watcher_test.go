package daemon

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/tally/internal/model"
)

type keyCollector struct {
	mu   sync.Mutex
	keys []model.TableKey
}

func (c *keyCollector) notify(key model.TableKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, key)
}

func (c *keyCollector) snapshot() []model.TableKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.TableKey(nil), c.keys...)
}

func (c *keyCollector) waitFor(t *testing.T, key model.TableKey) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, k := range c.snapshot() {
			if k == key {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for change notification for %s", key)
}

func TestWatcher_DetectsTableWrites(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "tally-watcher-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	moduleDir := filepath.Join(tmpDir, "expenses")
	require.NoError(t, os.MkdirAll(moduleDir, 0755))

	collector := &keyCollector{}
	watcher, err := NewWatcher(tmpDir, collector.notify, nil)
	require.NoError(t, err)
	require.NoError(t, watcher.Start())
	defer watcher.Close()

	// Give the watcher a moment to establish its watches.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(moduleDir, "expenses.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,amount\n1,5\n"), 0644))

	collector.waitFor(t, model.TableKey{Module: "expenses", File: "expenses.csv"})
}

func TestWatcher_DetectsNewModuleDirectories(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "tally-watcher-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	collector := &keyCollector{}
	watcher, err := NewWatcher(tmpDir, collector.notify, nil)
	require.NoError(t, err)
	require.NoError(t, watcher.Start())
	defer watcher.Close()

	time.Sleep(100 * time.Millisecond)

	// A module created after the watcher started is picked up too.
	moduleDir := filepath.Join(tmpDir, "habits")
	require.NoError(t, os.MkdirAll(moduleDir, 0755))
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(moduleDir, "habits.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name\n"), 0644))

	collector.waitFor(t, model.TableKey{Module: "habits", File: "habits.csv"})
}

func TestWatcher_IgnoresNoise(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "tally-watcher-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	moduleDir := filepath.Join(tmpDir, "expenses")
	require.NoError(t, os.MkdirAll(moduleDir, 0755))

	collector := &keyCollector{}
	watcher, err := NewWatcher(tmpDir, collector.notify, nil)
	require.NoError(t, err)
	require.NoError(t, watcher.Start())
	defer watcher.Close()

	time.Sleep(100 * time.Millisecond)

	// Temp files from atomic writes and non-CSV files are not tables.
	require.NoError(t, os.WriteFile(filepath.Join(moduleDir, "expenses.csv-123.tmp"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(moduleDir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "toplevel.csv"), []byte("x"), 0644))

	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, collector.snapshot())
}

func TestWatcher_ModuleCount(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "tally-watcher-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "expenses"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "habits"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, ".backups"), 0755))

	watcher, err := NewWatcher(tmpDir, func(model.TableKey) {}, nil)
	require.NoError(t, err)
	require.NoError(t, watcher.Start())
	defer watcher.Close()

	assert.Equal(t, 2, watcher.ModuleCount())
}
