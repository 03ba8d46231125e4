package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/user/tally/internal/config"
	"github.com/user/tally/internal/model"
	"github.com/user/tally/internal/remote"
	"github.com/user/tally/internal/storage"
	"github.com/user/tally/internal/sync"
)

const (
	// DefaultPIDFile is the default name for the PID file.
	DefaultPIDFile = "daemon.pid"
	// DefaultLogFile is the default name for the log file.
	DefaultLogFile = "daemon.log"
	// DefaultStatusFile is the default name for the status file.
	DefaultStatusFile = "daemon.status"
)

// Status represents the current state of the daemon.
type Status struct {
	Running        bool      `json:"running"`
	PID            int       `json:"pid,omitempty"`
	StartTime      time.Time `json:"start_time,omitempty"`
	UptimeSeconds  int64     `json:"uptime_seconds,omitempty"`
	LastSync       time.Time `json:"last_sync,omitempty"`
	ModulesWatched int       `json:"modules_watched,omitempty"`
}

// Daemon manages the background sync process for one data directory.
type Daemon struct {
	dataDir    string
	pid        PIDFile
	logFile    string
	statusFile string
}

// New creates a daemon manager rooted at the data directory.
func New(dataDir string) *Daemon {
	return &Daemon{
		dataDir:    dataDir,
		pid:        NewPIDFile(filepath.Join(dataDir, DefaultPIDFile)),
		logFile:    filepath.Join(dataDir, DefaultLogFile),
		statusFile: filepath.Join(dataDir, DefaultStatusFile),
	}
}

// PIDFile returns the path to the PID file.
func (d *Daemon) PIDFile() string {
	return d.pid.Path()
}

// LogFile returns the path to the log file.
func (d *Daemon) LogFile() string {
	return d.logFile
}

// IsRunning checks if the daemon is currently running.
// Returns (running, pid).
func (d *Daemon) IsRunning() (bool, int) {
	pid, ok := d.pid.Alive()
	if !ok {
		return false, 0
	}
	return true, pid
}

// Start launches the daemon process in the background.
// Returns nil if already running (idempotent).
func (d *Daemon) Start() error {
	if running, _ := d.IsRunning(); running {
		return nil
	}

	if err := os.MkdirAll(d.dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("getting executable path: %w", err)
	}

	cmd := exec.Command(execPath, "daemon", "run", "--data-dir", d.dataDir)
	cmd.Dir = d.dataDir
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting daemon process: %w", err)
	}

	pid := cmd.Process.Pid
	if err := d.pid.Write(pid); err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("writing pid file: %w", err)
	}

	_ = d.writeStatus(&Status{Running: true, PID: pid, StartTime: time.Now()})
	return nil
}

// Stop stops the daemon gracefully.
// Returns nil if not running (idempotent).
func (d *Daemon) Stop() error {
	running, pid := d.IsRunning()
	if !running {
		_ = d.pid.Remove()
		return nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		_ = d.pid.Remove()
		return nil
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		_ = d.pid.Remove()
		return nil
	}

	// Wait up to 5 seconds for a clean exit, then force kill.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !processRunning(pid) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if processRunning(pid) {
		_ = process.Kill()
	}

	if err := d.pid.Remove(); err != nil {
		return fmt.Errorf("removing pid file: %w", err)
	}
	_ = os.Remove(d.statusFile)

	return nil
}

// Restart stops and starts the daemon.
func (d *Daemon) Restart() error {
	if err := d.Stop(); err != nil {
		return fmt.Errorf("stopping daemon: %w", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := d.Start(); err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}
	return nil
}

// GetStatus returns the current daemon status.
func (d *Daemon) GetStatus() (*Status, error) {
	running, pid := d.IsRunning()
	if !running {
		return &Status{Running: false}, nil
	}

	status, err := d.readStatus()
	if err != nil {
		return &Status{Running: true, PID: pid}, nil
	}

	status.Running = true
	status.PID = pid
	if !status.StartTime.IsZero() {
		status.UptimeSeconds = int64(time.Since(status.StartTime).Seconds())
	}

	return status, nil
}

// UpdateStatus refreshes the status file from inside the daemon process.
func (d *Daemon) UpdateStatus(lastSync time.Time, modulesWatched int) error {
	status, err := d.readStatus()
	if err != nil {
		status = &Status{Running: true, StartTime: time.Now()}
	}

	status.LastSync = lastSync
	status.ModulesWatched = modulesWatched

	return d.writeStatus(status)
}

func (d *Daemon) readStatus() (*Status, error) {
	data, err := os.ReadFile(d.statusFile)
	if err != nil {
		return nil, err
	}

	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (d *Daemon) writeStatus(status *Status) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return os.WriteFile(d.statusFile, data, 0644)
}

// RunForeground runs the sync loop in the current process until SIGTERM
// or SIGINT: it watches the data directory, debounces changes through
// the coordinator, keeps the query cache fresh, and optionally runs a
// periodic full sync.
func (d *Daemon) RunForeground(cfg *config.Config) error {
	logger := log.New(&lumberjack.Logger{
		Filename:   d.logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
	}, "", log.LstdFlags)
	logf := logger.Printf

	store, err := storage.NewTableStore(cfg.DataDir, logf, storage.WithRetention(cfg.BackupRetention))
	if err != nil {
		return fmt.Errorf("opening table store: %w", err)
	}
	if err := store.EnsureModules(cfg.Modules...); err != nil {
		return fmt.Errorf("creating module directories: %w", err)
	}

	cache, err := storage.OpenCache(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening query cache: %w", err)
	}
	defer cache.Close()

	var client remote.Client
	if cfg.RemoteEndpoint != "" {
		client = remote.NewHTTPClient(cfg.RemoteEndpoint, cfg.RemoteToken)
	} else {
		logf("No remote endpoint configured, running offline")
		client = remote.NewMemoryClient()
	}

	meta := sync.NewMetadataStore(cfg.DataDir)
	coord := sync.NewCoordinator(store, client, meta,
		sync.WithDebounce(time.Duration(cfg.DebounceSeconds*float64(time.Second))),
		sync.WithLogger(sync.LogFunc(logf)),
	)
	defer coord.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go coord.Run(ctx)

	// External edits arrive through fsnotify; the coordinator's own
	// writes arrive through the store's change feed inside Run. Both
	// paths also refresh the query cache for the changed table.
	watcher, err := NewWatcher(cfg.DataDir, func(key model.TableKey) {
		coord.NotifyChanged(key)
		if err := cache.Rebuild(store.Read(key, nil)); err != nil {
			logf("Warning: cache rebuild failed for %s: %v", key, err)
		}
	}, logf)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	if err := d.pid.Write(os.Getpid()); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	defer d.pid.Remove()
	_ = d.writeStatus(&Status{
		Running:        true,
		PID:            os.Getpid(),
		StartTime:      time.Now(),
		ModulesWatched: watcher.ModuleCount(),
	})
	defer os.Remove(d.statusFile)

	var ticker *time.Ticker
	var tick <-chan time.Time
	if cfg.AutoSyncMinutes > 0 {
		ticker = time.NewTicker(time.Duration(cfg.AutoSyncMinutes) * time.Minute)
		tick = ticker.C
		defer ticker.Stop()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	logf("Daemon started, watching %s (%d modules)", cfg.DataDir, watcher.ModuleCount())

	for {
		select {
		case sig := <-sigChan:
			logf("Received %v, shutting down", sig)
			return nil
		case <-tick:
			logf("Periodic sync starting")
			if err := coord.SyncAll(ctx, false); err != nil {
				logf("Periodic sync: %v", err)
			}
			_ = d.UpdateStatus(time.Now(), watcher.ModuleCount())
		case ev := <-coord.Events():
			if ev.Kind != sync.EventSynced {
				logf("Sync %s for %s: %s", ev.Kind, ev.Key, ev.Message)
			}
			_ = d.UpdateStatus(time.Now(), watcher.ModuleCount())
		}
	}
}
