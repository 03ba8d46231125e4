// Package config loads tally configuration from config.yaml in the
// data directory, writing a commented default file on first run.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyDataDir         = "data_dir"
	cfgKeyRemoteEndpoint  = "remote.endpoint"
	cfgKeyRemoteToken     = "remote.token"
	cfgKeyDebounceSeconds = "sync.debounce_seconds"
	cfgKeyAutoSyncMinutes = "sync.auto_sync_minutes"
	cfgKeyBackupRetention = "backup.retention"
	cfgKeyModules         = "modules"

	defaultDebounceSeconds = 2.0
	defaultAutoSyncMinutes = 0
	defaultBackupRetention = 5
)

// DefaultModules are the module directories created on first run.
var DefaultModules = []string{"expenses", "habits", "goals", "notes"}

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# tally configuration

# Remote sync backend. Leave endpoint empty to stay offline.
remote:
  endpoint: ""
  token: ""

sync:
  # Quiet window after a change before syncing, in seconds.
  debounce_seconds: 2
  # Periodic full sync interval in minutes; 0 disables it.
  auto_sync_minutes: 0

backup:
  # Backups kept per table.
  retention: 5

# Module directories created under the data dir.
modules:
  - expenses
  - habits
  - goals
  - notes
`

// Config is the resolved tally configuration.
type Config struct {
	DataDir         string
	RemoteEndpoint  string
	RemoteToken     string
	DebounceSeconds float64
	AutoSyncMinutes int
	BackupRetention int
	Modules         []string
}

// DefaultDataDir returns ~/.tally, falling back to ./.tally when the
// home directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tally"
	}
	return filepath.Join(home, ".tally")
}

// Load reads config.yaml from dataDir, creating the directory and a
// default config file on first run. A missing config file is not an
// error; defaults apply.
func Load(dataDir string) (*Config, error) {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	if err := ensureDefaultConfigFile(dataDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyDebounceSeconds, defaultDebounceSeconds)
	v.SetDefault(cfgKeyAutoSyncMinutes, defaultAutoSyncMinutes)
	v.SetDefault(cfgKeyBackupRetention, defaultBackupRetention)
	v.SetDefault(cfgKeyModules, DefaultModules)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(dataDir)

	v.SetEnvPrefix("TALLY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		DataDir:         dataDir,
		RemoteEndpoint:  v.GetString(cfgKeyRemoteEndpoint),
		RemoteToken:     v.GetString(cfgKeyRemoteToken),
		DebounceSeconds: v.GetFloat64(cfgKeyDebounceSeconds),
		AutoSyncMinutes: v.GetInt(cfgKeyAutoSyncMinutes),
		BackupRetention: v.GetInt(cfgKeyBackupRetention),
		Modules:         v.GetStringSlice(cfgKeyModules),
	}

	if cfg.DebounceSeconds <= 0 {
		cfg.DebounceSeconds = defaultDebounceSeconds
	}
	if cfg.BackupRetention <= 0 {
		cfg.BackupRetention = defaultBackupRetention
	}

	return cfg, nil
}

// ensureDefaultConfigFile creates a commented config.yaml if absent.
func ensureDefaultConfigFile(dataDir string) error {
	path := filepath.Join(dataDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
