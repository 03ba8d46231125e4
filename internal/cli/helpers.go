package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/user/tally/internal/config"
	"github.com/user/tally/internal/model"
	"github.com/user/tally/internal/remote"
	"github.com/user/tally/internal/storage"
	"github.com/user/tally/internal/sync"
)

// loadConfig resolves the data directory from the --data-dir flag or
// $TALLY_DATA_DIR and loads the configuration under it.
func loadConfig() (*config.Config, error) {
	dataDir := dataDirFlag
	if dataDir == "" {
		dataDir = os.Getenv("TALLY_DATA_DIR")
	}
	return config.Load(dataDir)
}

// openStore creates a table store for the configured data directory.
func openStore(cfg *config.Config) (*storage.TableStore, error) {
	var logf storage.LogFunc
	if IsVerbose() {
		logf = func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}
	store, err := storage.NewTableStore(cfg.DataDir, logf, storage.WithRetention(cfg.BackupRetention))
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	return store, nil
}

// remoteClient returns the configured remote backend, or nil when no
// endpoint is configured.
func remoteClient(cfg *config.Config) remote.Client {
	if cfg.RemoteEndpoint == "" {
		return nil
	}
	return remote.NewHTTPClient(cfg.RemoteEndpoint, cfg.RemoteToken)
}

// newCoordinator wires a sync coordinator for one-shot CLI use.
func newCoordinator(cfg *config.Config, store *storage.TableStore, client remote.Client) *sync.Coordinator {
	var opts []sync.Option
	if IsVerbose() {
		opts = append(opts, sync.WithLogger(func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}))
	}
	return sync.NewCoordinator(store, client, sync.NewMetadataStore(cfg.DataDir), opts...)
}

// parseTableKey builds a table key from module and table arguments.
// The table name may omit the .csv extension.
func parseTableKey(module, table string) (model.TableKey, error) {
	if err := model.ValidateModuleName(module); err != nil {
		return model.TableKey{}, err
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return model.TableKey{}, fmt.Errorf("table name cannot be empty")
	}
	if !strings.HasSuffix(table, ".csv") {
		table += ".csv"
	}
	return model.TableKey{Module: module, File: table}, nil
}

// parseSetFlags converts repeated --set Field=Value flags to a record.
func parseSetFlags(flags []string) (model.Record, error) {
	rec := make(model.Record, len(flags))
	for _, flag := range flags {
		parts := strings.SplitN(flag, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --set format: %s (expected Field=Value)", flag)
		}
		field := strings.TrimSpace(parts[0])
		if field == "" {
			return nil, fmt.Errorf("invalid --set format: %s (empty field name)", flag)
		}
		rec[field] = strings.TrimSpace(parts[1])
	}
	return rec, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
