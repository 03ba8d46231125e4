package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/tally/internal/model"
	"github.com/user/tally/internal/storage"
)

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run a SQL SELECT over the query cache",
	Long: `Run an ad-hoc SQL SELECT against the SQLite query cache. Cached
table names are <module>_<table>, e.g. expenses_expenses. The cache is
rebuilt from the CSV files before the query runs, so results always
reflect the current files.

Only SELECT statements are allowed; the CSV files stay the source of
truth.

Examples:
  tally query "SELECT category, SUM(amount) FROM expenses_expenses GROUP BY category"
  tally query "SELECT * FROM habits_habits WHERE is_active = 'true'"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	cache, err := storage.OpenCache(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open query cache: %w", err)
	}
	defer cache.Close()

	// Refresh the cache from the live files before querying.
	for _, module := range store.ListModules() {
		for _, key := range store.ListTables(module) {
			if err := cache.Rebuild(store.Read(key, nil)); err != nil {
				return fmt.Errorf("failed to rebuild cache for %s: %w", key, err)
			}
		}
	}

	rows, columns, err := cache.Query(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		Exit(1)
		return nil
	}

	if GetJSONOutput() {
		return printJSON(map[string]interface{}{"columns": columns, "rows": rows})
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for i, col := range columns {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, col)
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		for i, col := range columns {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprint(w, model.FormatValue(row[col]))
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if !IsQuiet() {
		fmt.Printf("%d row(s)\n", len(rows))
	}
	return nil
}
