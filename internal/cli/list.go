package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/tally/internal/model"
)

var listCmd = &cobra.Command{
	Use:   "list [module [table]]",
	Short: "List modules, tables, or records",
	Long: `List the contents of the data directory at three levels:

  tally list                    all module directories
  tally list expenses           all tables in a module
  tally list expenses expenses  all records in a table

Examples:
  tally list
  tally list expenses
  tally list expenses expenses --json`,
	Args: cobra.MaximumNArgs(2),
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	switch len(args) {
	case 0:
		modules := store.ListModules()
		if GetJSONOutput() {
			return printJSON(map[string]interface{}{"modules": modules})
		}
		for _, m := range modules {
			fmt.Println(m)
		}
		return nil

	case 1:
		if err := model.ValidateModuleName(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			Exit(2)
			return nil
		}
		keys := store.ListTables(args[0])
		if GetJSONOutput() {
			names := make([]string, 0, len(keys))
			for _, k := range keys {
				names = append(names, k.File)
			}
			return printJSON(map[string]interface{}{"module": args[0], "tables": names})
		}
		for _, k := range keys {
			fmt.Println(k.File)
		}
		return nil

	default:
		key, err := parseTableKey(args[0], args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			Exit(2)
			return nil
		}
		tbl := store.Read(key, nil)

		if GetJSONOutput() {
			return printJSON(map[string]interface{}{
				"table":   key.String(),
				"columns": tbl.Columns,
				"records": tbl.Records,
			})
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for i, col := range tbl.Columns {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprint(w, col)
		}
		fmt.Fprintln(w)
		for _, rec := range tbl.Records {
			for i, col := range tbl.Columns {
				if i > 0 {
					fmt.Fprint(w, "\t")
				}
				fmt.Fprint(w, model.FormatValue(rec[col]))
			}
			fmt.Fprintln(w)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if !IsQuiet() {
			fmt.Printf("%d record(s)\n", len(tbl.Records))
		}
		return nil
	}
}
