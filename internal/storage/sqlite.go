package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/user/tally/internal/model"
)

// Cache provides a SQLite mirror of the CSV tables for fast queries.
// The CSV files remain the source of truth; the cache is rebuilt from
// them whenever a table changes and can be discarded at any time.
type Cache struct {
	db     *sql.DB
	dbPath string
}

// OpenCache opens (or creates) the query cache under the data dir.
func OpenCache(dataDir string) (*Cache, error) {
	dbPath := filepath.Join(dataDir, "cache.db")

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	return &Cache{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// cacheTableName converts a table key to a safe SQLite identifier.
func cacheTableName(key model.TableKey) string {
	name := key.Module + "_" + strings.TrimSuffix(key.File, filepath.Ext(key.File))
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, ".", "_")
	return name
}

// Rebuild replaces the cached copy of one table with the given
// contents. All columns are stored as TEXT; typed interpretation stays
// with the CSV layer.
func (c *Cache) Rebuild(tbl *model.Table) error {
	tableName := cacheTableName(tbl.Key)

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, tableName)); err != nil {
		return fmt.Errorf("failed to drop cache table: %w", err)
	}

	if len(tbl.Columns) == 0 {
		return tx.Commit()
	}

	cols := make([]string, len(tbl.Columns))
	for i, col := range tbl.Columns {
		cols[i] = fmt.Sprintf(`"%s" TEXT`, col)
	}
	createSQL := fmt.Sprintf(`CREATE TABLE "%s" (%s)`, tableName, strings.Join(cols, ", "))
	if _, err := tx.Exec(createSQL); err != nil {
		return fmt.Errorf("failed to create cache table: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(tbl.Columns)), ", ")
	quoted := make([]string, len(tbl.Columns))
	for i, col := range tbl.Columns {
		quoted[i] = fmt.Sprintf(`"%s"`, col)
	}
	insertSQL := fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s)`,
		tableName, strings.Join(quoted, ", "), placeholders)

	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]interface{}, len(tbl.Columns))
	for _, rec := range tbl.Records {
		for i, col := range tbl.Columns {
			args[i] = model.FormatValue(rec[col])
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("failed to insert cached row: %w", err)
		}
	}

	return tx.Commit()
}

// Count returns the number of cached rows for a table.
// Returns 0 for a table that has never been cached.
func (c *Cache) Count(key model.TableKey) (int, error) {
	tableName := cacheTableName(key)

	var count int
	err := c.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, tableName)).Scan(&count)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count cached rows: %w", err)
	}
	return count, nil
}

// Query executes a raw SQL SELECT against the cache.
// Returns rows as a slice of maps plus the column names in order.
func (c *Cache) Query(query string) ([]map[string]interface{}, []string, error) {
	trimmed := strings.TrimSpace(strings.ToUpper(query))
	if !strings.HasPrefix(trimmed, "SELECT") {
		return nil, nil, fmt.Errorf("only SELECT queries are allowed")
	}

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var results []map[string]interface{}
	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}

	return results, columns, rows.Err()
}
