package export

import (
	"database/sql"
	"fmt"
)

// Schema version for tracking migrations
const SchemaVersion = 1

// CreateSchema creates all tables and indexes in the database.
func CreateSchema(db *sql.DB) error {
	if err := createCoreTables(db); err != nil {
		return fmt.Errorf("create core tables: %w", err)
	}
	if err := createPlanTables(db); err != nil {
		return fmt.Errorf("create plan tables: %w", err)
	}
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	if err := createMetaTable(db); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}
	return nil
}

// createCoreTables creates the issues and dependencies tables. These two are
// all a graph source needs; the datasource reader only queries them.
func createCoreTables(db *sql.DB) error {
	issuesSQL := `
		CREATE TABLE IF NOT EXISTS issues (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			priority TEXT NOT NULL,
			effort REAL NOT NULL,
			status TEXT NOT NULL,
			component_id TEXT,
			position INTEGER NOT NULL,
			group_index INTEGER,
			on_critical_path INTEGER NOT NULL DEFAULT 0,
			slack REAL
		)
	`
	if _, err := db.Exec(issuesSQL); err != nil {
		return fmt.Errorf("create issues table: %w", err)
	}

	depsSQL := `
		CREATE TABLE IF NOT EXISTS dependencies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			issue_id TEXT NOT NULL,
			depends_on_id TEXT NOT NULL,
			FOREIGN KEY (issue_id) REFERENCES issues(id),
			FOREIGN KEY (depends_on_id) REFERENCES issues(id)
		)
	`
	if _, err := db.Exec(depsSQL); err != nil {
		return fmt.Errorf("create dependencies table: %w", err)
	}
	return nil
}

// createPlanTables creates tables for derived results.
func createPlanTables(db *sql.DB) error {
	stmts := map[string]string{
		"parallel_groups": `
			CREATE TABLE IF NOT EXISTS parallel_groups (
				group_index INTEGER NOT NULL,
				position INTEGER NOT NULL,
				issue_id TEXT NOT NULL,
				PRIMARY KEY (group_index, position),
				FOREIGN KEY (issue_id) REFERENCES issues(id)
			)
		`,
		"critical_path": `
			CREATE TABLE IF NOT EXISTS critical_path (
				position INTEGER PRIMARY KEY,
				issue_id TEXT NOT NULL,
				FOREIGN KEY (issue_id) REFERENCES issues(id)
			)
		`,
		"statistics": `
			CREATE TABLE IF NOT EXISTS statistics (
				name TEXT PRIMARY KEY,
				value REAL NOT NULL
			)
		`,
	}
	for _, name := range []string{"parallel_groups", "critical_path", "statistics"} {
		if _, err := db.Exec(stmts[name]); err != nil {
			return fmt.Errorf("create %s table: %w", name, err)
		}
	}
	return nil
}

func createIndexes(db *sql.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status)`,
		`CREATE INDEX IF NOT EXISTS idx_issues_priority ON issues(priority)`,
		`CREATE INDEX IF NOT EXISTS idx_issues_group ON issues(group_index)`,
		`CREATE INDEX IF NOT EXISTS idx_deps_issue ON dependencies(issue_id)`,
		`CREATE INDEX IF NOT EXISTS idx_deps_depends_on ON dependencies(depends_on_id)`,
	}
	for _, stmt := range indexes {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func createMetaTable(db *sql.DB) error {
	metaSQL := `
		CREATE TABLE IF NOT EXISTS export_meta (
			key TEXT PRIMARY KEY,
			value TEXT
		)
	`
	if _, err := db.Exec(metaSQL); err != nil {
		return fmt.Errorf("create export_meta table: %w", err)
	}
	return nil
}

// OptimizeDatabase compacts the file. Call this as the final step before
// closing the database.
func OptimizeDatabase(db *sql.DB) error {
	for _, stmt := range []string{`PRAGMA journal_mode=DELETE`, `ANALYZE`, `PRAGMA optimize`} {
		// Some pragmas may fail depending on state, continue
		_, _ = db.Exec(stmt)
	}
	if _, err := db.Exec(`VACUUM`); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

// InsertMetaValue inserts or updates a metadata key-value pair.
func InsertMetaValue(db *sql.DB, key, value string) error {
	_, err := db.Exec(`INSERT OR REPLACE INTO export_meta (key, value) VALUES (?, ?)`, key, value)
	return err
}
