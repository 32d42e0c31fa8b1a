package datasource

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/beadplan/pkg/model"
)

// SQLiteReader provides read access to an exported planner database
type SQLiteReader struct {
	db   *sql.DB
	path string
}

// NewSQLiteReader opens a SQLite database for reading
func NewSQLiteReader(source DataSource) (*SQLiteReader, error) {
	if source.Type != SourceTypeSQLite {
		return nil, fmt.Errorf("source is not SQLite: %s", source.Type)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", source.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	return &SQLiteReader{db: db, path: source.Path}, nil
}

// Close closes the database connection
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadIssues reads all issues in their exported order. Databases without a
// position column fall back to insertion order.
func (r *SQLiteReader) LoadIssues() ([]model.IssueNode, error) {
	rows, err := r.db.Query(`
		SELECT id, title, priority, effort, status, component_id
		FROM issues
		ORDER BY position
	`)
	if err != nil {
		rows, err = r.db.Query(`
			SELECT id, title, priority, effort, status, component_id
			FROM issues
			ORDER BY rowid
		`)
		if err != nil {
			return nil, fmt.Errorf("query issues: %w", err)
		}
	}
	defer rows.Close()

	issues := []model.IssueNode{}
	for rows.Next() {
		var n model.IssueNode
		var title, component sql.NullString
		var priority, status string
		if err := rows.Scan(&n.ID, &title, &priority, &n.Effort, &status, &component); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		n.Title = title.String
		n.ComponentID = component.String
		n.Status = model.NormalizeStatus(model.Status(status))
		p, err := model.ParsePriority(priority)
		if err != nil {
			return nil, fmt.Errorf("issue %s: %w", n.ID, err)
		}
		n.Priority = p
		issues = append(issues, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating issues: %w", err)
	}
	return issues, nil
}

// LoadDependencies reads every dependency edge in insertion order.
func (r *SQLiteReader) LoadDependencies() ([]model.DependencyEdge, error) {
	rows, err := r.db.Query(`SELECT issue_id, depends_on_id FROM dependencies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer rows.Close()

	edges := []model.DependencyEdge{}
	for rows.Next() {
		var e model.DependencyEdge
		if err := rows.Scan(&e.From, &e.To); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dependencies: %w", err)
	}
	return edges, nil
}

// CountIssues returns the number of rows in the issues table.
func (r *SQLiteReader) CountIssues() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM issues`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count issues: %w", err)
	}
	return n, nil
}
