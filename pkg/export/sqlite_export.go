// Package export renders analysis results for other tools: Mermaid
// diagrams and self-contained SQLite databases.
package export

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vanderheijden86/beadplan/pkg/analysis"
	"github.com/vanderheijden86/beadplan/pkg/debug"
	"github.com/vanderheijden86/beadplan/pkg/metrics"
	"github.com/vanderheijden86/beadplan/pkg/model"
	"github.com/vanderheijden86/beadplan/pkg/version"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

// SQLiteExporter writes a graph and its analysis to a SQLite database.
type SQLiteExporter struct {
	Graph  *analysis.Graph
	Result *analysis.Result
	// Source is recorded in export_meta when set.
	Source string
	now    func() time.Time
}

// NewSQLiteExporter creates an exporter for g. res must come from analyzing g.
func NewSQLiteExporter(g *analysis.Graph, res *analysis.Result) *SQLiteExporter {
	return &SQLiteExporter{Graph: g, Result: res, now: time.Now}
}

// Export writes the database to dbPath, replacing any existing file.
func (e *SQLiteExporter) Export(dbPath string) error {
	defer metrics.Timer(metrics.Export)()

	if e.Graph == nil || e.Result == nil {
		return fmt.Errorf("export: graph and result are required")
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing database: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	dbClosed := false
	defer func() {
		if !dbClosed {
			db.Close()
		}
	}()

	if err := CreateSchema(db); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if err := e.insertIssues(db); err != nil {
		return fmt.Errorf("insert issues: %w", err)
	}
	if err := e.insertDependencies(db); err != nil {
		return fmt.Errorf("insert dependencies: %w", err)
	}
	if err := e.insertPlan(db); err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	if err := e.insertStatistics(db); err != nil {
		return fmt.Errorf("insert statistics: %w", err)
	}
	if err := e.insertMeta(db); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}
	if err := OptimizeDatabase(db); err != nil {
		return fmt.Errorf("optimize database: %w", err)
	}

	if err := db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	dbClosed = true
	debug.Log("export: wrote %d issues to %s", e.Graph.NodeCount(), dbPath)
	return nil
}

func (e *SQLiteExporter) insertIssues(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO issues (id, title, priority, effort, status, component_id, position, group_index, on_critical_path, slack)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	groupOf := analysis.GroupIndex(e.Result.Groups)
	for pos, n := range e.Graph.Nodes() {
		var component, group, slack any
		if n.ComponentID != "" {
			component = n.ComponentID
		}
		if idx, ok := groupOf[n.ID]; ok {
			group = idx
		}
		if entry, ok := e.Result.Schedule[n.ID]; ok {
			slack = entry.Slack
		}
		onPath := 0
		if e.Result.CriticalPath.Contains(n.ID) {
			onPath = 1
		}
		if _, err := stmt.Exec(n.ID, n.Title, string(n.Priority), n.Effort, string(n.Status),
			component, pos, group, onPath, slack); err != nil {
			return fmt.Errorf("issue %s: %w", n.ID, err)
		}
	}
	return tx.Commit()
}

func (e *SQLiteExporter) insertDependencies(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO dependencies (issue_id, depends_on_id) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, edge := range e.Graph.Edges() {
		if _, err := stmt.Exec(edge.From, edge.To); err != nil {
			return fmt.Errorf("dependency %s: %w", edge, err)
		}
	}
	return tx.Commit()
}

func (e *SQLiteExporter) insertPlan(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, grp := range e.Result.Groups {
		for pos, id := range grp.IssueIDs {
			if _, err := tx.Exec(`INSERT INTO parallel_groups (group_index, position, issue_id) VALUES (?, ?, ?)`,
				grp.Index, pos, id); err != nil {
				return err
			}
		}
	}
	for pos, id := range e.Result.CriticalPath.Path {
		if _, err := tx.Exec(`INSERT INTO critical_path (position, issue_id) VALUES (?, ?)`, pos, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// statisticsRows flattens GraphStatistics into name/value pairs.
func statisticsRows(s analysis.GraphStatistics, cp analysis.CriticalPath) map[string]float64 {
	rows := map[string]float64{
		"total_nodes":          float64(s.TotalNodes),
		"total_edges":          float64(s.TotalEdges),
		"max_depth":            float64(s.MaxDepth),
		"root_issues":          float64(s.RootIssues),
		"leaf_issues":          float64(s.LeafIssues),
		"isolated_issues":      float64(s.IsolatedIssues),
		"critical_path_length": float64(s.CriticalPathLength),
		"critical_path_effort": cp.TotalDuration,
		"max_fan_in":           float64(s.MaxFanIn),
		"max_fan_out":          float64(s.MaxFanOut),
		"parallelism_width":    float64(s.ParallelismWidth),
		"total_effort":         s.TotalEffort,
		"weighted_effort":      s.WeightedEffort,
	}
	for _, p := range model.AllPriorities() {
		rows["by_priority."+string(p)] = float64(s.ByPriority[p])
	}
	for _, st := range model.AllStatuses() {
		rows["by_status."+string(st)] = float64(s.ByStatus[st])
	}
	return rows
}

func (e *SQLiteExporter) insertStatistics(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for name, value := range statisticsRows(e.Result.Stats, e.Result.CriticalPath) {
		if _, err := tx.Exec(`INSERT INTO statistics (name, value) VALUES (?, ?)`, name, value); err != nil {
			return fmt.Errorf("statistic %s: %w", name, err)
		}
	}
	return tx.Commit()
}

func (e *SQLiteExporter) insertMeta(db *sql.DB) error {
	weights, err := json.Marshal(e.Result.Weights)
	if err != nil {
		return err
	}
	now := e.now
	if now == nil {
		now = time.Now
	}
	meta := map[string]string{
		"version":          version.Version,
		"generated_at":     now().UTC().Format(time.RFC3339),
		"issue_count":      strconv.Itoa(e.Graph.NodeCount()),
		"dependency_count": strconv.Itoa(e.Graph.EdgeCount()),
		"schema_version":   strconv.Itoa(SchemaVersion),
		"weights":          string(weights),
		"bottleneck":       e.Result.CriticalPath.Bottleneck,
	}
	if e.Source != "" {
		meta["source"] = e.Source
	}

	for key, value := range meta {
		if err := InsertMetaValue(db, key, value); err != nil {
			return fmt.Errorf("insert meta %s: %w", key, err)
		}
	}
	return nil
}

// WriteJSON writes the analysis result as indented JSON.
func WriteJSON(path string, res *analysis.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
