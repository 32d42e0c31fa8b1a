package loader_test

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/vanderheijden86/beadplan/pkg/loader"
	"github.com/vanderheijden86/beadplan/pkg/model"
)

func collect(warnings *[]string) loader.ParseOptions {
	return loader.ParseOptions{WarningHandler: func(msg string) { *warnings = append(*warnings, msg) }}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// =============================================================================
// Format detection
// =============================================================================

func TestFormatFromPath(t *testing.T) {
	tests := map[string]loader.Format{
		"g.json":       loader.FormatJSON,
		"G.JSON":       loader.FormatJSON,
		"issues.jsonl": loader.FormatJSONL,
		"x.ndjson":     loader.FormatJSONL,
		"graph.yaml":   loader.FormatYAML,
		"graph.yml":    loader.FormatYAML,
		"graph.txt":    loader.FormatAuto,
		"no-extension": loader.FormatAuto,
	}
	for path, want := range tests {
		if got := loader.FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data string
		want loader.Format
	}{
		{"document", `{"issues": [], "dependencies": []}`, loader.FormatJSON},
		{"document with BOM", "\xEF\xBB\xBF" + `{"issues": []}`, loader.FormatJSON},
		{"jsonl", "{\"id\":\"A\"}\n{\"id\":\"B\"}\n", loader.FormatJSONL},
		{"single issue line", `{"id":"A"}`, loader.FormatJSONL},
		{"yaml", "issues:\n  - id: A\n", loader.FormatYAML},
		{"empty", "", loader.FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := loader.Sniff([]byte(tt.data)); got != tt.want {
				t.Errorf("Sniff = %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Parsing
// =============================================================================

func TestParseJSONDocument(t *testing.T) {
	input := `{
  "issues": [
    {"id": "A", "title": "Ship", "priority": "P0", "effort": 2, "status": "open", "depends_on": ["B"]},
    {"id": "B", "title": "Build", "priority": 1, "effort": 3, "status": "In Progress"},
    {"id": "C", "title": "Design", "effort": 1.5, "status": "closed", "component_id": "core"}
  ],
  "dependencies": [{"from": "B", "to": "C"}]
}`
	var warnings []string
	doc, err := loader.Parse(strings.NewReader(input), loader.FormatJSON, collect(&warnings))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []model.IssueNode{
		{ID: "A", Title: "Ship", Priority: model.PriorityP0, Effort: 2, Status: model.StatusOpen},
		{ID: "B", Title: "Build", Priority: model.PriorityP1, Effort: 3, Status: model.StatusInProgress},
		{ID: "C", Title: "Design", Priority: loader.DefaultPriority, Effort: 1.5, Status: model.StatusDone, ComponentID: "core"},
	}
	if !reflect.DeepEqual(doc.Nodes, want) {
		t.Errorf("nodes mismatch\n got: %+v\nwant: %+v", doc.Nodes, want)
	}
	wantEdges := []model.DependencyEdge{{From: "A", To: "B"}, {From: "B", To: "C"}}
	if !reflect.DeepEqual(doc.Edges, wantEdges) {
		t.Errorf("edges = %v, want %v", doc.Edges, wantEdges)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "no priority") {
		t.Errorf("warnings = %v", warnings)
	}
	if doc.Format != loader.FormatJSON {
		t.Errorf("format = %q", doc.Format)
	}
}

func TestParseYAMLDocument(t *testing.T) {
	input := `
issues:
  - id: A
    priority: p2
    effort: 4
    depends_on: [B]
  - id: B
    priority: 3
    effort: 1
    status: wip
dependencies:
  - from: A
    to: B
`
	doc, err := loader.Parse(strings.NewReader(input), loader.FormatYAML, loader.ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Nodes) != 2 {
		t.Fatalf("nodes = %v", doc.Nodes)
	}
	if doc.Nodes[0].Priority != model.PriorityP2 || doc.Nodes[1].Priority != model.PriorityP3 {
		t.Errorf("priorities = %s, %s", doc.Nodes[0].Priority, doc.Nodes[1].Priority)
	}
	if doc.Nodes[1].Status != model.StatusInProgress {
		t.Errorf("status = %s", doc.Nodes[1].Status)
	}
	// Inline and listed copies of A -> B are both kept; the graph dedups.
	if len(doc.Edges) != 2 {
		t.Errorf("edges = %v", doc.Edges)
	}
}

func TestParseJSONL(t *testing.T) {
	input := "\xEF\xBB\xBF" + `{"id":"A","priority":"P1","effort":1,"depends_on":["B"," "]}` + "\n" +
		"\n" +
		`{"id":"B","priority":"P2","effort":2}` + "\n" +
		`{not json}` + "\n" +
		`{"id":"C","priority":"P7","effort":1}` + "\n" +
		`{"id":"D","priority":"P3","effort":-1}` + "\n"

	var warnings []string
	doc, err := loader.Parse(strings.NewReader(input), loader.FormatJSONL, collect(&warnings))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := len(doc.Nodes); got != 2 {
		t.Fatalf("got %d nodes, want 2: %+v", got, doc.Nodes)
	}
	if doc.Nodes[0].ID != "A" {
		t.Errorf("BOM not stripped: first id %q", doc.Nodes[0].ID)
	}
	if !reflect.DeepEqual(doc.Edges, []model.DependencyEdge{{From: "A", To: "B"}}) {
		t.Errorf("edges = %v", doc.Edges)
	}
	if len(warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %v", warnings)
	}
	if !strings.Contains(warnings[0], "malformed JSON on line 4") {
		t.Errorf("warning[0] = %q", warnings[0])
	}
	if !strings.Contains(warnings[1], "line 5") || !strings.Contains(warnings[2], "line 6") {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestParseJSONLLongLine(t *testing.T) {
	long := `{"id":"X","title":"` + strings.Repeat("x", 200) + `"}`
	input := long + "\n" + `{"id":"A","priority":"P1","effort":1}` + "\n"

	var warnings []string
	opts := collect(&warnings)
	opts.BufferSize = 64
	doc, err := loader.Parse(strings.NewReader(input), loader.FormatJSONL, opts)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Nodes) != 1 || doc.Nodes[0].ID != "A" {
		t.Errorf("nodes = %+v", doc.Nodes)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "line too long") {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestParseStrict(t *testing.T) {
	input := `{"id":"A","effort":1}` + "\n" + `{"id":"","effort":1}` + "\n"
	_, err := loader.Parse(strings.NewReader(input), loader.FormatJSONL, loader.ParseOptions{Strict: true, WarningHandler: func(string) {}})
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("err = %v, want strict failure on line 2", err)
	}

	doc := `{"issues":[{"id":"A"}],"dependencies":[{"from":"A"}]}`
	_, err = loader.Parse(strings.NewReader(doc), loader.FormatJSON, loader.ParseOptions{Strict: true, WarningHandler: func(string) {}})
	if err == nil || !strings.Contains(err.Error(), "dependency #0") {
		t.Errorf("err = %v, want strict failure on dependency", err)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := loader.Parse(strings.NewReader(`{"issues": [`), loader.FormatJSON, loader.ParseOptions{}); err == nil {
		t.Error("expected JSON syntax error")
	}
	if _, err := loader.Parse(strings.NewReader("issues: [\n"), loader.FormatYAML, loader.ParseOptions{}); err == nil {
		t.Error("expected YAML syntax error")
	}
	if _, err := loader.Parse(strings.NewReader("{}"), loader.Format("toml"), loader.ParseOptions{}); err == nil {
		t.Error("expected unsupported format error")
	}
}

func TestParseAutoDetects(t *testing.T) {
	doc, err := loader.Parse(strings.NewReader("{\"id\":\"A\",\"effort\":1}\n{\"id\":\"B\",\"effort\":1}\n"), loader.FormatAuto, loader.ParseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Format != loader.FormatJSONL || len(doc.Nodes) != 2 {
		t.Errorf("format %q, %d nodes", doc.Format, len(doc.Nodes))
	}
}

func TestParseEmptyDocument(t *testing.T) {
	doc, err := loader.Parse(strings.NewReader(`{"issues": []}`), loader.FormatJSON, loader.ParseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Nodes == nil || doc.Edges == nil || len(doc.Nodes) != 0 {
		t.Errorf("expected empty non-nil slices, got %+v", doc)
	}
}

// =============================================================================
// Files
// =============================================================================

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "graph.yaml", "issues:\n  - id: A\n    effort: 1\n    priority: P0\n")

	doc, err := loader.LoadFile(path, loader.ParseOptions{})
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if doc.Source != path || doc.Format != loader.FormatYAML || len(doc.Nodes) != 1 {
		t.Errorf("unexpected doc %+v", doc)
	}

	// Unknown extension falls back to sniffing.
	path = writeFile(t, dir, "graph.data", `{"issues":[{"id":"Z","effort":2,"priority":"P1"}]}`)
	doc, err = loader.LoadFile(path, loader.ParseOptions{})
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if doc.Format != loader.FormatJSON || doc.Nodes[0].ID != "Z" {
		t.Errorf("unexpected doc %+v", doc)
	}

	if _, err := loader.LoadFile(filepath.Join(dir, "missing.json"), loader.ParseOptions{}); err == nil ||
		!strings.Contains(err.Error(), "no issue graph found") {
		t.Errorf("err = %v", err)
	}

	bad := writeFile(t, dir, "bad.json", `{"issues": nope}`)
	if _, err := loader.LoadFile(bad, loader.ParseOptions{}); err == nil || !strings.Contains(err.Error(), bad) {
		t.Errorf("error should name the file, got %v", err)
	}
}
