package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/beadplan/pkg/analysis"
	"github.com/vanderheijden86/beadplan/pkg/config"

	json "github.com/goccy/go-json"
)

const chainJSON = `{
  "issues": [
    {"id": "A", "title": "Release", "priority": "P0", "effort": 1, "depends_on": ["B"]},
    {"id": "B", "title": "Build", "priority": "P1", "effort": 3, "depends_on": ["C"]},
    {"id": "C", "title": "Design", "priority": "P2", "effort": 2, "status": "done"}
  ]
}`

const cycleJSONL = `{"id":"A","priority":"P1","effort":1,"depends_on":["B"]}
{"id":"B","priority":"P1","effort":1,"depends_on":["A"]}
{"id":"C","priority":"P2","effort":1}
`

// isolate points the config lookup at an empty directory and clears
// environment overrides.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(config.EnvFormat, "")
	t.Setenv(config.EnvRemainingOnly, "")
	for _, p := range []string{"P0", "P1", "P2", "P3"} {
		t.Setenv(config.EnvWeightPrefix+p, "")
	}
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Version(t *testing.T) {
	isolate(t)
	code, out, _ := runCLI(t, "-version")
	if code != exitOK || !strings.HasPrefix(out, "bplan ") {
		t.Errorf("code=%d out=%q", code, out)
	}
}

func TestRun_JSON(t *testing.T) {
	isolate(t)
	path := writeInput(t, "graph.json", chainJSON)

	code, out, stderr := runCLI(t, "-file", path, "-format", "json", "-slack")
	if code != exitOK {
		t.Fatalf("code=%d stderr=%s", code, stderr)
	}
	var res analysis.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not a Result: %v\n%s", err, out)
	}
	if got := strings.Join(res.CriticalPath.Path, ","); got != "C,B,A" {
		t.Errorf("critical path = %s, want C,B,A", got)
	}
	if res.CriticalPath.TotalDuration != 6 || res.CriticalPath.Bottleneck != "B" {
		t.Errorf("critical path = %+v", res.CriticalPath)
	}
	if len(res.Groups) != 3 {
		t.Errorf("groups = %v, want 3", res.Groups)
	}
	if len(res.Schedule) != 3 {
		t.Errorf("schedule has %d entries, want 3", len(res.Schedule))
	}
}

func TestRun_RemainingOnly(t *testing.T) {
	isolate(t)
	path := writeInput(t, "graph.json", chainJSON)

	code, out, stderr := runCLI(t, "-file", path, "-format", "json", "-remaining")
	if code != exitOK {
		t.Fatalf("code=%d stderr=%s", code, stderr)
	}
	var res analysis.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatal(err)
	}
	for _, grp := range res.Groups {
		for _, id := range grp.IssueIDs {
			if id == "C" {
				t.Errorf("closed issue C planned in %v", res.Groups)
			}
		}
	}
}

func TestRun_Text(t *testing.T) {
	isolate(t)
	path := writeInput(t, "graph.json", chainJSON)

	code, out, stderr := runCLI(t, "-file", path, "-format", "text", "-color", "never", "-slack")
	if code != exitOK {
		t.Fatalf("code=%d stderr=%s", code, stderr)
	}
	for _, want := range []string{
		"Critical path (3 issues, effort 6)",
		"Bottleneck: B (effort 3)",
		"Group 0: C",
		"Group 2: A",
		"By priority: P0 1, P1 1, P2 1, P3 0",
		"Schedule",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("color never should not emit escape codes")
	}
}

func TestRun_Mermaid(t *testing.T) {
	isolate(t)
	path := writeInput(t, "graph.json", chainJSON)

	code, out, _ := runCLI(t, "-file", path, "-format", "mermaid")
	if code != exitOK || !strings.HasPrefix(out, "graph TD\n") || !strings.Contains(out, "A ==> B") {
		t.Errorf("code=%d out=%s", code, out)
	}
}

func TestRun_Cycle(t *testing.T) {
	isolate(t)
	path := writeInput(t, "graph.jsonl", cycleJSONL)

	code, _, stderr := runCLI(t, "-file", path)
	if code != exitError {
		t.Errorf("code=%d, want %d", code, exitError)
	}
	if !strings.Contains(stderr, "dependency cycle: A -> B -> A") {
		t.Errorf("stderr = %q", stderr)
	}

	code, out, _ := runCLI(t, "-file", path, "-cycles")
	if code != exitError || !strings.Contains(out, "A -> B -> A") {
		t.Errorf("-cycles code=%d out=%q", code, out)
	}
}

func TestRun_CyclesClean(t *testing.T) {
	isolate(t)
	path := writeInput(t, "graph.json", chainJSON)

	code, out, _ := runCLI(t, "-file", path, "-cycles")
	if code != exitOK || !strings.Contains(out, "No dependency cycles") {
		t.Errorf("code=%d out=%q", code, out)
	}
}

func TestRun_StructuralError(t *testing.T) {
	isolate(t)
	path := writeInput(t, "graph.json", `{"issues":[{"id":"A","priority":"P1","depends_on":["missing"]}]}`)

	code, _, stderr := runCLI(t, "-file", path)
	if code != exitError || !strings.Contains(stderr, "missing") {
		t.Errorf("code=%d stderr=%q", code, stderr)
	}
}

func TestRun_UsageErrors(t *testing.T) {
	isolate(t)
	path := writeInput(t, "graph.json", chainJSON)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"-bogus"}},
		{"bad format", []string{"-file", path, "-format", "xml"}},
		{"bad weights", []string{"-file", path, "-weights", "1,2"}},
		{"negative weight", []string{"-file", path, "-weights", "p0=-1"}},
		{"stray argument", []string{"extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, _ := runCLI(t, tt.args...); code != exitUsage {
				t.Errorf("code=%d, want %d", code, exitUsage)
			}
		})
	}
}

func TestRun_MissingFile(t *testing.T) {
	isolate(t)
	code, _, stderr := runCLI(t, "-file", filepath.Join(t.TempDir(), "none.json"))
	if code != exitError || !strings.Contains(stderr, "no issue graph found") {
		t.Errorf("code=%d stderr=%q", code, stderr)
	}
}

func TestRun_SQLiteExportAndReload(t *testing.T) {
	isolate(t)
	path := writeInput(t, "graph.json", chainJSON)
	dbPath := filepath.Join(t.TempDir(), "plan.db")

	code, first, stderr := runCLI(t, "-file", path, "-format", "json", "-sqlite", dbPath)
	if code != exitOK {
		t.Fatalf("export code=%d stderr=%s", code, stderr)
	}
	code, second, stderr := runCLI(t, "-file", dbPath, "-format", "json")
	if code != exitOK {
		t.Fatalf("reload code=%d stderr=%s", code, stderr)
	}
	if first != second {
		t.Errorf("analysis differs after SQLite round trip:\n%s\nvs\n%s", first, second)
	}
}

func TestRun_ConfigFileAndWeightsFlag(t *testing.T) {
	isolate(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	cfg := config.DefaultConfig()
	cfg.Output.Format = config.FormatJSON
	cfg.Weights = analysis.PriorityWeights{P0: 1, P1: 1, P2: 1, P3: 1}
	if err := config.SaveTo(cfg, cfgPath); err != nil {
		t.Fatal(err)
	}
	path := writeInput(t, "graph.json", chainJSON)

	code, out, stderr := runCLI(t, "-config", cfgPath, "-file", path, "-weights", "p0=10")
	if code != exitOK {
		t.Fatalf("code=%d stderr=%s", code, stderr)
	}
	var res analysis.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("config format not applied: %v", err)
	}
	want := analysis.PriorityWeights{P0: 10, P1: 1, P2: 1, P3: 1}
	if res.Weights != want {
		t.Errorf("weights = %+v, want %+v", res.Weights, want)
	}
}

func TestRun_Metrics(t *testing.T) {
	isolate(t)
	path := writeInput(t, "graph.json", chainJSON)

	code, _, stderr := runCLI(t, "-file", path, "-format", "json", "-metrics")
	if code != exitOK {
		t.Fatalf("code=%d", code)
	}
	if !strings.Contains(stderr, "Timings:") || !strings.Contains(stderr, "graph_build") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRun_WatchStopsOnCancel(t *testing.T) {
	isolate(t)
	t.Setenv("BPLAN_FORCE_POLL", "1")
	path := writeInput(t, "graph.json", chainJSON)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"-file", path, "-format", "json", "-watch"}, &stdout, &stderr)
	if code != exitOK {
		t.Errorf("code=%d stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "Watching") {
		t.Errorf("stderr = %q", stderr.String())
	}
	if stdout.Len() == 0 {
		t.Error("expected an initial run before waiting for changes")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 8, "this is…"},
		{"日本語のタイトル", 7, "日本語…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestColorEnabled(t *testing.T) {
	var buf bytes.Buffer
	if !colorEnabled(config.ColorAlways, &buf) {
		t.Error("always should enable color")
	}
	if colorEnabled(config.ColorNever, &buf) {
		t.Error("never should disable color")
	}
	if colorEnabled(config.ColorAuto, &buf) {
		t.Error("auto should disable color for a non-terminal writer")
	}
}

func TestRun_WatchDirectory(t *testing.T) {
	isolate(t)
	t.Setenv("BPLAN_FORCE_POLL", "1")
	path := writeInput(t, "graph.json", chainJSON)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"-file", filepath.Dir(path), "-format", "json", "-watch"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("code=%d stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "Watching "+path) {
		t.Errorf("stderr = %q, want the resolved graph.json watched", stderr.String())
	}
}

func TestRun_MissingConfigFile(t *testing.T) {
	isolate(t)
	path := writeInput(t, "graph.json", chainJSON)
	cfgPath := filepath.Join(t.TempDir(), "conifg.yaml")

	code, out, stderr := runCLI(t, "-config", cfgPath, "-file", path)
	if code != exitError || out != "" {
		t.Errorf("code=%d out=%q", code, out)
	}
	if !strings.Contains(stderr, cfgPath) {
		t.Errorf("stderr = %q, want the missing path named", stderr)
	}
}
