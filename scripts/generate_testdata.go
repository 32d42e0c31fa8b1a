//go:build ignore

// generate_testdata.go writes standard graph documents for benchmarking.
// Usage: go run scripts/generate_testdata.go
//
// Creates:
//
//	tests/testdata/benchmark/small.json   (100 issues)
//	tests/testdata/benchmark/medium.json  (1000 issues)
//	tests/testdata/benchmark/large.json   (5000 issues)
//	tests/testdata/benchmark/huge.jsonl   (20000 issues)
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/beadplan/pkg/model"
	"github.com/vanderheijden86/beadplan/pkg/testutil"
)

type dataset struct {
	name  string
	size  int
	jsonl bool
}

var datasets = []dataset{
	{"small", 100, false},
	{"medium", 1000, false},
	{"large", 5000, false},
	{"huge", 20000, true},
}

var titles = []string{
	"Implement authentication flow",
	"Fix memory leak in cache",
	"Add API rate limiting",
	"Refactor database queries",
	"Update documentation",
	"Add unit tests for parser",
	"Optimize graph traversal",
	"Fix race condition in worker",
	"Add metrics dashboard",
	"Implement retry logic",
}

type record struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Priority  string   `json:"priority"`
	Effort    float64  `json:"effort"`
	Status    string   `json:"status"`
	DependsOn []string `json:"depends_on,omitempty"`
}

func main() {
	outputDir := "tests/testdata/benchmark"
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for _, ds := range datasets {
		fmt.Printf("Generating %s dataset (%d issues)...\n", ds.name, ds.size)

		gen := testutil.New(testutil.GeneratorConfig{
			Seed:      int64(ds.size), // reproducible per size
			IDPrefix:  "BENCH-",
			MaxEffort: 13,
			StatusMix: []model.Status{model.StatusOpen, model.StatusOpen, model.StatusInProgress, model.StatusDone},
		})
		gf := gen.RandomDAG(ds.size, calculateDensity(ds.size))
		nodes, edges := gen.Build(gf)
		records := toRecords(nodes, edges)

		ext := ".json"
		if ds.jsonl {
			ext = ".jsonl"
		}
		outputPath := filepath.Join(outputDir, ds.name+ext)
		if err := write(outputPath, records, ds.jsonl); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", outputPath, err)
			os.Exit(1)
		}
		fmt.Printf("  Written %s (%d edges)\n", outputPath, len(edges))
	}

	fmt.Println("\nDone! Test datasets created in", outputDir)
}

func calculateDensity(size int) float64 {
	// Scale density inversely with size to keep edge count reasonable
	switch {
	case size <= 100:
		return 0.1
	case size <= 1000:
		return 0.01
	case size <= 5000:
		return 0.002
	default:
		return 0.0005
	}
}

func toRecords(nodes []model.IssueNode, edges []model.DependencyEdge) []record {
	deps := make(map[string][]string)
	for _, e := range edges {
		deps[e.From] = append(deps[e.From], e.To)
	}
	out := make([]record, len(nodes))
	for i, n := range nodes {
		out[i] = record{
			ID:        n.ID,
			Title:     fmt.Sprintf("%s #%d", titles[i%len(titles)], i),
			Priority:  string(n.Priority),
			Effort:    n.Effort,
			Status:    string(n.Status),
			DependsOn: deps[n.ID],
		}
	}
	return out
}

func write(path string, records []record, jsonl bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if jsonl {
		enc := json.NewEncoder(w)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
	} else {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{"issues": records}); err != nil {
			return err
		}
	}
	return w.Flush()
}
