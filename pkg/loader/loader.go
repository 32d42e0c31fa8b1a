// Package loader reads issue graphs from JSON, JSONL and YAML documents.
//
// A JSON or YAML document has two lists:
//
//	{"issues": [{"id": "A", "effort": 2, "priority": "P1"}], "dependencies": [{"from": "A", "to": "B"}]}
//
// JSONL holds one issue per line. Any issue may also list its dependencies
// inline with "depends_on"; those edges are merged with the dependency list.
package loader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/beadplan/pkg/debug"
	"github.com/vanderheijden86/beadplan/pkg/metrics"
	"github.com/vanderheijden86/beadplan/pkg/model"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Format names an input encoding.
type Format string

const (
	FormatAuto  Format = ""
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// DefaultPriority is assigned to issues that carry no priority.
const DefaultPriority = model.PriorityP2

// DefaultMaxBufferSize is the default line buffer for JSONL input (10MB).
const DefaultMaxBufferSize = 1024 * 1024 * 10

// ParseOptions configures parsing.
type ParseOptions struct {
	// WarningHandler is called with warning messages (e.g., malformed JSON).
	// If nil, warnings are printed to os.Stderr.
	WarningHandler func(string)

	// BufferSize sets the maximum JSONL line size. Longer lines are skipped
	// with a warning. If 0, uses DefaultMaxBufferSize.
	BufferSize int

	// Strict turns skipped records into errors.
	Strict bool
}

// Document is a parsed issue graph, ready for analysis.BuildGraph.
type Document struct {
	Nodes  []model.IssueNode
	Edges  []model.DependencyEdge
	Format Format
	Source string
}

type issueRecord struct {
	ID          string        `json:"id" yaml:"id"`
	Title       string        `json:"title" yaml:"title"`
	Priority    priorityField `json:"priority" yaml:"priority"`
	Effort      float64       `json:"effort" yaml:"effort"`
	Status      string        `json:"status" yaml:"status"`
	ComponentID string        `json:"component_id" yaml:"component_id"`
	DependsOn   []string      `json:"depends_on" yaml:"depends_on"`
}

type documentRecord struct {
	Issues       []issueRecord          `json:"issues" yaml:"issues"`
	Dependencies []model.DependencyEdge `json:"dependencies" yaml:"dependencies"`
}

// priorityField accepts "P1", "p1", "1" and the bare number 1.
type priorityField string

func (p *priorityField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = priorityField(s)
		return nil
	}
	*p = priorityField(b)
	return nil
}

func (p *priorityField) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: priority must be a scalar", n.Line)
	}
	*p = priorityField(n.Value)
	return nil
}

// PreferredNames are the document file names, in lookup order, that mark a
// file in a project directory as its issue graph.
var PreferredNames = []string{"graph.json", "graph.yaml", "graph.yml", "issues.jsonl", "graph.jsonl"}

// LoadFile reads a graph document from disk. The format comes from the file
// extension, falling back to content sniffing.
func LoadFile(path string, opts ParseOptions) (*Document, error) {
	defer metrics.Timer(metrics.GraphLoad)()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no issue graph found at %s", path)
		}
		return nil, fmt.Errorf("failed to read issue graph: %w", err)
	}

	format := FormatFromPath(path)
	if format == FormatAuto {
		format = Sniff(data)
	}
	debug.Log("loader: %s as %s (%d bytes)", path, format, len(data))

	doc, err := Parse(bytes.NewReader(data), format, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Source = path
	return doc, nil
}

// FormatFromPath maps a file extension to a Format, or FormatAuto if the
// extension is not recognized.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".jsonl", ".ndjson":
		return FormatJSONL
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatAuto
}

// Sniff guesses the format from content. A single JSON object with an
// "issues" list is JSON; other '{' input is treated as JSONL; anything
// else is YAML.
func Sniff(data []byte) Format {
	trimmed := bytes.TrimSpace(stripBOM(data))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return FormatYAML
	}
	var probe struct {
		Issues json.RawMessage `json:"issues"`
	}
	if err := json.Unmarshal(trimmed, &probe); err == nil && probe.Issues != nil {
		return FormatJSON
	}
	return FormatJSONL
}

// Parse decodes a graph document from r.
func Parse(r io.Reader, format Format, opts ParseOptions) (*Document, error) {
	if format == FormatJSONL {
		return parseJSONL(r, opts)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading issue graph: %w", err)
	}
	data = stripBOM(data)
	if format == FormatAuto {
		format = Sniff(data)
		if format == FormatJSONL {
			return parseJSONL(bytes.NewReader(data), opts)
		}
	}

	var rec documentRecord
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("parsing JSON document: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("parsing YAML document: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	b := newBuilder(format, opts)
	for i, ir := range rec.Issues {
		if err := b.addIssue(ir, fmt.Sprintf("issue #%d", i)); err != nil {
			return nil, err
		}
	}
	for i, e := range rec.Dependencies {
		if err := b.addEdge(e, fmt.Sprintf("dependency #%d", i)); err != nil {
			return nil, err
		}
	}
	return b.doc, nil
}

func parseJSONL(r io.Reader, opts ParseOptions) (*Document, error) {
	maxCapacity := opts.BufferSize
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxBufferSize
	}
	reader := bufio.NewReaderSize(r, maxCapacity)
	b := newBuilder(FormatJSONL, opts)

	lineNum := 0
	for {
		lineNum++
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading issues stream at line %d: %w", lineNum, err)
		}

		if isPrefix {
			// Discard the rest of the oversized line.
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err == io.EOF {
					break
				}
				if err != nil {
					return nil, fmt.Errorf("error skipping long line at line %d: %w", lineNum, err)
				}
			}
			if err := b.skip(fmt.Sprintf("skipping line %d: line too long (exceeds %d bytes)", lineNum, maxCapacity)); err != nil {
				return nil, err
			}
			continue
		}

		if lineNum == 1 {
			line = stripBOM(line)
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var ir issueRecord
		if err := json.Unmarshal(line, &ir); err != nil {
			if err := b.skip(fmt.Sprintf("skipping malformed JSON on line %d: %v", lineNum, err)); err != nil {
				return nil, err
			}
			continue
		}
		if err := b.addIssue(ir, fmt.Sprintf("line %d", lineNum)); err != nil {
			return nil, err
		}
	}
	return b.doc, nil
}

type builder struct {
	doc  *Document
	opts ParseOptions
	warn func(string)
}

func newBuilder(format Format, opts ParseOptions) *builder {
	warn := opts.WarningHandler
	if warn == nil {
		warn = func(msg string) {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
		}
	}
	return &builder{
		doc:  &Document{Nodes: []model.IssueNode{}, Edges: []model.DependencyEdge{}, Format: format},
		opts: opts,
		warn: warn,
	}
}

// skip reports a dropped record: a warning normally, an error when strict.
func (b *builder) skip(msg string) error {
	if b.opts.Strict {
		return fmt.Errorf("%s", msg)
	}
	b.warn(msg)
	return nil
}

func (b *builder) addIssue(ir issueRecord, where string) error {
	node, err := normalize(ir)
	if err != nil {
		return b.skip(fmt.Sprintf("skipping invalid issue at %s: %v", where, err))
	}
	if ir.Priority == "" {
		b.warn(fmt.Sprintf("%s: issue %s has no priority, using %s", where, node.ID, DefaultPriority))
	}
	b.doc.Nodes = append(b.doc.Nodes, node)
	for _, dep := range ir.DependsOn {
		dep = strings.TrimSpace(dep)
		if dep == "" {
			continue
		}
		b.doc.Edges = append(b.doc.Edges, model.DependencyEdge{From: node.ID, To: dep})
	}
	return nil
}

func (b *builder) addEdge(e model.DependencyEdge, where string) error {
	e.From, e.To = strings.TrimSpace(e.From), strings.TrimSpace(e.To)
	if e.From == "" || e.To == "" {
		return b.skip(fmt.Sprintf("skipping %s: both from and to are required", where))
	}
	b.doc.Edges = append(b.doc.Edges, e)
	return nil
}

// normalize converts a raw record into a validated node. Missing status
// means open and missing priority means DefaultPriority.
func normalize(ir issueRecord) (model.IssueNode, error) {
	node := model.IssueNode{
		ID:          strings.TrimSpace(ir.ID),
		Title:       strings.TrimSpace(ir.Title),
		Effort:      ir.Effort,
		Status:      model.NormalizeStatus(model.Status(ir.Status)),
		ComponentID: ir.ComponentID,
		Priority:    DefaultPriority,
	}
	if ir.Priority != "" {
		p, err := model.ParsePriority(string(ir.Priority))
		if err != nil {
			return node, err
		}
		node.Priority = p
	}
	if err := node.Validate(); err != nil {
		return node, err
	}
	return node, nil
}

// stripBOM removes the UTF-8 Byte Order Mark if present
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
