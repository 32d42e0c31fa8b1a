// Package datasource detects and opens issue graph sources: JSON, JSONL and
// YAML documents, or SQLite databases written by the exporter. Given a
// directory it discovers every candidate and selects the freshest valid one.
package datasource

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/beadplan/pkg/loader"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// SourceType identifies the type of data source
type SourceType string

const (
	SourceTypeSQLite SourceType = "sqlite"
	SourceTypeJSON   SourceType = "json"
	SourceTypeJSONL  SourceType = "jsonl"
	SourceTypeYAML   SourceType = "yaml"
)

// Priority values for source types (higher = more authoritative)
const (
	PrioritySQLite = 100
	PriorityJSON   = 80
	PriorityYAML   = 70
	PriorityJSONL  = 50
)

var sqliteMagic = []byte("SQLite format 3\x00")

// DataSource represents a potential source of issue data
type DataSource struct {
	// Type identifies the source type
	Type SourceType `json:"type"`
	// Path is the path to the source file
	Path string `json:"path"`
	// Priority determines preference when timestamps are equal (higher = preferred)
	Priority int `json:"priority"`
	// ModTime is the last modification time of the source
	ModTime time.Time `json:"mod_time"`
	// Valid indicates whether the source passed validation
	Valid bool `json:"valid"`
	// ValidationError describes why validation failed (if Valid is false)
	ValidationError string `json:"validation_error,omitempty"`
	// IssueCount is the number of issues in the source (set during validation)
	IssueCount int `json:"issue_count"`
	// Size is the file size in bytes
	Size int64 `json:"size"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, issues=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.IssueCount, status)
}

// LoaderFormat maps the source type to the loader's document format.
func (s DataSource) LoaderFormat() loader.Format {
	switch s.Type {
	case SourceTypeJSON:
		return loader.FormatJSON
	case SourceTypeJSONL:
		return loader.FormatJSONL
	case SourceTypeYAML:
		return loader.FormatYAML
	}
	return loader.FormatAuto
}

func priorityFor(t SourceType) int {
	switch t {
	case SourceTypeSQLite:
		return PrioritySQLite
	case SourceTypeJSON:
		return PriorityJSON
	case SourceTypeYAML:
		return PriorityYAML
	case SourceTypeJSONL:
		return PriorityJSONL
	}
	return 0
}

// TypeFromPath maps a file extension to a SourceType, or "" if unknown.
func TypeFromPath(path string) SourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return SourceTypeSQLite
	}
	switch loader.FormatFromPath(path) {
	case loader.FormatJSON:
		return SourceTypeJSON
	case loader.FormatJSONL:
		return SourceTypeJSONL
	case loader.FormatYAML:
		return SourceTypeYAML
	}
	return ""
}

// DetectSource describes the file at path. The type comes from the
// extension, falling back to the SQLite header and then to content
// sniffing.
func DetectSource(path string) (DataSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return DataSource{}, fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return DataSource{}, fmt.Errorf("%s is a directory", path)
	}

	t := TypeFromPath(path)
	if t == "" {
		t, err = sniffType(path)
		if err != nil {
			return DataSource{}, err
		}
	}
	return DataSource{
		Type:     t,
		Path:     path,
		Priority: priorityFor(t),
		ModTime:  info.ModTime(),
		Size:     info.Size(),
	}, nil
}

func sniffType(path string) (SourceType, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	head := make([]byte, 4096)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read source: %w", err)
	}
	head = head[:n]
	if bytes.HasPrefix(head, sqliteMagic) {
		return SourceTypeSQLite, nil
	}

	// Sniffing JSON needs the whole document.
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	switch loader.Sniff(data) {
	case loader.FormatJSON:
		return SourceTypeJSON, nil
	case loader.FormatJSONL:
		return SourceTypeJSONL, nil
	}
	return SourceTypeYAML, nil
}

// DiscoveryOptions configures source discovery behavior
type DiscoveryOptions struct {
	// ValidateAfterDiscovery runs validation on each discovered source
	ValidateAfterDiscovery bool
	// IncludeInvalid includes sources that failed validation in results
	IncludeInvalid bool
	// Logger receives progress messages when set
	Logger func(msg string)
}

// DiscoverSources finds every file in dir with a recognized extension,
// skipping backups and merge artifacts. Results are sorted freshest first,
// then by priority.
func DiscoverSources(dir string, opts DiscoveryOptions) ([]DataSource, error) {
	logf := func(format string, args ...any) {
		if opts.Logger != nil {
			opts.Logger(fmt.Sprintf(format, args...))
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}

	var sources []DataSource
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.Contains(name, ".backup") || strings.Contains(name, ".orig") || strings.Contains(name, ".merge") {
			continue
		}
		t := TypeFromPath(name)
		if t == "" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		src := DataSource{
			Type:     t,
			Path:     filepath.Join(dir, name),
			Priority: priorityFor(t),
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		}
		logf("Found %s: %s (mod=%s)", t, src.Path, src.ModTime.Format(time.RFC3339))
		sources = append(sources, src)
	}

	if opts.ValidateAfterDiscovery {
		for i := range sources {
			if err := ValidateSource(&sources[i]); err != nil {
				logf("Validation failed for %s: %v", sources[i].Path, err)
			}
		}
		if !opts.IncludeInvalid {
			valid := sources[:0]
			for _, s := range sources {
				if s.Valid {
					valid = append(valid, s)
				}
			}
			sources = valid
		}
	}

	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
	logf("Discovered %d sources", len(sources))
	return sources, nil
}

// SelectBestSource returns the freshest valid source, preferring higher
// priority on equal modification times.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	var best *DataSource
	for i := range sources {
		s := &sources[i]
		if !s.Valid {
			continue
		}
		if best == nil || s.ModTime.After(best.ModTime) ||
			(s.ModTime.Equal(best.ModTime) && s.Priority > best.Priority) {
			best = s
		}
	}
	if best == nil {
		return DataSource{}, fmt.Errorf("no valid sources among %d candidates", len(sources))
	}
	return *best, nil
}

// ValidateSource loads the source and records whether it parsed, along with
// its issue count. A JSON or YAML document must carry an "issues" key and a
// JSONL file at least one issue, so unrelated files such as package.json are
// rejected. The returned error mirrors ValidationError.
func ValidateSource(s *DataSource) error {
	doc, err := LoadFromSource(*s, loader.ParseOptions{WarningHandler: func(string) {}})
	if err == nil {
		err = checkDefinesIssues(*s, doc)
	}
	if err != nil {
		s.Valid = false
		s.ValidationError = err.Error()
		return err
	}
	s.Valid = true
	s.ValidationError = ""
	s.IssueCount = len(doc.Nodes)
	return nil
}

var errNoIssues = errors.New("not an issue graph")

func checkDefinesIssues(s DataSource, doc *loader.Document) error {
	switch s.Type {
	case SourceTypeJSONL:
		if len(doc.Nodes) == 0 {
			return fmt.Errorf("%w: no issues", errNoIssues)
		}
		return nil
	case SourceTypeJSON, SourceTypeYAML:
		data, err := os.ReadFile(s.Path)
		if err != nil {
			return err
		}
		data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
		var top map[string]any
		if s.Type == SourceTypeJSON {
			err = json.Unmarshal(data, &top)
		} else {
			err = yaml.Unmarshal(data, &top)
		}
		if err != nil {
			return err
		}
		if _, ok := top["issues"]; !ok {
			return fmt.Errorf("%w: no \"issues\" key", errNoIssues)
		}
	}
	return nil
}
