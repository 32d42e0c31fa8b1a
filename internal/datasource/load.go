package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/vanderheijden86/beadplan/pkg/debug"
	"github.com/vanderheijden86/beadplan/pkg/loader"
	"github.com/vanderheijden86/beadplan/pkg/metrics"
)

// PreferredNames are the graph files looked for first when a directory is
// given. A valid source with one of these names beats any other file in the
// directory, whatever its age.
var PreferredNames = append([]string{"graph.db", "plan.db"}, loader.PreferredNames...)

// Load opens whatever path points at. A file is loaded directly; a
// directory is resolved with ResolveSource.
func Load(path string, opts loader.ParseOptions) (*loader.Document, error) {
	src, err := ResolveSource(path)
	if err != nil {
		return nil, err
	}
	debug.Log("datasource: using %s", src)
	return LoadFromSource(src, opts)
}

// ResolveSource returns the source Load reads for path. For a directory,
// valid sources named in PreferredNames are considered first; the freshest
// of them wins, ties going to the higher priority. Other valid files are
// the fallback.
func ResolveSource(path string) (DataSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DataSource{}, fmt.Errorf("no issue graph found at %s", path)
		}
		return DataSource{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return DetectSource(path)
	}

	sources, err := DiscoverSources(path, DiscoveryOptions{
		ValidateAfterDiscovery: true,
		Logger:                 func(msg string) { debug.Log("datasource: %s", msg) },
	})
	if err != nil {
		return DataSource{}, err
	}
	if preferred := preferredSources(sources); len(preferred) > 0 {
		return SelectBestSource(preferred)
	}
	src, err := SelectBestSource(sources)
	if err != nil {
		return DataSource{}, fmt.Errorf("no issue graph found in %s: %w", path, err)
	}
	return src, nil
}

func preferredSources(sources []DataSource) []DataSource {
	var out []DataSource
	for _, s := range sources {
		if s.Valid && slices.Contains(PreferredNames, filepath.Base(s.Path)) {
			out = append(out, s)
		}
	}
	return out
}

// LoadFromSource loads a document from a specific DataSource, dispatching
// to the appropriate reader based on source type.
func LoadFromSource(source DataSource, opts loader.ParseOptions) (*loader.Document, error) {
	switch source.Type {
	case SourceTypeSQLite:
		defer metrics.Timer(metrics.GraphLoad)()
		reader, err := NewSQLiteReader(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite source %s: %w", source.Path, err)
		}
		defer reader.Close()

		nodes, err := reader.LoadIssues()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source.Path, err)
		}
		edges, err := reader.LoadDependencies()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source.Path, err)
		}
		return &loader.Document{Nodes: nodes, Edges: edges, Source: source.Path}, nil

	case SourceTypeJSON, SourceTypeJSONL, SourceTypeYAML:
		f, err := os.Open(source.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", source.Path, err)
		}
		defer f.Close()

		defer metrics.Timer(metrics.GraphLoad)()
		doc, err := loader.Parse(f, source.LoaderFormat(), opts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source.Path, err)
		}
		doc.Source = source.Path
		return doc, nil

	default:
		return nil, fmt.Errorf("unknown source type: %s", source.Type)
	}
}
