// Command bplan loads an issue dependency graph and prints its critical
// path, parallel work groups and summary statistics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vanderheijden86/beadplan/internal/datasource"
	"github.com/vanderheijden86/beadplan/pkg/analysis"
	"github.com/vanderheijden86/beadplan/pkg/config"
	"github.com/vanderheijden86/beadplan/pkg/debug"
	"github.com/vanderheijden86/beadplan/pkg/export"
	"github.com/vanderheijden86/beadplan/pkg/loader"
	"github.com/vanderheijden86/beadplan/pkg/metrics"
	"github.com/vanderheijden86/beadplan/pkg/version"
	"github.com/vanderheijden86/beadplan/pkg/watcher"

	json "github.com/goccy/go-json"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// errUsage marks errors caused by bad flags or flag values.
var errUsage = errors.New("usage error")

type options struct {
	file       string
	format     string
	configPath string
	weights    string
	color      string
	sqlitePath string
	remaining  bool
	slack      bool
	cycles     bool
	watch      bool
	strict     bool
	version    bool
	metrics    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var o options
	fs := flag.NewFlagSet("bplan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.file, "file", ".", "Issue graph file, or a directory to search (json, jsonl, yaml, sqlite)")
	fs.StringVar(&o.format, "format", "", "Output format: json, text or mermaid (default from config, else text)")
	fs.StringVar(&o.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/bplan/config.yaml)")
	fs.StringVar(&o.weights, "weights", "", `Priority weights, "4,3,2,1" or "p0=5,p3=0"`)
	fs.StringVar(&o.color, "color", "", "Color for text output: auto, always or never")
	fs.StringVar(&o.sqlitePath, "sqlite", "", "Also export the graph and plan to this SQLite file")
	fs.BoolVar(&o.remaining, "remaining", false, "Plan only issues that are not done or cancelled")
	fs.BoolVar(&o.slack, "slack", false, "Include per-issue schedule and slack")
	fs.BoolVar(&o.cycles, "cycles", false, "List dependency cycles instead of planning")
	fs.BoolVar(&o.watch, "watch", false, "Re-run whenever the input file changes")
	fs.BoolVar(&o.strict, "strict", false, "Treat malformed records as errors instead of warnings")
	fs.BoolVar(&o.version, "version", false, "Show version")
	fs.BoolVar(&o.metrics, "metrics", false, "Print stage timings to stderr on exit")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: bplan [options]")
		fmt.Fprintln(stderr, "\nPlan an issue dependency graph: critical path, parallel groups, statistics.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return exitUsage
	}

	if o.version {
		fmt.Fprintf(stdout, "bplan %s\n", version.Version)
		return exitOK
	}

	cfg, err := resolveConfig(o, fs)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			return exitUsage
		}
		return exitError
	}
	if o.metrics {
		defer printMetrics(stderr)
	}
	if o.cycles {
		return runCycles(o, stdout, stderr)
	}
	if o.watch {
		return runWatch(ctx, o, cfg, stdout, stderr)
	}
	return runOnce(o, cfg, stdout, stderr)
}

// resolveConfig layers config file, environment and flags, in that order.
func resolveConfig(o options, fs *flag.FlagSet) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadExplicit(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if o.weights != "" {
		w, err := config.ParseWeights(o.weights, cfg.Weights)
		if err != nil {
			return cfg, fmt.Errorf("%w: -weights: %v", errUsage, err)
		}
		cfg.Weights = w
	}
	if set["format"] {
		cfg.Output.Format = strings.ToLower(o.format)
	}
	if set["color"] {
		cfg.Output.Color = strings.ToLower(o.color)
	}
	if set["remaining"] {
		cfg.Plan.RemainingOnly = o.remaining
	}
	if set["slack"] {
		cfg.Plan.IncludeSlack = o.slack
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%w: %v", errUsage, err)
	}
	return cfg, nil
}

func loadDocument(o options, stderr io.Writer) (*loader.Document, error) {
	return datasource.Load(o.file, loader.ParseOptions{
		Strict: o.strict,
		WarningHandler: func(msg string) {
			fmt.Fprintf(stderr, "Warning: %s\n", msg)
		},
	})
}

func runOnce(o options, cfg config.Config, stdout, stderr io.Writer) int {
	doc, err := loadDocument(o, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading graph: %v\n", err)
		return exitError
	}

	g, err := analysis.BuildGraph(doc.Nodes, doc.Edges)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	weights := cfg.Weights
	res, err := analysis.AnalyzeGraph(g, analysis.Options{
		Weights:         &weights,
		RemainingOnly:   cfg.Plan.RemainingOnly,
		IncludeSchedule: cfg.Plan.IncludeSlack,
	})
	if err != nil {
		var cerr *analysis.CycleError
		if errors.As(err, &cerr) {
			fmt.Fprintf(stderr, "Error: %v\n", cerr)
			fmt.Fprintln(stderr, "Run with -cycles to list every cyclic component.")
			return exitError
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	if o.sqlitePath != "" {
		exp := export.NewSQLiteExporter(g, res)
		exp.Source = doc.Source
		if err := exp.Export(o.sqlitePath); err != nil {
			fmt.Fprintf(stderr, "Error exporting SQLite: %v\n", err)
			return exitError
		}
		debug.Log("bplan: exported %s", o.sqlitePath)
	}

	if err := render(stdout, cfg, g, res, colorEnabled(cfg.Output.Color, stdout)); err != nil {
		fmt.Fprintf(stderr, "Error writing output: %v\n", err)
		return exitError
	}
	return exitOK
}

func render(w io.Writer, cfg config.Config, g *analysis.Graph, res *analysis.Result, color bool) error {
	switch cfg.Output.Format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case config.FormatMermaid:
		_, err := io.WriteString(w, export.GenerateMermaidGraph(g, res, export.DefaultMermaidConfig()))
		return err
	default:
		_, err := io.WriteString(w, renderText(g, res, newStyles(w, color)))
		return err
	}
}

// runCycles lists cycles and exits non-zero when any exist.
func runCycles(o options, stdout, stderr io.Writer) int {
	doc, err := loadDocument(o, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading graph: %v\n", err)
		return exitError
	}
	g, err := analysis.BuildGraph(doc.Nodes, doc.Edges)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	cycles := analysis.FindCycles(g, 0)
	if len(cycles) == 0 {
		fmt.Fprintln(stdout, "No dependency cycles.")
		return exitOK
	}
	fmt.Fprintf(stdout, "%d dependency cycle(s):\n", len(cycles))
	for _, c := range cycles {
		fmt.Fprintf(stdout, "  %s\n", strings.Join(c, " -> "))
	}
	return exitError
}

// runWatch re-runs the planner on every change until ctx is cancelled. A
// directory is resolved to the source the planner would load from it.
func runWatch(ctx context.Context, o options, cfg config.Config, stdout, stderr io.Writer) int {
	src, err := datasource.ResolveSource(o.file)
	if err != nil {
		fmt.Fprintf(stderr, "Error: -watch: %v\n", err)
		return exitUsage
	}

	w, err := watcher.NewWatcher(src.Path, watcher.WithOnError(func(err error) {
		fmt.Fprintf(stderr, "Watch: %v\n", err)
	}))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	code := exitOK
	err = w.Run(ctx, func(n int) {
		if n == 0 {
			mode := "fsnotify"
			if w.IsPolling() {
				mode = "polling"
			}
			fmt.Fprintf(stderr, "Watching %s (%s), Ctrl-C to stop\n", w.Path(), mode)
		} else {
			fmt.Fprintln(stdout)
		}
		code = runOnce(o, cfg, stdout, stderr)
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	return code
}

func printMetrics(w io.Writer) {
	stats := metrics.AllTimingStats()
	if len(stats) == 0 {
		return
	}
	fmt.Fprintln(w, "Timings:")
	for _, s := range stats {
		fmt.Fprintf(w, "  %-18s n=%-4d total=%8.3fms avg=%8.3fms max=%8.3fms\n",
			s.Name, s.Count, s.TotalMs, s.AvgMs, s.MaxMs)
	}
}
