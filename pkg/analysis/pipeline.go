package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/vanderheijden86/beadplan/pkg/debug"
	"github.com/vanderheijden86/beadplan/pkg/model"

	"golang.org/x/sync/errgroup"
)

// Options tunes one analysis run. The zero value is usable.
type Options struct {
	// Weights orders issues inside a group and feeds WeightedEffort.
	// Nil means DefaultPriorityWeights.
	Weights *PriorityWeights
	// RemainingOnly plans only issues that are not done or cancelled.
	RemainingOnly bool
	// IncludeSchedule adds per-issue earliest/latest times and slack.
	IncludeSchedule bool
}

func (o Options) weights() PriorityWeights {
	if o.Weights == nil {
		return DefaultPriorityWeights()
	}
	return *o.Weights
}

// Result holds everything derived from one graph snapshot.
type Result struct {
	CriticalPath CriticalPath             `json:"critical_path"`
	Groups       []ParallelGroup          `json:"parallel_groups"`
	Stats        GraphStatistics          `json:"statistics"`
	Order        []string                 `json:"topological_order"`
	Schedule     map[string]ScheduleEntry `json:"schedule,omitempty"`
	Weights      PriorityWeights          `json:"weights"`
}

// Analyze builds, validates and analyzes a graph in one call. Structural
// and cycle errors are returned unchanged and no partial result is
// produced.
func Analyze(nodes []model.IssueNode, edges []model.DependencyEdge, opts Options) (*Result, error) {
	g, err := BuildGraph(nodes, edges)
	if err != nil {
		return nil, err
	}
	return AnalyzeGraph(g, opts)
}

// AnalyzeGraph validates g and computes the critical path, the parallel
// plan and the statistics.
func AnalyzeGraph(g *Graph, opts Options) (*Result, error) {
	defer debug.LogEnterExit("AnalyzeGraph")()

	w := opts.weights()
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("priority weights: %w", err)
	}

	dag, err := Validate(g)
	if err != nil {
		return nil, err
	}

	cp := ComputeCriticalPath(dag)
	var groups []ParallelGroup
	if opts.RemainingOnly {
		groups = PlanRemaining(dag, w)
	} else {
		groups = PlanParallelGroups(dag, w)
	}
	debug.Log("analysis: %d nodes, %d edges, path %d long (%.2f), %d groups",
		g.NodeCount(), g.EdgeCount(), cp.Len(), cp.TotalDuration, len(groups))

	res := &Result{
		CriticalPath: cp,
		Groups:       groups,
		Stats:        Summarize(g, cp, groups, w),
		Order:        dag.Order(),
		Weights:      w,
	}
	if opts.IncludeSchedule {
		res.Schedule = ComputeSchedule(dag)
	}
	return res, nil
}

// Request is one independent analysis job.
type Request struct {
	Name    string
	Nodes   []model.IssueNode
	Edges   []model.DependencyEdge
	Options Options
}

// BatchResult is the outcome of one Request. Exactly one of Result and
// Err is set.
type BatchResult struct {
	Name    string
	Result  *Result
	Err     error
	Elapsed time.Duration
}

// DefaultBatchLimit caps concurrent analyses in AnalyzeBatch.
const DefaultBatchLimit = 8

// AnalyzeBatch runs independent requests concurrently. Each request owns
// its graph, so nothing is shared between workers. Per-request failures
// land in the matching BatchResult; the returned error is only set when ctx
// is cancelled, in which case unstarted requests carry ctx.Err().
func AnalyzeBatch(ctx context.Context, reqs []Request, limit int) ([]BatchResult, error) {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	results := make([]BatchResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, req := range reqs {
		g.Go(func() error {
			results[i].Name = req.Name
			select {
			case <-gctx.Done():
				results[i].Err = gctx.Err()
				return nil
			default:
			}
			start := time.Now()
			res, err := Analyze(req.Nodes, req.Edges, req.Options)
			results[i].Result, results[i].Err = res, err
			results[i].Elapsed = time.Since(start)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	debug.Log("batch: analyzed %d requests", len(reqs))
	return results, ctx.Err()
}
