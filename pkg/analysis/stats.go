package analysis

import (
	"github.com/vanderheijden86/beadplan/pkg/metrics"
	"github.com/vanderheijden86/beadplan/pkg/model"
)

// GraphStatistics summarizes a graph together with its critical path and
// parallel plan.
type GraphStatistics struct {
	TotalNodes         int `json:"total_nodes"`
	TotalEdges         int `json:"total_edges"`
	MaxDepth           int `json:"max_depth"`
	RootIssues         int `json:"root_issues"` // no dependencies
	LeafIssues         int `json:"leaf_issues"` // nothing depends on them
	IsolatedIssues     int `json:"isolated_issues"`
	CriticalPathLength int `json:"critical_path_length"`
	MaxFanIn           int `json:"max_fan_in"`  // most dependents of one issue
	MaxFanOut          int `json:"max_fan_out"` // most dependencies of one issue
	ParallelismWidth   int `json:"parallelism_width"`

	TotalEffort    float64 `json:"total_effort"`
	WeightedEffort float64 `json:"weighted_effort"`

	// Both histograms carry every enum value, zero counts included.
	ByPriority map[model.Priority]int `json:"by_priority"`
	ByStatus   map[model.Status]int   `json:"by_status"`
}

// Summarize aggregates counts from the graph and the derived artifacts.
// The weights only feed WeightedEffort.
func Summarize(g *Graph, cp CriticalPath, groups []ParallelGroup, w PriorityWeights) GraphStatistics {
	defer metrics.Timer(metrics.Statistics)()

	s := GraphStatistics{
		TotalNodes:         g.NodeCount(),
		TotalEdges:         g.EdgeCount(),
		CriticalPathLength: len(cp.Path),
		ByPriority:         make(map[model.Priority]int, 4),
		ByStatus:           make(map[model.Status]int, 5),
	}
	if len(groups) > 1 {
		s.MaxDepth = len(groups) - 1
	}
	for _, p := range model.AllPriorities() {
		s.ByPriority[p] = 0
	}
	for _, st := range model.AllStatuses() {
		s.ByStatus[st] = 0
	}

	for _, id := range g.ids {
		n := g.nodes[id]
		s.ByPriority[n.Priority]++
		s.ByStatus[n.Status]++
		s.TotalEffort += n.Effort
		s.WeightedEffort += n.Effort * w.Weight(n.Priority)

		out, in := g.DependencyCount(id), g.DependentCount(id)
		if out == 0 {
			s.RootIssues++
		}
		if in == 0 {
			s.LeafIssues++
		}
		if in == 0 && out == 0 {
			s.IsolatedIssues++
		}
		s.MaxFanIn = max(s.MaxFanIn, in)
		s.MaxFanOut = max(s.MaxFanOut, out)
	}

	for _, grp := range groups {
		s.ParallelismWidth = max(s.ParallelismWidth, grp.Size())
	}
	return s
}
