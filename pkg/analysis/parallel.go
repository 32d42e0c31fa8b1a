package analysis

import (
	"sort"

	"github.com/vanderheijden86/beadplan/pkg/metrics"
)

// ParallelGroup is one batch of issues that can run concurrently. Every
// dependency of an issue in group k sits in a group with a lower index.
type ParallelGroup struct {
	Index    int      `json:"index"`
	IssueIDs []string `json:"issue_ids"`
}

// Size returns the number of issues in the group.
func (pg ParallelGroup) Size() int { return len(pg.IssueIDs) }

// PlanParallelGroups batches every issue into the fewest ordered groups.
//
// Group 0 holds the roots; group k holds issues whose last unsatisfied
// dependency was released by group k-1. Within a group, issues are listed
// by priority weight (descending) then id. The order inside a group never
// affects which group an issue lands in.
func PlanParallelGroups(d *DAG, w PriorityWeights) []ParallelGroup {
	defer metrics.Timer(metrics.ParallelPlan)()
	return planLevels(d, w, func(string) bool { return true })
}

// PlanRemaining batches only issues that still need work. Done and
// cancelled issues are left out and count as already satisfied for the
// issues that depend on them.
func PlanRemaining(d *DAG, w PriorityWeights) []ParallelGroup {
	defer metrics.Timer(metrics.ParallelPlan)()
	return planLevels(d, w, func(id string) bool {
		return !d.nodes[id].Status.IsClosed()
	})
}

func planLevels(d *DAG, w PriorityWeights, include func(string) bool) []ParallelGroup {
	groups := []ParallelGroup{}

	pending := make(map[string]int, len(d.ids))
	var frontier []string
	for _, id := range d.ids {
		if !include(id) {
			continue
		}
		n := 0
		for _, dep := range d.dependsOnView(id) {
			if include(dep) {
				n++
			}
		}
		pending[id] = n
		if n == 0 {
			frontier = append(frontier, id)
		}
	}

	for len(frontier) > 0 {
		sortGroup(d, w, frontier)
		groups = append(groups, ParallelGroup{Index: len(groups), IssueIDs: frontier})

		var next []string
		for _, id := range frontier {
			for _, dependent := range d.dependentsView(id) {
				if _, tracked := pending[dependent]; !tracked {
					continue
				}
				pending[dependent]--
				if pending[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		frontier = next
	}
	return groups
}

func sortGroup(d *DAG, w PriorityWeights, ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		wi := w.Weight(d.nodes[ids[i]].Priority)
		wj := w.Weight(d.nodes[ids[j]].Priority)
		if wi != wj {
			return wi > wj
		}
		return lessID(ids[i], ids[j])
	})
}

// GroupIndex maps each issue id to the index of its group.
func GroupIndex(groups []ParallelGroup) map[string]int {
	idx := make(map[string]int)
	for _, g := range groups {
		for _, id := range g.IssueIDs {
			idx[id] = g.Index
		}
	}
	return idx
}
