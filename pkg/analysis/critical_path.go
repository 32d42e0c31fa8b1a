package analysis

import (
	"math"

	"github.com/vanderheijden86/beadplan/pkg/metrics"

	json "github.com/goccy/go-json"
)

// CriticalPath is the root-to-leaf chain with the greatest total effort.
type CriticalPath struct {
	// Path lists issue ids dependency first: Path[0] is a root and the last
	// entry is an issue nothing depends on.
	Path          []string `json:"path"`
	TotalDuration float64  `json:"total_duration"`
	// Bottleneck is the path issue with the largest own effort, ties broken
	// by smallest id. Empty when the path is empty.
	Bottleneck string `json:"bottleneck"`
}

// MarshalJSON writes an empty Bottleneck as null.
func (cp CriticalPath) MarshalJSON() ([]byte, error) {
	out := struct {
		Path          []string `json:"path"`
		TotalDuration float64  `json:"total_duration"`
		Bottleneck    *string  `json:"bottleneck"`
	}{Path: cp.Path, TotalDuration: cp.TotalDuration}
	if cp.Bottleneck != "" {
		b := cp.Bottleneck
		out.Bottleneck = &b
	}
	return json.Marshal(out)
}

// Len returns the number of issues on the path.
func (cp CriticalPath) Len() int { return len(cp.Path) }

// Contains reports whether id lies on the path.
func (cp CriticalPath) Contains(id string) bool {
	for _, p := range cp.Path {
		if p == id {
			return true
		}
	}
	return false
}

// longestFinish returns, for every issue, the largest cumulative effort of
// any chain ending at it, plus the dependency that achieved it ("" for
// roots). Ties pick the smallest dependency id.
func longestFinish(d *DAG) (map[string]float64, map[string]string) {
	finish := make(map[string]float64, len(d.order))
	via := make(map[string]string, len(d.order))

	for _, id := range d.order {
		best, bestVal := "", 0.0
		for _, dep := range d.dependsOnView(id) {
			v := finish[dep]
			if best == "" || v > bestVal || (v == bestVal && lessID(dep, best)) {
				best, bestVal = dep, v
			}
		}
		finish[id] = d.nodes[id].Effort + bestVal
		via[id] = best
	}
	return finish, via
}

// ComputeCriticalPath finds the maximum-effort chain through the DAG.
//
// The chain ends at the leaf with the greatest cumulative effort (ties by
// smallest id) and is traced back through the dependency that achieved the
// maximum at each step. An empty graph yields an empty path.
func ComputeCriticalPath(d *DAG) CriticalPath {
	defer metrics.Timer(metrics.CriticalPath)()

	cp := CriticalPath{Path: []string{}}
	if len(d.order) == 0 {
		return cp
	}

	finish, via := longestFinish(d)

	end := ""
	for _, id := range d.order {
		if !d.IsLeaf(id) {
			continue
		}
		if end == "" || finish[id] > finish[end] || (finish[id] == finish[end] && lessID(id, end)) {
			end = id
		}
	}

	var rev []string
	for id := end; id != ""; id = via[id] {
		rev = append(rev, id)
	}
	for i := len(rev) - 1; i >= 0; i-- {
		cp.Path = append(cp.Path, rev[i])
	}

	for _, id := range cp.Path {
		effort := d.nodes[id].Effort
		cp.TotalDuration += effort
		if cp.Bottleneck == "" {
			cp.Bottleneck = id
			continue
		}
		best := d.nodes[cp.Bottleneck].Effort
		if effort > best || (effort == best && lessID(id, cp.Bottleneck)) {
			cp.Bottleneck = id
		}
	}
	return cp
}

// ScheduleEntry holds earliest/latest timing for one issue, in effort
// units from project start, assuming unlimited parallelism.
type ScheduleEntry struct {
	EarliestStart  float64 `json:"earliest_start"`
	EarliestFinish float64 `json:"earliest_finish"`
	LatestStart    float64 `json:"latest_start"`
	LatestFinish   float64 `json:"latest_finish"`
	Slack          float64 `json:"slack"`
}

// slackEpsilon absorbs float drift so issues on a maximal chain report
// exactly zero slack.
const slackEpsilon = 1e-9

// ComputeSchedule runs a forward and a backward pass over the DAG. Issues on
// any maximal-effort chain have zero slack.
func ComputeSchedule(d *DAG) map[string]ScheduleEntry {
	out := make(map[string]ScheduleEntry, len(d.order))
	if len(d.order) == 0 {
		return out
	}

	finish, _ := longestFinish(d)

	// tail[n] is the largest effort of a chain starting at n, n included,
	// following dependents.
	tail := make(map[string]float64, len(d.order))
	for i := len(d.order) - 1; i >= 0; i-- {
		id := d.order[i]
		best := 0.0
		for _, dep := range d.dependentsView(id) {
			best = math.Max(best, tail[dep])
		}
		tail[id] = d.nodes[id].Effort + best
	}

	horizon := 0.0
	for _, id := range d.order {
		horizon = math.Max(horizon, finish[id])
	}

	for _, id := range d.order {
		effort := d.nodes[id].Effort
		lf := horizon - (tail[id] - effort)
		slack := lf - finish[id]
		if math.Abs(slack) < slackEpsilon {
			slack = 0
		}
		out[id] = ScheduleEntry{
			EarliestStart:  finish[id] - effort,
			EarliestFinish: finish[id],
			LatestStart:    lf - effort,
			LatestFinish:   lf,
			Slack:          slack,
		}
	}
	return out
}

// ComputeSlack returns per-issue slack: how much an issue can slip without
// extending the critical path.
func ComputeSlack(d *DAG) map[string]float64 {
	sched := ComputeSchedule(d)
	slack := make(map[string]float64, len(sched))
	for id, e := range sched {
		slack[id] = e.Slack
	}
	return slack
}
