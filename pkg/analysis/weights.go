package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/vanderheijden86/beadplan/pkg/model"
)

// PriorityWeights maps each priority class to a non-negative weight.
// Callers conventionally keep P0 >= P1 >= P2 >= P3, but nothing enforces it.
type PriorityWeights struct {
	P0 float64 `json:"p0" yaml:"p0"`
	P1 float64 `json:"p1" yaml:"p1"`
	P2 float64 `json:"p2" yaml:"p2"`
	P3 float64 `json:"p3" yaml:"p3"`
}

// DefaultPriorityWeights returns 4/3/2/1.
func DefaultPriorityWeights() PriorityWeights {
	return PriorityWeights{P0: 4, P1: 3, P2: 2, P3: 1}
}

// Weight looks up the weight for p. Unknown priorities weigh 0.
func (w PriorityWeights) Weight(p model.Priority) float64 {
	switch p {
	case model.PriorityP0:
		return w.P0
	case model.PriorityP1:
		return w.P1
	case model.PriorityP2:
		return w.P2
	case model.PriorityP3:
		return w.P3
	}
	return 0
}

// Validate rejects negative or non-finite weights.
func (w PriorityWeights) Validate() error {
	for _, p := range model.AllPriorities() {
		v := w.Weight(p)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weight for %s must be finite", p)
		}
		if v < 0 {
			return fmt.Errorf("weight for %s cannot be negative (%g)", p, v)
		}
	}
	return nil
}

// IsZero reports whether no weight was configured.
func (w PriorityWeights) IsZero() bool {
	return w == PriorityWeights{}
}

// Rank orders issues by priority weight (descending), then effort
// (descending), then id. It returns ids and does not modify nodes.
func Rank(nodes []model.IssueNode, w PriorityWeights) []string {
	sorted := append([]model.IssueNode(nil), nodes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		wi, wj := w.Weight(sorted[i].Priority), w.Weight(sorted[j].Priority)
		if wi != wj {
			return wi > wj
		}
		if sorted[i].Effort != sorted[j].Effort {
			return sorted[i].Effort > sorted[j].Effort
		}
		return lessID(sorted[i].ID, sorted[j].ID)
	})
	ids := make([]string, len(sorted))
	for i, n := range sorted {
		ids[i] = n.ID
	}
	return ids
}
