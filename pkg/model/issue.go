package model

import (
	"errors"
	"fmt"
	"math"
)

// IssueNode is a single unit of work in a dependency graph.
type IssueNode struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Priority    Priority `json:"priority" yaml:"priority"`
	Effort      float64  `json:"effort" yaml:"effort"` // estimated cost, hours
	Status      Status   `json:"status" yaml:"status"`
	ComponentID string   `json:"component_id,omitempty" yaml:"component_id,omitempty"`
}

// Validate checks the node's own fields. It does not look at edges.
func (n IssueNode) Validate() error {
	if n.ID == "" {
		return errors.New("issue ID cannot be empty")
	}
	if math.IsNaN(n.Effort) || math.IsInf(n.Effort, 0) {
		return fmt.Errorf("issue %s: effort must be a finite number", n.ID)
	}
	if n.Effort < 0 {
		return fmt.Errorf("issue %s: effort cannot be negative (%g)", n.ID, n.Effort)
	}
	if !n.Priority.IsValid() {
		return fmt.Errorf("issue %s: invalid priority %q", n.ID, n.Priority)
	}
	if !n.Status.IsValid() {
		return fmt.Errorf("issue %s: invalid status %q", n.ID, n.Status)
	}
	return nil
}

// DependencyEdge records that From depends on To: To must complete before
// From can start.
type DependencyEdge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// IsSelfLoop reports whether the edge points at its own source.
func (e DependencyEdge) IsSelfLoop() bool {
	return e.From == e.To
}

func (e DependencyEdge) String() string {
	return e.From + " -> " + e.To
}
