package analysis

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for errors.Is checks.
var (
	ErrStructural    = errors.New("structural error")
	ErrDuplicateNode = errors.New("duplicate node")
	ErrDanglingEdge  = errors.New("dangling edge")
	ErrSelfLoop      = errors.New("self loop")
	ErrInvalidNode   = errors.New("invalid node")
	ErrCycle         = errors.New("dependency cycle")
)

// StructuralKind classifies a StructuralError.
type StructuralKind string

const (
	KindDuplicateNode StructuralKind = "duplicate_node"
	KindDanglingEdge  StructuralKind = "dangling_edge"
	KindSelfLoop      StructuralKind = "self_loop"
	KindInvalidNode   StructuralKind = "invalid_node"
)

// StructuralError reports input that cannot form a graph at all.
// The graph is never returned alongside one.
type StructuralError struct {
	Kind StructuralKind
	// NodeID is set for duplicate and invalid nodes, and for the missing
	// endpoint of a dangling edge.
	NodeID string
	// From and To are set for edge errors.
	From, To string
	// Index is the position of the offending record in its input slice.
	Index int
	Err   error
}

func (e *StructuralError) Error() string {
	switch e.Kind {
	case KindDuplicateNode:
		return fmt.Sprintf("duplicate node id %q (node #%d)", e.NodeID, e.Index)
	case KindDanglingEdge:
		return fmt.Sprintf("edge #%d %s -> %s references unknown node %q", e.Index, e.From, e.To, e.NodeID)
	case KindSelfLoop:
		return fmt.Sprintf("edge #%d: %s depends on itself", e.Index, e.From)
	case KindInvalidNode:
		return fmt.Sprintf("invalid node #%d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("structural error: %s", e.Kind)
}

// Is matches ErrStructural and the sentinel for the error's kind.
func (e *StructuralError) Is(target error) bool {
	switch target {
	case ErrStructural:
		return true
	case ErrDuplicateNode:
		return e.Kind == KindDuplicateNode
	case ErrDanglingEdge:
		return e.Kind == KindDanglingEdge
	case ErrSelfLoop:
		return e.Kind == KindSelfLoop
	case ErrInvalidNode:
		return e.Kind == KindInvalidNode
	}
	return false
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// CycleError reports that the dependency relation is not acyclic.
type CycleError struct {
	// Cycle is a closed walk: Cycle[i] depends on Cycle[i+1], and the first
	// and last entries are the same node.
	Cycle []string
	// Components lists every strongly connected component with more than
	// one node, ids sorted, components ordered by their first id.
	Components [][]string
}

func (e *CycleError) Error() string {
	msg := "dependency cycle: " + strings.Join(e.Cycle, " -> ")
	if n := len(e.Components); n > 1 {
		msg += fmt.Sprintf(" (%d cyclic components)", n)
	}
	return msg
}

// Is matches ErrCycle.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}
