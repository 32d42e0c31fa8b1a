// Package model defines the issue and dependency records the planner operates on.
package model

import (
	"fmt"
	"strings"
)

// Priority is an ordered priority class. P0 is the most important.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// AllPriorities returns every priority class, most important first.
func AllPriorities() []Priority {
	return []Priority{PriorityP0, PriorityP1, PriorityP2, PriorityP3}
}

// IsValid reports whether p is one of the known priority classes.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityP0, PriorityP1, PriorityP2, PriorityP3:
		return true
	}
	return false
}

// Rank returns 0 for P0 through 3 for P3, and -1 for unknown values.
// Lower rank means more important.
func (p Priority) Rank() int {
	switch p {
	case PriorityP0:
		return 0
	case PriorityP1:
		return 1
	case PriorityP2:
		return 2
	case PriorityP3:
		return 3
	}
	return -1
}

// ParsePriority accepts "P1", "p1" and "1".
func ParsePriority(s string) (Priority, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if len(v) == 1 {
		v = "P" + v
	}
	p := Priority(v)
	if !p.IsValid() {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}

// Status is the workflow state of an issue.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// AllStatuses returns every status in declaration order.
func AllStatuses() []Status {
	return []Status{StatusOpen, StatusInProgress, StatusBlocked, StatusDone, StatusCancelled}
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusBlocked, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// IsClosed reports whether no further work is expected on the issue.
func (s Status) IsClosed() bool {
	return s == StatusDone || s == StatusCancelled
}

// NormalizeStatus maps common spellings onto the canonical status values.
// Unknown values are returned lower-cased so validation can report them.
func NormalizeStatus(s Status) Status {
	v := strings.ToLower(strings.TrimSpace(string(s)))
	v = strings.ReplaceAll(v, "-", "_")
	v = strings.ReplaceAll(v, " ", "_")
	switch v {
	case "":
		return StatusOpen
	case "closed", "complete", "completed":
		return StatusDone
	case "canceled":
		return StatusCancelled
	case "inprogress", "wip":
		return StatusInProgress
	}
	return Status(v)
}
