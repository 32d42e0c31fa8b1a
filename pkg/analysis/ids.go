package analysis

import (
	"sort"
	"strconv"
)

// CompareIDs orders issue ids for every deterministic tie-break in the
// package. Purely numeric ids compare by value ("2" < "10") and sort before
// all other ids; everything else compares as plain strings. Returns -1, 0
// or 1.
func CompareIDs(a, b string) int {
	if a == b {
		return 0
	}
	ai, aerr := strconv.ParseUint(a, 10, 64)
	bi, berr := strconv.ParseUint(b, 10, 64)
	switch {
	case aerr == nil && berr != nil:
		return -1
	case aerr != nil && berr == nil:
		return 1
	case aerr == nil && berr == nil && ai != bi:
		if ai < bi {
			return -1
		}
		return 1
	}
	if a < b {
		return -1
	}
	return 1
}

// lessID reports whether a sorts before b under CompareIDs.
func lessID(a, b string) bool {
	return CompareIDs(a, b) < 0
}

// SortIDs sorts ids in place using CompareIDs.
func SortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
}
