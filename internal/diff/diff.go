// Package diff computes line-level edit scripts between two versions of a
// contract document using Myers' shortest edit script algorithm.
package diff

import (
	"slices"
	"strings"
)

// Op is the kind of a single edit script entry.
type Op string

const (
	OpCommon  Op = "common"
	OpAdded   Op = "added"
	OpRemoved Op = "removed"
)

// Edit is one line of an edit script.
//
// LineNumber is the 1-based line in the new text for common and added
// entries. Removed entries have no new-text line and carry zero.
type Edit struct {
	Type       Op     `json:"type"`
	Value      string `json:"value"`
	LineNumber int    `json:"lineNumber,omitempty"`
}

// Lines compares oldText and newText line by line (split on "\n") and
// returns a minimal edit script. It is safe for concurrent use.
func Lines(oldText, newText string) []Edit {
	a := strings.Split(oldText, "\n")
	b := strings.Split(newText, "\n")
	return backtrack(a, b, shortestEdit(a, b))
}

// shortestEdit runs the forward Myers search and returns the furthest-reaching
// x for every diagonal, snapshotted before each edit distance d is explored.
func shortestEdit(a, b []string) [][]int {
	n, m := len(a), len(b)
	limit := n + m
	offset := limit
	v := make([]int, 2*limit+2)

	var trace [][]int
	for d := 0; d <= limit; d++ {
		trace = append(trace, slices.Clone(v))
		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
				x = v[offset+k+1]
			} else {
				x = v[offset+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[offset+k] = x
			if x >= n && y >= m {
				return trace
			}
		}
	}
	return trace
}

// backtrack walks the recorded traces from (n, m) back to the origin and
// emits the edit script in forward order.
func backtrack(a, b []string, trace [][]int) []Edit {
	x, y := len(a), len(b)
	offset := len(a) + len(b)
	edits := make([]Edit, 0, max(len(a), len(b)))

	for d := len(trace) - 1; d >= 0; d-- {
		v := trace[d]
		k := x - y

		var prevK int
		if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := v[offset+prevK]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			edits = append(edits, Edit{Type: OpCommon, Value: b[y-1], LineNumber: y})
			x--
			y--
		}

		if d > 0 {
			if x == prevX {
				edits = append(edits, Edit{Type: OpAdded, Value: b[y-1], LineNumber: y})
			} else {
				edits = append(edits, Edit{Type: OpRemoved, Value: a[x-1]})
			}
		}

		x, y = prevX, prevY
	}

	slices.Reverse(edits)
	return edits
}

// Distance returns the number of added and removed entries in a script.
func Distance(script []Edit) int {
	n := 0
	for _, e := range script {
		if e.Type != OpCommon {
			n++
		}
	}
	return n
}

// Old reconstructs the old text from the common and removed entries.
func Old(script []Edit) string {
	return join(script, OpRemoved)
}

// New reconstructs the new text from the common and added entries.
func New(script []Edit) string {
	return join(script, OpAdded)
}

func join(script []Edit, side Op) string {
	lines := make([]string, 0, len(script))
	for _, e := range script {
		if e.Type == OpCommon || e.Type == side {
			lines = append(lines, e.Value)
		}
	}
	return strings.Join(lines, "\n")
}
