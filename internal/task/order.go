package task

import (
	"sort"
)

// SortForDisplay orders tasks in place: pending before completed, then
// newest CreatedAt first within each group. Ties fall back to the id so the
// order is deterministic.
func SortForDisplay(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return displayLess(tasks[i], tasks[j])
	})
}

func displayLess(a, b Task) bool {
	if a.Completed() != b.Completed() {
		return !a.Completed()
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Clone returns a copy of tasks that shares no backing array with the input.
func Clone(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}
