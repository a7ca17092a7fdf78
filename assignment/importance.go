package assignment

import (
	"sort"

	"ttracker/domain"
)

// Important selects open tasks whose parent is in progress: work that is not
// staffed yet but blocks something already under way. The result is ordered
// by deadline, then id, so equal deadlines resolve the same way every time.
func Important(tasks []domain.Task) []domain.Task {
	byID := index(tasks)
	var out []domain.Task
	for _, t := range tasks {
		if isImportant(t, byID) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Deadline.Compare(out[j].Deadline); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Only one level up is inspected, so a malformed parent cycle cannot loop.
func isImportant(t domain.Task, byID map[string]domain.Task) bool {
	if t.Status != domain.StatusOpen || t.ParentID == "" {
		return false
	}
	parent, ok := byID[t.ParentID]
	return ok && parent.Status == domain.StatusInProgress
}

func index(tasks []domain.Task) map[string]domain.Task {
	byID := make(map[string]domain.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	return byID
}
