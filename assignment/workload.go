package assignment

import "ttracker/domain"

// Load is an employee annotated with the number of tasks it currently has
// in progress.
type Load struct {
	Employee   domain.Employee
	InProgress int
}

// Workload counts in-progress tasks per executor id. Employees without
// in-progress work are absent from the map and read as zero.
func Workload(tasks []domain.Task) map[string]int {
	counts := make(map[string]int)
	for _, t := range tasks {
		if t.ExecutorID == "" || t.Status != domain.StatusInProgress {
			continue
		}
		counts[t.ExecutorID]++
	}
	return counts
}

// Annotate attaches the in-progress count to each employee, preserving the
// roster order.
func Annotate(employees []domain.Employee, tasks []domain.Task) []Load {
	counts := Workload(tasks)
	loads := make([]Load, len(employees))
	for i, e := range employees {
		loads[i] = Load{Employee: e, InProgress: counts[e.ID]}
	}
	return loads
}

// InProgressTasks returns the tasks employeeID is currently working on.
func InProgressTasks(employeeID string, tasks []domain.Task) []domain.Task {
	var out []domain.Task
	for _, t := range tasks {
		if t.ExecutorID == employeeID && t.Status == domain.StatusInProgress {
			out = append(out, t)
		}
	}
	return out
}
