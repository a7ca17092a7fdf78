package assignment

import (
	"fmt"
	"time"

	"ttracker/domain"
)

func employee(id string, vacation bool) domain.Employee {
	return domain.Employee{
		ID:             id,
		Name:           "Employee " + id,
		Position:       domain.PositionCategory1,
		Email:          id + "@example.com",
		VacationStatus: vacation,
	}
}

func task(id string, status domain.Status, parentID, executorID string, day int) domain.Task {
	return domain.Task{
		ID:         id,
		Title:      "Task " + id,
		Deadline:   domain.NewDate(2024, time.September, day),
		Status:     status,
		ParentID:   parentID,
		ExecutorID: executorID,
	}
}

// busy returns n in-progress tasks executed by employeeID, without parents.
func busy(employeeID string, n int) []domain.Task {
	out := make([]domain.Task, n)
	for i := range out {
		out[i] = task(fmt.Sprintf("busy-%s-%d", employeeID, i), domain.StatusInProgress, "", employeeID, 1)
	}
	return out
}

func executors(pairs []Pair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.Employee.ID
	}
	return out
}
