package assignment

import "ttracker/domain"

// Record is the rendered form of a proposed assignment. Executor carries the
// proposed employee's name, not whatever executor the task has stored.
type Record struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Deadline   domain.Date `json:"deadline"`
	Executor   string      `json:"executor"`
	ExecutorID string      `json:"executorId"`
}

func Project(pairs []Pair) []Record {
	records := make([]Record, len(pairs))
	for i, p := range pairs {
		records[i] = Record{
			ID:         p.Task.ID,
			Title:      p.Task.Title,
			Deadline:   p.Task.Deadline,
			Executor:   p.Employee.Name,
			ExecutorID: p.Employee.ID,
		}
	}
	return records
}
