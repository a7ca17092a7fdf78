package domain

import "strings"

// EmployeeFilter narrows employee listings. The zero value matches everyone.
type EmployeeFilter struct {
	Vacation     *bool
	NameContains string
}

func (f EmployeeFilter) IsZero() bool {
	return f.Vacation == nil && f.NameContains == ""
}

func (f EmployeeFilter) Match(e Employee) bool {
	if f.Vacation != nil && e.VacationStatus != *f.Vacation {
		return false
	}
	if f.NameContains != "" && !strings.Contains(strings.ToLower(e.Name), strings.ToLower(f.NameContains)) {
		return false
	}
	return true
}

// TaskFilter narrows task listings. The zero value matches every task.
type TaskFilter struct {
	Status     *Status
	ExecutorID string
	ParentID   string
}

func (f TaskFilter) IsZero() bool {
	return f.Status == nil && f.ExecutorID == "" && f.ParentID == ""
}

func (f TaskFilter) Match(t Task) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.ExecutorID != "" && t.ExecutorID != f.ExecutorID {
		return false
	}
	if f.ParentID != "" && t.ParentID != f.ParentID {
		return false
	}
	return true
}
