package domain

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const maxTitleLen = 150

// Status is the lifecycle state of a task: open -> in_progress -> done.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if !st.Valid() {
		return "", invalid("status", "unknown status "+strconv.Quote(s))
	}
	return st, nil
}

// Task is a unit of work, optionally nested under a parent task and
// optionally executed by an employee.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Deadline    Date   `json:"deadline"`
	Status      Status `json:"status"`
	ParentID    string `json:"parentId,omitempty"`
	ExecutorID  string `json:"executorId,omitempty"`
	OwnerID     string `json:"ownerId,omitempty"`
}

// Overdue reports whether the deadline passed before today and the task is
// not done yet.
func (t Task) Overdue(today Date) bool {
	return t.Status != StatusDone && t.Deadline.Before(today)
}

// Validate checks the invariants of a complete task record. References to
// other entities are checked by the store.
func (t Task) Validate() error {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return invalid("title", "must not be empty")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return invalid("title", "must be at most 150 characters")
	}
	if t.Deadline.IsZero() {
		return invalid("deadline", "is required")
	}
	if !t.Status.Valid() {
		return invalid("status", "unknown status "+strconv.Quote(string(t.Status)))
	}
	if t.ID != "" && t.ParentID == t.ID {
		return invalid("parentId", "a task cannot be its own parent")
	}
	return nil
}

// NewTask carries the fields accepted when creating a task. The owner is
// never taken from the payload.
type NewTask struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Deadline    Date   `json:"deadline"`
	Status      Status `json:"status,omitempty"`
	ParentID    string `json:"parentId,omitempty"`
	ExecutorID  string `json:"executorId,omitempty"`
}

// Task builds the record that would be stored under id for ownerID.
func (n NewTask) Task(id, ownerID string) Task {
	status := n.Status
	if status == "" {
		status = StatusOpen
	}
	return Task{
		ID:          id,
		Title:       strings.TrimSpace(n.Title),
		Description: n.Description,
		Deadline:    n.Deadline,
		Status:      status,
		ParentID:    n.ParentID,
		ExecutorID:  n.ExecutorID,
		OwnerID:     ownerID,
	}
}

// TaskUpdate carries a partial update. Nil fields are left untouched; an
// empty ParentID or ExecutorID clears the reference.
type TaskUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Deadline    *Date   `json:"deadline,omitempty"`
	Status      *Status `json:"status,omitempty"`
	ParentID    *string `json:"parentId,omitempty"`
	ExecutorID  *string `json:"executorId,omitempty"`
}

func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Deadline == nil && u.Status == nil && u.ParentID == nil && u.ExecutorID == nil
}

// Apply returns a copy of t with the update applied.
func (u TaskUpdate) Apply(t Task) Task {
	if u.Title != nil {
		t.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Deadline != nil {
		t.Deadline = *u.Deadline
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.ParentID != nil {
		t.ParentID = *u.ParentID
	}
	if u.ExecutorID != nil {
		t.ExecutorID = *u.ExecutorID
	}
	return t
}
