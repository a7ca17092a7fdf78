package domain

import "github.com/bytedance/sonic"

const (
	EntityEmployee = "employee"
	EntityTask     = "task"
)

const (
	EmployeeCreated = "employee-created"
	EmployeeUpdated = "employee-updated"
	EmployeeDeleted = "employee-deleted"
	TaskCreated     = "task-created"
	TaskUpdated     = "task-updated"
	TaskDeleted     = "task-deleted"
)

// ChangeEvent describes a committed mutation, published to the change feed.
type ChangeEvent struct {
	ID         string                 `json:"id"`
	EntityType string                 `json:"entityType"`
	EntityID   string                 `json:"entityId"`
	Type       string                 `json:"type"`
	Data       sonic.NoCopyRawMessage `json:"data,omitempty"`
	Time       int64                  `json:"time"`
	UserID     string                 `json:"userId"`
}
