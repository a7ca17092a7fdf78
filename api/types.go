package api

import (
	"context"

	"ttracker/assignment"
	"ttracker/domain"
)

// Store abstracts persistence for handlers.
type Store interface {
	ListEmployees(ctx context.Context, f domain.EmployeeFilter) ([]domain.Employee, error)
	GetEmployee(ctx context.Context, id string) (domain.Employee, error)
	CreateEmployee(ctx context.Context, in domain.NewEmployee) (domain.Employee, error)
	UpdateEmployee(ctx context.Context, id string, upd domain.EmployeeUpdate) (domain.Employee, error)
	DeleteEmployee(ctx context.Context, id string) error
	ListTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	CreateTask(ctx context.Context, ownerID string, in domain.NewTask) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
	CountInProgressTasks(ctx context.Context, employeeID string) (int, error)
}

// Planner computes important-task assignments in two steps so the handler
// can time them separately.
type Planner interface {
	Snapshot(ctx context.Context) (assignment.Snapshot, error)
	Plan(snap assignment.Snapshot) ([]assignment.Record, error)
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents processing of duplicate create requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when the create fails.
	Remove(ctx context.Context, userID, key string) error
}

// EventPublisher delivers change events to the change feed.
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.ChangeEvent) error
}

// Options carries the optional collaborators of the HTTP layer.
type Options struct {
	// PageSize is the default task page size.
	PageSize int
	Deduper  Deduper
	// Events receives change events after successful writes. Nil drops them.
	Events *EventSender
}
