package domain

import "errors"

var (
	// ErrNotFound is returned when an employee or task does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail indicates another employee already uses the email.
	ErrDuplicateEmail = errors.New("employee with this email already exists")
	// ErrDuplicateTitle indicates another task already uses the title.
	ErrDuplicateTitle = errors.New("task with this title already exists")
	// ErrConcurrencyConflict indicates that the underlying storage rejected an
	// update because a newer version of the entity is already persisted.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrNoImportantTasks is returned when no open task blocks in-progress work.
	ErrNoImportantTasks = errors.New("no important tasks found")
	// ErrNoEligibleEmployees is returned when every employee is on vacation
	// or the roster is empty.
	ErrNoEligibleEmployees = errors.New("no available employees found")
)

// ValidationError reports an invalid field in a write request.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, msg string) error {
	return ValidationError{Field: field, Message: msg}
}
