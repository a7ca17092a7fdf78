package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"ttracker/domain"
)

const (
	employeePartition = "employee"
	emailPartition    = "email"
	taskPartition     = "task"
	titlePartition    = "title"

	// maxUpdateAttempts bounds optimistic-concurrency retries on updates.
	maxUpdateAttempts = 5
	// maxAncestry bounds the parent walk used to reject cycles.
	maxAncestry = 1000
)

// Storage is the entity store. Employees and their email reservations live
// in one table, tasks and their title reservations in another.
type Storage struct {
	employees table
	tasks     table
	newID     func() (string, error)
}

// New creates a Storage instance from the given connection string.
func New(connStr, employeesTable, tasksTable string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	return newStorage(azTable{client: svc.NewClient(employeesTable)}, azTable{client: svc.NewClient(tasksTable)}), nil
}

func newStorage(employees, tasks table) *Storage {
	return &Storage{employees: employees, tasks: tasks, newID: newEntityID}
}

// newEntityID returns a time-ordered UUID so ids sort in creation order.
func newEntityID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

type employeeEntity struct {
	PartitionKey   string `json:"PartitionKey"`
	RowKey         string `json:"RowKey"`
	ETag           string `json:"odata.etag,omitempty"`
	Name           string `json:"Name"`
	Position       string `json:"Position"`
	Email          string `json:"Email"`
	PhoneNumber    string `json:"PhoneNumber"`
	VacationStatus bool   `json:"VacationStatus"`
}

type taskEntity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
	ETag         string `json:"odata.etag,omitempty"`
	Title        string `json:"Title"`
	Description  string `json:"Description"`
	Deadline     string `json:"Deadline"`
	Status       string `json:"Status"`
	ParentID     string `json:"ParentID"`
	ExecutorID   string `json:"ExecutorID"`
	OwnerID      string `json:"OwnerID"`
}

// reservationEntity claims a unique value (email, title) for one entity.
type reservationEntity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
	EntityID     string `json:"EntityID"`
}

func encodeEmployee(e domain.Employee) ([]byte, error) {
	return json.Marshal(employeeEntity{
		PartitionKey:   employeePartition,
		RowKey:         e.ID,
		Name:           e.Name,
		Position:       string(e.Position),
		Email:          e.Email,
		PhoneNumber:    e.PhoneNumber,
		VacationStatus: e.VacationStatus,
	})
}

func decodeEmployee(data []byte) (domain.Employee, error) {
	var ent employeeEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Employee{}, err
	}
	return domain.Employee{
		ID:             ent.RowKey,
		Name:           ent.Name,
		Position:       domain.Position(ent.Position),
		Email:          ent.Email,
		PhoneNumber:    ent.PhoneNumber,
		VacationStatus: ent.VacationStatus,
	}, nil
}

func encodeTask(t domain.Task) ([]byte, error) {
	return json.Marshal(taskEntity{
		PartitionKey: taskPartition,
		RowKey:       t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Deadline:     t.Deadline.String(),
		Status:       string(t.Status),
		ParentID:     t.ParentID,
		ExecutorID:   t.ExecutorID,
		OwnerID:      t.OwnerID,
	})
}

func decodeTask(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	deadline, err := domain.ParseDate(ent.Deadline)
	if err != nil {
		return domain.Task{}, fmt.Errorf("task %s: %w", ent.RowKey, err)
	}
	return domain.Task{
		ID:          ent.RowKey,
		Title:       ent.Title,
		Description: ent.Description,
		Deadline:    deadline,
		Status:      domain.Status(ent.Status),
		ParentID:    ent.ParentID,
		ExecutorID:  ent.ExecutorID,
		OwnerID:     ent.OwnerID,
	}, nil
}

// reservationKey maps a unique value onto a RowKey. Row keys forbid
// characters such as '/', '#' and '?', so the value is base64url encoded.
func reservationKey(value string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

func reserve(ctx context.Context, tbl table, partition, value, entityID string, dup error) error {
	payload, err := json.Marshal(reservationEntity{PartitionKey: partition, RowKey: reservationKey(value), EntityID: entityID})
	if err != nil {
		return err
	}
	if err := tbl.Add(ctx, payload); err != nil {
		if errors.Is(err, errEntityExists) {
			return dup
		}
		return fmt.Errorf("reserve %s: %w", partition, err)
	}
	return nil
}

func release(ctx context.Context, tbl table, partition, value string) {
	if err := tbl.Delete(ctx, partition, reservationKey(value)); err != nil && !errors.Is(err, domain.ErrNotFound) {
		log.WithError(err).WithField("partition", partition).Warn("release reservation failed")
	}
}

// ListEmployees returns employees matching f ordered by id.
func (s *Storage) ListEmployees(ctx context.Context, f domain.EmployeeFilter) ([]domain.Employee, error) {
	var where []cond
	if f.Vacation != nil {
		where = append(where, eq("VacationStatus", *f.Vacation))
	}
	rows, err := s.employees.List(ctx, employeePartition, where...)
	if err != nil {
		return nil, err
	}
	employees := make([]domain.Employee, 0, len(rows))
	for _, row := range rows {
		e, err := decodeEmployee(row)
		if err != nil {
			return nil, err
		}
		// Name search has no table-side operator.
		if f.Match(e) {
			employees = append(employees, e)
		}
	}
	sort.Slice(employees, func(i, j int) bool { return employees[i].ID < employees[j].ID })
	return employees, nil
}

func (s *Storage) GetEmployee(ctx context.Context, id string) (domain.Employee, error) {
	e, _, err := s.getEmployee(ctx, id)
	return e, err
}

func (s *Storage) getEmployee(ctx context.Context, id string) (domain.Employee, string, error) {
	if id == "" {
		return domain.Employee{}, "", errNotFound
	}
	ent, err := s.employees.Get(ctx, employeePartition, id)
	if err != nil {
		return domain.Employee{}, "", err
	}
	e, err := decodeEmployee(ent.Value)
	return e, ent.ETag, err
}

// CreateEmployee validates and stores a new employee.
func (s *Storage) CreateEmployee(ctx context.Context, in domain.NewEmployee) (domain.Employee, error) {
	id, err := s.newID()
	if err != nil {
		return domain.Employee{}, err
	}
	e := in.Employee(id)
	if err := e.Validate(); err != nil {
		return domain.Employee{}, err
	}
	email := domain.NormalizeEmail(e.Email)
	if err := reserve(ctx, s.employees, emailPartition, email, id, domain.ErrDuplicateEmail); err != nil {
		return domain.Employee{}, err
	}
	payload, err := encodeEmployee(e)
	if err == nil {
		err = s.employees.Add(ctx, payload)
	}
	if err != nil {
		release(ctx, s.employees, emailPartition, email)
		return domain.Employee{}, fmt.Errorf("add employee: %w", err)
	}
	return e, nil
}

// UpdateEmployee applies a partial update, moving the email reservation when
// the address changes.
func (s *Storage) UpdateEmployee(ctx context.Context, id string, upd domain.EmployeeUpdate) (domain.Employee, error) {
	for attempt := 0; ; attempt++ {
		cur, etag, err := s.getEmployee(ctx, id)
		if err != nil {
			return domain.Employee{}, err
		}
		next := upd.Apply(cur)
		if err := next.Validate(); err != nil {
			return domain.Employee{}, err
		}

		oldEmail, newEmail := domain.NormalizeEmail(cur.Email), domain.NormalizeEmail(next.Email)
		moved := oldEmail != newEmail
		if moved {
			if err := reserve(ctx, s.employees, emailPartition, newEmail, id, domain.ErrDuplicateEmail); err != nil {
				return domain.Employee{}, err
			}
		}

		payload, err := encodeEmployee(next)
		if err == nil {
			err = s.employees.Replace(ctx, payload, etag)
		}
		if err != nil {
			if moved {
				release(ctx, s.employees, emailPartition, newEmail)
			}
			if errors.Is(err, domain.ErrConcurrencyConflict) && attempt+1 < maxUpdateAttempts {
				log.WithField("employee", id).Debug("employee update conflict, retrying")
				continue
			}
			return domain.Employee{}, fmt.Errorf("update employee %s: %w", id, err)
		}
		if moved {
			release(ctx, s.employees, emailPartition, oldEmail)
		}
		return next, nil
	}
}

// DeleteEmployee removes an employee together with every task it executes.
func (s *Storage) DeleteEmployee(ctx context.Context, id string) error {
	e, err := s.GetEmployee(ctx, id)
	if err != nil {
		return err
	}
	executed, err := s.ListTasks(ctx, domain.TaskFilter{ExecutorID: id})
	if err != nil {
		return err
	}
	for _, t := range executed {
		if err := s.DeleteTask(ctx, t.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("cascade task %s: %w", t.ID, err)
		}
	}
	if err := s.employees.Delete(ctx, employeePartition, id); err != nil {
		return err
	}
	release(ctx, s.employees, emailPartition, domain.NormalizeEmail(e.Email))
	log.WithFields(log.Fields{"employee": id, "tasks": len(executed)}).Info("employee deleted")
	return nil
}

// ListTasks returns tasks matching f ordered by id.
func (s *Storage) ListTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
	var where []cond
	if f.Status != nil {
		where = append(where, eq("Status", string(*f.Status)))
	}
	if f.ExecutorID != "" {
		where = append(where, eq("ExecutorID", f.ExecutorID))
	}
	if f.ParentID != "" {
		where = append(where, eq("ParentID", f.ParentID))
	}
	rows, err := s.tasks.List(ctx, taskPartition, where...)
	if err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, 0, len(rows))
	for _, row := range rows {
		t, err := decodeTask(row)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

// CountInProgressTasks returns how many tasks employeeID has in progress.
func (s *Storage) CountInProgressTasks(ctx context.Context, employeeID string) (int, error) {
	tasks, err := s.ListTasks(ctx, domain.TaskFilter{Status: domain.Ptr(domain.StatusInProgress), ExecutorID: employeeID})
	if err != nil {
		return 0, err
	}
	return len(tasks), nil
}

func (s *Storage) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, _, err := s.getTask(ctx, id)
	return t, err
}

func (s *Storage) getTask(ctx context.Context, id string) (domain.Task, string, error) {
	if id == "" {
		return domain.Task{}, "", errNotFound
	}
	ent, err := s.tasks.Get(ctx, taskPartition, id)
	if err != nil {
		return domain.Task{}, "", err
	}
	t, err := decodeTask(ent.Value)
	return t, ent.ETag, err
}

// CreateTask validates and stores a new task owned by ownerID.
func (s *Storage) CreateTask(ctx context.Context, ownerID string, in domain.NewTask) (domain.Task, error) {
	id, err := s.newID()
	if err != nil {
		return domain.Task{}, err
	}
	t := in.Task(id, ownerID)
	if err := t.Validate(); err != nil {
		return domain.Task{}, err
	}
	if err := s.checkReferences(ctx, t); err != nil {
		return domain.Task{}, err
	}
	if err := reserve(ctx, s.tasks, titlePartition, t.Title, id, domain.ErrDuplicateTitle); err != nil {
		return domain.Task{}, err
	}
	payload, err := encodeTask(t)
	if err == nil {
		err = s.tasks.Add(ctx, payload)
	}
	if err != nil {
		release(ctx, s.tasks, titlePartition, t.Title)
		return domain.Task{}, fmt.Errorf("add task: %w", err)
	}
	return t, nil
}

// UpdateTask applies a partial update, moving the title reservation when the
// title changes.
func (s *Storage) UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) (domain.Task, error) {
	for attempt := 0; ; attempt++ {
		cur, etag, err := s.getTask(ctx, id)
		if err != nil {
			return domain.Task{}, err
		}
		next := upd.Apply(cur)
		if err := next.Validate(); err != nil {
			return domain.Task{}, err
		}
		if next.ParentID != cur.ParentID || next.ExecutorID != cur.ExecutorID {
			if err := s.checkReferences(ctx, next); err != nil {
				return domain.Task{}, err
			}
		}

		moved := next.Title != cur.Title
		if moved {
			if err := reserve(ctx, s.tasks, titlePartition, next.Title, id, domain.ErrDuplicateTitle); err != nil {
				return domain.Task{}, err
			}
		}

		payload, err := encodeTask(next)
		if err == nil {
			err = s.tasks.Replace(ctx, payload, etag)
		}
		if err != nil {
			if moved {
				release(ctx, s.tasks, titlePartition, next.Title)
			}
			if errors.Is(err, domain.ErrConcurrencyConflict) && attempt+1 < maxUpdateAttempts {
				log.WithField("task", id).Debug("task update conflict, retrying")
				continue
			}
			return domain.Task{}, fmt.Errorf("update task %s: %w", id, err)
		}
		if moved {
			release(ctx, s.tasks, titlePartition, cur.Title)
		}
		return next, nil
	}
}

// DeleteTask removes a task. Children keep existing with their parent
// reference cleared.
func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	children, err := s.ListTasks(ctx, domain.TaskFilter{ParentID: id})
	if err != nil {
		return err
	}
	for _, child := range children {
		patch, err := json.Marshal(map[string]any{
			"PartitionKey": taskPartition,
			"RowKey":       child.ID,
			"ParentID":     "",
		})
		if err != nil {
			return err
		}
		if err := s.tasks.Merge(ctx, patch); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("detach child %s: %w", child.ID, err)
		}
	}
	if err := s.tasks.Delete(ctx, taskPartition, id); err != nil {
		return err
	}
	release(ctx, s.tasks, titlePartition, t.Title)
	return nil
}

// checkReferences verifies that the parent and executor exist and that the
// parent chain does not loop back to t.
func (s *Storage) checkReferences(ctx context.Context, t domain.Task) error {
	if t.ExecutorID != "" {
		if _, err := s.GetEmployee(ctx, t.ExecutorID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ValidationError{Field: "executorId", Message: "employee not found"}
			}
			return err
		}
	}
	seen := map[string]bool{t.ID: true}
	for parentID, depth := t.ParentID, 0; parentID != ""; depth++ {
		if seen[parentID] {
			return domain.ValidationError{Field: "parentId", Message: "parent chain would form a cycle"}
		}
		if depth >= maxAncestry {
			return domain.ValidationError{Field: "parentId", Message: "parent chain is too deep"}
		}
		seen[parentID] = true
		parent, err := s.GetTask(ctx, parentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				if parentID == t.ParentID {
					return domain.ValidationError{Field: "parentId", Message: "task not found"}
				}
				break
			}
			return err
		}
		parentID = parent.ParentID
	}
	return nil
}
