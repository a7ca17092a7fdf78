package assignment

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ttracker/domain"
)

// Source is the read side of the entity store the service plans against.
type Source interface {
	ListEmployees(ctx context.Context, f domain.EmployeeFilter) ([]domain.Employee, error)
	ListTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error)
}

// Snapshot is a point-in-time view of the store. Employees holds only staff
// who are not on vacation.
type Snapshot struct {
	Tasks     []domain.Task
	Employees []domain.Employee
}

// Service computes important-task assignments. It never writes to the store.
type Service struct {
	src    Source
	engine Engine
	logger *log.Logger
}

func NewService(src Source, engine Engine, logger *log.Logger) *Service {
	if src == nil {
		panic("assignment.NewService: source is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Service{src: src, engine: engine, logger: logger}
}

// Snapshot loads every task and every available employee.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tasks, err := s.src.ListTasks(gctx, domain.TaskFilter{})
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		snap.Tasks = tasks
		return nil
	})
	g.Go(func() error {
		employees, err := s.src.ListEmployees(gctx, domain.EmployeeFilter{Vacation: domain.Ptr(false)})
		if err != nil {
			return fmt.Errorf("list employees: %w", err)
		}
		snap.Employees = employees
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Plan runs the importance filter, workload accounting, engine and
// projection over snap. It returns either the full list or an error.
func (s *Service) Plan(snap Snapshot) ([]Record, error) {
	important := Important(snap.Tasks)
	if len(important) == 0 {
		return nil, domain.ErrNoImportantTasks
	}
	roster := Annotate(snap.Employees, snap.Tasks)
	pairs, err := s.engine.Assign(important, snap.Tasks, roster)
	if err != nil {
		return nil, err
	}

	continuity := 0
	for _, p := range pairs {
		if p.Continuity {
			continuity++
		}
	}
	s.logger.WithFields(log.Fields{
		"important":  len(important),
		"eligible":   len(roster),
		"continuity": continuity,
		"rotation":   len(pairs) - continuity,
	}).Debug("important tasks planned")

	return Project(pairs), nil
}

// ComputeImportantTaskAssignments loads a fresh snapshot and plans it.
func (s *Service) ComputeImportantTaskAssignments(ctx context.Context) ([]Record, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.Plan(snap)
}
