package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ttracker/domain"
	"ttracker/storage"
)

const defaultSeedOwner = "ttctl"

// fixtures is the YAML document read by seed. Tasks name their executor by
// email and their parent by title.
type fixtures struct {
	Employees []employeeFixture `yaml:"employees"`
	Tasks     []taskFixture     `yaml:"tasks"`
}

type employeeFixture struct {
	Name     string `yaml:"name"`
	Position string `yaml:"position"`
	Email    string `yaml:"email"`
	Phone    string `yaml:"phone,omitempty"`
	Vacation bool   `yaml:"vacation,omitempty"`
}

type taskFixture struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	Deadline    string `yaml:"deadline"`
	Status      string `yaml:"status,omitempty"`
	Executor    string `yaml:"executor,omitempty"`
	Parent      string `yaml:"parent,omitempty"`
}

// seedStore is the part of the store seeding writes through.
type seedStore interface {
	ListEmployees(ctx context.Context, f domain.EmployeeFilter) ([]domain.Employee, error)
	CreateEmployee(ctx context.Context, in domain.NewEmployee) (domain.Employee, error)
	ListTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error)
	CreateTask(ctx context.Context, ownerID string, in domain.NewTask) (domain.Task, error)
}

// seedResult counts what a seed run did.
type seedResult struct {
	EmployeesCreated int
	EmployeesKept    int
	TasksCreated     int
	TasksKept        int
}

func newSeedCmd() *cobra.Command {
	var file, owner string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load employees and tasks from a YAML fixture file",
		Long: `Create the employees and tasks listed in a fixture file. Records that
already exist (same email or title) are kept as they are, so seeding twice
is safe. Parents are created before their children.

Example:
  ttctl seed --file fixtures.yaml --owner auth0|admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := requireEnv("STORAGE_CONNECTION_STRING", "EMPLOYEES_TABLE", "TASKS_TABLE")
			if err != nil {
				return err
			}
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			fx, err := readFixtures(f)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			store, err := storage.New(env["STORAGE_CONNECTION_STRING"], env["EMPLOYEES_TABLE"], env["TASKS_TABLE"])
			if err != nil {
				return err
			}
			res, err := seed(cmd.Context(), store, fx, owner)
			if err != nil {
				return err
			}
			log.WithFields(log.Fields{
				"employees_created": res.EmployeesCreated,
				"employees_kept":    res.EmployeesKept,
				"tasks_created":     res.TasksCreated,
				"tasks_kept":        res.TasksKept,
			}).Info("seed complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fixture file")
	cmd.Flags().StringVar(&owner, "owner", defaultSeedOwner, "owner id stamped on created tasks")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readFixtures(r io.Reader) (fixtures, error) {
	var fx fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return fixtures{}, err
	}
	return fx, nil
}

func seed(ctx context.Context, store seedStore, fx fixtures, owner string) (seedResult, error) {
	var res seedResult

	existing, err := store.ListEmployees(ctx, domain.EmployeeFilter{})
	if err != nil {
		return res, err
	}
	byEmail := make(map[string]string, len(existing))
	for _, e := range existing {
		byEmail[domain.NormalizeEmail(e.Email)] = e.ID
	}
	for i, ef := range fx.Employees {
		key := domain.NormalizeEmail(ef.Email)
		if _, ok := byEmail[key]; ok {
			res.EmployeesKept++
			continue
		}
		in, err := ef.newEmployee()
		if err != nil {
			return res, fmt.Errorf("employees[%d]: %w", i, err)
		}
		e, err := store.CreateEmployee(ctx, in)
		if err != nil {
			return res, fmt.Errorf("employees[%d] %s: %w", i, ef.Email, err)
		}
		byEmail[key] = e.ID
		res.EmployeesCreated++
	}

	tasks, err := store.ListTasks(ctx, domain.TaskFilter{})
	if err != nil {
		return res, err
	}
	byTitle := make(map[string]string, len(tasks))
	for _, t := range tasks {
		byTitle[t.Title] = t.ID
	}
	ordered, err := parentsFirst(fx.Tasks, byTitle)
	if err != nil {
		return res, err
	}
	for _, tf := range ordered {
		title := strings.TrimSpace(tf.Title)
		if _, ok := byTitle[title]; ok {
			res.TasksKept++
			continue
		}
		in, err := tf.newTask(byEmail, byTitle)
		if err != nil {
			return res, fmt.Errorf("task %q: %w", tf.Title, err)
		}
		t, err := store.CreateTask(ctx, owner, in)
		if err != nil {
			return res, fmt.Errorf("task %q: %w", tf.Title, err)
		}
		byTitle[t.Title] = t.ID
		res.TasksCreated++
	}
	return res, nil
}

// parentsFirst orders fixtures so every parent precedes its children. A
// parent must be listed in the file or already stored.
func parentsFirst(tasks []taskFixture, stored map[string]string) ([]taskFixture, error) {
	known := make(map[string]bool, len(stored)+len(tasks))
	for title := range stored {
		known[title] = true
	}
	listed := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		listed[strings.TrimSpace(t.Title)] = true
	}

	out := make([]taskFixture, 0, len(tasks))
	pending := tasks
	for len(pending) > 0 {
		var next []taskFixture
		for _, t := range pending {
			parent := strings.TrimSpace(t.Parent)
			if parent == "" || known[parent] {
				out = append(out, t)
				known[strings.TrimSpace(t.Title)] = true
				continue
			}
			if !listed[parent] {
				return nil, fmt.Errorf("task %q: unknown parent %q", t.Title, t.Parent)
			}
			next = append(next, t)
		}
		if len(next) == len(pending) {
			return nil, fmt.Errorf("task %q: parent cycle", next[0].Title)
		}
		pending = next
	}
	return out, nil
}

func (f employeeFixture) newEmployee() (domain.NewEmployee, error) {
	pos, err := domain.ParsePosition(f.Position)
	if err != nil {
		return domain.NewEmployee{}, err
	}
	return domain.NewEmployee{
		Name:           f.Name,
		Position:       pos,
		Email:          f.Email,
		PhoneNumber:    f.Phone,
		VacationStatus: f.Vacation,
	}, nil
}

func (f taskFixture) newTask(byEmail, byTitle map[string]string) (domain.NewTask, error) {
	deadline, err := domain.ParseDate(f.Deadline)
	if err != nil {
		return domain.NewTask{}, err
	}
	in := domain.NewTask{
		Title:       f.Title,
		Description: f.Description,
		Deadline:    deadline,
	}
	if f.Status != "" {
		if in.Status, err = domain.ParseStatus(f.Status); err != nil {
			return domain.NewTask{}, err
		}
	}
	if f.Executor != "" {
		id, ok := byEmail[domain.NormalizeEmail(f.Executor)]
		if !ok {
			return domain.NewTask{}, fmt.Errorf("unknown executor %q", f.Executor)
		}
		in.ExecutorID = id
	}
	if parent := strings.TrimSpace(f.Parent); parent != "" {
		id, ok := byTitle[parent]
		if !ok {
			return domain.NewTask{}, fmt.Errorf("unknown parent %q", f.Parent)
		}
		in.ParentID = id
	}
	return in, nil
}
