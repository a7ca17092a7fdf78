package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"ttracker/domain"
)

type backend interface {
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
}

const (
	employeesCacheKey = "employees:all"
	tasksCacheKey     = "tasks:all"
)

// Cache wraps a backend with Redis-backed caching of the full employee and
// task listings. Filtered listings are served from the cached snapshot and
// every write evicts both keys, since deletes cascade across entity kinds.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListEmployees(ctx context.Context, f domain.EmployeeFilter) ([]domain.Employee, error) {
	var all []domain.Employee
	if !load(ctx, c.redis, employeesCacheKey, &all) {
		var err error
		all, err = c.base.ListEmployees(ctx, domain.EmployeeFilter{})
		if err != nil {
			return nil, err
		}
		c.store(ctx, employeesCacheKey, all)
	}
	if f.IsZero() {
		return all, nil
	}
	out := make([]domain.Employee, 0, len(all))
	for _, e := range all {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (c *Cache) ListTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
	var all []domain.Task
	if !load(ctx, c.redis, tasksCacheKey, &all) {
		var err error
		all, err = c.base.ListTasks(ctx, domain.TaskFilter{})
		if err != nil {
			return nil, err
		}
		c.store(ctx, tasksCacheKey, all)
	}
	if f.IsZero() {
		return all, nil
	}
	out := make([]domain.Task, 0, len(all))
	for _, t := range all {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// CountInProgressTasks answers from the cached task listing.
func (c *Cache) CountInProgressTasks(ctx context.Context, employeeID string) (int, error) {
	tasks, err := c.ListTasks(ctx, domain.TaskFilter{Status: domain.Ptr(domain.StatusInProgress), ExecutorID: employeeID})
	if err != nil {
		return 0, err
	}
	return len(tasks), nil
}

func (c *Cache) GetEmployee(ctx context.Context, id string) (domain.Employee, error) {
	return c.base.GetEmployee(ctx, id)
}

func (c *Cache) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return c.base.GetTask(ctx, id)
}

func (c *Cache) CreateEmployee(ctx context.Context, in domain.NewEmployee) (domain.Employee, error) {
	e, err := c.base.CreateEmployee(ctx, in)
	if err != nil {
		return domain.Employee{}, err
	}
	c.evict(ctx)
	return e, nil
}

func (c *Cache) UpdateEmployee(ctx context.Context, id string, upd domain.EmployeeUpdate) (domain.Employee, error) {
	e, err := c.base.UpdateEmployee(ctx, id, upd)
	if err != nil {
		return domain.Employee{}, err
	}
	c.evict(ctx)
	return e, nil
}

func (c *Cache) DeleteEmployee(ctx context.Context, id string) error {
	err := c.base.DeleteEmployee(ctx, id)
	// A failed cascade may still have removed some tasks.
	c.evict(ctx)
	return err
}

func (c *Cache) CreateTask(ctx context.Context, ownerID string, in domain.NewTask) (domain.Task, error) {
	t, err := c.base.CreateTask(ctx, ownerID, in)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx)
	return t, nil
}

func (c *Cache) UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) (domain.Task, error) {
	t, err := c.base.UpdateTask(ctx, id, upd)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx)
	return t, nil
}

func (c *Cache) DeleteTask(ctx context.Context, id string) error {
	err := c.base.DeleteTask(ctx, id)
	c.evict(ctx)
	return err
}

func load(ctx context.Context, client *redis.Client, key string, dst any) bool {
	if client == nil {
		return false
	}
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			log.WithError(err).WithField("key", key).Debug("cache read failed")
			_ = client.Del(ctx, key).Err()
		}
		return false
	}
	if err := sonic.Unmarshal(data, dst); err != nil {
		_ = client.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, employeesCacheKey, tasksCacheKey).Result()
}
