package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"ttracker/assignment"
	"ttracker/domain"
)

// memStore is a minimal in-memory Store.
type memStore struct {
	mu        sync.Mutex
	seq       int
	employees map[string]domain.Employee
	tasks     map[string]domain.Task
	err       error
}

func newMemStore() *memStore {
	return &memStore{employees: map[string]domain.Employee{}, tasks: map[string]domain.Task{}}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%03d", prefix, m.seq)
}

func (m *memStore) ListEmployees(_ context.Context, f domain.EmployeeFilter) ([]domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Employee
	for _, e := range m.employees {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetEmployee(_ context.Context, id string) (domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[id]
	if !ok {
		return domain.Employee{}, domain.ErrNotFound
	}
	return e, nil
}

func (m *memStore) CreateEmployee(_ context.Context, in domain.NewEmployee) (domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := in.Employee(m.nextID("emp"))
	if err := e.Validate(); err != nil {
		return domain.Employee{}, err
	}
	for _, other := range m.employees {
		if domain.NormalizeEmail(other.Email) == domain.NormalizeEmail(e.Email) {
			return domain.Employee{}, domain.ErrDuplicateEmail
		}
	}
	m.employees[e.ID] = e
	return e, nil
}

func (m *memStore) UpdateEmployee(_ context.Context, id string, upd domain.EmployeeUpdate) (domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[id]
	if !ok {
		return domain.Employee{}, domain.ErrNotFound
	}
	e = upd.Apply(e)
	if err := e.Validate(); err != nil {
		return domain.Employee{}, err
	}
	m.employees[id] = e
	return e, nil
}

func (m *memStore) DeleteEmployee(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.employees, id)
	for tid, t := range m.tasks {
		if t.ExecutorID == id {
			delete(m.tasks, tid)
		}
	}
	return nil
}

func (m *memStore) ListTasks(_ context.Context, f domain.TaskFilter) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Task
	for _, t := range m.tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetTask(_ context.Context, id string) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *memStore) CreateTask(_ context.Context, ownerID string, in domain.NewTask) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := in.Task(m.nextID("task"), ownerID)
	if err := t.Validate(); err != nil {
		return domain.Task{}, err
	}
	for _, other := range m.tasks {
		if other.Title == t.Title {
			return domain.Task{}, domain.ErrDuplicateTitle
		}
	}
	m.tasks[t.ID] = t
	return t, nil
}

func (m *memStore) UpdateTask(_ context.Context, id string, upd domain.TaskUpdate) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrNotFound
	}
	t = upd.Apply(t)
	if err := t.Validate(); err != nil {
		return domain.Task{}, err
	}
	m.tasks[id] = t
	return t, nil
}

func (m *memStore) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *memStore) CountInProgressTasks(ctx context.Context, employeeID string) (int, error) {
	tasks, err := m.ListTasks(ctx, domain.TaskFilter{Status: domain.Ptr(domain.StatusInProgress), ExecutorID: employeeID})
	return len(tasks), err
}

func (m *memStore) putEmployee(e domain.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
}

func (m *memStore) putTask(t domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.Deadline.IsZero() {
		t.Deadline = domain.NewDate(2030, time.January, 1)
	}
	m.tasks[t.ID] = t
}

type mockAuth struct{}

func (mockAuth) UserIDFromAuthHeader(h string) (string, error) {
	if h == "" {
		return "", errMissingAuthorization
	}
	return "user", nil
}

func newTestServer(t *testing.T, store *memStore, opts Options) *echo.Echo {
	t.Helper()
	logger, _ := test.NewNullLogger()
	e := echo.New()
	planner := assignment.NewService(store, assignment.NewEngine(assignment.DefaultContinuitySlack), logger)
	Register(e, store, planner, mockAuth{}, opts, logger)
	return e
}

func doRequest(e *echo.Echo, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(echo.HeaderAuthorization, "Bearer token")
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return body
}

// seedOrg stores two busy employees, a manager on vacation, and parent tasks
// in progress with open children.
func seedOrg(store *memStore) {
	store.putEmployee(domain.Employee{ID: "e1", Name: "Ann", Position: domain.PositionCategory1, Email: "ann@example.com"})
	store.putEmployee(domain.Employee{ID: "e2", Name: "Bob", Position: domain.PositionCategory2, Email: "bob@example.com"})
	store.putEmployee(domain.Employee{ID: "e3", Name: "Cid", Position: domain.PositionManager, Email: "cid@example.com", VacationStatus: true})

	store.putTask(domain.Task{ID: "p1", Title: "Parent", Status: domain.StatusInProgress, ExecutorID: "e1"})
	store.putTask(domain.Task{ID: "c1", Title: "Child one", Status: domain.StatusOpen, ParentID: "p1", Deadline: domain.NewDate(2030, time.March, 2)})
	store.putTask(domain.Task{ID: "c2", Title: "Child two", Status: domain.StatusOpen, ParentID: "p1", Deadline: domain.NewDate(2030, time.March, 1)})
	store.putTask(domain.Task{ID: "solo", Title: "Solo", Status: domain.StatusOpen})
}

func TestImportantTasksReturnsAssignments(t *testing.T) {
	store := newMemStore()
	seedOrg(store)
	e := newTestServer(t, store, Options{})

	rec := doRequest(e, http.MethodGet, "/api/tasks/important", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var records []assignment.Record
	if err := sonic.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %#v", records)
	}
	// Earliest deadline first; Ann executes the parent with load 1, floor 0.
	if records[0].ID != "c2" || records[1].ID != "c1" {
		t.Fatalf("unexpected order: %#v", records)
	}
	for _, r := range records {
		if r.Executor != "Ann" || r.ExecutorID != "e1" {
			t.Fatalf("expected continuity with Ann, got %#v", r)
		}
	}
	if !strings.Contains(rec.Body.String(), `"deadline":"2030-03-01"`) {
		t.Fatalf("expected date formatted deadline, got %s", rec.Body.String())
	}
}

func TestImportantTasksCompatibilityRoute(t *testing.T) {
	store := newMemStore()
	seedOrg(store)
	e := newTestServer(t, store, Options{})

	rec := doRequest(e, http.MethodGet, "/tasks/important/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
}

func TestImportantTasksNotFoundBodies(t *testing.T) {
	store := newMemStore()
	store.putEmployee(domain.Employee{ID: "e1", Name: "Ann", Email: "ann@example.com", VacationStatus: true})
	store.putTask(domain.Task{ID: "t1", Title: "Lonely", Status: domain.StatusOpen})
	e := newTestServer(t, store, Options{})

	rec := doRequest(e, http.MethodGet, "/api/tasks/important", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
	if got := decodeDetail(t, rec).Detail; got != "No important tasks found." {
		t.Fatalf("unexpected detail: %q", got)
	}

	store.putTask(domain.Task{ID: "p1", Title: "Parent", Status: domain.StatusInProgress, ExecutorID: "e1"})
	store.putTask(domain.Task{ID: "c1", Title: "Child", Status: domain.StatusOpen, ParentID: "p1"})
	rec = doRequest(e, http.MethodGet, "/api/tasks/important", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
	if got := decodeDetail(t, rec).Detail; got != "No available employees found." {
		t.Fatalf("unexpected detail: %q", got)
	}
}

func TestImportantTasksStorageFailure(t *testing.T) {
	store := newMemStore()
	store.err = fmt.Errorf("table unavailable")
	e := newTestServer(t, store, Options{})

	rec := doRequest(e, http.MethodGet, "/api/tasks/important", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "table unavailable") {
		t.Fatalf("internal error leaked to client: %s", rec.Body.String())
	}
}

func TestRoutesRequireAuthorization(t *testing.T) {
	e := newTestServer(t, newMemStore(), Options{})
	for _, target := range []string{"/api/employees", "/api/tasks", "/api/tasks/important", "/api/employees/active-tasks"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected status 401 got %d", target, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200 got %d", rec.Code)
	}
}

func TestCreateTaskStampsOwner(t *testing.T) {
	store := newMemStore()
	e := newTestServer(t, store, Options{})

	rec := doRequest(e, http.MethodPost, "/api/tasks", `{"title":"Write docs","deadline":"2030-01-05"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var created taskView
	if err := sonic.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if created.OwnerID != "user" || created.Status != domain.StatusOpen || created.Overdue {
		t.Fatalf("unexpected task: %#v", created)
	}

	// Clients cannot pick the owner.
	rec = doRequest(e, http.MethodPost, "/api/tasks", `{"title":"Other","deadline":"2030-01-05","ownerId":"mallory"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestCreateTaskDuplicateTitle(t *testing.T) {
	store := newMemStore()
	e := newTestServer(t, store, Options{})
	body := `{"title":"Release","deadline":"2030-01-05"}`

	if rec := doRequest(e, http.MethodPost, "/api/tasks", body); rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d", rec.Code)
	}
	rec := doRequest(e, http.MethodPost, "/api/tasks", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409 got %d", rec.Code)
	}
	if got := decodeDetail(t, rec).Detail; got != domain.ErrDuplicateTitle.Error() {
		t.Fatalf("unexpected detail: %q", got)
	}
}

func TestCreateTaskValidationError(t *testing.T) {
	e := newTestServer(t, newMemStore(), Options{})
	rec := doRequest(e, http.MethodPost, "/api/tasks", `{"title":"No deadline"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
	if got := decodeDetail(t, rec); got.Field != "deadline" {
		t.Fatalf("unexpected error body: %#v", got)
	}

	rec = doRequest(e, http.MethodPost, "/api/tasks", `{"title":"Bad date","deadline":"05/01/2030"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for malformed date got %d", rec.Code)
	}
}

func TestCreateWithIdempotencyKey(t *testing.T) {
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newMemStore()
	e := newTestServer(t, store, Options{Deduper: NewRedisDeduper(client, time.Minute)})

	body := `{"name":"Ann","position":"manager","email":"ann@example.com"}`
	if rec := doRequest(e, http.MethodPost, "/api/employees", body, idempotencyKeyHead, "k1"); rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d", rec.Code)
	}
	rec := doRequest(e, http.MethodPost, "/api/employees", body, idempotencyKeyHead, "k1")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409 got %d", rec.Code)
	}
	if got := decodeDetail(t, rec).Detail; got != "duplicate request" {
		t.Fatalf("unexpected detail: %q", got)
	}

	// A failed create releases the key.
	bad := `{"name":"","position":"manager","email":"x@example.com"}`
	if rec := doRequest(e, http.MethodPost, "/api/employees", bad, idempotencyKeyHead, "k2"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
	good := `{"name":"Xi","position":"category 2","email":"x@example.com"}`
	if rec := doRequest(e, http.MethodPost, "/api/employees", good, idempotencyKeyHead, "k2"); rec.Code != http.StatusCreated {
		t.Fatalf("expected retried key to be accepted, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestListTasksPagination(t *testing.T) {
	store := newMemStore()
	for i := 1; i <= 7; i++ {
		store.putTask(domain.Task{ID: fmt.Sprintf("t%d", i), Title: fmt.Sprintf("Task %d", i), Status: domain.StatusOpen})
	}
	store.putTask(domain.Task{ID: "t8", Title: "Done", Status: domain.StatusDone})
	e := newTestServer(t, store, Options{})

	rec := doRequest(e, http.MethodGet, "/api/tasks?status=open", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var page taskPage
	if err := sonic.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if page.Count != 7 || len(page.Results) != 5 {
		t.Fatalf("unexpected first page: count=%d results=%d", page.Count, len(page.Results))
	}
	if page.Previous != nil || page.Next == nil || !strings.Contains(*page.Next, "page=2") || !strings.Contains(*page.Next, "status=open") {
		t.Fatalf("unexpected links: next=%v previous=%v", page.Next, page.Previous)
	}

	rec = doRequest(e, http.MethodGet, *page.Next, "")
	page = taskPage{}
	if err := sonic.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(page.Results) != 2 || page.Next != nil || page.Previous == nil {
		t.Fatalf("unexpected second page: %#v", page)
	}

	if rec := doRequest(e, http.MethodGet, "/api/tasks?page=3", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for out of range page got %d", rec.Code)
	}
	for _, target := range []string{"/api/tasks?pageSize=0", "/api/tasks?page=abc", "/api/tasks?status=blocked"} {
		if rec := doRequest(e, http.MethodGet, target, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400 got %d", target, rec.Code)
		}
	}
}

func TestListTasksEmptyFirstPage(t *testing.T) {
	e := newTestServer(t, newMemStore(), Options{PageSize: 10})
	rec := doRequest(e, http.MethodGet, "/api/tasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"results":[]`) {
		t.Fatalf("expected empty results array, got %s", rec.Body.String())
	}
}

func TestActiveTasksOrdering(t *testing.T) {
	store := newMemStore()
	seedOrg(store)
	store.putTask(domain.Task{ID: "p2", Title: "Second", Status: domain.StatusInProgress, ExecutorID: "e2"})
	store.putTask(domain.Task{ID: "p3", Title: "Third", Status: domain.StatusInProgress, ExecutorID: "e2"})
	e := newTestServer(t, store, Options{})

	rec := doRequest(e, http.MethodGet, "/api/employees/active-tasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var rows []activeTasksRow
	if err := sonic.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %#v", rows)
	}
	if rows[0].ID != "e2" || rows[0].CountActiveTasks != 2 || rows[1].ID != "e1" || rows[2].ID != "e3" {
		t.Fatalf("unexpected order: %#v", rows)
	}
	if len(rows[1].Tasks) != 1 || rows[1].Tasks[0] != "Parent" {
		t.Fatalf("unexpected titles: %#v", rows[1].Tasks)
	}

	rec = doRequest(e, http.MethodGet, "/api/employees/active-tasks?search=an", "")
	rows = nil
	if err := sonic.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "Ann" {
		t.Fatalf("unexpected search result: %#v", rows)
	}
}

func TestGetEmployeeIncludesLoad(t *testing.T) {
	store := newMemStore()
	seedOrg(store)
	e := newTestServer(t, store, Options{})

	rec := doRequest(e, http.MethodGet, "/api/employees/e1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var got employeeDetail
	if err := sonic.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got.Name != "Ann" || got.CountActiveTasks != 1 {
		t.Fatalf("unexpected employee: %#v", got)
	}

	if rec := doRequest(e, http.MethodGet, "/api/employees/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
}

func TestUpdateAndDeleteTask(t *testing.T) {
	store := newMemStore()
	seedOrg(store)
	e := newTestServer(t, store, Options{})

	if rec := doRequest(e, http.MethodPatch, "/api/tasks/c1", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for empty update got %d", rec.Code)
	}
	rec := doRequest(e, http.MethodPut, "/api/tasks/c1", `{"status":"in_progress","executorId":"e2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	got, _ := store.GetTask(context.Background(), "c1")
	if got.Status != domain.StatusInProgress || got.ExecutorID != "e2" {
		t.Fatalf("update not applied: %#v", got)
	}

	if rec := doRequest(e, http.MethodDelete, "/api/tasks/c1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 got %d", rec.Code)
	}
	if rec := doRequest(e, http.MethodDelete, "/api/tasks/c1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
}

func TestWritesEmitChangeEvents(t *testing.T) {
	logger, _ := test.NewNullLogger()
	pub := &recordingPublisher{}
	sender := NewEventSender(pub, logger, EventSenderConfig{Workers: 1, Buffer: 8, PublishTimeout: time.Second})

	store := newMemStore()
	e := newTestServer(t, store, Options{Events: sender})

	rec := doRequest(e, http.MethodPost, "/api/employees", `{"name":"Ann","position":"category_1","email":"ann@example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d", rec.Code)
	}
	var emp domain.Employee
	if err := sonic.Unmarshal(rec.Body.Bytes(), &emp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if rec := doRequest(e, http.MethodDelete, "/api/employees/"+emp.ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 got %d", rec.Code)
	}
	sender.Close()

	events := pub.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %#v", events)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Time < events[j].Time })
	if events[0].Type != domain.EmployeeCreated || events[1].Type != domain.EmployeeDeleted {
		t.Fatalf("unexpected event types: %s, %s", events[0].Type, events[1].Type)
	}
	if events[0].EntityID != emp.ID || events[0].UserID != "user" || len(events[0].Data) == 0 {
		t.Fatalf("unexpected created event: %#v", events[0])
	}
	if events[1].Data != nil {
		t.Fatalf("delete event should carry no payload")
	}
}

func TestGzipEncodedCreate(t *testing.T) {
	e := newTestServer(t, newMemStore(), Options{})

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(`{"name":"Ann","position":"manager","email":"ann@example.com"}`)); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/employees", &buf)
	req.Header.Set(echo.HeaderAuthorization, "Bearer token")
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/employees", strings.NewReader("not gzip"))
	req.Header.Set(echo.HeaderAuthorization, "Bearer token")
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for invalid gzip got %d", rec.Code)
	}
}

func TestRegisterPanicsWithoutLogger(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	Register(echo.New(), newMemStore(), nil, mockAuth{}, Options{}, (*log.Logger)(nil))
}
