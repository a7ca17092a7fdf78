package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"ttracker/domain"
)

const (
	maxBodySize        = 64 * 1024 // 64 KiB
	defaultTaskPage    = 5
	idempotencyKeyHead = "Idempotency-Key"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Detail string `json:"detail"`
	Field  string `json:"field,omitempty"`
}

var errDuplicateRequest = errors.New("duplicate request")

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Store, planner Planner, auth Authenticator, opts Options, logger *log.Logger) {
	if logger == nil {
		panic("Logger is not initialized")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultTaskPage
	}
	h := &handlers{store: store, planner: planner, auth: auth, opts: opts, log: logger}

	e.GET("/healthz", healthz)

	g := e.Group("/api", DecodeRequestMiddleware(maxBodySize))
	g.GET("/employees", h.listEmployees)
	g.POST("/employees", h.createEmployee)
	g.GET("/employees/active-tasks", h.activeTasks)
	g.GET("/employees/:id", h.getEmployee)
	g.PUT("/employees/:id", h.updateEmployee)
	g.PATCH("/employees/:id", h.updateEmployee)
	g.DELETE("/employees/:id", h.deleteEmployee)

	g.GET("/tasks", h.listTasks)
	g.POST("/tasks", h.createTask)
	g.GET("/tasks/important", h.importantTasks)
	g.GET("/tasks/:id", h.getTask)
	g.PUT("/tasks/:id", h.updateTask)
	g.PATCH("/tasks/:id", h.updateTask)
	g.DELETE("/tasks/:id", h.deleteTask)

	// Path used by existing clients of the tracker.
	e.GET("/tasks/important/", h.importantTasks)
}

type handlers struct {
	store   Store
	planner Planner
	auth    Authenticator
	opts    Options
	log     *log.Logger
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// fail renders err with the matching status code. Unexpected errors are
// logged and hidden from the client.
func (h *handlers) fail(c echo.Context, err error) error {
	var verr domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, errorResponse{Detail: verr.Message, Field: verr.Field})
	case errors.Is(err, domain.ErrNoImportantTasks):
		return c.JSON(http.StatusNotFound, errorResponse{Detail: "No important tasks found."})
	case errors.Is(err, domain.ErrNoEligibleEmployees):
		return c.JSON(http.StatusNotFound, errorResponse{Detail: "No available employees found."})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Detail: "Not found."})
	case errors.Is(err, domain.ErrDuplicateEmail), errors.Is(err, domain.ErrDuplicateTitle),
		errors.Is(err, errDuplicateRequest), errors.Is(err, domain.ErrConcurrencyConflict):
		return c.JSON(http.StatusConflict, errorResponse{Detail: err.Error()})
	default:
		h.log.WithError(err).WithField("path", c.Path()).Error("request failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Detail: "internal error"})
	}
}

func (h *handlers) unauthorized(c echo.Context, err error) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Detail: err.Error()})
}

func badRequest(c echo.Context, detail string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Detail: detail})
}

// decodeBody strictly decodes a JSON request body into dst.
func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.ValidationError{Message: "invalid body: " + err.Error()}
	}
	return nil
}

// claimIdempotencyKey records the request's Idempotency-Key, if any. The
// returned release func undoes the claim when the write fails.
func (h *handlers) claimIdempotencyKey(c echo.Context, userID, scope string) (release func(), err error) {
	key := c.Request().Header.Get(idempotencyKeyHead)
	if key == "" || h.opts.Deduper == nil {
		return func() {}, nil
	}
	ctx := c.Request().Context()
	scoped := scope + ":" + key
	added, err := h.opts.Deduper.Add(ctx, userID, scoped)
	if err != nil {
		// Redis outages must not block writes.
		h.log.WithError(err).Warn("idempotency check failed")
		return func() {}, nil
	}
	if !added {
		return nil, errDuplicateRequest
	}
	return func() {
		if rerr := h.opts.Deduper.Remove(ctx, userID, scoped); rerr != nil {
			h.log.Errorf("dedupe rollback failed, err: %v, key: %s, user: %s", rerr, scoped, userID)
		}
	}, nil
}

// emit sends a change event describing a committed write.
func (h *handlers) emit(userID, entityType, entityID, eventType string, data any) {
	if h.opts.Events == nil {
		return
	}
	ev := domain.ChangeEvent{
		ID:         uuid.NewString(),
		EntityType: entityType,
		EntityID:   entityID,
		Type:       eventType,
		Time:       nextTimestamp(),
		UserID:     userID,
	}
	if data != nil {
		payload, err := sonic.Marshal(data)
		if err != nil {
			h.log.WithError(err).Warn("encode event payload")
		} else {
			ev.Data = payload
		}
	}
	h.opts.Events.Send(ev)
}
