package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"ttracker/domain"
)

// taskView is a task as rendered to clients.
type taskView struct {
	domain.Task
	Overdue bool `json:"overdue"`
}

func viewTask(t domain.Task, today domain.Date) taskView {
	return taskView{Task: t, Overdue: t.Overdue(today)}
}

// taskPage is a page of the task listing.
type taskPage struct {
	Count    int        `json:"count"`
	Next     *string    `json:"next"`
	Previous *string    `json:"previous"`
	Results  []taskView `json:"results"`
}

func positiveQueryInt(c echo.Context, name string, def int) (int, bool) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// pageLink returns the request URL with page replaced, or nil when page is
// out of range.
func pageLink(c echo.Context, page, pages int) *string {
	if page < 1 || page > pages {
		return nil
	}
	q := url.Values{}
	for k, v := range c.QueryParams() {
		q[k] = append([]string(nil), v...)
	}
	q.Set("page", strconv.Itoa(page))
	link := c.Request().URL.Path + "?" + q.Encode()
	return &link
}

func (h *handlers) listTasks(c echo.Context) error {
	if _, err := callerID(c, h.auth); err != nil {
		return h.unauthorized(c, err)
	}
	page, ok := positiveQueryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "invalid page")
	}
	pageSize, ok := positiveQueryInt(c, "pageSize", h.opts.PageSize)
	if !ok {
		return badRequest(c, "invalid page size")
	}

	var f domain.TaskFilter
	if raw := c.QueryParam("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return h.fail(c, err)
		}
		f.Status = &status
	}
	f.ExecutorID = c.QueryParam("executorId")

	tasks, err := h.store.ListTasks(c.Request().Context(), f)
	if err != nil {
		return h.fail(c, err)
	}

	pages := (len(tasks) + pageSize - 1) / pageSize
	if page > 1 && page > pages {
		return c.JSON(http.StatusNotFound, errorResponse{Detail: "Invalid page."})
	}
	lo := min((page-1)*pageSize, len(tasks))
	hi := min(lo+pageSize, len(tasks))

	today := domain.Today()
	results := make([]taskView, 0, hi-lo)
	for _, t := range tasks[lo:hi] {
		results = append(results, viewTask(t, today))
	}
	return c.JSON(http.StatusOK, taskPage{
		Count:    len(tasks),
		Next:     pageLink(c, page+1, pages),
		Previous: pageLink(c, page-1, pages),
		Results:  results,
	})
}

func (h *handlers) getTask(c echo.Context) error {
	if _, err := callerID(c, h.auth); err != nil {
		return h.unauthorized(c, err)
	}
	t, err := h.store.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, viewTask(t, domain.Today()))
}

func (h *handlers) createTask(c echo.Context) error {
	userID, err := callerID(c, h.auth)
	if err != nil {
		return h.unauthorized(c, err)
	}
	var in domain.NewTask
	if err := decodeBody(c, &in); err != nil {
		return h.fail(c, err)
	}
	release, err := h.claimIdempotencyKey(c, userID, domain.EntityTask)
	if err != nil {
		return h.fail(c, err)
	}
	t, err := h.store.CreateTask(c.Request().Context(), userID, in)
	if err != nil {
		release()
		return h.fail(c, err)
	}
	h.emit(userID, domain.EntityTask, t.ID, domain.TaskCreated, t)
	return c.JSON(http.StatusCreated, viewTask(t, domain.Today()))
}

func (h *handlers) updateTask(c echo.Context) error {
	userID, err := callerID(c, h.auth)
	if err != nil {
		return h.unauthorized(c, err)
	}
	var upd domain.TaskUpdate
	if err := decodeBody(c, &upd); err != nil {
		return h.fail(c, err)
	}
	if upd.Empty() {
		return badRequest(c, "no fields to update")
	}
	t, err := h.store.UpdateTask(c.Request().Context(), c.Param("id"), upd)
	if err != nil {
		return h.fail(c, err)
	}
	h.emit(userID, domain.EntityTask, t.ID, domain.TaskUpdated, t)
	return c.JSON(http.StatusOK, viewTask(t, domain.Today()))
}

func (h *handlers) deleteTask(c echo.Context) error {
	userID, err := callerID(c, h.auth)
	if err != nil {
		return h.unauthorized(c, err)
	}
	id := c.Param("id")
	if err := h.store.DeleteTask(c.Request().Context(), id); err != nil {
		return h.fail(c, err)
	}
	h.emit(userID, domain.EntityTask, id, domain.TaskDeleted, nil)
	return c.NoContent(http.StatusNoContent)
}
