package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"ttracker/assignment"
	"ttracker/domain"
)

// employeeDetail is an employee together with its current load.
type employeeDetail struct {
	domain.Employee
	CountActiveTasks int `json:"countActiveTasks"`
}

// activeTasksRow is one line of the busy-employees listing.
type activeTasksRow struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Tasks            []string `json:"tasks"`
	CountActiveTasks int      `json:"countActiveTasks"`
}

func employeeFilter(c echo.Context) domain.EmployeeFilter {
	return domain.EmployeeFilter{NameContains: strings.TrimSpace(c.QueryParam("search"))}
}

func (h *handlers) listEmployees(c echo.Context) error {
	if _, err := callerID(c, h.auth); err != nil {
		return h.unauthorized(c, err)
	}
	employees, err := h.store.ListEmployees(c.Request().Context(), employeeFilter(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, employees)
}

func (h *handlers) getEmployee(c echo.Context) error {
	if _, err := callerID(c, h.auth); err != nil {
		return h.unauthorized(c, err)
	}
	ctx := c.Request().Context()
	e, err := h.store.GetEmployee(ctx, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	n, err := h.store.CountInProgressTasks(ctx, e.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, employeeDetail{Employee: e, CountActiveTasks: n})
}

func (h *handlers) createEmployee(c echo.Context) error {
	userID, err := callerID(c, h.auth)
	if err != nil {
		return h.unauthorized(c, err)
	}
	var in domain.NewEmployee
	if err := decodeBody(c, &in); err != nil {
		return h.fail(c, err)
	}
	release, err := h.claimIdempotencyKey(c, userID, domain.EntityEmployee)
	if err != nil {
		return h.fail(c, err)
	}
	e, err := h.store.CreateEmployee(c.Request().Context(), in)
	if err != nil {
		release()
		return h.fail(c, err)
	}
	h.emit(userID, domain.EntityEmployee, e.ID, domain.EmployeeCreated, e)
	return c.JSON(http.StatusCreated, e)
}

func (h *handlers) updateEmployee(c echo.Context) error {
	userID, err := callerID(c, h.auth)
	if err != nil {
		return h.unauthorized(c, err)
	}
	var upd domain.EmployeeUpdate
	if err := decodeBody(c, &upd); err != nil {
		return h.fail(c, err)
	}
	if upd.Empty() {
		return badRequest(c, "no fields to update")
	}
	e, err := h.store.UpdateEmployee(c.Request().Context(), c.Param("id"), upd)
	if err != nil {
		return h.fail(c, err)
	}
	h.emit(userID, domain.EntityEmployee, e.ID, domain.EmployeeUpdated, e)
	return c.JSON(http.StatusOK, e)
}

func (h *handlers) deleteEmployee(c echo.Context) error {
	userID, err := callerID(c, h.auth)
	if err != nil {
		return h.unauthorized(c, err)
	}
	id := c.Param("id")
	if err := h.store.DeleteEmployee(c.Request().Context(), id); err != nil {
		return h.fail(c, err)
	}
	h.emit(userID, domain.EntityEmployee, id, domain.EmployeeDeleted, nil)
	return c.NoContent(http.StatusNoContent)
}

// activeTasks lists employees with the titles of their in-progress tasks,
// busiest first.
func (h *handlers) activeTasks(c echo.Context) error {
	if _, err := callerID(c, h.auth); err != nil {
		return h.unauthorized(c, err)
	}
	ctx := c.Request().Context()
	employees, err := h.store.ListEmployees(ctx, employeeFilter(c))
	if err != nil {
		return h.fail(c, err)
	}
	tasks, err := h.store.ListTasks(ctx, domain.TaskFilter{Status: domain.Ptr(domain.StatusInProgress)})
	if err != nil {
		return h.fail(c, err)
	}

	rows := make([]activeTasksRow, len(employees))
	for i, e := range employees {
		active := assignment.InProgressTasks(e.ID, tasks)
		titles := make([]string, len(active))
		for j, t := range active {
			titles[j] = t.Title
		}
		rows[i] = activeTasksRow{ID: e.ID, Name: e.Name, Tasks: titles, CountActiveTasks: len(active)}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].CountActiveTasks != rows[j].CountActiveTasks {
			return rows[i].CountActiveTasks > rows[j].CountActiveTasks
		}
		return rows[i].ID < rows[j].ID
	})
	return c.JSON(http.StatusOK, rows)
}
