package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ttracker/domain"
)

// importantTasks proposes an executor for every open task that blocks
// in-progress work. It reads a snapshot and never writes.
func (h *handlers) importantTasks(c echo.Context) (err error) {
	ctx := c.Request().Context()
	metrics, spanCtx := newImportantTaskMetrics(ctx, h.log)
	if spanCtx != nil {
		c.SetRequest(c.Request().WithContext(spanCtx))
		ctx = spanCtx
	}
	var logErr error
	defer func() {
		metrics.Log(c.Response().Status, logErr)
	}()

	authStart := time.Now()
	_, authErr := callerID(c, h.auth)
	metrics.ObserveAuth(time.Since(authStart))
	if authErr != nil {
		metrics.SetErrorStage("auth")
		return h.unauthorized(c, authErr)
	}

	snapStart := time.Now()
	snap, snapErr := h.planner.Snapshot(ctx)
	metrics.ObserveSnapshot(time.Since(snapStart))
	if snapErr != nil {
		metrics.SetErrorStage("snapshot")
		logErr = snapErr
		return h.fail(c, snapErr)
	}
	metrics.SetSnapshotSize(len(snap.Tasks), len(snap.Employees))

	assignStart := time.Now()
	records, planErr := h.planner.Plan(snap)
	metrics.ObserveAssign(time.Since(assignStart))
	if planErr != nil {
		switch {
		case errors.Is(planErr, domain.ErrNoImportantTasks):
			metrics.SetErrorStage("no_important_tasks")
		case errors.Is(planErr, domain.ErrNoEligibleEmployees):
			metrics.SetErrorStage("no_eligible_employees")
		default:
			metrics.SetErrorStage("assign")
			logErr = planErr
		}
		return h.fail(c, planErr)
	}
	metrics.SetAssignments(len(records))

	encodeStart := time.Now()
	err = c.JSON(http.StatusOK, records)
	metrics.ObserveEncode(time.Since(encodeStart))
	if err != nil {
		metrics.SetErrorStage("encode_response")
		logErr = err
	}
	return err
}
