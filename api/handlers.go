package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

const (
	tasksRoute = "/api/task"
	taskRoute  = "/api/task/:id"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, events *EventDispatcher, logger *log.Logger) {
	e.GET(tasksRoute, listTasks(store, logger))
	e.POST(tasksRoute, createTask(store, events, logger))
	e.PUT(taskRoute, updateTask(store, events, logger))
	e.DELETE(taskRoute, deleteTask(store, events, logger))
	e.GET("/healthz", healthz(store))
}

func healthz(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			c.Logger().Error(err)
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	}
}

func listTasks(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics, ctx := newTaskRequestMetrics(c.Request().Context(), logger, http.MethodGet, tasksRoute)
		var opErr error
		defer func() {
			metrics.Log(c.Response().Status, opErr)
		}()

		start := time.Now()
		tasks, opErr := store.ListTasks(ctx)
		metrics.ObserveStore(time.Since(start))
		if opErr != nil {
			metrics.SetErrorStage("storage")
			return writeStoreError(c, opErr)
		}
		if tasks == nil {
			tasks = []domain.Task{}
		}
		metrics.SetTasksReturned(len(tasks))
		return c.JSON(http.StatusOK, listResponse{Data: tasks})
	}
}

func createTask(store Storage, events *EventDispatcher, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics, ctx := newTaskRequestMetrics(c.Request().Context(), logger, http.MethodPost, tasksRoute)
		var opErr error
		defer func() {
			metrics.Log(c.Response().Status, opErr)
		}()

		var req createTaskRequest
		if opErr = decodeBody(c, &req); opErr != nil {
			metrics.SetErrorStage("decode")
			return writeInvalid(c, opErr)
		}
		task, opErr := domain.NewTask(req.Title, req.Point, req.Status)
		if opErr != nil {
			metrics.SetErrorStage("validate")
			return writeInvalid(c, opErr)
		}

		start := time.Now()
		created, opErr := store.CreateTask(ctx, task)
		metrics.ObserveStore(time.Since(start))
		if opErr != nil {
			metrics.SetErrorStage("storage")
			return writeStoreError(c, opErr)
		}
		metrics.SetTaskID(created.ID)
		events.Emit(domain.TaskCreated, created.ID, &created)
		return c.JSON(http.StatusCreated, taskResponse{Data: created, Message: msgCreated})
	}
}

func updateTask(store Storage, events *EventDispatcher, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics, ctx := newTaskRequestMetrics(c.Request().Context(), logger, http.MethodPut, taskRoute)
		var opErr error
		defer func() {
			metrics.Log(c.Response().Status, opErr)
		}()

		id := c.Param("id")
		metrics.SetTaskID(id)

		var patch domain.TaskPatch
		if opErr = decodeBody(c, &patch); opErr != nil {
			metrics.SetErrorStage("decode")
			return writeInvalid(c, opErr)
		}
		if opErr = patch.Validate(); opErr != nil {
			metrics.SetErrorStage("validate")
			return writeInvalid(c, opErr)
		}

		start := time.Now()
		updated, opErr := store.UpdateTask(ctx, id, patch)
		metrics.ObserveStore(time.Since(start))
		if opErr != nil {
			metrics.SetErrorStage("storage")
			return writeStoreError(c, opErr)
		}
		events.Emit(domain.TaskUpdated, updated.ID, &updated)
		return c.JSON(http.StatusOK, taskResponse{Data: updated, Message: msgUpdated})
	}
}

func deleteTask(store Storage, events *EventDispatcher, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics, ctx := newTaskRequestMetrics(c.Request().Context(), logger, http.MethodDelete, taskRoute)
		var opErr error
		defer func() {
			metrics.Log(c.Response().Status, opErr)
		}()

		id := c.Param("id")
		metrics.SetTaskID(id)

		start := time.Now()
		opErr = store.DeleteTask(ctx, id)
		metrics.ObserveStore(time.Since(start))
		if opErr != nil {
			metrics.SetErrorStage("storage")
			return writeStoreError(c, opErr)
		}
		events.Emit(domain.TaskDeleted, id, nil)
		return c.JSON(http.StatusOK, messageResponse{Message: msgDeleted})
	}
}

// decodeBody reads one JSON document from the request. Oversized bodies,
// trailing data and unknown fields are rejected.
func decodeBody(c echo.Context, v any) error {
	buf, err := io.ReadAll(io.LimitReader(c.Request().Body, taskBodyMaxSize+1))
	if err != nil {
		return err
	}
	if len(buf) > taskBodyMaxSize {
		return errBodyTooLarge
	}
	if !sonic.Valid(buf) {
		return errMalformedBody
	}
	return taskJSON.Unmarshal(buf, v)
}

func writeInvalid(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Message: msgInvalid, Error: err.Error()})
}

// writeStoreError reports store failures. Validation errors are 400s; every
// other failure, not-found included, is a 500.
func writeStoreError(c echo.Context, err error) error {
	if errors.Is(err, domain.ErrInvalidTask) || errors.Is(err, domain.ErrEmptyPatch) {
		return writeInvalid(c, err)
	}
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, errorResponse{Message: msgInternalError, Error: err.Error()})
}
