package api

import (
	"errors"

	"github.com/bytedance/sonic"

	"taskboard/domain"
)

const taskBodyMaxSize = 64 * 1024 // 64 KiB

var (
	errBodyTooLarge  = errors.New("request body too large")
	errMalformedBody = errors.New("request body is not a single JSON document")
)

// taskJSON is sonic's std-compatible config with unknown fields rejected.
var taskJSON = sonic.Config{
	EscapeHTML:            true,
	SortMapKeys:           true,
	CompactMarshaler:      true,
	CopyString:            true,
	ValidateString:        true,
	DisallowUnknownFields: true,
}.Froze()

const (
	msgCreated       = "Task created successfully"
	msgUpdated       = "Task updated successfully"
	msgDeleted       = "Task deleted successfully"
	msgInvalid       = "Invalid request"
	msgInternalError = "Internal Server Error"
)

// GET /api/task response body
type listResponse struct {
	Data []domain.Task `json:"data"`
}

// POST and PUT /api/task response body
type taskResponse struct {
	Data    domain.Task `json:"data"`
	Message string      `json:"message"`
}

// DELETE /api/task/{id} response body
type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// POST /api/task request body
type createTaskRequest struct {
	Title  string         `json:"title"`
	Point  *int           `json:"point,omitempty"`
	Status *domain.Status `json:"status,omitempty"`
}
