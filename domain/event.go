package domain

// Change event types emitted after successful writes.
const (
	TaskCreated = "task-created"
	TaskUpdated = "task-updated"
	TaskDeleted = "task-deleted"
)

// TaskEvent notifies downstream consumers that a task changed.
type TaskEvent struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	TaskID string `json:"taskId"`
	Task   *Task  `json:"task,omitempty"`
	Time   int64  `json:"time"`
}
