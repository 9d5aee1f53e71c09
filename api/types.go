package api

import (
	"context"

	"taskboard/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	CreateTask(ctx context.Context, t domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// Publisher delivers task change events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev domain.TaskEvent) error
}
