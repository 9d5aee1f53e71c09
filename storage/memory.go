package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"taskboard/domain"
)

// Memory keeps tasks in process memory. It backs local runs without a
// database and the API tests.
type Memory struct {
	mu    sync.RWMutex
	order []string
	tasks map[string]domain.Task
}

func NewMemory() *Memory {
	return &Memory{tasks: make(map[string]domain.Task)}
}

func (m *Memory) ListTasks(context.Context) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Task, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, cloneTask(m.tasks[id]))
	}
	return out, nil
}

func (m *Memory) CreateTask(_ context.Context, t domain.Task) (domain.Task, error) {
	if err := t.Validate(); err != nil {
		return domain.Task{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Task{}, err
	}
	t.ID = id.String()

	m.mu.Lock()
	defer m.mu.Unlock()
	t = cloneTask(t)
	m.tasks[t.ID] = t
	m.order = append(m.order, t.ID)
	return cloneTask(t), nil
}

func (m *Memory) UpdateTask(_ context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	if err := patch.Validate(); err != nil {
		return domain.Task{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, fmt.Errorf("update task %s: %w", id, domain.ErrNotFound)
	}
	next := cloneTask(patch.Apply(cur))
	m.tasks[id] = next
	return cloneTask(next), nil
}

func (m *Memory) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return nil
	}
	delete(m.tasks, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// cloneTask detaches t from any Point pointer the caller still holds.
func cloneTask(t domain.Task) domain.Task {
	if t.Point != nil {
		p := *t.Point
		t.Point = &p
	}
	return t
}
