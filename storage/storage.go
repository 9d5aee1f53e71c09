package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"taskboard/domain"
)

const (
	tasksPartition        = "task"
	maxConcurrencyRetries = 3
)

// Tables stores tasks in an Azure Table Storage table. All tasks share one
// partition; row keys are time-ordered UUIDs so listing follows creation order.
type Tables struct {
	table *aztables.Client
}

func retryOptions(maxRetries int, maxDelay time.Duration) policy.RetryOptions {
	return policy.RetryOptions{
		MaxRetries:    int32(maxRetries),
		TryTimeout:    time.Minute,
		RetryDelay:    time.Second,
		MaxRetryDelay: maxDelay,
		StatusCodes:   []int{408, 429, 500, 502, 503, 504},
	}
}

// NewTables creates a table-backed store from the given connection string.
func NewTables(connStr, tasksTable string) (*Tables, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{Retry: retryOptions(3, 15*time.Second)},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Tables{table: svc.NewClient(tasksTable)}, nil
}

type taskEntity struct {
	aztables.Entity
	Title  string `json:"Title"`
	Point  *int   `json:"Point,omitempty"`
	Status string `json:"Status"`
}

func (e taskEntity) toTask() (domain.Task, error) {
	status, err := domain.ParseStatus(e.Status)
	if err != nil {
		return domain.Task{}, fmt.Errorf("task %s: %w", e.RowKey, err)
	}
	return domain.Task{ID: e.RowKey, Title: e.Title, Point: e.Point, Status: status}, nil
}

func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	return ent.toTask()
}

func encodeTaskEntity(t domain.Task) ([]byte, error) {
	ent := map[string]any{
		"PartitionKey": tasksPartition,
		"RowKey":       t.ID,
		"Title":        t.Title,
		"Status":       t.Status.String(),
	}
	if t.Point != nil {
		ent["Point"] = *t.Point
	}
	return sonic.Marshal(ent)
}

// ListTasks returns every task in row-key order.
func (s *Tables) ListTasks(ctx context.Context) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + tasksPartition + "'"
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		for _, e := range resp.Entities {
			t, err := decodeTaskEntity(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// CreateTask inserts t under a fresh row key.
func (s *Tables) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	if err := t.Validate(); err != nil {
		return domain.Task{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Task{}, err
	}
	t.ID = id.String()
	payload, err := encodeTaskEntity(t)
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := s.table.AddEntity(ctx, payload, nil); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// UpdateTask merges patch into the stored task. Concurrent writers are
// detected through the entity ETag and the merge is retried.
func (s *Tables) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	if err := patch.Validate(); err != nil {
		return domain.Task{}, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return domain.Task{}, fmt.Errorf("%w: %q", domain.ErrInvalidID, id)
	}
	for attempt := 0; ; attempt++ {
		cur, etag, err := s.getTask(ctx, id)
		if err != nil {
			return domain.Task{}, err
		}
		next := patch.Apply(cur)
		err = s.replaceTask(ctx, next, etag)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) || attempt+1 >= maxConcurrencyRetries {
			return domain.Task{}, fmt.Errorf("update task %s: %w", id, err)
		}
	}
}

func (s *Tables) getTask(ctx context.Context, id string) (domain.Task, azcore.ETag, error) {
	resp, err := s.table.GetEntity(ctx, tasksPartition, id, nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return domain.Task{}, "", fmt.Errorf("get task %s: %w", id, domain.ErrNotFound)
		}
		return domain.Task{}, "", fmt.Errorf("get task %s: %w", id, err)
	}
	t, err := decodeTaskEntity(resp.Value)
	if err != nil {
		return domain.Task{}, "", err
	}
	return t, resp.ETag, nil
}

func (s *Tables) replaceTask(ctx context.Context, t domain.Task, etag azcore.ETag) error {
	payload, err := encodeTaskEntity(t)
	if err != nil {
		return err
	}
	_, err = s.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &etag, UpdateMode: aztables.UpdateModeReplace})
	if isStatus(err, http.StatusPreconditionFailed) {
		return domain.ErrConcurrencyConflict
	}
	return err
}

// DeleteTask removes the task if present. Missing tasks are not an error.
func (s *Tables) DeleteTask(ctx context.Context, id string) error {
	match := azcore.ETagAny
	_, err := s.table.DeleteEntity(ctx, tasksPartition, id, &aztables.DeleteEntityOptions{IfMatch: &match})
	if err != nil && !isStatus(err, http.StatusNotFound) {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

// Ping issues a minimal query against the table.
func (s *Tables) Ping(ctx context.Context) error {
	top := int32(1)
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Top: &top})
	if !pager.More() {
		return nil
	}
	_, err := pager.NextPage(ctx)
	return err
}

func isStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}
