package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"taskboard/api"
	"taskboard/domain"
	"taskboard/storage"
)

func newTestAPI(t *testing.T, store api.Storage) *Client {
	t.Helper()
	logger := log.New()
	logger.SetLevel(log.WarnLevel)
	e := echo.New()
	events := api.NewEventDispatcher(nil, api.DispatcherConfig{Workers: 1, Buffer: 4}, logger)
	t.Cleanup(events.Close)
	api.Register(e, store, events, logger)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return New(srv.URL + "/api/task")
}

func newTestRegistry(t *testing.T, c TaskAPI) (*Registry, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	r := NewRegistry(c, logger, nil)
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return r, hook
}

func intPtr(v int) *int { return &v }

func TestRegistryCreateThenToggleStatus(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t, newTestAPI(t, storage.NewMemory()))

	r.SetTitle("Patch server")
	r.SetPoint(intPtr(50))
	created, err := r.AddOrEditTask(ctx)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if created.ID == "" || created.Status != domain.StatusWIP || *created.Point != 50 {
		t.Fatalf("unexpected task: %+v", created)
	}
	if d := r.Draft(); d.ID != "" || d.Title != "" || d.Point != nil || d.Status != domain.StatusWIP {
		t.Fatalf("expected empty draft, got %+v", d)
	}

	if err := r.MarkAsDone(ctx, created.ID); err != nil {
		t.Fatalf("done: %v", err)
	}
	if got, _ := r.Get(created.ID); got.Status != domain.StatusDone {
		t.Fatalf("expected done, got %s", got.Status)
	}

	if err := r.MarkAsAvailable(ctx, created.ID); err != nil {
		t.Fatalf("wip: %v", err)
	}
	tasks := r.Tasks()
	if len(tasks) != 1 || tasks[0].Status != domain.StatusWIP || tasks[0].Title != "Patch server" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestRegistryStatusChangeTargetsActionTask(t *testing.T) {
	ctx := context.Background()
	c := newTestAPI(t, storage.NewMemory())
	a, _, err := c.Create(ctx, "A", nil)
	if err != nil {
		t.Fatalf("create A: %v", err)
	}
	b, _, err := c.Create(ctx, "B", nil)
	if err != nil {
		t.Fatalf("create B: %v", err)
	}
	r, _ := newTestRegistry(t, c)

	if !r.EditTask(a.ID) {
		t.Fatalf("expected A to be editable")
	}
	if err := r.MarkAsDone(ctx, b.ID); err != nil {
		t.Fatalf("done: %v", err)
	}

	gotA, _ := r.Get(a.ID)
	gotB, _ := r.Get(b.ID)
	if gotA.Status != domain.StatusWIP || gotA.Title != "A" {
		t.Fatalf("A changed: %+v", gotA)
	}
	if gotB.Status != domain.StatusDone || gotB.Title != "B" {
		t.Fatalf("B not updated: %+v", gotB)
	}
	if d := r.Draft(); d.ID != a.ID {
		t.Fatalf("draft lost: %+v", d)
	}
	if ids := taskIDs(r.Tasks()); len(ids) != 2 || ids[0] != a.ID || ids[1] != b.ID {
		t.Fatalf("order changed: %v", ids)
	}
}

func TestRegistryEditSubmitsTitleAndPoint(t *testing.T) {
	ctx := context.Background()
	c := newTestAPI(t, storage.NewMemory())
	orig, _, err := c.Create(ctx, "draft me", intPtr(20))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := c.Update(ctx, orig.ID, domain.StatusPatch(domain.StatusDone)); err != nil {
		t.Fatalf("done: %v", err)
	}
	r, _ := newTestRegistry(t, c)

	if r.EditTask("missing") {
		t.Fatalf("expected unknown id to be rejected")
	}
	if !r.EditTask(orig.ID) {
		t.Fatalf("expected known id to load")
	}
	r.SetTitle("renamed")
	r.SetPoint(intPtr(30))
	got, err := r.AddOrEditTask(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.ID != orig.ID || got.Title != "renamed" || *got.Point != 30 || got.Status != domain.StatusDone {
		t.Fatalf("unexpected edit result: %+v", got)
	}
	if r.Len() != 1 {
		t.Fatalf("expected a single entry, got %d", r.Len())
	}
}

func TestRegistryDeleteTwice(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t, newTestAPI(t, storage.NewMemory()))

	r.SetTitle("gone soon")
	task, err := r.AddOrEditTask(ctx)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	r.EditTask(task.ID)

	if err := r.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := r.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %+v", r.Tasks())
	}
	if d := r.Draft(); d.ID != "" {
		t.Fatalf("expected draft cleared, got %+v", d)
	}
}

func TestRegistryRejectedDraftIsKept(t *testing.T) {
	ctx := context.Background()
	r, hook := newTestRegistry(t, newTestAPI(t, storage.NewMemory()))

	r.SetTitle("too big")
	r.SetPoint(intPtr(5000))
	_, err := r.AddOrEditTask(ctx)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 APIError, got %v", err)
	}
	if d := r.Draft(); d.Title != "too big" || d.Point == nil || *d.Point != 5000 {
		t.Fatalf("draft should survive failure, got %+v", d)
	}
	if r.Len() != 0 {
		t.Fatalf("expected no tasks, got %+v", r.Tasks())
	}
	if entry := hook.LastEntry(); entry == nil || entry.Level != log.ErrorLevel {
		t.Fatalf("expected error log, got %+v", entry)
	}
}

type failingStore struct {
	storage.Backend
	err error
}

func (f failingStore) UpdateTask(context.Context, string, domain.TaskPatch) (domain.Task, error) {
	return domain.Task{}, f.err
}

func (f failingStore) DeleteTask(context.Context, string) error { return f.err }

func TestRegistryFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	seeded, err := mem.CreateTask(ctx, domain.Task{Title: "stable"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	r, _ := newTestRegistry(t, newTestAPI(t, failingStore{Backend: mem, err: errors.New("db down")}))

	err = r.MarkAsDone(ctx, seeded.ID)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500 APIError, got %v", err)
	}
	if apiErr.Message != "Internal Server Error" || apiErr.Err != "db down" {
		t.Fatalf("unexpected envelope: %+v", apiErr)
	}
	if err := r.DeleteTask(ctx, seeded.ID); err == nil {
		t.Fatalf("expected delete failure")
	}
	tasks := r.Tasks()
	if len(tasks) != 1 || tasks[0] != seeded {
		t.Fatalf("registry changed: %+v", tasks)
	}
}

func TestRegistryLoadFailureKeepsEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	seed := []domain.Task{{ID: "1", Title: "kept"}}
	r := NewRegistry(New(srv.URL), logger, seed)
	if err := r.Load(context.Background()); err == nil {
		t.Fatalf("expected load failure")
	}
	if got := r.Tasks(); len(got) != 1 || got[0].Title != "kept" {
		t.Fatalf("unexpected tasks: %+v", got)
	}
}

func taskIDs(tasks []domain.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
