package main

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"

	"taskboard/api"
	"taskboard/client"
	"taskboard/domain"
	"taskboard/storage"
)

func TestRunCommands(t *testing.T) {
	logger, _ := test.NewNullLogger()
	e := echo.New()
	events := api.NewEventDispatcher(nil, api.DispatcherConfig{}, logger)
	defer events.Close()
	api.Register(e, storage.NewMemory(), events, logger)
	srv := httptest.NewServer(e)
	defer srv.Close()

	ctx := context.Background()
	reg := client.NewRegistry(client.New(srv.URL+"/api/task"), logger, nil)

	if err := run(ctx, reg, []string{"add", "Patch server", "50"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	tasks := reg.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("expected one task, got %+v", tasks)
	}
	id := tasks[0].ID

	if err := run(ctx, reg, []string{"done", id}); err != nil {
		t.Fatalf("done: %v", err)
	}
	if got, _ := reg.Get(id); got.Status != domain.StatusDone {
		t.Fatalf("expected done, got %s", got.Status)
	}
	if err := run(ctx, reg, []string{"edit", id, "Patch servers"}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if got, _ := reg.Get(id); got.Title != "Patch servers" || *got.Point != 50 {
		t.Fatalf("unexpected edit: %+v", got)
	}
	if err := run(ctx, reg, []string{"delete", id}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry")
	}

	if err := run(ctx, reg, []string{"add", "x", "abc"}); err == nil {
		t.Fatalf("expected invalid point error")
	}
	if err := run(ctx, reg, []string{"edit", "nope", "x"}); err == nil {
		t.Fatalf("expected unknown task error")
	}
}
