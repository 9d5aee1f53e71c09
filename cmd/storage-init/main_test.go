package main

import "testing"

func TestEnvOrDefaultsMatchServer(t *testing.T) {
	t.Setenv("TASKS_TABLE", "")
	if got := envOr("TASKS_TABLE", "tasks"); got != "tasks" {
		t.Fatalf("expected default table name, got %q", got)
	}
	t.Setenv("TASKS_TABLE", "boardtasks")
	if got := envOr("TASKS_TABLE", "tasks"); got != "boardtasks" {
		t.Fatalf("expected configured table name, got %q", got)
	}
}
