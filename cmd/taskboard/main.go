package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard/board"
	"taskboard/client"
)

const usage = `usage: taskboard [-api URL] <command> [args]

commands:
  board                      show the board
  add <title> [point]        create a task
  edit <id> <title> [point]  change title and point
  done <id>                  move a task to Done
  wip <id>                   move a task back to In Progress
  delete <id>                remove a task
`

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	baseURL := os.Getenv("TASKBOARD_API")
	if baseURL == "" {
		baseURL = client.DefaultBaseURL
	}
	flag.StringVar(&baseURL, "api", baseURL, "task API base URL")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reg := client.NewRegistry(client.New(baseURL), log.StandardLogger(), nil)
	if err := reg.Load(ctx); err != nil {
		os.Exit(1)
	}
	if err := run(ctx, reg, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := board.New(reg).Render(os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, reg *client.Registry, args []string) error {
	if len(args) == 0 {
		return nil
	}
	cmd, args := args[0], args[1:]
	b := board.New(reg)

	switch cmd {
	case "board":
		return nil
	case "add":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("add takes <title> [point]")
		}
		point, err := parsePoint(args[1:])
		if err != nil {
			return err
		}
		reg.ResetDraft()
		reg.SetTitle(args[0])
		reg.SetPoint(point)
		_, err = reg.AddOrEditTask(ctx)
		return err
	case "edit":
		if len(args) < 2 || len(args) > 3 {
			return fmt.Errorf("edit takes <id> <title> [point]")
		}
		if !reg.EditTask(args[0]) {
			return fmt.Errorf("unknown task %q", args[0])
		}
		point, err := parsePoint(args[2:])
		if err != nil {
			return err
		}
		reg.SetTitle(args[1])
		if point != nil {
			reg.SetPoint(point)
		}
		_, err = reg.AddOrEditTask(ctx)
		return err
	case "done", "wip":
		if len(args) != 1 {
			return fmt.Errorf("%s takes <id>", cmd)
		}
		col, _ := board.ParseColumn(cmd)
		return b.Drop(ctx, args[0], col)
	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("delete takes <id>")
		}
		return reg.DeleteTask(ctx, args[0])
	}
	flag.Usage()
	return fmt.Errorf("unknown command %q", cmd)
}

func parsePoint(args []string) (*int, error) {
	if len(args) == 0 {
		return nil, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("invalid point %q", args[0])
	}
	return &n, nil
}
