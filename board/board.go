package board

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"taskboard/domain"
)

// Column is one of the two board columns.
type Column int

const (
	ColumnWIP Column = iota
	ColumnDone
)

func (c Column) String() string {
	if c == ColumnDone {
		return "Done"
	}
	return "In Progress"
}

// Status is the task status a card in the column carries.
func (c Column) Status() domain.Status {
	if c == ColumnDone {
		return domain.StatusDone
	}
	return domain.StatusWIP
}

// ParseColumn accepts a column name or a status value.
func ParseColumn(s string) (Column, error) {
	switch s {
	case "wip", "WIP", "in-progress", "In Progress":
		return ColumnWIP, nil
	case "done", "Done", "DONE":
		return ColumnDone, nil
	}
	return ColumnWIP, fmt.Errorf("unknown column %q", s)
}

// Registry is the registry surface the board drives.
type Registry interface {
	Tasks() []domain.Task
	MarkAsDone(ctx context.Context, id string) error
	MarkAsAvailable(ctx context.Context, id string) error
}

// Board presents a registry as two status columns.
type Board struct {
	reg Registry
}

func New(reg Registry) *Board {
	return &Board{reg: reg}
}

// Columns partitions tasks by status, keeping their order.
func Columns(tasks []domain.Task) (wip, done []domain.Task) {
	wip = []domain.Task{}
	done = []domain.Task{}
	for _, t := range tasks {
		if t.Status.IsDone() {
			done = append(done, t)
		} else {
			wip = append(wip, t)
		}
	}
	return wip, done
}

// Drop moves the card with id onto target.
func (b *Board) Drop(ctx context.Context, id string, target Column) error {
	if target == ColumnDone {
		return b.reg.MarkAsDone(ctx, id)
	}
	return b.reg.MarkAsAvailable(ctx, id)
}

// Render writes both columns. The placeholder appears under In Progress only
// when the registry holds no tasks at all; an empty column next to a
// non-empty one renders with no rows.
func (b *Board) Render(w io.Writer) error {
	tasks := b.reg.Tasks()
	wip, done := Columns(tasks)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s (%d)\n", ColumnWIP, len(wip))
	if len(tasks) == 0 {
		fmt.Fprintln(tw, "  No items")
	}
	writeCards(tw, wip)
	fmt.Fprintf(tw, "%s (%d)\n", ColumnDone, len(done))
	writeCards(tw, done)
	return tw.Flush()
}

func writeCards(w io.Writer, tasks []domain.Task) {
	for _, t := range tasks {
		point := "-"
		if t.Point != nil {
			point = strconv.Itoa(*t.Point)
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\n", t.ID, t.Title, point)
	}
}
