package domain

import (
	"fmt"
	"strings"
)

const (
	// MinPoint and MaxPoint bound Task.Point inclusively.
	MinPoint = 10
	MaxPoint = 1000
)

// Task represents a single board item.
type Task struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Point  *int   `json:"point,omitempty"`
	Status Status `json:"status"`
}

// NewTask builds a task ready to be inserted. The store assigns the ID.
func NewTask(title string, point *int, status *Status) (Task, error) {
	t := Task{Title: title, Point: point}
	if status != nil {
		t.Status = *status
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Validate checks the invariants every persisted task must satisfy.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if t.Point != nil {
		if err := validatePoint(*t.Point); err != nil {
			return err
		}
	}
	return nil
}

func validatePoint(p int) error {
	if p < MinPoint || p > MaxPoint {
		return fmt.Errorf("%w: point %d outside [%d, %d]", ErrInvalidTask, p, MinPoint, MaxPoint)
	}
	return nil
}

// TaskPatch lists the fields an update may change. Nil fields are left untouched.
type TaskPatch struct {
	Title  *string `json:"title,omitempty"`
	Point  *int    `json:"point,omitempty"`
	Status *Status `json:"status,omitempty"`
}

// Empty reports whether the patch carries no field at all.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Point == nil && p.Status == nil
}

// Validate rejects empty patches and values that would break task invariants.
func (p TaskPatch) Validate() error {
	if p.Empty() {
		return ErrEmptyPatch
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if p.Point != nil {
		return validatePoint(*p.Point)
	}
	return nil
}

// Apply merges the patch into t and returns the result.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Point != nil {
		v := *p.Point
		t.Point = &v
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	return t
}

// StatusPatch is the patch sent when a card changes column.
func StatusPatch(s Status) TaskPatch {
	return TaskPatch{Status: &s}
}
