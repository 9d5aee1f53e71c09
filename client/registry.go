package client

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

// TaskAPI is the subset of the task resource the registry depends on.
type TaskAPI interface {
	List(ctx context.Context) ([]domain.Task, error)
	Create(ctx context.Context, title string, point *int) (domain.Task, string, error)
	Update(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, string, error)
	Delete(ctx context.Context, id string) (string, error)
}

// Draft is the add/edit form state. A draft with an ID edits that task.
type Draft struct {
	ID     string
	Title  string
	Point  *int
	Status domain.Status
}

// Registry mirrors server task state for one board. Entries are keyed by task
// ID and keep their insertion order. State changes only after the matching
// API call succeeds; concurrent actions on one task resolve last-write-wins.
type Registry struct {
	api    TaskAPI
	logger *log.Logger

	mu    sync.Mutex
	order []string
	tasks map[string]domain.Task
	draft Draft
}

// NewRegistry creates an empty registry seeded with the given tasks.
func NewRegistry(api TaskAPI, logger *log.Logger, initial []domain.Task) *Registry {
	if logger == nil {
		logger = log.StandardLogger()
	}
	r := &Registry{api: api, logger: logger}
	r.replaceAll(initial)
	return r
}

// Load replaces the registry content with the server's task list.
func (r *Registry) Load(ctx context.Context) error {
	tasks, err := r.api.List(ctx)
	if err != nil {
		r.logger.WithError(err).Error("load tasks failed")
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaceAll(tasks)
	return nil
}

func (r *Registry) replaceAll(tasks []domain.Task) {
	r.order = make([]string, 0, len(tasks))
	r.tasks = make(map[string]domain.Task, len(tasks))
	for _, t := range tasks {
		r.putLocked(t)
	}
}

// putLocked replaces the entry keyed by t.ID, appending unknown IDs.
func (r *Registry) putLocked(t domain.Task) {
	if _, ok := r.tasks[t.ID]; !ok {
		r.order = append(r.order, t.ID)
	}
	r.tasks[t.ID] = t
}

func (r *Registry) removeLocked(id string) {
	if _, ok := r.tasks[id]; !ok {
		return
	}
	delete(r.tasks, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// Tasks returns the entries in registry order.
func (r *Registry) Tasks() []domain.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Task, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tasks[id])
	}
	return out
}

// Len returns the number of tasks in the registry.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Get returns the entry for id.
func (r *Registry) Get(id string) (domain.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	return t, ok
}

// MarkAsDone moves the task to the done column.
func (r *Registry) MarkAsDone(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.StatusDone)
}

// MarkAsAvailable moves the task back to the in-progress column.
func (r *Registry) MarkAsAvailable(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.StatusWIP)
}

func (r *Registry) setStatus(ctx context.Context, id string, status domain.Status) error {
	task, msg, err := r.api.Update(ctx, id, domain.StatusPatch(status))
	if err != nil {
		r.logger.WithError(err).WithFields(log.Fields{"task": id, "status": status.String()}).Error("status change failed")
		return err
	}
	r.mu.Lock()
	r.putLocked(task)
	r.mu.Unlock()
	r.logger.WithField("task", id).Debug(msg)
	return nil
}

// EditTask loads the task into the draft. It reports whether id is known.
func (r *Registry) EditTask(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return false
	}
	r.draft = Draft{ID: t.ID, Title: t.Title, Point: copyPoint(t.Point), Status: t.Status}
	return true
}

// SetTitle updates the draft title.
func (r *Registry) SetTitle(title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draft.Title = title
}

// SetPoint updates the draft point. Nil clears it.
func (r *Registry) SetPoint(point *int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draft.Point = copyPoint(point)
}

// Draft returns a copy of the current draft.
func (r *Registry) Draft() Draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.draft
	d.Point = copyPoint(d.Point)
	return d
}

// ResetDraft discards the draft.
func (r *Registry) ResetDraft() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draft = Draft{}
}

// AddOrEditTask submits the draft: an update when it carries an ID, a create
// otherwise. The draft is reset after success and kept after failure.
func (r *Registry) AddOrEditTask(ctx context.Context) (domain.Task, error) {
	d := r.Draft()

	var (
		task domain.Task
		msg  string
		err  error
	)
	if d.ID != "" {
		title := d.Title
		task, msg, err = r.api.Update(ctx, d.ID, domain.TaskPatch{Title: &title, Point: d.Point})
	} else {
		task, msg, err = r.api.Create(ctx, d.Title, d.Point)
	}
	if err != nil {
		r.logger.WithError(err).WithField("task", d.ID).Error("submit task failed")
		return domain.Task{}, err
	}

	r.mu.Lock()
	r.putLocked(task)
	r.draft = Draft{}
	r.mu.Unlock()
	r.logger.WithField("task", task.ID).Debug(msg)
	return task, nil
}

// DeleteTask removes the task on the server, then from the registry.
func (r *Registry) DeleteTask(ctx context.Context, id string) error {
	msg, err := r.api.Delete(ctx, id)
	if err != nil {
		r.logger.WithError(err).WithField("task", id).Error("delete task failed")
		return err
	}
	r.mu.Lock()
	r.removeLocked(id)
	if r.draft.ID == id {
		r.draft = Draft{}
	}
	r.mu.Unlock()
	r.logger.WithField("task", id).Debug(msg)
	return nil
}

func copyPoint(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
