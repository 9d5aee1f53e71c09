package api

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

// DispatcherConfig tunes the background event delivery pool.
type DispatcherConfig struct {
	Workers        int
	Buffer         int
	Timeout        time.Duration
	HandoffTimeout time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Buffer <= 0 {
		c.Buffer = 256
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.HandoffTimeout < 0 {
		c.HandoffTimeout = 0
	}
	return c
}

// EventDispatcher hands change events to a Publisher from a fixed pool of
// workers so request handlers never wait on delivery.
type EventDispatcher struct {
	cfg       DispatcherConfig
	publisher Publisher
	logger    *log.Logger
	jobs      chan domain.TaskEvent
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	once   sync.Once

	lastTimestamp atomic.Int64
}

// NewEventDispatcher starts the workers. A nil publisher yields a dispatcher
// that discards every event.
func NewEventDispatcher(publisher Publisher, cfg DispatcherConfig, logger *log.Logger) *EventDispatcher {
	if logger == nil {
		panic("logger is required")
	}
	d := &EventDispatcher{
		cfg:       cfg.withDefaults(),
		publisher: publisher,
		logger:    logger,
	}
	if publisher == nil {
		return d
	}
	d.jobs = make(chan domain.TaskEvent, d.cfg.Buffer)
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	logger.Infof("event dispatcher started, workers: %d, buffer: %d, timeout: %v, handoff: %v", d.cfg.Workers, d.cfg.Buffer, d.cfg.Timeout, d.cfg.HandoffTimeout)
	return d
}

func (d *EventDispatcher) worker(id int) {
	defer d.wg.Done()
	for ev := range d.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		err := d.publisher.Publish(ctx, ev)
		cancel()
		if err != nil {
			d.logger.WithError(err).WithFields(log.Fields{"event": ev.Type, "task": ev.TaskID, "worker": id}).Error("event publish failed")
		}
	}
}

// Emit queues an event describing a successful write. When the buffer stays
// full past the handoff timeout the event is dropped.
func (d *EventDispatcher) Emit(eventType, taskID string, task *domain.Task) bool {
	if d == nil || d.jobs == nil {
		return false
	}
	ev := domain.TaskEvent{
		ID:     uuid.NewString(),
		Type:   eventType,
		TaskID: taskID,
		Task:   task,
		Time:   d.nextTimestamp(),
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	select {
	case d.jobs <- ev:
		return true
	default:
	}
	if d.cfg.HandoffTimeout > 0 {
		timer := time.NewTimer(d.cfg.HandoffTimeout)
		defer timer.Stop()
		select {
		case d.jobs <- ev:
			return true
		case <-timer.C:
		}
	}
	d.logger.WithFields(log.Fields{"event": eventType, "task": taskID}).Warn("event buffer saturated; dropping event")
	return false
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *EventDispatcher) Close() {
	if d == nil || d.jobs == nil {
		return
	}
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

// nextTimestamp returns strictly increasing unix nanosecond timestamps.
func (d *EventDispatcher) nextTimestamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := d.lastTimestamp.Load()
		if now <= last {
			now = last + 1
		}
		if d.lastTimestamp.CompareAndSwap(last, now) {
			return now
		}
	}
}
