package api

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"taskboard/domain"
)

type blockingPublisher struct {
	release chan struct{}
	started chan struct{}
	count   atomic.Int32
}

func (p *blockingPublisher) Publish(ctx context.Context, _ domain.TaskEvent) error {
	p.started <- struct{}{}
	select {
	case <-p.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.count.Add(1)
	return nil
}

type publisherFunc func(ctx context.Context, ev domain.TaskEvent) error

func (f publisherFunc) Publish(ctx context.Context, ev domain.TaskEvent) error { return f(ctx, ev) }

func TestEventDispatcherDropsWhenSaturated(t *testing.T) {
	logger, hook := test.NewNullLogger()
	pub := &blockingPublisher{release: make(chan struct{}), started: make(chan struct{}, 4)}
	d := NewEventDispatcher(pub, DispatcherConfig{Workers: 1, Buffer: 1, HandoffTimeout: 20 * time.Millisecond}, logger)

	if !d.Emit(domain.TaskCreated, "a", nil) {
		t.Fatal("expected first event to be accepted")
	}
	<-pub.started
	if !d.Emit(domain.TaskCreated, "b", nil) {
		t.Fatal("expected second event to fill the buffer")
	}

	start := time.Now()
	if d.Emit(domain.TaskCreated, "c", nil) {
		t.Fatal("expected third event to be dropped")
	}
	if waited := time.Since(start); waited < 20*time.Millisecond {
		t.Fatalf("expected handoff wait before dropping, waited %v", waited)
	}
	if entry := hook.LastEntry(); entry == nil || entry.Message != "event buffer saturated; dropping event" {
		t.Fatalf("expected saturation warning, got %#v", entry)
	}

	close(pub.release)
	d.Close()
	if got := pub.count.Load(); got != 2 {
		t.Fatalf("expected 2 delivered events, got %d", got)
	}
}

func TestEventDispatcherCloseDrainsQueue(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var delivered atomic.Int32
	d := NewEventDispatcher(publisherFunc(func(context.Context, domain.TaskEvent) error {
		delivered.Add(1)
		return nil
	}), DispatcherConfig{Workers: 2, Buffer: 16}, logger)

	for i := 0; i < 10; i++ {
		if !d.Emit(domain.TaskUpdated, "t", nil) {
			t.Fatalf("event %d rejected", i)
		}
	}
	d.Close()
	d.Close()

	if got := delivered.Load(); got != 10 {
		t.Fatalf("expected 10 delivered events, got %d", got)
	}
	if d.Emit(domain.TaskUpdated, "t", nil) {
		t.Fatal("expected closed dispatcher to reject events")
	}
}

func TestEventDispatcherLogsPublishErrors(t *testing.T) {
	logger, hook := test.NewNullLogger()
	d := NewEventDispatcher(publisherFunc(func(context.Context, domain.TaskEvent) error {
		return errors.New("queue unavailable")
	}), DispatcherConfig{Workers: 1, Buffer: 1}, logger)

	d.Emit(domain.TaskDeleted, "gone", nil)
	d.Close()

	entry := hook.LastEntry()
	if entry == nil || entry.Message != "event publish failed" || entry.Data["task"] != "gone" {
		t.Fatalf("unexpected log entry: %#v", entry)
	}
}

func TestEventDispatcherWithoutPublisher(t *testing.T) {
	logger, _ := test.NewNullLogger()
	d := NewEventDispatcher(nil, DispatcherConfig{}, logger)
	if d.Emit(domain.TaskCreated, "t", nil) {
		t.Fatal("expected events to be discarded without a publisher")
	}
	d.Close()

	var nilDispatcher *EventDispatcher
	if nilDispatcher.Emit(domain.TaskCreated, "t", nil) {
		t.Fatal("expected nil dispatcher to discard events")
	}
}
