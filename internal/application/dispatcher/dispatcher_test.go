package dispatcher

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/garyjia/travel-expense/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string

	d.SubscribeNamed(event.TypeSheetSubmitted, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	})
	d.SubscribeNamed(event.TypeSheetSubmitted, "second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})

	if err := d.Dispatch(context.Background(), event.NewEvent(event.TypeSheetSubmitted, 1, 2, nil)); err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"first", "second"}) {
		t.Errorf("handler order = %v", order)
	}
}

func TestDispatch_StopsAtFirstError(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	boom := errors.New("boom")
	called := false

	d.Subscribe(event.TypeSheetApproved, func(ctx context.Context, evt *event.Event) error {
		return boom
	})
	d.Subscribe(event.TypeSheetApproved, func(ctx context.Context, evt *event.Event) error {
		called = true
		return nil
	})

	err := d.Dispatch(context.Background(), event.NewEvent(event.TypeSheetApproved, 1, 2, nil))
	if !errors.Is(err, boom) {
		t.Fatalf("Dispatch() error = %v, want %v", err, boom)
	}
	if called {
		t.Error("handlers after a failing one should not run")
	}
	if logger.ErrorCount() != 1 {
		t.Errorf("ErrorCount() = %d, want 1", logger.ErrorCount())
	}
}

func TestDispatch_RecoversPanics(t *testing.T) {
	d := NewDispatcher()
	d.Subscribe(event.TypeSheetRefused, func(ctx context.Context, evt *event.Event) error {
		panic("kaboom")
	})

	if err := d.Dispatch(context.Background(), event.NewEvent(event.TypeSheetRefused, 1, 2, nil)); err == nil {
		t.Fatal("Dispatch() should turn a panic into an error")
	}
}

func TestPublish_WaitsOnClose(t *testing.T) {
	d := NewDispatcher(WithLogger(&mockLogger{}))
	var handled atomic.Int32

	for _, typ := range []event.Type{event.TypeSheetPosted, event.TypeSheetPaid} {
		d.Subscribe(typ, func(ctx context.Context, evt *event.Event) error {
			handled.Add(1)
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.Publish(ctx, []*event.Event{
		event.NewEvent(event.TypeSheetPosted, 1, 2, nil),
		event.NewEvent(event.TypeSheetPaid, 1, 2, nil),
		event.NewEvent(event.TypeSheetReset, 1, 2, nil),
	})
	// handlers outlive the request that published the events
	cancel()

	if err := d.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if got := handled.Load(); got != 2 {
		t.Errorf("handled = %d, want 2", got)
	}
}

func TestClose(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))

	if err := d.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := d.Close(); err == nil {
		t.Error("second Close() should fail")
	}
	if err := d.Dispatch(context.Background(), event.NewEvent(event.TypeSheetPaid, 1, 2, nil)); err == nil {
		t.Error("Dispatch() after Close() should fail")
	}

	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeSheetPaid, 1, 2, nil))
	if logger.ErrorCount() != 1 {
		t.Errorf("ErrorCount() = %d, want 1", logger.ErrorCount())
	}
}

func TestHandlerNames(t *testing.T) {
	d := NewDispatcher()
	d.SubscribeNamed(event.TypeAdvanceSettled, "notify", func(ctx context.Context, evt *event.Event) error { return nil })
	d.Subscribe(event.TypeAdvanceSettled, func(ctx context.Context, evt *event.Event) error { return nil })

	got := d.HandlerNames(event.TypeAdvanceSettled)
	if !reflect.DeepEqual(got, []string{"notify", "handler-1"}) {
		t.Errorf("HandlerNames() = %v", got)
	}
	if n := len(d.HandlerNames(event.TypeSheetReset)); n != 0 {
		t.Errorf("HandlerNames() for unused type returned %d names", n)
	}
}
