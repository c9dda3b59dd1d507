package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dih-project/wishonia/internal/runner"
	"github.com/dih-project/wishonia/internal/todo"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: EventCheckCompleted, Data: map[string]string{"check": "links"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: check.completed") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"check":"links"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishTodos_ChangedThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishTodos("a.qmd", []string{"t1"})
	b.PublishTodos("b.qmd", []string{"t2", "t3"})

	time.Sleep(50 * time.Millisecond)
	changedCount := 0
	recordedCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, EventTodosChanged) {
				changedCount++
			} else {
				recordedCount++
			}
		default:
			break loop
		}
	}

	if recordedCount != 2 {
		t.Errorf("todo.recorded events = %d, want 2", recordedCount)
	}
	if changedCount != 1 {
		t.Errorf("todos.changed events = %d, want 1 (throttled)", changedCount)
	}
}

func TestPublishSummary(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishSummary(runner.Summary{
		Check:     "format",
		Examined:  3,
		Processed: []string{"a.qmd", "b.qmd"},
		Updated:   []string{"a.qmd"},
		Failed:    []runner.Failure{{Path: "b.qmd", Error: "boom"}},
	})

	select {
	case msg := <-ch:
		s := string(msg)
		for _, want := range []string{"event: check.completed", `"check":"format"`, `"processed":2`, `"failed":["b.qmd"]`} {
			if !strings.Contains(s, want) {
				t.Errorf("missing %s in %q", want, s)
			}
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestRecorder_PublishesCreatedOnly(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	rec := &Recorder{Inner: todo.NewLedger(), Broker: b}
	issue := todo.RawIssue{Type: todo.TypeClaim, Line: 4, Issue: "unsupported", Confidence: todo.ConfidenceLow}

	created, err := rec.RecordIssues("a.qmd", []todo.RawIssue{issue}, "fact-check")
	if err != nil || len(created) != 1 {
		t.Fatalf("RecordIssues = %v, %v", created, err)
	}
	select {
	case msg := <-ch:
		if !strings.Contains(string(msg), "event: todo.recorded") || !strings.Contains(string(msg), created[0].ID) {
			t.Errorf("unexpected event %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for todo.recorded")
	}
	// drain the throttled todos.changed
	<-ch

	// Same issue again is deduplicated, nothing to announce.
	created, err = rec.RecordIssues("a.qmd", []todo.RawIssue{issue}, "fact-check")
	if err != nil || len(created) != 0 {
		t.Fatalf("second RecordIssues = %v, %v", created, err)
	}
	select {
	case msg := <-ch:
		t.Errorf("unexpected event after dedupe: %q", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: EventCheckCompleted, Data: map[string]string{"check": "x"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: check.completed") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: EventCheckCompleted, Data: map[string]string{"check": "x"}})
	b.PublishTodos("x.qmd", []string{"t1"})
}

func TestSubscribeFrom_ReplaysMissedEvents(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	for _, c := range []string{"format", "links", "figures"} {
		b.Publish(Event{Type: EventCheckCompleted, Data: map[string]string{"check": c}})
	}

	ch := b.SubscribeFrom(1)
	defer b.Unsubscribe(ch)

	var got []string
	for len(got) < 2 {
		select {
		case msg := <-ch:
			got = append(got, string(msg))
		case <-time.After(time.Second):
			t.Fatalf("replayed %d events, want 2", len(got))
		}
	}
	if !strings.HasPrefix(got[0], "id: 2\n") || !strings.Contains(got[0], `"check":"links"`) {
		t.Errorf("first replay = %q", got[0])
	}
	if !strings.HasPrefix(got[1], "id: 3\n") {
		t.Errorf("second replay = %q", got[1])
	}
}

func TestSSEHandler_Heartbeat(t *testing.T) {
	b := NewBroker(time.Second)
	b.Heartbeat = 20 * time.Millisecond
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	b.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), ": ping") {
		t.Errorf("no heartbeat in %q", w.Body.String())
	}
}
