// Package sse streams review progress to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event types emitted by the broker.
const (
	EventCheckCompleted = "check.completed"
	EventTodoRecorded   = "todo.recorded"
	EventTodosChanged   = "todos.changed"
)

const (
	historySize      = 128
	clientBuffer     = 64
	defaultHeartbeat = 30 * time.Second
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type frame struct {
	id  uint64
	raw []byte
}

// hub is the state owned by the broker loop. Nothing outside run touches it.
type hub struct {
	clients     map[chan []byte]struct{}
	history     []frame
	seq         uint64
	throttle    time.Duration
	lastChanged time.Time
}

func (h *hub) broadcast(e Event) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return
	}
	h.seq++
	f := frame{id: h.seq, raw: fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", h.seq, e.Type, payload)}
	if len(h.history) == historySize {
		h.history = append(h.history[:0], h.history[1:]...)
	}
	h.history = append(h.history, f)

	for ch := range h.clients {
		select {
		case ch <- f.raw:
		default:
			// slow client, drop
		}
	}
}

func (h *hub) todos(path string, ids []string) {
	h.broadcast(Event{Type: EventTodoRecorded, Data: map[string]any{"path": path, "ids": ids}})
	if now := time.Now(); now.Sub(h.lastChanged) >= h.throttle {
		h.lastChanged = now
		h.broadcast(Event{Type: EventTodosChanged, Data: map[string]string{}})
	}
}

// Broker manages SSE client connections and broadcasts events.
//
// A single loop goroutine owns the hub; public methods hand it closures
// over a channel. The last events are kept so a reconnecting client that
// sends Last-Event-ID gets what it missed.
type Broker struct {
	// Heartbeat is the interval of keep-alive comments on open streams.
	Heartbeat time.Duration

	ops     chan func(*hub)
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits at most one todos.changed event per
// throttle interval.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}
	b := &Broker{
		Heartbeat: defaultHeartbeat,
		ops:       make(chan func(*hub), 256),
		stopCh:    make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go b.run(&hub{clients: make(map[chan []byte]struct{}), throttle: throttle})
	return b
}

func (b *Broker) run(h *hub) {
	defer close(b.stopped)
	for {
		select {
		case op := <-b.ops:
			op(h)
		case <-b.stopCh:
			// Apply what was already queued so no subscriber is left open.
			for drained := false; !drained; {
				select {
				case op := <-b.ops:
					op(h)
				default:
					drained = true
				}
			}
			for ch := range h.clients {
				close(ch)
			}
			return
		}
	}
}

// do queues op for the loop. It reports false once the broker is closed.
func (b *Broker) do(op func(*hub)) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.ops <- op:
		return true
	case <-b.stopped:
		return false
	}
}

// Close stops the loop and closes all client channels. Safe to call twice.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	return b.SubscribeFrom(0)
}

// SubscribeFrom adds a client and first replays retained events with an id
// greater than lastID. Zero replays nothing.
func (b *Broker) SubscribeFrom(lastID uint64) chan []byte {
	ch := make(chan []byte, clientBuffer)
	ok := b.do(func(h *hub) {
		h.clients[ch] = struct{}{}
		if lastID == 0 {
			return
		}
		for _, f := range h.history {
			if f.id <= lastID {
				continue
			}
			select {
			case ch <- f.raw:
			default:
			}
		}
	})
	if !ok {
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.do(func(h *hub) {
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	resp := make(chan int, 1)
	if !b.do(func(h *hub) { resp <- len(h.clients) }) {
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	b.do(func(h *hub) { h.broadcast(event) })
}

// PublishTodos announces todos created for path, followed by a throttled
// todos.changed event.
func (b *Broker) PublishTodos(path string, ids []string) {
	b.do(func(h *hub) { h.todos(path, ids) })
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.SubscribeFrom(lastID)
	defer b.Unsubscribe(ch)

	heartbeat := b.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
