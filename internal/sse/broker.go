// Package sse streams tree changes to clients as Server-Sent Events.
//
// Every change becomes a numbered tree.changed frame. A client that
// reconnects with Last-Event-ID gets the changes it missed replayed, or a
// tree.refresh frame when the gap is older than the retained history.
// tree.refresh frames tell clients to reload the whole forest; they are
// throttled, and a burst of changes always ends with one.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/starford/planner/internal/deckservice"
)

// Event names written on the stream.
const (
	EventTreeChanged = "tree.changed"
	EventTreeRefresh = "tree.refresh"
)

const (
	clientBuffer = 64
	historySize  = 32
)

// RefreshPayload is the data of a tree.refresh frame. Seq is the id of the
// last change the reloaded forest reflects.
type RefreshPayload struct {
	Seq uint64 `json:"seq"`
}

type frame struct {
	id  uint64
	raw []byte
}

// Broker fans tree changes out to connected clients.
type Broker struct {
	throttle time.Duration

	mu           sync.Mutex
	clients      map[chan []byte]struct{}
	seq          uint64
	history      []frame
	lastRefresh  time.Time
	refreshTimer *time.Timer
	closed       bool
}

// NewBroker creates a broker that sends at most one tree.refresh frame per
// throttle interval.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = time.Second
	}
	return &Broker{
		throttle: throttle,
		clients:  make(map[chan []byte]struct{}),
	}
}

// Notify records a tree change and sends it to every client. It has the
// shape of a deckservice change hook.
func (b *Broker) Notify(ev deckservice.ChangeEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.seq++
	f := frame{id: b.seq, raw: encodeFrame(b.seq, EventTreeChanged, payload)}
	b.history = append(b.history, f)
	if over := len(b.history) - historySize; over > 0 {
		b.history = slices.Delete(b.history, 0, over)
	}
	b.broadcastLocked(f.raw)
	b.scheduleRefreshLocked()
}

// Seq returns the id of the latest change.
func (b *Broker) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// Subscribe registers a client. A non-zero lastID replays the changes
// after it before any live frame.
func (b *Broker) Subscribe(lastID uint64) chan []byte {
	ch := make(chan []byte, clientBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	if lastID > 0 {
		b.replayLocked(ch, lastID)
	}
	b.clients[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; ok {
		delete(b.clients, ch)
		close(ch)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every client and drops any pending refresh.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if b.refreshTimer != nil {
		b.refreshTimer.Stop()
		b.refreshTimer = nil
	}
	for ch := range b.clients {
		close(ch)
	}
	clear(b.clients)
}

// ServeHTTP is the event stream endpoint (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// A malformed Last-Event-ID is treated as a fresh connection.
	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(lastID)
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(raw); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (b *Broker) replayLocked(ch chan []byte, lastID uint64) {
	if lastID == b.seq {
		return
	}
	if lastID > b.seq || len(b.history) == 0 || lastID+1 < b.history[0].id {
		ch <- b.refreshFrameLocked()
		return
	}
	for _, f := range b.history {
		if f.id > lastID {
			ch <- f.raw
		}
	}
}

// scheduleRefreshLocked sends a refresh now when the throttle allows it,
// otherwise once the interval has passed.
func (b *Broker) scheduleRefreshLocked() {
	if b.refreshTimer != nil {
		return
	}
	wait := b.throttle - time.Since(b.lastRefresh)
	if wait <= 0 {
		b.sendRefreshLocked()
		return
	}
	b.refreshTimer = time.AfterFunc(wait, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.refreshTimer = nil
		if !b.closed {
			b.sendRefreshLocked()
		}
	})
}

func (b *Broker) sendRefreshLocked() {
	b.lastRefresh = time.Now()
	b.broadcastLocked(b.refreshFrameLocked())
}

func (b *Broker) refreshFrameLocked() []byte {
	payload, _ := json.Marshal(RefreshPayload{Seq: b.seq})
	return encodeFrame(0, EventTreeRefresh, payload)
}

func (b *Broker) broadcastLocked(raw []byte) {
	for ch := range b.clients {
		select {
		case ch <- raw:
		default:
			// Slow client; it recovers through the next refresh.
		}
	}
}

// encodeFrame renders one SSE frame. Refresh frames carry no id so they
// leave the client's Last-Event-ID alone.
func encodeFrame(id uint64, event string, data []byte) []byte {
	if id == 0 {
		return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", event, data)
	}
	return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", id, event, data)
}
