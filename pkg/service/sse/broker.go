// Package sse streams filter status events to subscribed hosts. The broker
// is the concrete form of the one-way notification channel: hosts attach to
// it over Server-Sent Events and receive every status the hooks emit.
package sse

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/schmidt-silas/mem0-for-owui/pkg/filter"
)

const defaultHeartbeat = 25 * time.Second

type subscriber struct {
	events chan filter.StatusEvent
}

// Broker fans filter status events out to every attached subscriber.
// Publishing never blocks: a subscriber that cannot keep up loses events,
// which is acceptable for advisory status traffic.
type Broker struct {
	mu        sync.RWMutex
	subs      map[*subscriber]struct{}
	heartbeat time.Duration
	closed    bool
}

// NewBroker creates a broker with the production heartbeat interval
func NewBroker() *Broker {
	return &Broker{
		subs:      make(map[*subscriber]struct{}),
		heartbeat: defaultHeartbeat,
	}
}

// NewTestBroker creates a broker whose heartbeat fires fast enough for tests
func NewTestBroker() *Broker {
	return &Broker{
		subs:      make(map[*subscriber]struct{}),
		heartbeat: 100 * time.Millisecond,
	}
}

// Publish delivers a status event to every subscriber. It reports how many
// subscribers received it, which is zero after Close.
func (broker *Broker) Publish(event filter.StatusEvent) int {
	broker.mu.RLock()
	defer broker.mu.RUnlock()

	if broker.closed {
		return 0
	}

	delivered := 0

	for sub := range broker.subs {
		select {
		case sub.events <- event:
			delivered++
		default:
			// Slow subscriber: drop rather than stall the hook path.
		}
	}

	return delivered
}

// ServeHTTP upgrades the connection to an SSE stream and blocks until the
// client disconnects, writing each published event as a data frame and a
// comment heartbeat in between to keep proxies from cutting the stream.
func (broker *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := &subscriber{events: make(chan filter.StatusEvent, 8)}

	broker.mu.Lock()
	if broker.closed {
		broker.mu.Unlock()
		http.Error(w, "broker closed", http.StatusGone)
		return
	}
	broker.subs[sub] = struct{}{}
	broker.mu.Unlock()

	defer broker.detach(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(broker.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.events:
			if !ok {
				return
			}
			frame, err := json.Marshal(event)
			if err != nil {
				continue
			}
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(frame)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-ticker.C:
			_, _ = w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()
		}
	}
}

// Close disconnects all subscribers and turns Publish into a no-op
func (broker *Broker) Close() {
	broker.mu.Lock()
	defer broker.mu.Unlock()

	if broker.closed {
		return
	}

	broker.closed = true

	for sub := range broker.subs {
		close(sub.events)
	}

	broker.subs = make(map[*subscriber]struct{})
}

func (broker *Broker) detach(sub *subscriber) {
	broker.mu.Lock()
	defer broker.mu.Unlock()

	if _, ok := broker.subs[sub]; ok {
		delete(broker.subs, sub)
		close(sub.events)
	}
}
