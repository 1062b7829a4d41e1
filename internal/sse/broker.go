// Package sse streams submission status changes to clients over Server-Sent
// Events. A client names the submissions it is waiting for and only hears
// about those; everyone hears the throttled matches.updated nudge.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Event types.
const (
	EventSubmissionCompleted = "submission.completed"
	EventSubmissionFailed    = "submission.failed"
	EventSubmissionDelayed   = "submission.delayed"
	EventMatchesUpdated      = "matches.updated"
)

// heartbeatInterval keeps idle connections open through proxies.
var heartbeatInterval = 15 * time.Second

type subscription struct {
	ch    chan []byte
	watch map[string]struct{}
}

type statusChange struct {
	kind string
	id   string
}

// Broker fans submission events out to SSE clients.
//
// A single loop goroutine owns the client set and the matches throttle;
// public methods talk to it over channels.
type Broker struct {
	matchesMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	changeCh      chan statusChange
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker. matches.updated is sent at most once per
// matchesThrottle.
func NewBroker(matchesThrottle time.Duration) *Broker {
	if matchesThrottle <= 0 {
		matchesThrottle = 2 * time.Second
	}

	b := &Broker{
		matchesMin:    matchesThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		changeCh:      make(chan statusChange, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func encode(eventType string, data any) []byte {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, payload))
}

func send(ch chan []byte, msg []byte) {
	select {
	case ch <- msg:
	default:
		// Slow client; drop rather than stall the loop.
	}
}

func eventType(kind string) (string, bool) {
	switch kind {
	case "completed":
		return EventSubmissionCompleted, true
	case "failed":
		return EventSubmissionFailed, true
	case "delayed":
		return EventSubmissionDelayed, true
	}
	return "", false
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]map[string]struct{})
	var lastMatches time.Time

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.watch

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case c := <-b.changeCh:
			typ, ok := eventType(c.kind)
			if !ok {
				continue
			}
			msg := encode(typ, map[string]string{"submission_id": c.id, "status": c.kind})
			for ch, watch := range clients {
				if _, ok := watch[c.id]; ok {
					send(ch, msg)
				}
			}
			if typ != EventSubmissionCompleted {
				continue
			}

			now := time.Now()
			if now.Sub(lastMatches) < b.matchesMin {
				continue
			}
			lastMatches = now
			nudge := encode(EventMatchesUpdated, map[string]string{})
			for ch := range clients {
				send(ch, nudge)
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client interested in the given submission ids.
func (b *Broker) Subscribe(submissionIDs ...string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	watch := make(map[string]struct{}, len(submissionIDs))
	for _, id := range submissionIDs {
		if id != "" {
			watch[id] = struct{}{}
		}
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, watch: watch}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// PublishSubmissionEvent reports a status change (completed, failed or
// delayed). Unknown kinds are ignored.
func (b *Broker) PublishSubmissionEvent(kind, submissionID string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- statusChange{kind: kind, id: submissionID}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint (GET /api/events?submission_id=a,b).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var ids []string
	for _, v := range r.URL.Query()["submission_id"] {
		ids = append(ids, strings.Split(v, ",")...)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(ids...)
	defer b.Unsubscribe(ch)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
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
