// Package sse streams post change notifications to connected readers over
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Event is one notification frame. Type becomes the SSE event name, Data is
// JSON-encoded into the data line.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// postChange carries a watcher or API mutation into the broker loop.
type postChange struct {
	kind string // "created", "updated", "deleted"
	slug string
}

// Broker fans events out to subscribed HTTP streams. All mutable state
// (the subscriber set and the index-event throttle clock) is owned by the
// run loop goroutine; the exported methods only exchange messages with it,
// so the type needs no locking.
type Broker struct {
	indexMin time.Duration

	joinCh   chan chan []byte
	leaveCh  chan chan []byte
	eventCh  chan Event
	changeCh chan postChange
	countCh  chan chan int

	quit   chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

// NewBroker starts a broker. indexThrottle bounds how often index.updated
// frames go out while posts churn; non-positive values fall back to 2s.
func NewBroker(indexThrottle time.Duration) *Broker {
	if indexThrottle <= 0 {
		indexThrottle = 2 * time.Second
	}
	b := &Broker{
		indexMin: indexThrottle,
		joinCh:   make(chan chan []byte),
		leaveCh:  make(chan chan []byte),
		eventCh:  make(chan Event, 256),
		changeCh: make(chan postChange, 256),
		countCh:  make(chan chan int),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

// frame renders an event as an SSE wire frame. A nil return means the data
// could not be encoded and the event is dropped.
func frame(ev Event) []byte {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return nil
	}
	buf := make([]byte, 0, len(ev.Type)+len(payload)+16)
	buf = append(buf, "event: "...)
	buf = append(buf, ev.Type...)
	buf = append(buf, "\ndata: "...)
	buf = append(buf, payload...)
	buf = append(buf, "\n\n"...)
	return buf
}

func (b *Broker) run() {
	defer close(b.done)

	subs := make(map[chan []byte]struct{})
	var lastIndexPush time.Time

	send := func(ev Event) {
		raw := frame(ev)
		if raw == nil {
			return
		}
		for ch := range subs {
			select {
			case ch <- raw:
			default:
				// Slow reader with a full buffer; drop the frame for it
				// rather than stall every other stream.
			}
		}
	}

	for {
		select {
		case <-b.quit:
			for ch := range subs {
				close(ch)
			}
			return

		case ch := <-b.joinCh:
			subs[ch] = struct{}{}

		case ch := <-b.leaveCh:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case ev := <-b.eventCh:
			send(ev)

		case chg := <-b.changeCh:
			switch chg.kind {
			case "created", "updated", "deleted":
				send(Event{Type: "post." + chg.kind, Data: map[string]string{"slug": chg.slug}})
			}
			if now := time.Now(); now.Sub(lastIndexPush) >= b.indexMin {
				lastIndexPush = now
				send(Event{Type: "index.updated", Data: map[string]string{}})
			}

		case resp := <-b.countCh:
			resp <- len(subs)
		}
	}
}

// Close stops the loop and closes every subscriber channel. Safe to call
// more than once; it returns after the loop has exited.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.done
}

// Subscribe registers a stream and returns its frame channel. After Close
// the returned channel is already closed.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.joinCh <- ch:
	case <-b.done:
		close(ch)
	}
	return ch
}

// Unsubscribe drops a stream and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leaveCh <- ch:
	case <-b.done:
	}
}

// ClientCount reports how many streams are connected.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countCh <- resp:
	case <-b.done:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.done:
		return 0
	}
}

// Publish broadcasts an arbitrary event to every stream.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.eventCh <- ev:
	case <-b.done:
	}
}

// PublishPostEvent broadcasts a post.<kind> frame for slug, plus a throttled
// index.updated frame signalling that the search corpus moved.
func (b *Broker) PublishPostEvent(kind, slug string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- postChange{kind: kind, slug: slug}:
	case <-b.done:
	}
}

// ServeHTTP implements GET /api/events as an EventSource endpoint.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
