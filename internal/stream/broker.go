package stream

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dgnsrekt/coindash/internal/metrics"
)

const subscriberBufSize = 256

// Feed names carried on the stream.
const (
	FeedQuotes       = "quotes"
	FeedChart        = "chart"
	FeedNotification = "notification"
	FeedAlert        = "alert"
	FeedSelection    = "selection"
)

// Event is one message pushed to dashboard clients.
type Event struct {
	Feed    string
	Payload string
}

// Broker fans out events to all subscribed SSE and WebSocket clients.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int64]chan Event),
	}
}

// Subscribe registers a new client. The channel is buffered; slow consumers
// have events dropped.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	metrics.StreamClients.Inc()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
	if ok {
		metrics.StreamClients.Dec()
	}
}

// Publish sends an event to all subscribers without blocking.
func (b *Broker) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// PublishJSON encodes v and publishes it on feed.
func (b *Broker) PublishJSON(feed string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Warn("stream event encode failed", "feed", feed, "error", err)
		return
	}
	b.Publish(Event{Feed: feed, Payload: string(payload)})
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
