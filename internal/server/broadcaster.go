package server

import (
	"sync"

	"github.com/streamkit/mkvmux/internal/util"
)

// Broadcaster fans live muxer output out to multiple subscribers. The
// container init segment (EBML header plus segment headers) is cached so a
// subscriber joining mid-stream still receives a decodable stream: init
// first, then whole clusters from the next broadcast on.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan<- []byte
	initSegment []byte
	closed      bool

	clusters uint64
	bytes    uint64
}

// NewBroadcaster creates a new broadcaster instance.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]chan<- []byte),
	}
}

// AppendInit extends the cached init segment. The muxer delivers it in two
// callbacks (EBML header, then segment headers); both land here before the
// first cluster.
func (b *Broadcaster) AppendInit(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.initSegment = append(b.initSegment, data...)

	util.GetLogger().Info("broadcaster init segment cached", "size", len(b.initSegment))
}

// Subscribe adds a new subscriber with the given ID and returns a channel
// that will receive broadcast data. The cached init segment, if any, is
// sent immediately.
func (b *Broadcaster) Subscribe(subscriberID string, bufferSize int) <-chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		// Return a closed channel for closed broadcaster
		ch := make(chan []byte)
		close(ch)
		return ch
	}

	ch := make(chan []byte, bufferSize)
	b.subscribers[subscriberID] = ch

	if len(b.initSegment) > 0 {
		init := make([]byte, len(b.initSegment))
		copy(init, b.initSegment)
		select {
		case ch <- init:
			util.GetLogger().Debug("init segment sent to new subscriber", "id", subscriberID, "size", len(init))
		default:
			util.GetLogger().Warn("failed to send init segment to new subscriber (channel full)", "id", subscriberID)
		}
	}

	util.GetLogger().Info("new subscriber added", "id", subscriberID, "total", len(b.subscribers))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, exists := b.subscribers[subscriberID]; exists {
		close(ch)
		delete(b.subscribers, subscriberID)
		util.GetLogger().Info("subscriber removed", "id", subscriberID, "remaining", len(b.subscribers))
	}
}

// Broadcast sends one cluster to all current subscribers. A subscriber
// whose channel is full is dropped rather than allowed to stall the
// stream for everyone else.
func (b *Broadcaster) Broadcast(data []byte) {
	if len(data) == 0 {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.clusters++
	b.bytes += uint64(len(data))

	// Copy the subscriber map so the lock is not held during sends
	subscribers := make(map[string]chan<- []byte, len(b.subscribers))
	for id, ch := range b.subscribers {
		subscribers[id] = ch
	}
	b.mu.Unlock()

	var dropped []string
	for id, ch := range subscribers {
		select {
		case ch <- data:
		default:
			dropped = append(dropped, id)
			util.GetLogger().Warn("dropping subscriber due to full channel", "id", id)
		}
	}

	if len(dropped) > 0 {
		b.mu.Lock()
		for _, id := range dropped {
			if ch, exists := b.subscribers[id]; exists {
				close(ch)
				delete(b.subscribers, id)
			}
		}
		b.mu.Unlock()
	}
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		util.GetLogger().Debug("closed subscriber channel", "id", id)
	}
	b.subscribers = make(map[string]chan<- []byte)
	util.GetLogger().Info("broadcaster closed")
}

// SubscriberCount returns the current number of subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Stats returns the number of clusters and total payload bytes broadcast
// since creation.
func (b *Broadcaster) Stats() (clusters, bytes uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.clusters, b.bytes
}
