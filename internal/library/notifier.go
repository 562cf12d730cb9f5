package library

import (
	"sync"
	"time"

	"curator/pkg/models"
)

// ChangeKind identifies what happened to a track.
type ChangeKind string

const (
	TrackAdded   ChangeKind = "added"
	TrackUpdated ChangeKind = "updated"
	TrackRemoved ChangeKind = "removed"
)

// Change describes a single library mutation delivered to subscribers.
type Change struct {
	Kind       ChangeKind   `json:"kind"`
	Track      models.Track `json:"track"`
	OccurredAt time.Time    `json:"occurredAt"`
}

// Notifier fans library changes out to subscribers. Deliveries are
// best-effort: a subscriber that stops draining its channel is dropped
// rather than allowed to block mutations.
type Notifier struct {
	mutex     sync.Mutex
	listeners []chan Change
}

// NewNotifier creates an empty change notifier.
func NewNotifier() *Notifier {
	return &Notifier{
		listeners: make([]chan Change, 0),
	}
}

// Subscribe adds a listener for library changes
func (n *Notifier) Subscribe() <-chan Change {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	ch := make(chan Change, 16) // Buffered channel to prevent blocking
	n.listeners = append(n.listeners, ch)
	return ch
}

// Unsubscribe removes a listener (call this when done to prevent memory leaks)
func (n *Notifier) Unsubscribe(ch <-chan Change) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	for i, listener := range n.listeners {
		if listener == ch {
			close(listener)
			n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
			break
		}
	}
}

// publish delivers a change to all subscribers in registration order.
func (n *Notifier) publish(kind ChangeKind, track models.Track) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	change := Change{Kind: kind, Track: track, OccurredAt: time.Now()}
	kept := n.listeners[:0]
	for _, listener := range n.listeners {
		select {
		case listener <- change:
			kept = append(kept, listener)
		default:
			// Channel is full, drop the subscriber
			close(listener)
		}
	}
	n.listeners = kept
}
