package state

import (
	"reflect"
	"sync"
)

// Notifier dispatches immutable state snapshots to subscribers.
// Channels are buffered and sends never block the mutating manager;
// a subscriber that falls behind misses intermediate snapshots but
// always receives the latest one eventually.
type Notifier[T any] struct {
	mu          sync.RWMutex
	subscribers []chan T
}

// NewNotifier creates an empty notifier.
func NewNotifier[T any]() *Notifier[T] {
	return &Notifier[T]{}
}

// Subscribe returns a channel that will receive every published snapshot.
// The channel is buffered to prevent blocking publishers.
func (n *Notifier[T]) Subscribe() <-chan T {
	ch := make(chan T, 16)
	n.mu.Lock()
	n.subscribers = append(n.subscribers, ch)
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (n *Notifier[T]) Unsubscribe(ch <-chan T) {
	if ch == nil {
		return
	}
	target := reflect.ValueOf(ch).Pointer()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, sub := range n.subscribers {
		if reflect.ValueOf(sub).Pointer() == target {
			n.subscribers = append(n.subscribers[:i], n.subscribers[i+1:]...)
			close(sub)
			break
		}
	}
}

// Publish sends a snapshot to all subscribers without blocking.
// If a subscriber's buffer is full the oldest entry is evicted so the
// channel always ends with the most recent snapshot.
func (n *Notifier[T]) Publish(snapshot T) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, sub := range n.subscribers {
		select {
		case sub <- snapshot:
		default:
			select {
			case <-sub:
			default:
			}
			select {
			case sub <- snapshot:
			default:
			}
		}
	}
}

// Close closes all subscriber channels.
func (n *Notifier[T]) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, sub := range n.subscribers {
		close(sub)
	}
	n.subscribers = nil
}
