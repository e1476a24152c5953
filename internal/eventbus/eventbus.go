package eventbus

import "sync"

// Message is one notification published on the bus.
type Message struct {
	Topic string
	Event any
}

// Bus is an in-process publish/subscribe fan-out for notifications. It
// implements the notify.Publisher contract so the coordinator can run
// without a broker, and lets tests and the simulator observe every event.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan Message
	closed bool
}

// New creates a new Bus.
func New() *Bus { return &Bus{} }

// Publish sends the event to all subscribers. Delivery is non-blocking; a
// slow subscriber drops messages rather than stalling the publisher.
func (b *Bus) Publish(topic string, event any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	m := Message{Topic: topic, Event: event}
	for _, ch := range b.subs {
		select {
		case ch <- m:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Bus) Subscribe() <-chan Message {
	ch := make(chan Message, 8)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub <-chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Close closes all subscriber channels and clears the list.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.mu.Unlock()
}
