package notify

import (
	"fmt"
	"sync"
)

// Recorder is a publisher used in tests. It records every event by topic and
// can be told to fail specific topics.
type Recorder struct {
	mu         sync.Mutex
	Events     map[string][]any
	FailTopics map[string]bool
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		Events:     make(map[string][]any),
		FailTopics: make(map[string]bool),
	}
}

// Publish records the event or returns an error if the topic is set to fail.
func (r *Recorder) Publish(topic string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailTopics[topic] {
		return fmt.Errorf("publish failed")
	}
	r.Events[topic] = append(r.Events[topic], event)
	return nil
}

// Count returns the number of events recorded for a topic.
func (r *Recorder) Count(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Events[topic])
}

// Last returns the most recent event for a topic, or nil.
func (r *Recorder) Last(topic string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	evs := r.Events[topic]
	if len(evs) == 0 {
		return nil
	}
	return evs[len(evs)-1]
}
