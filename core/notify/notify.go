package notify

// Publisher is the outbound side of the notification bus. Implementations
// must not block the caller on delivery; state transitions publish after
// commit and treat publish failures as log-and-continue.
type Publisher interface {
	Publish(topic string, event any) error
}

// DispatcherTopic is the broadcast channel watched by dispatcher dashboards.
const DispatcherTopic = "absorb/dispatch"

// DriverTopic returns the per-driver notification topic.
func DriverTopic(driverID string) string {
	return "absorb/driver/" + driverID
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Publish(string, any) error { return nil }
