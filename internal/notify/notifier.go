package notify

import "sync"

// Notifier publishes call-center events to connected dashboard clients.
// Every event reaches the supervisory roles; targetUserID additionally
// addresses one specific user's connections and may be empty.
type Notifier interface {
	Publish(event string, data any, targetUserID string)
}

// Published is one recorded Publish call.
type Published struct {
	Event        string
	Data         any
	TargetUserID string
}

// MockNotifier records publishes for assertions in tests.
type MockNotifier struct {
	mu        sync.Mutex
	published []Published
}

func (m *MockNotifier) Publish(event string, data any, targetUserID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, Published{Event: event, Data: data, TargetUserID: targetUserID})
}

// Recorded returns a copy of everything recorded so far.
func (m *MockNotifier) Recorded() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Published, len(m.published))
	copy(out, m.published)
	return out
}

// ByEvent returns recorded publishes with the given event name.
func (m *MockNotifier) ByEvent(event string) []Published {
	var out []Published
	for _, p := range m.Recorded() {
		if p.Event == event {
			out = append(out, p)
		}
	}
	return out
}
