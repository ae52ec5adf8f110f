package messaging

import "sync"

// MockEventSender is an in-memory implementation of EventSender for testing.
// It records every message it is handed.
type MockEventSender struct {
	mu            sync.Mutex
	OrderEvents   []*OrderEventMessage
	CrossedEvents []*CrossedMessage
}

// NewMockEventSender creates a new MockEventSender.
func NewMockEventSender() *MockEventSender {
	return &MockEventSender{}
}

// SendOrderEvent records the event.
func (m *MockEventSender) SendOrderEvent(event *OrderEventMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrderEvents = append(m.OrderEvents, event)
	return nil
}

// SendCrossedEvent records the event.
func (m *MockEventSender) SendCrossedEvent(event *CrossedMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CrossedEvents = append(m.CrossedEvents, event)
	return nil
}

// Close does nothing.
func (m *MockEventSender) Close() error {
	return nil
}

// Ensure MockEventSender implements EventSender
var _ EventSender = (*MockEventSender)(nil)
