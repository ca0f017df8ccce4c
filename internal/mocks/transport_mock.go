package mocks

import (
	"github.com/benmeehan/solar-station/pkg/mqtt"
	"github.com/stretchr/testify/mock"
)

// MockTransport is a mock implementation of the station's Transport interface.
// The registered handler is captured so tests can deliver inbound messages.
type MockTransport struct {
	mock.Mock
	handler mqtt.InboundHandler
}

func (m *MockTransport) EnsureConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockTransport) Service() {
	m.Called()
}

func (m *MockTransport) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockTransport) Publish(topic string, payload []byte) bool {
	args := m.Called(topic, payload)
	return args.Bool(0)
}

func (m *MockTransport) OnMessage(handler mqtt.InboundHandler) {
	m.handler = handler
}

// Deliver invokes the registered handler as the transport's Service would.
func (m *MockTransport) Deliver(topic string, payload []byte) {
	if m.handler != nil {
		m.handler(topic, payload)
	}
}
