package mocks

// MockMessage is an inbound paho message with a fixed topic and payload.
type MockMessage struct {
	topic   string
	payload []byte
	qos     byte
}

// NewMockMessage creates a QoS 0 message, the level the station subscribes with.
func NewMockMessage(topic string, payload []byte) *MockMessage {
	return &MockMessage{topic: topic, payload: payload}
}

func (m *MockMessage) Topic() string     { return m.topic }
func (m *MockMessage) Payload() []byte   { return m.payload }
func (m *MockMessage) Qos() byte         { return m.qos }
func (m *MockMessage) Duplicate() bool   { return false }
func (m *MockMessage) Retained() bool    { return false }
func (m *MockMessage) MessageID() uint16 { return 0 }
func (m *MockMessage) Ack()              {}
