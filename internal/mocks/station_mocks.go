package mocks

import (
	"context"
	"sync/atomic"

	"github.com/benmeehan/solar-station/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockPublisher is a mock implementation of the Publisher interface
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, payload []byte) bool {
	args := m.Called(topic, payload)
	return args.Bool(0)
}

// MockEmitter is a mock implementation of the HTTP fallback Emitter interface
type MockEmitter struct {
	mock.Mock
}

func (m *MockEmitter) Post(ctx context.Context, reading models.SensorReading) bool {
	args := m.Called(ctx, reading)
	return args.Bool(0)
}

// ManualClock is an uptime clock moved by the test.
type ManualClock struct {
	now atomic.Uint32
}

// NewManualClock starts the clock at ms.
func NewManualClock(ms uint32) *ManualClock {
	c := &ManualClock{}
	c.now.Store(ms)
	return c
}

func (c *ManualClock) Millis() uint32 {
	return c.now.Load()
}

// Set moves the clock to ms.
func (c *ManualClock) Set(ms uint32) {
	c.now.Store(ms)
}

// Advance moves the clock forward by ms, wrapping like the device counter.
func (c *ManualClock) Advance(ms uint32) {
	c.now.Add(ms)
}

// NetworkSwitch is a network monitor toggled by the test.
type NetworkSwitch struct {
	up atomic.Bool
}

// NewNetworkSwitch creates a switch in the given state.
func NewNetworkSwitch(up bool) *NetworkSwitch {
	n := &NetworkSwitch{}
	n.up.Store(up)
	return n
}

func (n *NetworkSwitch) IsUp() bool {
	return n.up.Load()
}

// Set changes the reported link state.
func (n *NetworkSwitch) Set(up bool) {
	n.up.Store(up)
}
