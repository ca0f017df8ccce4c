package mqtt_test

import (
	"errors"
	"testing"

	"github.com/benmeehan/solar-station/internal/mocks"
	"github.com/benmeehan/solar-station/pkg/mqtt"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

const controlTopic = "station/001/control"

func newTransport(client *mocks.MockMQTTClient, net *mocks.NetworkSwitch, clock *mocks.ManualClock) *mqtt.MqttService {
	return mqtt.NewMqttServiceWithClient(client, mqtt.Options{
		Broker:       "tcp://broker:1883",
		ClientID:     "ESP32_SolarCharge_001",
		ControlTopic: controlTopic,
	}, net, clock, zerolog.Nop())
}

func expectSubscribe(client *mocks.MockMQTTClient, err error) *mock.Call {
	return client.On("Subscribe", controlTopic, byte(0), mock.Anything).Return(mocks.NewCompletedToken(err))
}

// TestMqttService_ConnectsOnFirstAttempt covers a reachable broker from DISCONNECTED.
func TestMqttService_ConnectsOnFirstAttempt(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Connect").Return(mocks.NewCompletedToken(nil)).Once()
	expectSubscribe(client, nil).Once()

	transport := newTransport(client, mocks.NewNetworkSwitch(true), mocks.NewManualClock(0))
	assert.Equal(t, mqtt.StateDisconnected, transport.State())

	assert.True(t, transport.EnsureConnected())
	assert.True(t, transport.IsConnected())
	assert.Equal(t, 1, transport.Session().Attempts)
	assert.True(t, transport.EnsureConnected())

	client.AssertExpectations(t)
}

// TestMqttService_ReconnectConvergence fails N attempts then succeeds on attempt N+1.
func TestMqttService_ReconnectConvergence(t *testing.T) {
	const failures = 3
	client := new(mocks.MockMQTTClient)
	client.On("Connect").Return(mocks.NewCompletedToken(errors.New("connection refused"))).Times(failures)
	client.On("Connect").Return(mocks.NewCompletedToken(nil)).Once()
	client.On("Disconnect", uint(0)).Times(failures)
	expectSubscribe(client, nil).Once()

	clock := mocks.NewManualClock(1000)
	transport := newTransport(client, mocks.NewNetworkSwitch(true), clock)

	for i := 0; i < failures; i++ {
		assert.False(t, transport.EnsureConnected())
		assert.Equal(t, mqtt.StateBackoff, transport.State())
		clock.Advance(5000)
	}

	assert.True(t, transport.EnsureConnected())
	assert.Equal(t, failures+1, transport.Session().Attempts)
	client.AssertExpectations(t)
}

// TestMqttService_BackoffIsNonBlocking verifies no attempt is made inside the 5s window.
func TestMqttService_BackoffIsNonBlocking(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Connect").Return(mocks.NewCompletedToken(errors.New("refused"))).Once()
	client.On("Disconnect", uint(0)).Once()

	clock := mocks.NewManualClock(0)
	transport := newTransport(client, mocks.NewNetworkSwitch(true), clock)

	assert.False(t, transport.EnsureConnected())
	clock.Advance(4999)
	assert.False(t, transport.EnsureConnected())
	assert.Equal(t, 1, transport.Session().Attempts)
	assert.Equal(t, uint32(0), transport.Session().LastConnectAttemptMs)

	client.AssertNumberOfCalls(t, "Connect", 1)
}

// TestMqttService_NetworkDownFailsFast retries on every call without touching the
// client or waiting out a backoff window while the link is down.
func TestMqttService_NetworkDownFailsFast(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	clock := mocks.NewManualClock(0)
	transport := newTransport(client, mocks.NewNetworkSwitch(false), clock)

	for i := 0; i < 20; i++ {
		assert.False(t, transport.EnsureConnected())
		assert.Equal(t, mqtt.StateDisconnected, transport.State())
		clock.Advance(10)
	}
	assert.Equal(t, 20, transport.Session().Attempts)
	client.AssertNotCalled(t, "Connect")
}

// TestMqttService_ConnectsAsSoonAsNetworkReturns does not hold a backoff from the outage.
func TestMqttService_ConnectsAsSoonAsNetworkReturns(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Connect").Return(mocks.NewCompletedToken(nil)).Once()
	expectSubscribe(client, nil).Once()

	net := mocks.NewNetworkSwitch(false)
	clock := mocks.NewManualClock(0)
	transport := newTransport(client, net, clock)

	assert.False(t, transport.EnsureConnected())
	net.Set(true)
	clock.Advance(10)
	assert.True(t, transport.EnsureConnected())
	client.AssertExpectations(t)
}

// TestMqttService_SubscribeFailure enters backoff and drops the half-open session.
func TestMqttService_SubscribeFailure(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Connect").Return(mocks.NewCompletedToken(nil)).Once()
	expectSubscribe(client, errors.New("not authorized")).Once()
	client.On("Disconnect", uint(0)).Once()

	transport := newTransport(client, mocks.NewNetworkSwitch(true), mocks.NewManualClock(0))
	assert.False(t, transport.EnsureConnected())
	assert.Equal(t, mqtt.StateBackoff, transport.State())
	client.AssertExpectations(t)
}

// TestMqttService_ConnectTimeout treats an unacknowledged connect as a failure and
// aborts the connect still in flight.
func TestMqttService_ConnectTimeout(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Connect").Return(mocks.NewStalledToken()).Once()
	client.On("Disconnect", uint(0)).Once()

	transport := newTransport(client, mocks.NewNetworkSwitch(true), mocks.NewManualClock(0))
	assert.False(t, transport.EnsureConnected())
	assert.Equal(t, mqtt.StateBackoff, transport.State())
	client.AssertExpectations(t)
}

func connected(t *testing.T, net *mocks.NetworkSwitch, clock *mocks.ManualClock) (*mqtt.MqttService, *mocks.MockMQTTClient, MQTT.MessageHandler) {
	t.Helper()
	client := new(mocks.MockMQTTClient)
	var callback MQTT.MessageHandler
	client.On("Connect").Return(mocks.NewCompletedToken(nil))
	expectSubscribe(client, nil).Run(func(args mock.Arguments) {
		callback = args.Get(2).(MQTT.MessageHandler)
	})

	transport := newTransport(client, net, clock)
	if !transport.EnsureConnected() {
		t.Fatal("expected transport to connect")
	}
	return transport, client, callback
}

// TestMqttService_ServiceDeliversInOrder drains queued messages on the caller's goroutine.
func TestMqttService_ServiceDeliversInOrder(t *testing.T) {
	clock := mocks.NewManualClock(100)
	transport, client, callback := connected(t, mocks.NewNetworkSwitch(true), clock)
	client.On("IsConnectionOpen").Return(true)

	var got []string
	transport.OnMessage(func(topic string, payload []byte) {
		assert.Equal(t, controlTopic, topic)
		got = append(got, string(payload))
	})

	callback(nil, mocks.NewMockMessage(controlTopic, []byte("relay1_on")))
	callback(nil, mocks.NewMockMessage(controlTopic, []byte("relay2_on")))
	callback(nil, mocks.NewMockMessage(controlTopic, []byte("relay1_off")))
	assert.Empty(t, got)

	clock.Set(250)
	transport.Service()
	assert.Equal(t, []string{"relay1_on", "relay2_on", "relay1_off"}, got)
	assert.Equal(t, uint32(250), transport.Session().LastRxMs)
}

// TestMqttService_LinkLoss moves to DISCONNECTED on the next service tick.
func TestMqttService_LinkLoss(t *testing.T) {
	transport, client, _ := connected(t, mocks.NewNetworkSwitch(true), mocks.NewManualClock(0))
	client.On("IsConnectionOpen").Return(false)

	transport.Service()
	assert.Equal(t, mqtt.StateDisconnected, transport.State())
	assert.False(t, transport.IsConnected())
}

// TestMqttService_NetworkDownForcesDisconnect drops the session when the link goes away.
func TestMqttService_NetworkDownForcesDisconnect(t *testing.T) {
	net := mocks.NewNetworkSwitch(true)
	transport, client, _ := connected(t, net, mocks.NewManualClock(0))
	client.On("Disconnect", uint(0)).Once()

	net.Set(false)
	transport.Service()
	assert.Equal(t, mqtt.StateDisconnected, transport.State())
	client.AssertCalled(t, "Disconnect", uint(0))
}

func TestMqttService_Publish(t *testing.T) {
	transport, client, _ := connected(t, mocks.NewNetworkSwitch(true), mocks.NewManualClock(0))
	payload := []byte(`{"relay1":true}`)
	client.On("Publish", "station/001/status", byte(0), false, payload).Return(mocks.NewCompletedToken(nil)).Once()

	assert.True(t, transport.Publish("station/001/status", payload))
	client.AssertExpectations(t)
}

func TestMqttService_PublishFailure(t *testing.T) {
	transport, client, _ := connected(t, mocks.NewNetworkSwitch(true), mocks.NewManualClock(0))
	client.On("Publish", "station/001/sensor", byte(0), false, mock.Anything).Return(mocks.NewCompletedToken(errors.New("nack"))).Once()

	assert.False(t, transport.Publish("station/001/sensor", []byte("{}")))
}

func TestMqttService_PublishWhenDisconnected(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	transport := newTransport(client, mocks.NewNetworkSwitch(true), mocks.NewManualClock(0))

	assert.False(t, transport.Publish("station/001/sensor", []byte("{}")))
	client.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMqttService_InboxOverflowDropsNewest(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	var callback MQTT.MessageHandler
	client.On("Connect").Return(mocks.NewCompletedToken(nil))
	expectSubscribe(client, nil).Run(func(args mock.Arguments) {
		callback = args.Get(2).(MQTT.MessageHandler)
	})
	client.On("IsConnectionOpen").Return(true)

	transport := mqtt.NewMqttServiceWithClient(client, mqtt.Options{
		ControlTopic: controlTopic,
		InboxSize:    2,
	}, mocks.NewNetworkSwitch(true), mocks.NewManualClock(0), zerolog.Nop())
	assert.True(t, transport.EnsureConnected())

	var got []string
	transport.OnMessage(func(_ string, payload []byte) { got = append(got, string(payload)) })
	for _, p := range []string{"a", "b", "c"} {
		callback(nil, mocks.NewMockMessage(controlTopic, []byte(p)))
	}

	transport.Service()
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "backoff", mqtt.StateBackoff.String())
	assert.Equal(t, "connected", mqtt.StateConnected.String())
	assert.Equal(t, "state(42)", mqtt.State(42).String())
}
