package mqtt_test

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benmeehan/solar-station/internal/mocks"
	"github.com/benmeehan/solar-station/pkg/file"
	"github.com/benmeehan/solar-station/pkg/mqtt"
	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowBroker never answers the first CONNECT it sees and answers the second one
// after a delay. Every later connection is served normally.
type slowBroker struct {
	listener net.Listener
	delay    time.Duration
	dials    atomic.Int32

	mu    sync.Mutex
	conns []net.Conn
}

func startSlowBroker(t *testing.T, delay time.Duration) *slowBroker {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	b := &slowBroker{listener: l, delay: delay}
	go b.accept()
	t.Cleanup(b.close)
	return b
}

func (b *slowBroker) url() string {
	return "tcp://" + b.listener.Addr().String()
}

func (b *slowBroker) accept() {
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			return
		}
		b.mu.Lock()
		b.conns = append(b.conns, conn)
		b.mu.Unlock()
		go b.serve(conn, b.dials.Add(1))
	}
}

func (b *slowBroker) serve(conn net.Conn, dial int32) {
	defer conn.Close()
	for {
		pkt, err := packets.ReadPacket(conn)
		if err != nil {
			return
		}

		var reply packets.ControlPacket
		switch p := pkt.(type) {
		case *packets.ConnectPacket:
			switch dial {
			case 1:
				continue
			case 2:
				time.Sleep(b.delay)
			}
			reply = packets.NewControlPacket(packets.Connack)
		case *packets.SubscribePacket:
			ack := packets.NewControlPacket(packets.Suback).(*packets.SubackPacket)
			ack.MessageID = p.MessageID
			ack.ReturnCodes = make([]byte, len(p.Topics))
			reply = ack
		case *packets.PingreqPacket:
			reply = packets.NewControlPacket(packets.Pingresp)
		case *packets.DisconnectPacket:
			return
		default:
			continue
		}

		if err := reply.Write(conn); err != nil {
			return
		}
	}
}

func (b *slowBroker) close() {
	_ = b.listener.Close()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.conns {
		_ = c.Close()
	}
}

// TestMqttService_RecoversAfterLateConnack times out a connect that paho later
// completes on its MQTT 3.1 fallback. The transport must still reconnect and subscribe.
func TestMqttService_RecoversAfterLateConnack(t *testing.T) {
	broker := startSlowBroker(t, 200*time.Millisecond)
	clock := mocks.NewManualClock(0)

	transport := mqtt.NewMqttService(file.NewFileService(), mocks.NewNetworkSwitch(true), clock, zerolog.Nop())
	require.NoError(t, transport.Initialize(mqtt.Options{
		Broker:         broker.url(),
		ClientID:       "ESP32_SolarCharge_001",
		ControlTopic:   controlTopic,
		ConnectTimeout: 500 * time.Millisecond,
	}))
	t.Cleanup(transport.Disconnect)

	require.False(t, transport.EnsureConnected())
	require.Equal(t, mqtt.StateBackoff, transport.State())

	require.Eventually(t, func() bool {
		clock.Advance(5000)
		return transport.EnsureConnected()
	}, 10*time.Second, 100*time.Millisecond)

	assert.Equal(t, mqtt.StateConnected, transport.State())
	assert.GreaterOrEqual(t, broker.dials.Load(), int32(3))
}
