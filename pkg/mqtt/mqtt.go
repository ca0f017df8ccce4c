package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/benmeehan/solar-station/internal/constants"
	"github.com/benmeehan/solar-station/pkg/file"
	"github.com/benmeehan/solar-station/pkg/network"
	"github.com/benmeehan/solar-station/pkg/uptime"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

var (
	// ErrNotConnected is logged when a publish is attempted without a session.
	ErrNotConnected = errors.New("mqtt session is not connected")
	// ErrTimeout is returned when the broker does not acknowledge in time.
	ErrTimeout = errors.New("mqtt operation timed out")
	// ErrNetworkDown is returned when a connect is attempted without a link.
	ErrNetworkDown = errors.New("network is down")
)

// MQTTClient defines the subset of the paho client the station uses.
type MQTTClient interface {
	Connect() MQTT.Token
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token
	Subscribe(topic string, qos byte, callback MQTT.MessageHandler) MQTT.Token
	Disconnect(quiesce uint)
}

// InboundHandler receives one inbound message at a time, on the goroutine calling Service.
type InboundHandler func(topic string, payload []byte)

// Options configures the broker session.
type Options struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	CACertificate  string // optional PEM file; system roots are used when empty
	ControlTopic   string
	QOS            byte
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	Backoff        time.Duration
	InboxSize      int
}

// State is the position of the session in its lifecycle.
type State int

const (
	StateBoot State = iota
	StateDisconnected
	StateConnecting
	StateConnected
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateBoot:
		return "boot"
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is a snapshot of the transport's bookkeeping.
type Session struct {
	State                State
	Connected            bool
	LastConnectAttemptMs uint32
	LastRxMs             uint32
	Attempts             int
}

type inboundMessage struct {
	topic   string
	payload []byte
}

// MqttService is the station's transport client. It owns the broker session and
// must be driven from a single goroutine: EnsureConnected, Service and Publish are
// not safe for concurrent use. Only the paho callbacks run elsewhere and they
// communicate through the inbox channel and the linkLost flag.
type MqttService struct {
	client     MQTTClient
	fileClient file.FileOperations
	network    network.Monitor
	clock      uptime.Clock
	logger     zerolog.Logger

	opts    Options
	handler InboundHandler
	inbox   chan inboundMessage

	state    State
	session  Session
	linkLost atomic.Bool
}

// NewMqttService creates an uninitialized transport. Call Initialize before use.
func NewMqttService(fileClient file.FileOperations, monitor network.Monitor, clock uptime.Clock, logger zerolog.Logger) *MqttService {
	return &MqttService{
		fileClient: fileClient,
		network:    monitor,
		clock:      clock,
		logger:     logger,
		state:      StateBoot,
	}
}

// NewMqttServiceWithClient creates a transport around an existing client, bypassing Initialize.
func NewMqttServiceWithClient(client MQTTClient, opts Options, monitor network.Monitor, clock uptime.Clock, logger zerolog.Logger) *MqttService {
	s := NewMqttService(nil, monitor, clock, logger)
	s.opts = withDefaults(opts)
	s.client = client
	s.start()
	return s
}

func withDefaults(opts Options) Options {
	if opts.KeepAlive == 0 {
		opts.KeepAlive = constants.MQTTKeepAlive
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = constants.MQTTConnectTimeout
	}
	if opts.PublishTimeout == 0 {
		opts.PublishTimeout = constants.MQTTPublishTimeout
	}
	if opts.Backoff == 0 {
		opts.Backoff = constants.ReconnectBackoff
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = constants.MQTTInboxSize
	}
	return opts
}

// Initialize builds the paho client with TLS and credentials. It does not connect;
// the first EnsureConnected does.
func (s *MqttService) Initialize(opts Options) error {
	s.opts = withDefaults(opts)

	clientOpts := MQTT.NewClientOptions()
	clientOpts.AddBroker(s.opts.Broker)
	clientOpts.SetClientID(s.opts.ClientID)
	clientOpts.SetUsername(s.opts.Username)
	clientOpts.SetPassword(s.opts.Password)
	clientOpts.SetKeepAlive(s.opts.KeepAlive)
	clientOpts.SetConnectTimeout(s.opts.ConnectTimeout)
	clientOpts.SetCleanSession(true)
	clientOpts.SetAutoReconnect(false)
	clientOpts.SetConnectRetry(false)
	clientOpts.SetConnectionLostHandler(s.onConnectionLost)

	tlsConfig, err := s.tlsConfig()
	if err != nil {
		return err
	}
	if tlsConfig != nil {
		clientOpts.SetTLSConfig(tlsConfig)
	}

	s.client = MQTT.NewClient(clientOpts)
	s.start()

	s.logger.Info().
		Str("broker", s.opts.Broker).
		Str("client_id", s.opts.ClientID).
		Dur("keep_alive", s.opts.KeepAlive).
		Msg("MQTT transport initialized")
	return nil
}

func (s *MqttService) start() {
	s.inbox = make(chan inboundMessage, s.opts.InboxSize)
	s.setState(StateDisconnected)
}

// tlsConfig returns a config trusting the CA certificate when one is configured.
func (s *MqttService) tlsConfig() (*tls.Config, error) {
	if s.opts.CACertificate == "" {
		return &tls.Config{MinVersion: tls.VersionTLS12}, nil
	}

	caCert, err := s.fileClient.ReadFileRaw(s.opts.CACertificate)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to append CA certificate")
	}

	return &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}, nil
}

// OnMessage registers the handler for inbound messages, replacing any previous one.
func (s *MqttService) OnMessage(handler InboundHandler) {
	s.handler = handler
}

// IsConnected reports whether the session is established.
func (s *MqttService) IsConnected() bool {
	return s.state == StateConnected
}

// State returns the current lifecycle state.
func (s *MqttService) State() State {
	return s.state
}

// Session returns a snapshot of the session bookkeeping.
func (s *MqttService) Session() Session {
	return s.session
}

// EnsureConnected attempts to establish the session when it is down. After a failed
// attempt it returns false without blocking until the backoff interval has elapsed.
// A down network fails fast without dialing and does not start a backoff window.
func (s *MqttService) EnsureConnected() bool {
	if s.state == StateConnected {
		return true
	}

	now := s.clock.Millis()
	if s.state == StateBackoff {
		if !uptime.Elapsed(now, s.session.LastConnectAttemptMs, uint32(s.opts.Backoff.Milliseconds())) {
			return false
		}
		s.setState(StateDisconnected)
	}

	s.session.LastConnectAttemptMs = now
	s.session.Attempts++

	if err := s.connect(); err != nil {
		if errors.Is(err, ErrNetworkDown) {
			s.logger.Debug().Int("attempt", s.session.Attempts).Msg("Network down, skipping MQTT connect")
			s.setState(StateDisconnected)
			return false
		}
		s.logger.Warn().
			Err(err).
			Int("attempt", s.session.Attempts).
			Dur("retry_in", s.opts.Backoff).
			Msg("MQTT connection failed")
		s.setState(StateBackoff)
		return false
	}

	s.linkLost.Store(false)
	s.setState(StateConnected)
	s.logger.Info().
		Int("attempt", s.session.Attempts).
		Str("topic", s.opts.ControlTopic).
		Msg("MQTT connected and subscribed to control topic")
	return true
}

func (s *MqttService) connect() error {
	if !s.network.IsUp() {
		return ErrNetworkDown
	}

	s.setState(StateConnecting)
	if err := s.wait(s.client.Connect(), s.opts.ConnectTimeout); err != nil {
		// paho may still be retrying; abort it or every later Connect is refused
		s.client.Disconnect(0)
		return fmt.Errorf("connect: %w", err)
	}

	if err := s.wait(s.client.Subscribe(s.opts.ControlTopic, s.opts.QOS, s.enqueue), s.opts.ConnectTimeout); err != nil {
		s.client.Disconnect(0)
		return fmt.Errorf("subscribe %s: %w", s.opts.ControlTopic, err)
	}
	return nil
}

func (s *MqttService) wait(token MQTT.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return ErrTimeout
	}
	return token.Error()
}

// Service checks link health and delivers queued inbound messages in arrival order.
func (s *MqttService) Service() {
	if s.state == StateConnected {
		switch {
		case !s.network.IsUp():
			s.logger.Warn().Msg("Network down, dropping MQTT session")
			s.client.Disconnect(0)
			s.setState(StateDisconnected)
		case s.linkLost.Load() || !s.client.IsConnectionOpen():
			s.logger.Warn().Msg("MQTT link lost")
			s.setState(StateDisconnected)
		}
	}

	for {
		select {
		case msg := <-s.inbox:
			s.session.LastRxMs = s.clock.Millis()
			if s.handler == nil {
				s.logger.Warn().Str("topic", msg.topic).Msg("No handler registered, dropping message")
				continue
			}
			s.handler(msg.topic, msg.payload)
		default:
			return
		}
	}
}

// Publish sends payload to topic once. It never queues or retries.
func (s *MqttService) Publish(topic string, payload []byte) bool {
	if s.state != StateConnected {
		s.logger.Debug().Err(ErrNotConnected).Str("topic", topic).Msg("Skipping publish")
		return false
	}

	if err := s.wait(s.client.Publish(topic, s.opts.QOS, false, payload), s.opts.PublishTimeout); err != nil {
		s.logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish to MQTT")
		return false
	}

	s.logger.Debug().Str("topic", topic).Int("bytes", len(payload)).Msg("Published to MQTT")
	return true
}

// Disconnect closes the session, waiting up to 250ms for in-flight work.
func (s *MqttService) Disconnect() {
	if s.client != nil && s.state == StateConnected {
		s.client.Disconnect(250)
	}
	s.setState(StateDisconnected)
}

// enqueue runs on paho's goroutine.
func (s *MqttService) enqueue(_ MQTT.Client, msg MQTT.Message) {
	select {
	case s.inbox <- inboundMessage{topic: msg.Topic(), payload: msg.Payload()}:
	default:
		s.logger.Warn().Str("topic", msg.Topic()).Msg("Inbound queue full, dropping message")
	}
}

// onConnectionLost runs on paho's goroutine.
func (s *MqttService) onConnectionLost(_ MQTT.Client, err error) {
	s.logger.Warn().Err(err).Msg("MQTT connection lost")
	s.linkLost.Store(true)
}

func (s *MqttService) setState(next State) {
	if s.state != next {
		s.logger.Debug().Str("from", s.state.String()).Str("to", next.String()).Msg("MQTT state change")
	}
	s.state = next
	s.session.State = next
	s.session.Connected = next == StateConnected
}
