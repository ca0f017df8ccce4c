package services

import (
	"encoding/json"
	"sync/atomic"

	"github.com/benmeehan/solar-station/internal/constants"
	"github.com/benmeehan/solar-station/internal/models"
	"github.com/benmeehan/solar-station/pkg/uptime"
	"github.com/rs/zerolog"
)

// Publisher sends a payload on a topic and reports whether the broker accepted it.
type Publisher interface {
	Publish(topic string, payload []byte) bool
}

type relayCommand struct {
	relay RelayID
	on    bool
}

var relayCommands = map[string]relayCommand{
	constants.CommandRelay1On:  {Relay1, true},
	constants.CommandRelay1Off: {Relay1, false},
	constants.CommandRelay2On:  {Relay2, true},
	constants.CommandRelay2Off: {Relay2, false},
}

// CommandService turns control topic payloads into relay changes and echoes
// the resulting relay state on the status topic.
type CommandService struct {
	controlTopic string
	statusTopic  string

	relays    *RelayService
	publisher Publisher
	clock     uptime.Clock
	logger    zerolog.Logger

	applied atomic.Uint64
	dropped atomic.Uint64
}

// NewCommandService creates a command interpreter bound to the given topics.
func NewCommandService(controlTopic, statusTopic string, relays *RelayService, publisher Publisher, clock uptime.Clock, logger zerolog.Logger) *CommandService {
	return &CommandService{
		controlTopic: controlTopic,
		statusTopic:  statusTopic,
		relays:       relays,
		publisher:    publisher,
		clock:        clock,
		logger:       logger,
	}
}

// HandleMessage is the transport's inbound handler. Only the control topic is interpreted.
func (cs *CommandService) HandleMessage(topic string, payload []byte) {
	if topic != cs.controlTopic {
		cs.logger.Debug().Str("topic", topic).Msg("Ignoring message on unexpected topic")
		return
	}
	cs.Execute(payload)
}

// Execute applies one command. It returns false for payloads outside the
// command vocabulary, which change nothing and publish nothing.
func (cs *CommandService) Execute(payload []byte) bool {
	cmd, ok := relayCommands[string(payload)]
	if !ok {
		cs.dropped.Add(1)
		cs.logger.Warn().Str("command", string(payload)).Msg("Unknown command")
		return false
	}

	if err := cs.relays.Set(cmd.relay, cmd.on); err != nil {
		cs.dropped.Add(1)
		cs.logger.Error().Err(err).Str("command", string(payload)).Msg("Failed to apply command")
		return false
	}
	cs.applied.Add(1)

	cs.publishStatus()
	return true
}

func (cs *CommandService) publishStatus() {
	status := models.NewStatusPayload(cs.relays.Snapshot(), cs.clock.Millis())
	body, err := json.Marshal(status)
	if err != nil {
		cs.logger.Error().Err(err).Msg("Failed to encode status payload")
		return
	}
	if !cs.publisher.Publish(cs.statusTopic, body) {
		cs.logger.Warn().Str("topic", cs.statusTopic).Msg("Status publish failed")
		return
	}
	cs.logger.Info().RawJSON("status", body).Msg("Status published")
}

// Applied returns the number of commands that changed a relay.
func (cs *CommandService) Applied() uint64 {
	return cs.applied.Load()
}

// Dropped returns the number of commands that were rejected.
func (cs *CommandService) Dropped() uint64 {
	return cs.dropped.Load()
}
