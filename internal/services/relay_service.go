package services

import (
	"errors"
	"fmt"
	"sync"

	"github.com/benmeehan/solar-station/internal/constants"
	"github.com/benmeehan/solar-station/internal/models"
	"github.com/benmeehan/solar-station/pkg/hardware"
	"github.com/rs/zerolog"
)

// ErrUnknownRelay is returned for relay ids other than 1 and 2.
var ErrUnknownRelay = errors.New("unknown relay")

// RelayID identifies one of the station's relays.
type RelayID int

const (
	Relay1 RelayID = constants.Relay1
	Relay2 RelayID = constants.Relay2
)

// RelayService owns the two relay outputs and their cached logical state.
// A pin write and its cache update happen together under the lock.
type RelayService struct {
	mu      sync.RWMutex
	outputs map[RelayID]hardware.DigitalOutput
	state   models.RelayState
	logger  zerolog.Logger
}

// NewRelayService drives both outputs LOW and starts with both relays off.
func NewRelayService(relay1, relay2 hardware.DigitalOutput, logger zerolog.Logger) *RelayService {
	rs := &RelayService{
		outputs: map[RelayID]hardware.DigitalOutput{Relay1: relay1, Relay2: relay2},
		logger:  logger,
	}
	for id, out := range rs.outputs {
		if err := out.Write(false); err != nil {
			logger.Error().Err(err).Int("relay", int(id)).Msg("Failed to drive relay low at boot")
		}
	}
	return rs
}

// NewRelayServiceFromBoard resolves the relay outputs on board.
func NewRelayServiceFromBoard(board hardware.Board, pin1, pin2 int, logger zerolog.Logger) (*RelayService, error) {
	out1, err := board.DigitalOutput(pin1)
	if err != nil {
		return nil, fmt.Errorf("relay 1 pin %d: %w", pin1, err)
	}
	out2, err := board.DigitalOutput(pin2)
	if err != nil {
		return nil, fmt.Errorf("relay 2 pin %d: %w", pin2, err)
	}
	return NewRelayService(out1, out2, logger), nil
}

// Set switches a relay. Setting a relay to its current state rewrites the pin.
func (rs *RelayService) Set(id RelayID, on bool) error {
	out, ok := rs.outputs[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownRelay, id)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	if err := out.Write(on); err != nil {
		rs.logger.Error().Err(err).Int("relay", int(id)).Bool("on", on).Msg("Relay pin write failed")
	}
	switch id {
	case Relay1:
		rs.state.Relay1On = on
	case Relay2:
		rs.state.Relay2On = on
	}

	rs.logger.Info().Int("relay", int(id)).Bool("on", on).Msg("Relay switched")
	return nil
}

// Snapshot returns the cached relay state.
func (rs *RelayService) Snapshot() models.RelayState {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.state
}
