package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benmeehan/solar-station/internal/constants"
	"github.com/benmeehan/solar-station/internal/models"
	"github.com/benmeehan/solar-station/pkg/mqtt"
	"github.com/benmeehan/solar-station/pkg/uptime"
	"github.com/rs/zerolog"
)

var (
	// ErrStationRunning is returned by Start when the loop is already running.
	ErrStationRunning = errors.New("station is already running")
	// ErrStationNotRunning is returned by Stop when the loop is not running.
	ErrStationNotRunning = errors.New("station is not running")
)

// Transport is the broker session the station drives on every tick.
type Transport interface {
	Publisher
	EnsureConnected() bool
	Service()
	IsConnected() bool
	OnMessage(handler mqtt.InboundHandler)
}

// Emitter is the best-effort HTTP sink for samples.
type Emitter interface {
	Post(ctx context.Context, reading models.SensorReading) bool
}

// Schedule sets the periodic task intervals in uptime milliseconds.
type Schedule struct {
	SampleIntervalMs  uint32
	PublishIntervalMs uint32
	IdleSlice         time.Duration
}

// DefaultSchedule is the 5 s sample and 10 s publish cadence.
func DefaultSchedule() Schedule {
	return Schedule{
		SampleIntervalMs:  constants.SampleIntervalMs,
		PublishIntervalMs: constants.PublishIntervalMs,
		IdleSlice:         constants.DefaultIdleSlice,
	}
}

// Stats counts what the loop has done since boot.
type Stats struct {
	Ticks              uint64
	Samples            uint64
	Posts              uint64
	PublishesSkipped   uint64
	PublishesAttempted uint64
	PublishesSucceeded uint64
	CommandsApplied    uint64
	CommandsDropped    uint64
}

// Station owns every component of the charging station and runs the
// cooperative control loop over them.
type Station struct {
	transport   Transport
	sampler     *SamplerService
	relays      *RelayService
	commands    *CommandService
	emitter     Emitter
	clock       uptime.Clock
	schedule    Schedule
	sensorTopic string
	logger      zerolog.Logger

	lastSampleMs  uint32
	lastPublishMs uint32

	ticks              atomic.Uint64
	samples            atomic.Uint64
	posts              atomic.Uint64
	publishesSkipped   atomic.Uint64
	publishesAttempted atomic.Uint64
	publishesSucceeded atomic.Uint64

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStation assembles the loop and registers the command interpreter as the
// transport's inbound handler. emitter may be nil when the HTTP fallback is disabled.
func NewStation(transport Transport, sampler *SamplerService, relays *RelayService, commands *CommandService,
	emitter Emitter, clock uptime.Clock, schedule Schedule, sensorTopic string, logger zerolog.Logger) *Station {

	if schedule.IdleSlice <= 0 {
		schedule.IdleSlice = constants.DefaultIdleSlice
	}

	now := clock.Millis()
	s := &Station{
		transport:     transport,
		sampler:       sampler,
		relays:        relays,
		commands:      commands,
		emitter:       emitter,
		clock:         clock,
		schedule:      schedule,
		sensorTopic:   sensorTopic,
		logger:        logger,
		lastSampleMs:  now,
		lastPublishMs: now,
	}
	transport.OnMessage(commands.HandleMessage)
	return s
}

// Tick runs one pass of the control loop.
func (s *Station) Tick(ctx context.Context) {
	s.ticks.Add(1)

	if !s.transport.IsConnected() {
		s.transport.EnsureConnected()
	}
	s.transport.Service()

	now := s.clock.Millis()
	if uptime.Elapsed(now, s.lastSampleMs, s.schedule.SampleIntervalMs) {
		s.lastSampleMs = now
		s.sampleTick(ctx)
	}

	now = s.clock.Millis()
	if uptime.Elapsed(now, s.lastPublishMs, s.schedule.PublishIntervalMs) {
		s.lastPublishMs = now
		s.publishTick()
	}
}

func (s *Station) sampleTick(ctx context.Context) {
	reading := s.sampler.Sample()
	s.samples.Add(1)
	s.dump(reading)

	if s.emitter != nil && s.emitter.Post(ctx, reading) {
		s.posts.Add(1)
	}
}

func (s *Station) dump(reading models.SensorReading) {
	relays := s.relays.Snapshot()
	s.logger.Info().
		Float32("solar_voltage", reading.SolarVoltage).
		Float32("solar_current", reading.SolarCurrent).
		Float32("battery_voltage", reading.BatteryVoltage).
		Bool("charging", reading.Charging).
		Bool("relay1", relays.Relay1On).
		Bool("relay2", relays.Relay2On).
		Uint32("uptime_ms", reading.UptimeMs).
		Msg("Sensor reading")

	for _, warning := range s.sampler.OutOfRange(reading) {
		s.logger.Warn().Msg(warning)
	}
}

// publishTick re-samples so the published values are fresh at the moment of publishing.
func (s *Station) publishTick() {
	if !s.transport.IsConnected() {
		s.publishesSkipped.Add(1)
		s.logger.Debug().Msg("Broker not connected, skipping sensor publish")
		return
	}

	reading := s.sampler.Sample()
	payload := models.NewSensorPayload(reading, s.relays.Snapshot(), reading.UptimeMs)
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode sensor payload")
		return
	}

	s.publishesAttempted.Add(1)
	if !s.transport.Publish(s.sensorTopic, body) {
		s.logger.Warn().Str("topic", s.sensorTopic).Msg("Sensor publish failed")
		return
	}
	s.publishesSucceeded.Add(1)
	s.logger.Info().Str("topic", s.sensorTopic).RawJSON("payload", body).Msg("Sensor data published")
}

// Start launches the loop in its own goroutine.
func (s *Station) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		s.logger.Warn().Msg("Station is already running")
		return ErrStationRunning
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go func(ctx context.Context) {
		defer s.wg.Done()
		s.run(ctx)
	}(s.ctx)

	s.logger.Info().Dur("idle_slice", s.schedule.IdleSlice).Msg("Station loop started")
	return nil
}

// Stop cancels the loop and waits for the current tick to finish.
func (s *Station) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		s.logger.Warn().Msg("Station is not running")
		return ErrStationNotRunning
	}

	s.cancel()
	s.wg.Wait()
	s.ctx = nil
	s.cancel = nil

	s.logger.Info().Msg("Station loop stopped")
	return nil
}

func (s *Station) run(ctx context.Context) {
	ticker := time.NewTicker(s.schedule.IdleSlice)
	defer ticker.Stop()

	for {
		s.Tick(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// Stats returns a snapshot of the loop counters.
func (s *Station) Stats() Stats {
	return Stats{
		Ticks:              s.ticks.Load(),
		Samples:            s.samples.Load(),
		Posts:              s.posts.Load(),
		PublishesSkipped:   s.publishesSkipped.Load(),
		PublishesAttempted: s.publishesAttempted.Load(),
		PublishesSucceeded: s.publishesSucceeded.Load(),
		CommandsApplied:    s.commands.Applied(),
		CommandsDropped:    s.commands.Dropped(),
	}
}
