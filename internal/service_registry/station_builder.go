package service_registry

import (
	"fmt"

	"github.com/benmeehan/solar-station/internal/constants"
	"github.com/benmeehan/solar-station/internal/services"
	"github.com/benmeehan/solar-station/internal/utils"
	"github.com/benmeehan/solar-station/pkg/file"
	"github.com/benmeehan/solar-station/pkg/hardware"
	"github.com/benmeehan/solar-station/pkg/identity"
	"github.com/benmeehan/solar-station/pkg/mqtt"
	"github.com/benmeehan/solar-station/pkg/network"
	"github.com/benmeehan/solar-station/pkg/uptime"
	"github.com/rs/zerolog"
)

// Components holds every part of an assembled station.
type Components struct {
	Board     hardware.Board
	Identity  identity.DeviceInfoInterface
	Transport *mqtt.MqttService
	Sampler   *services.SamplerService
	Relays    *services.RelayService
	Commands  *services.CommandService
	Fallback  *services.HTTPFallbackService // nil when the HTTP fallback is disabled
	Station   *services.Station
}

// NewBoard opens the pin driver named by the configuration.
func NewBoard(config *utils.Config, fileClient file.FileOperations, logger zerolog.Logger) (hardware.Board, error) {
	switch config.Board.Driver {
	case constants.BoardDriverSim:
		logger.Warn().Msg("Using simulated board, readings are not real")
		return hardware.NewSimBoard(), nil
	case constants.BoardDriverLinux:
		board, err := hardware.NewLinuxBoard(config.Board.ADCPathFmt, fileClient, logger.With().Str("component", "board").Logger())
		if err != nil {
			return nil, fmt.Errorf("failed to open linux board: %w", err)
		}
		return board, nil
	default:
		return nil, fmt.Errorf("unknown board driver %q", config.Board.Driver)
	}
}

// BuildStation wires the station's components over board. Relays are driven
// low before the transport exists so the outputs are safe from the first instant.
func BuildStation(config *utils.Config, board hardware.Board, fileClient file.FileOperations, monitor network.Monitor,
	clock uptime.Clock, logger zerolog.Logger) (*Components, error) {

	c := &Components{Board: board}
	var err error

	c.Relays, err = services.NewRelayServiceFromBoard(board, config.Pins.Relay1, config.Pins.Relay2, component(logger, "relays"))
	if err != nil {
		return nil, err
	}

	deviceIdentity, err := identity.NewDeviceIdentity(
		config.MQTT.ClientID,
		identity.Credentials{Username: config.MQTT.Username, Password: config.MQTT.Password},
		config.MQTT.Broker,
		identity.Topics{
			Status:  config.MQTT.Topics.Status,
			Control: config.MQTT.Topics.Control,
			Sensor:  config.MQTT.Topics.Sensor,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid device identity: %w", err)
	}
	c.Identity = deviceIdentity
	topics := c.Identity.GetTopics()
	creds := c.Identity.GetCredentials()

	c.Transport = mqtt.NewMqttService(fileClient, monitor, clock, component(logger, "transport"))
	err = c.Transport.Initialize(mqtt.Options{
		Broker:         c.Identity.GetBrokerAddr(),
		ClientID:       c.Identity.GetClientID(),
		Username:       creds.Username,
		Password:       creds.Password,
		CACertificate:  config.MQTT.CACertificate,
		ControlTopic:   topics.Control,
		QOS:            byte(config.MQTT.QOS),
		KeepAlive:      config.MQTT.KeepAlive,
		ConnectTimeout: config.MQTT.ConnectTimeout,
		PublishTimeout: config.MQTT.PublishTimeout,
		Backoff:        config.MQTT.Backoff,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize transport: %w", err)
	}

	c.Sampler, err = services.NewSamplerServiceFromBoard(board,
		config.Pins.SolarVoltage, config.Pins.SolarCurrent, config.Pins.BatteryVoltage, config.Pins.ChargeStatus,
		services.Calibration{
			SolarVoltageRatio:   config.Calibration.SolarVoltageRatio,
			BatteryVoltageRatio: config.Calibration.BatteryVoltageRatio,
			CurrentSensorRatio:  config.Calibration.CurrentSensorRatio,
		},
		services.Thresholds{
			MinSolarVoltage:   config.Thresholds.MinSolarVoltage,
			MaxSolarVoltage:   config.Thresholds.MaxSolarVoltage,
			MinBatteryVoltage: config.Thresholds.MinBatteryVoltage,
			MaxBatteryVoltage: config.Thresholds.MaxBatteryVoltage,
		},
		clock,
	)
	if err != nil {
		return nil, err
	}

	c.Commands = services.NewCommandService(topics.Control, topics.Status, c.Relays, c.Transport, clock, component(logger, "commands"))

	var emitter services.Emitter
	if config.HTTP.Enabled {
		c.Fallback = services.NewHTTPFallbackService(config.HTTP.URL, config.HTTP.Timeout, monitor, component(logger, "http"))
		emitter = c.Fallback
	} else {
		logger.Info().Msg("HTTP fallback disabled")
	}

	c.Station = services.NewStation(c.Transport, c.Sampler, c.Relays, c.Commands, emitter, clock,
		services.Schedule{
			SampleIntervalMs:  config.Timing.SampleIntervalMs,
			PublishIntervalMs: config.Timing.PublishIntervalMs,
			IdleSlice:         config.Timing.IdleSlice,
		},
		topics.Sensor, component(logger, "station"))

	return c, nil
}

func component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
