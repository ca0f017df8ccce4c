package services_test

import (
	"testing"

	"github.com/benmeehan/solar-station/internal/mocks"
	"github.com/benmeehan/solar-station/internal/services"
	"github.com/benmeehan/solar-station/pkg/hardware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	pinSolarVoltage   = 34
	pinSolarCurrent   = 35
	pinBatteryVoltage = 32
	pinChargeStatus   = 33
	pinRelay1         = 26
	pinRelay2         = 27

	controlTopic = "solar/control"
	statusTopic  = "solar/status"
	sensorTopic  = "solar/sensors"
)

var testCalibration = services.Calibration{
	SolarVoltageRatio:   11.0,
	BatteryVoltageRatio: 11.0,
	CurrentSensorRatio:  0.185,
}

var testThresholds = services.Thresholds{
	MinSolarVoltage:   12.0,
	MaxSolarVoltage:   50.0,
	MinBatteryVoltage: 10.0,
	MaxBatteryVoltage: 14.4,
}

// harness wires the station components over a SimBoard.
type harness struct {
	board    *hardware.SimBoard
	clock    *mocks.ManualClock
	sampler  *services.SamplerService
	relays   *services.RelayService
	commands *services.CommandService
}

func newHarness(t *testing.T, publisher services.Publisher) *harness {
	t.Helper()

	board := hardware.NewSimBoard()
	clock := mocks.NewManualClock(0)

	sampler, err := services.NewSamplerServiceFromBoard(board, pinSolarVoltage, pinSolarCurrent, pinBatteryVoltage, pinChargeStatus,
		testCalibration, testThresholds, clock)
	require.NoError(t, err)

	relays, err := services.NewRelayServiceFromBoard(board, pinRelay1, pinRelay2, zerolog.Nop())
	require.NoError(t, err)

	return &harness{
		board:    board,
		clock:    clock,
		sampler:  sampler,
		relays:   relays,
		commands: services.NewCommandService(controlTopic, statusTopic, relays, publisher, clock, zerolog.Nop()),
	}
}

// setRaw loads the happy telemetry inputs.
func (h *harness) setRaw(solarV, solarI, batteryV uint16, charging bool) {
	h.board.SetAnalog(pinSolarVoltage, solarV)
	h.board.SetAnalog(pinSolarCurrent, solarI)
	h.board.SetAnalog(pinBatteryVoltage, batteryV)
	h.board.SetDigital(pinChargeStatus, charging)
}
