package services

import (
	"fmt"

	"github.com/benmeehan/solar-station/internal/constants"
	"github.com/benmeehan/solar-station/internal/models"
	"github.com/benmeehan/solar-station/pkg/hardware"
	"github.com/benmeehan/solar-station/pkg/uptime"
)

// Calibration holds the per-sensor scale factors of the analog front end.
type Calibration struct {
	SolarVoltageRatio   float64 // voltage divider ratio
	BatteryVoltageRatio float64 // voltage divider ratio
	CurrentSensorRatio  float64 // sensor output volts per ampere
}

// Thresholds bound the expected voltages. They only drive diagnostic warnings.
type Thresholds struct {
	MinSolarVoltage   float64
	MaxSolarVoltage   float64
	MinBatteryVoltage float64
	MaxBatteryVoltage float64
}

// SamplerPins names the inputs the sampler reads.
type SamplerPins struct {
	SolarVoltage   hardware.AnalogInput
	SolarCurrent   hardware.AnalogInput
	BatteryVoltage hardware.AnalogInput
	ChargeStatus   hardware.DigitalInput
}

// SamplerService converts the raw station inputs into calibrated readings.
type SamplerService struct {
	pins        SamplerPins
	calibration Calibration
	thresholds  Thresholds
	clock       uptime.Clock
}

// NewSamplerService creates a sampler over the given pins.
func NewSamplerService(pins SamplerPins, calibration Calibration, thresholds Thresholds, clock uptime.Clock) *SamplerService {
	return &SamplerService{
		pins:        pins,
		calibration: calibration,
		thresholds:  thresholds,
		clock:       clock,
	}
}

// NewSamplerServiceFromBoard resolves the sampler's pins on board.
func NewSamplerServiceFromBoard(board hardware.Board, solarV, solarI, batteryV, charge int, calibration Calibration, thresholds Thresholds, clock uptime.Clock) (*SamplerService, error) {
	var pins SamplerPins
	var err error
	if pins.SolarVoltage, err = board.AnalogInput(solarV); err != nil {
		return nil, fmt.Errorf("solar voltage pin %d: %w", solarV, err)
	}
	if pins.SolarCurrent, err = board.AnalogInput(solarI); err != nil {
		return nil, fmt.Errorf("solar current pin %d: %w", solarI, err)
	}
	if pins.BatteryVoltage, err = board.AnalogInput(batteryV); err != nil {
		return nil, fmt.Errorf("battery voltage pin %d: %w", batteryV, err)
	}
	if pins.ChargeStatus, err = board.DigitalInput(charge); err != nil {
		return nil, fmt.Errorf("charge status pin %d: %w", charge, err)
	}
	return NewSamplerService(pins, calibration, thresholds, clock), nil
}

// Sample reads all four inputs once. Samples are independent; nothing is smoothed.
func (s *SamplerService) Sample() models.SensorReading {
	return models.SensorReading{
		SolarVoltage:   VoltageFromRaw(s.pins.SolarVoltage.ReadRaw(), s.calibration.SolarVoltageRatio),
		SolarCurrent:   CurrentFromRaw(s.pins.SolarCurrent.ReadRaw(), s.calibration.CurrentSensorRatio),
		BatteryVoltage: VoltageFromRaw(s.pins.BatteryVoltage.ReadRaw(), s.calibration.BatteryVoltageRatio),
		Charging:       s.pins.ChargeStatus.Read(),
		UptimeMs:       s.clock.Millis(),
	}
}

// VoltageFromRaw applies V = raw * Vref / full_scale * divider_ratio.
func VoltageFromRaw(raw uint16, dividerRatio float64) float32 {
	return float32(float64(raw) * constants.ADCReferenceVoltage / constants.ADCFullScale * dividerRatio)
}

// CurrentFromRaw applies I = raw * Vref / full_scale / sensor_ratio.
func CurrentFromRaw(raw uint16, sensorRatio float64) float32 {
	return float32(float64(raw) * constants.ADCReferenceVoltage / constants.ADCFullScale / sensorRatio)
}

// OutOfRange lists the voltages of r that fall outside the configured thresholds.
func (s *SamplerService) OutOfRange(r models.SensorReading) []string {
	var warnings []string
	check := func(name string, v float32, lo, hi float64) {
		if float64(v) < lo || float64(v) > hi {
			warnings = append(warnings, fmt.Sprintf("%s %.2fV outside [%.1f, %.1f]", name, v, lo, hi))
		}
	}
	check("solar voltage", r.SolarVoltage, s.thresholds.MinSolarVoltage, s.thresholds.MaxSolarVoltage)
	check("battery voltage", r.BatteryVoltage, s.thresholds.MinBatteryVoltage, s.thresholds.MaxBatteryVoltage)
	return warnings
}
