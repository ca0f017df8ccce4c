package models

// SensorReading is one calibrated sample of the station's inputs. It is created per sample and never persisted.
type SensorReading struct {
	SolarVoltage   float32 // volts
	SolarCurrent   float32 // amperes
	BatteryVoltage float32 // volts
	Charging       bool    // charge-controller status line
	UptimeMs       uint32  // device uptime at sample time
}

// ChargeStatus returns the status line as the 0/1 discrete used on the wire.
func (r SensorReading) ChargeStatus() int {
	if r.Charging {
		return 1
	}
	return 0
}

// RelayState is the cached logical state of both relays.
type RelayState struct {
	Relay1On bool
	Relay2On bool
}
