package models

// SensorPayload is published on the sensor topic.
type SensorPayload struct {
	SolarVoltage   float32 `json:"solarVoltage"`
	SolarCurrent   float32 `json:"solarCurrent"`
	BatteryVoltage float32 `json:"batteryVoltage"`
	ChargeStatus   int     `json:"chargeStatus"`
	Relay1State    bool    `json:"relay1State"`
	Relay2State    bool    `json:"relay2State"`
	Timestamp      uint32  `json:"timestamp"`
}

// APIPayload is the HTTP fallback body: the sensor payload without relay fields.
type APIPayload struct {
	SolarVoltage   float32 `json:"solarVoltage"`
	SolarCurrent   float32 `json:"solarCurrent"`
	BatteryVoltage float32 `json:"batteryVoltage"`
	ChargeStatus   int     `json:"chargeStatus"`
	Timestamp      uint32  `json:"timestamp"`
}

// StatusPayload is published on the status topic after every relay change.
type StatusPayload struct {
	Relay1    bool   `json:"relay1"`
	Relay2    bool   `json:"relay2"`
	Timestamp uint32 `json:"timestamp"`
}

// NewSensorPayload combines a reading with the relay state observed at publish time.
func NewSensorPayload(r SensorReading, relays RelayState, timestamp uint32) SensorPayload {
	return SensorPayload{
		SolarVoltage:   r.SolarVoltage,
		SolarCurrent:   r.SolarCurrent,
		BatteryVoltage: r.BatteryVoltage,
		ChargeStatus:   r.ChargeStatus(),
		Relay1State:    relays.Relay1On,
		Relay2State:    relays.Relay2On,
		Timestamp:      timestamp,
	}
}

// NewAPIPayload builds the HTTP fallback body for a reading.
func NewAPIPayload(r SensorReading, timestamp uint32) APIPayload {
	return APIPayload{
		SolarVoltage:   r.SolarVoltage,
		SolarCurrent:   r.SolarCurrent,
		BatteryVoltage: r.BatteryVoltage,
		ChargeStatus:   r.ChargeStatus(),
		Timestamp:      timestamp,
	}
}

// NewStatusPayload echoes the post-change relay state.
func NewStatusPayload(relays RelayState, timestamp uint32) StatusPayload {
	return StatusPayload{
		Relay1:    relays.Relay1On,
		Relay2:    relays.Relay2On,
		Timestamp: timestamp,
	}
}
