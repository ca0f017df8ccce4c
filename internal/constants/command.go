package constants

// Relay control commands accepted on the control topic. The payload must match exactly.
const (
	CommandRelay1On  = "relay1_on"
	CommandRelay1Off = "relay1_off"
	CommandRelay2On  = "relay2_on"
	CommandRelay2Off = "relay2_off"
)

// Relay identifiers.
const (
	Relay1 = 1
	Relay2 = 2
)
