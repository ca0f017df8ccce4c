package constants

import "time"

// ADC characteristics of the station's analog front end.
const (
	ADCReferenceVoltage = 3.3
	ADCFullScale        = 4095 // 12-bit
)

// Loop timing, in device uptime milliseconds.
const (
	SampleIntervalMs  = 5000
	PublishIntervalMs = 10000
	ReconnectBackoff  = 5 * time.Second
	DefaultIdleSlice  = 10 * time.Millisecond
)

// Broker session defaults.
const (
	MQTTKeepAlive      = 60 * time.Second
	MQTTConnectTimeout = 10 * time.Second
	MQTTPublishTimeout = 5 * time.Second
	MQTTInboxSize      = 32
)

// Network boot wait: 20 attempts of 500ms, 10s in total.
const (
	WiFiBootAttempts = 20
	WiFiBootInterval = 500 * time.Millisecond
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	DefaultConsoleBaud = 115200
	HTTPUserAgent      = "solar-station-agent/1.0"
	ConfigVersionRange = "^1"
	DefaultConfigFile  = "configs/config.yaml"
	DefaultADCPathFmt  = "/sys/bus/iio/devices/iio:device0/in_voltage%d_raw"
	BoardDriverSim     = "sim"
	BoardDriverLinux   = "linux"
)
