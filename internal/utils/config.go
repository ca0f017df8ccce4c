package utils

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/benmeehan/solar-station/internal/constants"
	"github.com/benmeehan/solar-station/pkg/file"
	"github.com/joho/godotenv"
)

// Config represents the deployment configuration of the station. Defaults reproduce
// the firmware's compiled-in constants; a YAML file and the environment may override them at boot.
type Config struct {
	Version string `yaml:"version"` // Config schema version, checked against ConfigVersionRange

	MQTT struct {
		Broker         string        `yaml:"broker"`          // Broker URL, e.g. ssl://host:8883
		ClientID       string        `yaml:"client_id"`       // Fixed MQTT client ID
		Username       string        `yaml:"username"`        // Broker username
		Password       string        `yaml:"password"`        // Broker password
		CACertificate  string        `yaml:"ca_certificate"`  // Optional path to the CA certificate
		QOS            int           `yaml:"qos"`             // MQTT QoS level for all publishes and the control subscription
		KeepAlive      time.Duration `yaml:"keep_alive"`      // Heartbeat period
		ConnectTimeout time.Duration `yaml:"connect_timeout"` // Timeout for connect and subscribe acknowledgements
		PublishTimeout time.Duration `yaml:"publish_timeout"` // Timeout for a single publish
		Backoff        time.Duration `yaml:"backoff"`         // Delay between failed connect attempts
		Topics         struct {
			Status  string `yaml:"status"`
			Control string `yaml:"control"`
			Sensor  string `yaml:"sensor"`
		} `yaml:"topics"`
	} `yaml:"mqtt"`

	Network struct {
		Interface    string        `yaml:"interface"`     // Interface to watch; empty means any non-loopback
		BootAttempts int           `yaml:"boot_attempts"` // Link checks at boot
		BootInterval time.Duration `yaml:"boot_interval"` // Delay between boot link checks
	} `yaml:"network"`

	Board struct {
		Driver     string `yaml:"driver"`       // "sim" or "linux"
		ADCPathFmt string `yaml:"adc_path_fmt"` // sysfs path template taking the pin number
	} `yaml:"board"`

	Pins struct {
		SolarVoltage   int `yaml:"solar_voltage"`
		SolarCurrent   int `yaml:"solar_current"`
		BatteryVoltage int `yaml:"battery_voltage"`
		ChargeStatus   int `yaml:"charge_status"`
		Relay1         int `yaml:"relay1"`
		Relay2         int `yaml:"relay2"`
	} `yaml:"pins"`

	Calibration struct {
		SolarVoltageRatio   float64 `yaml:"solar_voltage_ratio"`   // Voltage divider ratio
		BatteryVoltageRatio float64 `yaml:"battery_voltage_ratio"` // Voltage divider ratio
		CurrentSensorRatio  float64 `yaml:"current_sensor_ratio"`  // Current sensor volts per ampere
	} `yaml:"calibration"`

	Thresholds struct {
		MinSolarVoltage   float64 `yaml:"min_solar_voltage"`
		MaxSolarVoltage   float64 `yaml:"max_solar_voltage"`
		MinBatteryVoltage float64 `yaml:"min_battery_voltage"`
		MaxBatteryVoltage float64 `yaml:"max_battery_voltage"`
	} `yaml:"thresholds"`

	Timing struct {
		SampleIntervalMs  uint32        `yaml:"sample_interval_ms"`
		PublishIntervalMs uint32        `yaml:"publish_interval_ms"`
		IdleSlice         time.Duration `yaml:"idle_slice"` // Sleep between loop ticks
	} `yaml:"timing"`

	HTTP struct {
		Enabled bool          `yaml:"enabled"` // Post every sample to URL
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"http"`

	Console struct {
		Port string `yaml:"port"` // Serial device for the human-readable log; empty disables it
		Baud int    `yaml:"baud"`
	} `yaml:"console"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultConfig returns the station's compiled-in deployment constants.
func DefaultConfig() *Config {
	var c Config
	c.Version = "1.0.0"

	c.MQTT.Broker = "ssl://zfd47f32.ala.asia-southeast1.emqxsl.com:8883"
	c.MQTT.ClientID = "ESP32_SolarCharge_001"
	c.MQTT.KeepAlive = constants.MQTTKeepAlive
	c.MQTT.ConnectTimeout = constants.MQTTConnectTimeout
	c.MQTT.PublishTimeout = constants.MQTTPublishTimeout
	c.MQTT.Backoff = constants.ReconnectBackoff
	c.MQTT.Topics.Status = "station/001/status"
	c.MQTT.Topics.Control = "station/001/control"
	c.MQTT.Topics.Sensor = "station/001/sensor"

	c.Network.Interface = "wlan0"
	c.Network.BootAttempts = constants.WiFiBootAttempts
	c.Network.BootInterval = constants.WiFiBootInterval

	c.Board.Driver = constants.BoardDriverLinux
	c.Board.ADCPathFmt = constants.DefaultADCPathFmt

	c.Pins.SolarVoltage = 34
	c.Pins.SolarCurrent = 35
	c.Pins.BatteryVoltage = 32
	c.Pins.ChargeStatus = 33
	c.Pins.Relay1 = 26
	c.Pins.Relay2 = 27

	c.Calibration.SolarVoltageRatio = 11.0 // 10k + 1k divider
	c.Calibration.BatteryVoltageRatio = 11.0
	c.Calibration.CurrentSensorRatio = 0.185 // ACS712 30A

	c.Thresholds.MinSolarVoltage = 12.0
	c.Thresholds.MaxSolarVoltage = 50.0
	c.Thresholds.MinBatteryVoltage = 10.0
	c.Thresholds.MaxBatteryVoltage = 14.4

	c.Timing.SampleIntervalMs = constants.SampleIntervalMs
	c.Timing.PublishIntervalMs = constants.PublishIntervalMs
	c.Timing.IdleSlice = constants.DefaultIdleSlice

	c.HTTP.Enabled = true
	c.HTTP.URL = "http://your-backend-url.com/api/sensor-data"
	c.HTTP.Timeout = constants.DefaultHTTPTimeout

	c.Console.Baud = constants.DefaultConsoleBaud
	c.Logging.Level = "info"
	return &c
}

// LoadConfig starts from DefaultConfig, overlays the YAML file when it exists, then
// applies secrets from .env and the environment. The result is validated.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	config := DefaultConfig()

	exists, err := fileClient.IsFileExists(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if exists {
		if err := fileClient.ReadYamlFile(filename, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
		}
	}

	// .env is optional
	_ = godotenv.Load()
	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		key    string
		target *string
	}{
		{"MQTT_BROKER", &c.MQTT.Broker},
		{"MQTT_USERNAME", &c.MQTT.Username},
		{"MQTT_PASSWORD", &c.MQTT.Password},
		{"MQTT_CLIENT_ID", &c.MQTT.ClientID},
		{"API_URL", &c.HTTP.URL},
		{"CONSOLE_PORT", &c.Console.Port},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			*o.target = v
		}
	}
}

// Validate checks the configuration for values the station cannot run with.
func (c *Config) Validate() error {
	var errs []error

	constraint, err := semver.NewConstraint(constants.ConfigVersionRange)
	if err != nil {
		return fmt.Errorf("bad version constraint: %w", err)
	}
	version, err := semver.NewVersion(c.Version)
	if err != nil {
		errs = append(errs, fmt.Errorf("version %q: %w", c.Version, err))
	} else if !constraint.Check(version) {
		errs = append(errs, fmt.Errorf("version %s does not satisfy %s", version, constants.ConfigVersionRange))
	}

	if c.MQTT.Broker == "" || c.MQTT.ClientID == "" {
		errs = append(errs, errors.New("mqtt broker and client_id are required"))
	}
	if c.MQTT.Topics.Status == "" || c.MQTT.Topics.Control == "" || c.MQTT.Topics.Sensor == "" {
		errs = append(errs, errors.New("mqtt status, control and sensor topics are required"))
	}
	if c.MQTT.QOS < 0 || c.MQTT.QOS > 2 {
		errs = append(errs, fmt.Errorf("mqtt qos %d out of range", c.MQTT.QOS))
	}

	pins := map[string]int{
		"solar_voltage":   c.Pins.SolarVoltage,
		"solar_current":   c.Pins.SolarCurrent,
		"battery_voltage": c.Pins.BatteryVoltage,
		"charge_status":   c.Pins.ChargeStatus,
		"relay1":          c.Pins.Relay1,
		"relay2":          c.Pins.Relay2,
	}
	seen := make(map[int]string, len(pins))
	for name, pin := range pins {
		if pin < 0 {
			errs = append(errs, fmt.Errorf("pin %s is negative", name))
		}
		if other, dup := seen[pin]; dup {
			errs = append(errs, fmt.Errorf("pin %d assigned to both %s and %s", pin, other, name))
		}
		seen[pin] = name
	}

	if c.Calibration.SolarVoltageRatio <= 0 || c.Calibration.BatteryVoltageRatio <= 0 || c.Calibration.CurrentSensorRatio <= 0 {
		errs = append(errs, errors.New("calibration ratios must be positive"))
	}
	if c.Timing.SampleIntervalMs == 0 || c.Timing.PublishIntervalMs == 0 {
		errs = append(errs, errors.New("sample and publish intervals must be positive"))
	}
	if c.HTTP.Enabled && c.HTTP.URL == "" {
		errs = append(errs, errors.New("http url is required when the fallback is enabled"))
	}
	switch c.Board.Driver {
	case constants.BoardDriverSim, constants.BoardDriverLinux:
	default:
		errs = append(errs, fmt.Errorf("unknown board driver %q", c.Board.Driver))
	}

	return errors.Join(errs...)
}
