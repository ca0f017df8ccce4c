package hardware

import (
	"fmt"
	"strconv"

	"github.com/benmeehan/solar-station/pkg/file"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// LinuxBoard drives GPIO through periph and reads ADC channels from Linux IIO sysfs files.
type LinuxBoard struct {
	adcPathFmt string
	fileClient file.FileOperations
	logger     zerolog.Logger
}

// NewLinuxBoard initializes the periph host drivers. adcPathFmt is a printf template
// taking the pin number, e.g. /sys/bus/iio/devices/iio:device0/in_voltage%d_raw.
func NewLinuxBoard(adcPathFmt string, fileClient file.FileOperations, logger zerolog.Logger) (*LinuxBoard, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GPIO host drivers: %w", err)
	}
	return &LinuxBoard{
		adcPathFmt: adcPathFmt,
		fileClient: fileClient,
		logger:     logger,
	}, nil
}

// AnalogInput returns the IIO channel for pin.
func (b *LinuxBoard) AnalogInput(pin int) (AnalogInput, error) {
	path := fmt.Sprintf(b.adcPathFmt, pin)
	exists, err := b.fileClient.IsFileExists(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat ADC channel %s: %w", path, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: no ADC channel at %s", ErrUnknownPin, path)
	}
	return &sysfsAnalog{path: path, fileClient: b.fileClient, logger: b.logger}, nil
}

// DigitalInput configures pin as a floating input.
func (b *LinuxBoard) DigitalInput(pin int) (DigitalInput, error) {
	p, err := lookupPin(pin)
	if err != nil {
		return nil, err
	}
	if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("failed to configure pin %d as input: %w", pin, err)
	}
	return &gpioPin{pin: p, logger: b.logger}, nil
}

// DigitalOutput configures pin as an output driven LOW.
func (b *LinuxBoard) DigitalOutput(pin int) (DigitalOutput, error) {
	p, err := lookupPin(pin)
	if err != nil {
		return nil, err
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("failed to configure pin %d as output: %w", pin, err)
	}
	return &gpioPin{pin: p, logger: b.logger}, nil
}

// Close releases nothing; periph pins stay in their last state.
func (b *LinuxBoard) Close() error {
	return nil
}

func lookupPin(pin int) (gpio.PinIO, error) {
	p := gpioreg.ByName(strconv.Itoa(pin))
	if p == nil {
		return nil, fmt.Errorf("%w: GPIO %d", ErrUnknownPin, pin)
	}
	return p, nil
}

type gpioPin struct {
	pin    gpio.PinIO
	logger zerolog.Logger
}

func (g *gpioPin) Read() bool {
	return g.pin.Read() == gpio.High
}

func (g *gpioPin) Write(high bool) error {
	return g.pin.Out(gpio.Level(high))
}

// sysfsAnalog keeps the last good conversion so a failed read repeats it.
type sysfsAnalog struct {
	path       string
	fileClient file.FileOperations
	last       uint16
	logger     zerolog.Logger
}

func (a *sysfsAnalog) ReadRaw() uint16 {
	data, err := a.fileClient.ReadFile(a.path)
	if err != nil {
		a.logger.Warn().Err(err).Str("path", a.path).Msg("ADC read failed, repeating last value")
		return a.last
	}
	v, err := strconv.ParseUint(data, 10, 32)
	if err != nil {
		a.logger.Warn().Err(err).Str("path", a.path).Str("raw", data).Msg("ADC value is not an integer")
		return a.last
	}
	a.last = clampRaw(v)
	return a.last
}
