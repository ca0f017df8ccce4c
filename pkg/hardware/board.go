package hardware

import (
	"errors"

	"github.com/benmeehan/solar-station/internal/constants"
)

// ADCMax is the largest raw value a 12-bit converter returns.
const ADCMax = constants.ADCFullScale

// ErrUnknownPin is returned when a board has no pin with the requested number.
var ErrUnknownPin = errors.New("unknown pin")

// AnalogInput is a single ADC channel.
type AnalogInput interface {
	// ReadRaw returns the latest conversion in [0, ADCMax].
	ReadRaw() uint16
}

// DigitalInput is a discrete input line.
type DigitalInput interface {
	Read() bool
}

// DigitalOutput is a discrete output line that can report the level it drives.
type DigitalOutput interface {
	Write(high bool) error
	Read() bool
}

// Board hands out pins by number.
type Board interface {
	AnalogInput(pin int) (AnalogInput, error)
	DigitalInput(pin int) (DigitalInput, error)
	DigitalOutput(pin int) (DigitalOutput, error)
	Close() error
}

func clampRaw(v uint64) uint16 {
	if v > ADCMax {
		return ADCMax
	}
	return uint16(v)
}
