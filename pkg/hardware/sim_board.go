package hardware

import (
	"strconv"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// SimBoard is an in-memory pin harness. Analog levels and input lines are set by the
// caller; outputs written by the station can be read back with Level.
type SimBoard struct {
	analog  cmap.ConcurrentMap[string, uint16]
	digital cmap.ConcurrentMap[string, bool]
}

// NewSimBoard creates a board with every pin at zero.
func NewSimBoard() *SimBoard {
	return &SimBoard{
		analog:  cmap.New[uint16](),
		digital: cmap.New[bool](),
	}
}

func pinKey(pin int) string {
	return strconv.Itoa(pin)
}

// SetAnalog sets the raw value returned by an analog pin, clamped to ADCMax.
func (b *SimBoard) SetAnalog(pin int, raw uint16) {
	b.analog.Set(pinKey(pin), clampRaw(uint64(raw)))
}

// SetDigital drives a digital line.
func (b *SimBoard) SetDigital(pin int, high bool) {
	b.digital.Set(pinKey(pin), high)
}

// Level reports the current level of a digital line.
func (b *SimBoard) Level(pin int) bool {
	v, _ := b.digital.Get(pinKey(pin))
	return v
}

// AnalogInput returns a channel view of pin.
func (b *SimBoard) AnalogInput(pin int) (AnalogInput, error) {
	if pin < 0 {
		return nil, ErrUnknownPin
	}
	return &simAnalog{board: b, key: pinKey(pin)}, nil
}

// DigitalInput returns an input view of pin.
func (b *SimBoard) DigitalInput(pin int) (DigitalInput, error) {
	if pin < 0 {
		return nil, ErrUnknownPin
	}
	return &simDigital{board: b, key: pinKey(pin)}, nil
}

// DigitalOutput returns an output view of pin.
func (b *SimBoard) DigitalOutput(pin int) (DigitalOutput, error) {
	if pin < 0 {
		return nil, ErrUnknownPin
	}
	return &simDigital{board: b, key: pinKey(pin)}, nil
}

// Close is a no-op.
func (b *SimBoard) Close() error {
	return nil
}

type simAnalog struct {
	board *SimBoard
	key   string
}

func (a *simAnalog) ReadRaw() uint16 {
	v, _ := a.board.analog.Get(a.key)
	return v
}

type simDigital struct {
	board *SimBoard
	key   string
}

func (d *simDigital) Read() bool {
	v, _ := d.board.digital.Get(d.key)
	return v
}

func (d *simDigital) Write(high bool) error {
	d.board.digital.Set(d.key, high)
	return nil
}
