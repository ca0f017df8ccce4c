package console

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarm/serial"
)

// Open opens the diagnostic serial port. Writes are best-effort and unsynchronized.
func Open(port string, baud int) (io.WriteCloser, error) {
	c := &serial.Config{Name: port, Baud: baud, WriteTimeout: time.Second}
	s, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial console %s: %w", port, err)
	}
	return s, nil
}

// NewLogger builds the station logger: JSON on out and, when human is non-nil,
// a plain-text console rendering for the serial line.
func NewLogger(out io.Writer, human io.Writer, level zerolog.Level) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	var w io.Writer = out
	if human != nil {
		w = zerolog.MultiLevelWriter(out, zerolog.ConsoleWriter{
			Out:        human,
			NoColor:    true,
			TimeFormat: time.TimeOnly,
		})
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
