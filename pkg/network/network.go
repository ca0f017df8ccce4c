package network

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/net"
)

// Monitor reports whether the station's link is associated and addressed.
type Monitor interface {
	IsUp() bool
}

// InterfaceMonitor inspects host interfaces through gopsutil. An empty interface
// name accepts any non-loopback interface.
type InterfaceMonitor struct {
	iface      string
	logger     zerolog.Logger
	interfaces func() ([]net.InterfaceStat, error)
}

// NewInterfaceMonitor creates a monitor for the named interface, e.g. "wlan0".
func NewInterfaceMonitor(iface string, logger zerolog.Logger) *InterfaceMonitor {
	return &InterfaceMonitor{
		iface:  iface,
		logger: logger,
		interfaces: func() ([]net.InterfaceStat, error) {
			list, err := net.Interfaces()
			return list, err
		},
	}
}

// IsUp returns true when a matching interface is up and has an address.
func (m *InterfaceMonitor) IsUp() bool {
	ifaces, err := m.interfaces()
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to list network interfaces")
		return false
	}

	for _, i := range ifaces {
		if m.iface != "" && i.Name != m.iface {
			continue
		}
		if m.iface == "" && hasFlag(i.Flags, "loopback") {
			continue
		}
		if hasFlag(i.Flags, "up") && len(i.Addrs) > 0 {
			return true
		}
	}
	return false
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

// WaitForLink polls the monitor up to attempts times, interval apart, and reports whether
// the link came up. Boot continues either way.
func WaitForLink(ctx context.Context, m Monitor, attempts int, interval time.Duration, logger zerolog.Logger) bool {
	for attempt := 1; attempt <= attempts; attempt++ {
		if m.IsUp() {
			logger.Info().Int("attempt", attempt).Msg("Network connected")
			return true
		}
		logger.Debug().Int("attempt", attempt).Msg("Waiting for network")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}

	up := m.IsUp()
	if !up {
		logger.Warn().Int("attempts", attempts).Msg("Network connection failed, continuing without link")
	}
	return up
}
