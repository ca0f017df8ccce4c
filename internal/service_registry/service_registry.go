package service_registry

import (
	"errors"
	"fmt"

	"github.com/benmeehan/solar-station/internal/utils"
	"github.com/benmeehan/solar-station/pkg/file"
	"github.com/benmeehan/solar-station/pkg/network"
	"github.com/benmeehan/solar-station/pkg/uptime"
	"github.com/rs/zerolog"
)

// Service is anything the registry starts at boot and stops at shutdown.
type Service interface {
	Start() error
	Stop() error
}

// lifecycle adapts a pair of functions to Service.
type lifecycle struct {
	start func() error
	stop  func() error
}

func (l lifecycle) Start() error {
	if l.start == nil {
		return nil
	}
	return l.start()
}

func (l lifecycle) Stop() error {
	if l.stop == nil {
		return nil
	}
	return l.stop()
}

// ServiceRegistry manages the lifecycle of the station's long-lived parts.
type ServiceRegistry struct {
	services    map[string]Service // Stores registered services
	serviceKeys []string           // Maintains order of service registration
	fileClient  file.FileOperations
	monitor     network.Monitor
	clock       uptime.Clock
	components  *Components
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
func NewServiceRegistry(fileClient file.FileOperations, monitor network.Monitor, clock uptime.Clock, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:   make(map[string]Service),
		fileClient: fileClient,
		monitor:    monitor,
		clock:      clock,
		Logger:     logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices builds the station from config and registers its parts so
// that shutdown stops the loop first, then closes the broker session, then the board.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config) error {
	board, err := NewBoard(config, sr.fileClient, sr.Logger)
	if err != nil {
		return err
	}

	components, err := BuildStation(config, board, sr.fileClient, sr.monitor, sr.clock, sr.Logger)
	if err != nil {
		_ = board.Close()
		return err
	}
	sr.components = components

	sr.RegisterService("board", lifecycle{stop: board.Close})
	sr.RegisterService("transport", lifecycle{stop: func() error {
		components.Transport.Disconnect()
		return nil
	}})
	sr.RegisterService("station", components.Station)

	sr.Logger.Info().Strs("services", sr.serviceKeys).Msg("Registered services in order")
	return nil
}

// Components returns the parts built by RegisterServices, or nil before it runs.
func (sr *ServiceRegistry) Components() *Components {
	return sr.components
}
