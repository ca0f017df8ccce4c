package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/benmeehan/solar-station/internal/constants"
	"github.com/benmeehan/solar-station/internal/service_registry"
	"github.com/benmeehan/solar-station/internal/utils"
	"github.com/benmeehan/solar-station/pkg/console"
	"github.com/benmeehan/solar-station/pkg/file"
	"github.com/benmeehan/solar-station/pkg/network"
	"github.com/benmeehan/solar-station/pkg/uptime"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	clock := uptime.NewClock()
	bootID := uuid.NewString()

	// Stdout only until the configuration names a serial console
	log := console.NewLogger(os.Stdout, nil, zerolog.InfoLevel).With().Str("boot_id", bootID).Logger()

	fileClient := file.NewFileService()

	config, err := utils.LoadConfig(constants.DefaultConfigFile, fileClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(config.Logging.Level)
	if err != nil {
		log.Warn().Err(err).Str("level", config.Logging.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}

	var serialOut io.WriteCloser
	if config.Console.Port != "" {
		serialOut, err = console.Open(config.Console.Port, config.Console.Baud)
		if err != nil {
			log.Error().Err(err).Msg("Serial console unavailable, logging to stdout only")
		}
	}
	var human io.Writer
	if serialOut != nil {
		human = serialOut
		defer serialOut.Close()
	}
	log = console.NewLogger(os.Stdout, human, level).With().Str("boot_id", bootID).Logger()

	log.Info().
		Str("client_id", config.MQTT.ClientID).
		Str("board", config.Board.Driver).
		Msg("Solar charging station booting")

	monitor := network.NewInterfaceMonitor(config.Network.Interface, log.With().Str("component", "network").Logger())

	serviceRegistry := service_registry.NewServiceRegistry(fileClient, monitor, clock, log)

	// Relays are driven low here, before the link wait
	if err := serviceRegistry.RegisterServices(config); err != nil {
		log.Fatal().Err(err).Msg("Failed to build station")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	network.WaitForLink(ctx, monitor, config.Network.BootAttempts, config.Network.BootInterval, log)

	if err := serviceRegistry.StartServices(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start services")
	}
	log.Info().Msg("All services started successfully")

	<-ctx.Done()

	log.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Shutdown finished with errors")
	}
}
