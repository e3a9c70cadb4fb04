// netpulse - Minecraft network status daemon.
//
// netpulse maintains live WebSocket connections to the network's status
// endpoints, reconciles snapshots and deltas into an in-memory view of
// servers, players, maintenance mode, and announcements, and exposes
// that view through a REST API, MQTT telemetry, and an interactive CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/netpulse-project/netpulse/internal/api"
	"github.com/netpulse-project/netpulse/internal/cli"
	"github.com/netpulse-project/netpulse/internal/client"
	"github.com/netpulse-project/netpulse/internal/config"
	"github.com/netpulse-project/netpulse/internal/events"
	"github.com/netpulse-project/netpulse/internal/notify"
	"github.com/netpulse-project/netpulse/internal/scheduler"
	"github.com/netpulse-project/netpulse/internal/telemetry"
	"github.com/netpulse-project/netpulse/internal/util"
)

const (
	AppName    = "netpulse"
	AppVersion = "1.0.0"
	Banner     = `
             _               _
  _ __   ___| |_ _ __  _   _| |___  ___
 | '_ \ / _ \ __| '_ \| | | | / __|/ _ \
 | | | |  __/ |_| |_) | |_| | \__ \  __/
 |_| |_|\___|\__| .__/ \__,_|_|___/\___|
                |_|             v%s
 Minecraft network status daemon
`
)

func main() {
	fmt.Printf(Banner, AppVersion)
	fmt.Println()

	// Initialize logger with defaults first (reconfigured after config load)
	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Int("cpus", runtime.NumCPU()).
		Msg("starting netpulse")

	cfg, err := config.Load(config.DefaultConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	app := cfg.GetApplicationData()
	logCfg := util.LogConfig{
		Level:      app.Logging.Level,
		Directory:  app.Logging.Directory,
		MaxBackups: app.Logging.MaxBackups,
		Console:    true,
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Msg("configuration validation failed, please fix the errors above")
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core client: transport, routing, state store.
	network, err := client.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create network client")
	}

	// Webhook alerts
	notifier := notify.NewNotifier(cfg, network.Bus())
	notifier.Register()

	// REST API
	var apiServer *api.Server
	if app.API.Enabled {
		apiServer = api.NewServer(cfg, network)
	}

	// MQTT telemetry
	var mqttHandler *telemetry.MQTTHandler
	if app.MQTT.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(cfg, network.Bus())
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	// Scheduler (name cache sweep, stats log)
	sched := scheduler.NewScheduler(cfg, network.Store())

	// Interactive CLI
	cliHandler := cli.NewCLI(cfg, network)

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	// Task 1: connect all endpoints. Failures are non-fatal; the
	// reconnect coordinators keep retrying on their own.
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("connecting network endpoints")
		if err := network.Connect(ctx); err != nil {
			log.Warn().Err(err).Msg("initial connect failed (non-fatal, retries are scheduled)")
		}
	}()

	// Task 2: REST API server
	if apiServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Int("port", app.API.Port).Msg("starting REST API server")
			if err := apiServer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("API server failed")
				errCh <- fmt.Errorf("api server: %w", err)
			}
		}()
	}

	// Task 3: MQTT telemetry
	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	// Task 4: Scheduler
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting task scheduler")
		sched.Start(ctx)
	}()

	// Task 5: Interactive CLI
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting interactive CLI")
		cliHandler.Start(ctx)
	}()

	// ---------------------------------------------------------------
	// Graceful shutdown handling
	// ---------------------------------------------------------------
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	shutdownCh := make(chan struct{})
	network.On(events.EventShutdown, "main", func(ctx context.Context, ev events.Event) error {
		select {
		case <-shutdownCh:
		default:
			close(shutdownCh)
		}
		return nil
	})

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-shutdownCh:
		log.Info().Msg("shutdown requested via CLI")
	case err := <-errCh:
		log.Error().Err(err).Msg("critical error, initiating shutdown")
	}

	log.Info().Msg("initiating graceful shutdown...")

	cancel()
	network.Disconnect()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("shutdown timed out after 30 seconds, forcing exit")
	}

	if mqttHandler != nil {
		mqttHandler.PublishShutdown()
	}

	network.Shutdown()

	log.Info().Msg("netpulse stopped")
}
