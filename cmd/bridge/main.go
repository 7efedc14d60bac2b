package main

import (
	"context"
	"fmt"
	"os"

	"github.com/andreweacott/actron-neo-bridge/pkg/config"
	"github.com/andreweacott/actron-neo-bridge/pkg/coordinator"
	"github.com/andreweacott/actron-neo-bridge/pkg/logger"
	"github.com/andreweacott/actron-neo-bridge/pkg/metrics"
	"github.com/andreweacott/actron-neo-bridge/pkg/mqttpub"
	"github.com/andreweacott/actron-neo-bridge/pkg/neo"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	log.Info("actron-neo-bridge starting", "config", cfg.String())

	ctx := SetupGracefulShutdown(log)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Bridge stopped with error", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	client, err := neo.NewClient(neo.Config{
		BaseURL:           cfg.BaseURL,
		Username:          cfg.Username,
		Password:          cfg.Password,
		Timeout:           cfg.RequestTimeoutDuration(),
		MinRequestSpacing: cfg.MinRequestSpacingDuration(),
		Logger:            log,
	})
	if err != nil {
		return fmt.Errorf("creating Neo client: %w", err)
	}

	// Fail fast on bad credentials instead of starting a loop that can
	// never succeed
	log.Info("Authenticating with the Neo cloud API")
	if err := client.Authenticate(ctx); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	log.Info("Authentication succeeded")

	registry := prometheus.NewRegistry()
	descriptors, err := metrics.NewDescriptors(registry)
	if err != nil {
		return fmt.Errorf("registering telemetry metrics: %w", err)
	}
	health, err := metrics.NewBridgeHealth(registry)
	if err != nil {
		return fmt.Errorf("registering health metrics: %w", err)
	}
	recorder := metrics.NewRecorder(descriptors, health)

	api := coordinator.WithBreaker(client, coordinator.DefaultBreakerConfig())
	coord := coordinator.New(api, coordinator.Options{
		Serial:           cfg.Serial,
		PollInterval:     cfg.PollIntervalDuration(),
		RequestTimeout:   cfg.RequestTimeoutDuration(),
		MaxBackoff:       cfg.MaxBackoffDuration(),
		FailureThreshold: cfg.FailureThreshold,
		Logger:           log,
	})
	coord.AddObserver(recorder)

	if cfg.MQTTEnabled() {
		pub, err := mqttpub.Connect(mqttpub.Options{
			Broker:   cfg.MQTTBroker,
			Prefix:   cfg.MQTTPrefix,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
			Logger:   log,
		})
		if err != nil {
			return fmt.Errorf("connecting to MQTT broker: %w", err)
		}
		defer func() {
			pub.MarkOffline(coord.System().Serial)
			pub.Close()
		}()
		coord.AddListener(pub.HandleSnapshot)
		coord.AddObserver(pub)
	}

	// The first refresh runs synchronously here; consumers and the HTTP
	// surface start with valid data
	if err := coord.Start(ctx); err != nil {
		return fmt.Errorf("starting coordinator: %w", err)
	}
	log.WithSerial(coord.System().Serial).Info("Coordinator started",
		"poll_interval", cfg.PollInterval,
		"zones", len(coord.Snapshot().Zones))

	return StartServer(ctx, cfg, coord, registry, log)
}
