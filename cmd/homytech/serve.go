package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/homytech-core/internal/api"
	"github.com/nerrad567/homytech-core/internal/auth"
	"github.com/nerrad567/homytech-core/internal/control"
	"github.com/nerrad567/homytech-core/internal/eventlog"
	"github.com/nerrad567/homytech-core/internal/fanout"
	"github.com/nerrad567/homytech-core/internal/infrastructure/config"
	"github.com/nerrad567/homytech-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/homytech-core/internal/infrastructure/logging"
	"github.com/nerrad567/homytech-core/internal/infrastructure/metrics"
	"github.com/nerrad567/homytech-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/homytech-core/internal/ingest"
	"github.com/nerrad567/homytech-core/internal/usage"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the broker bridge and HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), resolveConfigPath(*configPath))
		},
	}
}

// runServe loads configuration and runs the service until SIGINT or SIGTERM.
func runServe(parent context.Context, configPath string) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)
	log.Info("starting HomyTech Core",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", configPath,
	)
	return run(ctx, cfg, log)
}

// run wires every component and blocks until ctx is cancelled or a
// component fails. Deferred closes run in reverse order: MQTT, InfluxDB,
// database.
func run(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	loc := cfg.Location()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", cfg.Database.Path)

	reg := metrics.New()
	if err := reg.RegisterDB(db.DB, "homytech"); err != nil {
		return fmt.Errorf("registering database metrics: %w", err)
	}

	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB mirror disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	store := eventlog.NewSQLiteStore(db.DB)
	loop := fanout.NewLoop(cfg.Fanout.QueueSize, log)
	hub := fanout.NewHub(loop, fanout.HubOptions{
		Location: loc,
		Logger:   log,
		Observer: reg,
	})

	broker := mqtt.New(cfg.MQTT, log)
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := broker.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	dispatchOpts := ingest.Options{
		Topics:   broker.Topics(),
		Log:      store,
		Bridge:   hub,
		Recorder: reg,
		Logger:   log,
	}
	if influxClient != nil {
		dispatchOpts.Telemetry = influxClient
	}
	dispatcher, err := ingest.New(dispatchOpts)
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	// Subscriptions are issued by the on-connect handler, so they are in
	// place before the first message and after every reconnect.
	// #nosec G115 -- QoS validated to 0..2
	if err := broker.SubscribeAll(dispatcher.Topics(), byte(cfg.MQTT.QoS), dispatcher.HandleMessage); err != nil {
		return fmt.Errorf("subscribing inbound topics: %w", err)
	}
	broker.SetOnStateChange(func(s mqtt.State) {
		reg.MQTTState(string(s))
	})
	broker.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	if err := broker.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}

	authSvc := auth.NewService(auth.NewUserRepository(db.DB), cfg.Security.JWT.Secret, cfg.Security.JWT.AccessTokenTTL)

	controlOpts := control.Options{
		Publisher: broker,
		Store:     store,
		Bridge:    hub,
		Topics:    broker.Topics(),
		Lights:    cfg.Devices.Lights,
		Logger:    log,
	}
	if influxClient != nil {
		controlOpts.Telemetry = influxClient
	}
	controlSvc, err := control.NewService(controlOpts)
	if err != nil {
		return fmt.Errorf("creating control service: %w", err)
	}

	usageSvc := usage.NewService(store, usage.Config{
		Buckets:    cfg.Usage.Buckets,
		BucketSize: time.Duration(cfg.Usage.BucketMinutes) * time.Minute,
		Lights:     cfg.Devices.Lights,
		Location:   loc,
	})

	srv, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Auth:     authSvc,
		Control:  controlSvc,
		Logs:     store,
		Usage:    usageSvc,
		Hub:      hub,
		Broker:   broker,
		DB:       db,
		Metrics:  reg,
		Location: loc,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := srv.Start(gctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		waitErr := srv.Wait(gctx)
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
		if waitErr != nil {
			return fmt.Errorf("api server: %w", waitErr)
		}
		return nil
	})

	log.Info("initialisation complete",
		"api", srv.Addr(),
		"lights", cfg.Devices.Lights,
		"timezone", loc.String(),
	)

	err = g.Wait()
	log.Info("HomyTech Core stopped")
	return err
}
