// focuserd drives the focus motors of a telescope and serves the focuser
// command surface over HTTP.
//
// Configuration is read from configs/focuserd.yaml, or from the path in
// FOCUSERD_CONFIG.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/focuserd/internal/api"
	"github.com/nerrad567/focuserd/internal/focuser"
	"github.com/nerrad567/focuserd/internal/history"
	"github.com/nerrad567/focuserd/internal/infrastructure/config"
	"github.com/nerrad567/focuserd/internal/infrastructure/database"
	"github.com/nerrad567/focuserd/internal/infrastructure/influxdb"
	"github.com/nerrad567/focuserd/internal/infrastructure/logging"
	"github.com/nerrad567/focuserd/internal/infrastructure/mqtt"
	"github.com/nerrad567/focuserd/internal/motion"
	"github.com/nerrad567/focuserd/internal/motion/sim"
	"github.com/nerrad567/focuserd/internal/positions"
	"github.com/nerrad567/focuserd/internal/telemetry"
	"github.com/nerrad567/focuserd/internal/thermal"
	"github.com/nerrad567/focuserd/migrations"
)

// Version information, set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/focuserd.yaml"

// errAlreadyRunning is returned when another daemon holds the lock file.
var errAlreadyRunning = errors.New("another focuserd instance holds the lock file")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the daemon, separated from main for testability. It returns nil
// on a clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting focuserd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version).With("focuser", cfg.Focuser.ID)
	log.Info("configuration loaded", "path", configPath)

	unlock, err := acquireInstanceLock(cfg.Focuser.LockFile)
	if err != nil {
		return err
	}
	defer unlock()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)
	historyRepo := history.NewSQLiteRepository(db.DB)

	// Telemetry sinks come first: the orchestrator reports events to the
	// publisher from the moment it exists.
	hub := api.NewHub(cfg.WebSocket, log)
	publisherOpts := []telemetry.Option{
		telemetry.WithLogger(log),
		telemetry.WithSink("websocket", hub),
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, cfg.Focuser.ID)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		publisherOpts = append(publisherOpts, telemetry.WithSink("mqtt", mqttClient))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, cfg.Focuser.ID)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		publisherOpts = append(publisherOpts, telemetry.WithMetrics(influxClient))
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	publisher := telemetry.New(cfg.Focuser.LoopDelay, publisherOpts...)

	ctrl := sim.New(cfg.MCU)
	defer func() {
		// Halt any motion still running before the process exits.
		if ctrl.Connected() {
			if err := ctrl.Disconnect(context.Background()); err != nil {
				log.Warn("disconnecting controller", "error", err)
			}
		}
	}()

	store := positions.New(cfg.Focuser.PositionFile)
	store.SetLogger(log)

	prefixes, err := config.ParseControlMachines(cfg.Focuser.ControlMachines)
	if err != nil {
		return fmt.Errorf("parsing control machines: %w", err)
	}

	orch, err := focuser.New(cfg.Focuser, cfg.MCU, ctrl, store, focuser.NewAddressPolicy(prefixes),
		focuser.WithLogger(log),
		focuser.WithRecorder(historyRepo),
		focuser.WithNotifier(publisher),
	)
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}

	guard, err := newThermalGuard(cfg, ctrl, orch, log)
	if err != nil {
		return err
	}

	srv, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Focuser: orch,
		History: historyRepo,
		Hub:     hub,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if guard != nil {
		g.Go(func() error { return guard.Run(gctx) })
	}
	g.Go(func() error { return publisher.Run(gctx, orch) })
	g.Go(func() error {
		<-gctx.Done()
		return srv.Close()
	})

	log.Info("focuserd ready",
		"channels", len(orch.Channels()),
		"control_machines", cfg.Focuser.ControlMachines,
	)

	err = g.Wait()
	log.Info("focuserd stopped")
	return err
}

// getConfigPath returns FOCUSERD_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("FOCUSERD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// acquireInstanceLock takes the daemon lock file without waiting. An empty
// path disables the lock.
func acquireInstanceLock(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", errAlreadyRunning, path)
	}
	return func() {
		//nolint:errcheck // Best-effort unlock on exit; the OS releases it anyway
		lock.Unlock()
	}, nil
}

// newThermalGuard builds the fan guard when a fan is configured. It
// returns nil without a fan.
func newThermalGuard(cfg *config.Config, ctrl motion.Controller, orch *focuser.Orchestrator, log *logging.Logger) (*thermal.Guard, error) {
	if cfg.MCU.Fan == nil {
		log.Info("no cooling fan configured, thermal guard disabled")
		return nil, nil
	}
	fan, ok := ctrl.Output(motion.OutputFan)
	if !ok {
		return nil, fmt.Errorf("controller has no %q output", motion.OutputFan)
	}

	channels := orch.Channels()
	readers := make([]thermal.StatusReader, len(channels))
	for i, ch := range channels {
		readers[i] = ch
	}

	guard := thermal.New(fan, readers, cfg.Thermal,
		thermal.WithClock(ctrl.Now),
		thermal.WithLogger(log),
	)
	orch.SetFanMonitor(guard)
	return guard, nil
}

// healthCheck verifies the infrastructure connections. mqttClient and
// influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
