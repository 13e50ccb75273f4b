// Atlas Core - Home Layout Platform
//
// This is the main entry point for the Atlas Core application.
// Atlas keeps a versioned 2D home layout in sync across clients:
//   - Polygon-accurate rooms, walls, and placed devices
//   - Append-only version history with snapshot/diff storage
//   - First-committed-wins concurrent editing over WebSocket
//   - Optional Home Assistant bridge for live device state
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/homeatlas/atlas-core/migrations"

	"github.com/homeatlas/atlas-core/internal/api"
	"github.com/homeatlas/atlas-core/internal/auth"
	"github.com/homeatlas/atlas-core/internal/bridges/hass"
	"github.com/homeatlas/atlas-core/internal/history"
	"github.com/homeatlas/atlas-core/internal/infrastructure/config"
	"github.com/homeatlas/atlas-core/internal/infrastructure/database"
	"github.com/homeatlas/atlas-core/internal/infrastructure/influxdb"
	"github.com/homeatlas/atlas-core/internal/infrastructure/logging"
	"github.com/homeatlas/atlas-core/internal/layout"
	"github.com/homeatlas/atlas-core/internal/syncer"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Utility mode: print an Argon2id hash for the security.admin_hash
	// config field, then exit.
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// hashPassword reads a password from stdin and prints its PHC hash.
func hashPassword() error {
	fmt.Fprint(os.Stderr, "Password: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return fmt.Errorf("empty password")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	fmt.Println(hash)
	return nil
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Atlas Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	if applied, pending, statusErr := db.GetMigrationStatus(ctx); statusErr == nil {
		log.Info("database migrations complete", "applied", len(applied), "pending", len(pending))
	} else {
		log.Info("database migrations complete")
	}

	// Version store and in-memory layout model
	store := history.NewStore(db.DB, history.Config{
		SnapshotInterval: cfg.History.SnapshotInterval,
		Retention:        cfg.History.Retention,
	})
	model := layout.NewModel(nil, layout.Config{
		OverlapTolerance: cfg.Layout.OverlapTolerance,
	})

	// WebSocket hub carries committed diffs and state updates to clients.
	// Created here so the coordinator can broadcast through it.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Home Assistant bridge (optional). The coordinator is its state
	// sink; the bridge is the coordinator's command pusher.
	coordinator := syncer.New(model, store, nil, hub, log)
	var bridge *hass.Bridge
	if cfg.Hass.Enabled {
		bridge = hass.New(hass.Config{
			Host:  cfg.Hass.Host,
			Token: cfg.Hass.Token,
			TLS:   cfg.Hass.TLS,
		}, coordinator, log)
		coordinator.SetBridge(bridge)
	}

	// Load the latest persisted layout
	if resyncErr := coordinator.Resync(ctx); resyncErr != nil {
		return fmt.Errorf("loading layout from store: %w", resyncErr)
	}
	log.Info("layout loaded", "version", coordinator.Version())

	// Start the bridge event loop after the layout is loaded so state
	// reports resolve against placed devices.
	if bridge != nil {
		go func() {
			if runErr := bridge.Run(ctx); runErr != nil {
				log.Error("device bridge stopped", "error", runErr)
			}
		}()
		log.Info("device bridge starting", "host", cfg.Hass.Host)
	} else {
		log.Info("device bridge disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
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
		coordinator.SetTelemetry(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Auth gate
	sessions := auth.NewSQLiteSessionRepository(db.DB)
	gate := auth.NewGate(auth.Config{
		AdminUser:          cfg.Security.AdminUser,
		AdminHash:          cfg.Security.AdminHash,
		JWTSecret:          cfg.Security.JWT.Secret,
		SessionTTL:         cfg.Security.SessionTTLDuration(),
		AllowAnonymousRead: cfg.Security.AllowAnonymousRead,
	}, sessions)

	// Background maintenance: prune version history past retention and
	// purge expired session rows.
	go maintenanceLoop(ctx, store, sessions, log)

	// API server
	var bridgeHealth api.BridgeHealth
	if bridge != nil {
		bridgeHealth = bridge
	}
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Gate:        gate,
		Coordinator: coordinator,
		Store:       store,
		Bridge:      bridgeHealth,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify connections are healthy
	if err := healthCheck(ctx, db, server, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. Database

	log.Info("Atlas Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ATLAS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ATLAS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// maintenanceInterval paces background history pruning and session
// cleanup.
const maintenanceInterval = time.Hour

// maintenanceLoop prunes version history rows outside the retention
// window and deletes expired sessions until the context is cancelled.
func maintenanceLoop(ctx context.Context, store *history.Store, sessions auth.SessionRepository, log *logging.Logger) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := store.Prune(ctx); err != nil {
				log.Warn("history prune failed", "error", err)
			} else if n > 0 {
				log.Info("history pruned", "rows", n)
			}
			if n, err := sessions.DeleteExpired(ctx); err != nil {
				log.Warn("session cleanup failed", "error", err)
			} else if n > 0 {
				log.Info("expired sessions purged", "count", n)
			}
		}
	}
}

// healthCheck verifies infrastructure connections are healthy.
// The device bridge is excluded: it reconnects with backoff and the
// health endpoint reports its live status instead.
func healthCheck(ctx context.Context, db *database.DB, server *api.Server, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
