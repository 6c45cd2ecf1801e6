package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/wfunc/bingo/config"
	"github.com/wfunc/bingo/logger"
	"github.com/wfunc/bingo/monitor"
	"github.com/wfunc/bingo/persistence"
	"github.com/wfunc/bingo/server"
)

// openStore picks the game history backend named by database.driver.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (persistence.Store, error) {
	pg := cfg.Postgres
	switch cfg.Driver {
	case "", "memory":
		return persistence.NewMemoryStore(1000), nil
	case "postgres":
		return persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "gorm":
		return persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "redis":
		r := cfg.Redis
		return persistence.NewRedisStore(ctx, r.Addr, r.Password, r.DB, r.Key, r.MaxRecords)
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

func main() {
	configPath := pflag.String("config", ".", "directory containing config.yaml")
	pflag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to open %s store: %v", cfg.Database.Driver, err)
	}
	defer store.Close()
	logger.Log.Infof("Game history stored in %s", cfg.Database.Driver)

	// Initialize Game Server
	gameServer := server.NewGameServer(cfg, store, monitor.NewMonitor("bingo", nil))

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Run(ctx); err != nil {
		logger.Log.Errorf("Server stopped: %v", err)
		return
	}
	logger.Log.Info("Server stopped")
}
