package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spanexx/personal-finance-dashboard-sub009/internal/config"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/database"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/logger"
)

const usage = "usage: migrate <up|down|version> [N]"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	if err := run(cfg, os.Args[1:]); err != nil {
		logger.Get().Fatalf("Migration error: %v", err)
	}
}

func run(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf(usage)
	}

	mgr, err := database.NewManager(database.FromAppConfig(cfg))
	if err != nil {
		return err
	}
	defer mgr.Close()

	log := logger.Get()
	switch args[0] {
	case "up":
		if err := mgr.RunMigrations(); err != nil {
			return err
		}

	case "down":
		steps := 1
		if len(args) > 1 {
			steps, err = strconv.Atoi(args[1])
			if err != nil || steps < 1 {
				return fmt.Errorf("invalid step count %q", args[1])
			}
		}
		if err := mgr.RollbackMigrations(steps); err != nil {
			return err
		}
		log.Infof("Rolled back %d migration(s)", steps)

	case "version":
		version, dirty, err := mgr.MigrationVersion()
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		log.Infow("Schema version", "version", version, "dirty", dirty)

	default:
		return fmt.Errorf("unknown command %q; %s", args[0], usage)
	}
	return nil
}
