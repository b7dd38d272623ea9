package main

// migrate applies or rolls back the embedded database schema.
//
//	migrate up       apply all pending migrations
//	migrate down     roll back every migration
//	migrate version  print the current schema version

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/verdantshop/verdant/internal/db"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := run(os.Args[1:], logger); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string, logger *slog.Logger) error {
	command := "up"
	if len(args) > 0 {
		command = strings.ToLower(strings.TrimSpace(args[0]))
	}

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	migrator, err := db.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Warn("failed to close migrator", "error", err)
		}
	}()

	switch command {
	case "up":
		changed, err := migrator.Up()
		if err != nil {
			return err
		}
		logger.Info("migrations applied", "changed", changed)
	case "down":
		changed, err := migrator.Down()
		if err != nil {
			return err
		}
		logger.Info("migrations rolled back", "changed", changed)
	case "version":
		version, dirty, ok, err := migrator.Version()
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("no migrations applied")
			return nil
		}
		logger.Info("schema version", "version", version, "dirty", dirty)
	default:
		return fmt.Errorf("unknown command %q (want up, down or version)", command)
	}
	return nil
}
