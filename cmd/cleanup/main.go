package main

import (
	"context"
	"fmt"
	"os"

	"github.com/atelierhq/atelier/internal/config"
	"github.com/atelierhq/atelier/internal/observability/logger"
	"github.com/atelierhq/atelier/internal/session"
	"github.com/atelierhq/atelier/internal/store/postgres"
)

// cleanup removes expired sessions once and exits. Meant for cron when the
// server's own cleanup loop is disabled.
func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := session.NewService(postgres.NewSessionRepository(db)).CleanupExpired(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Cleanup failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Expired sessions removed.")
}
