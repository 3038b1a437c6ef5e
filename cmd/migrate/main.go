package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/atelierhq/atelier/internal/config"
	"github.com/atelierhq/atelier/internal/store/postgres"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

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
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	fmt.Println("✓ Connected to database")

	// Optional script path overrides the embedded schema.
	script := postgres.InitialSchema
	name := "001_initial_schema.up.sql (embedded)"
	if len(os.Args) > 1 {
		content, err := os.ReadFile(os.Args[1])
		if err != nil {
			log.Fatalf("Failed to read %s: %v", os.Args[1], err)
		}
		script, name = string(content), os.Args[1]
	}

	fmt.Printf("Running %s...\n", name)
	if err := db.Migrate(ctx, script); err != nil {
		log.Fatalf("Failed to execute %s: %v", name, err)
	}
	fmt.Printf("✓ %s completed\n", name)
}
