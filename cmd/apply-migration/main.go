package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"obra-data/internal/common/database"
	"obra-data/internal/config"
	"obra-data/internal/repository"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <up|down|status|version>\n", os.Args[0])
	os.Exit(2)
}

func main() {
	if len(os.Args) != 2 {
		usage()
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer database.Close(db)

	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	switch os.Args[1] {
	case "up":
		err = repository.Migrate(ctx, db)
	case "down":
		err = repository.MigrateDown(ctx, db)
	case "status":
		err = repository.MigrationStatus(ctx, db)
	case "version":
		var v int64
		if v, err = repository.SchemaVersion(ctx, db); err == nil {
			fmt.Printf("Schema version: %d\n", v)
		}
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("Migration %s failed: %v", os.Args[1], err)
	}
	fmt.Printf("Migration %s completed\n", os.Args[1])
}
