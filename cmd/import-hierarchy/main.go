// Command import-hierarchy loads a site's Module/Block/Floor/Apartment tree
// from a spreadsheet, or writes the blank template.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"obra-data/internal/common/database"
	"obra-data/internal/common/logger"
	"obra-data/internal/config"
	"obra-data/internal/repository"
	"obra-data/internal/service"
)

func main() {
	siteID := flag.Int64("site", 0, "site id to import into")
	file := flag.String("file", "", "xlsx file to import")
	template := flag.String("template", "", "write the blank template to this path and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	lg, err := logger.NewLogger(cfg.Log.Level, "console", "import-hierarchy")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer lg.Sync()

	if *template != "" {
		data, err := service.NewImportService(nil, lg).HierarchyTemplate()
		if err != nil {
			log.Fatalf("Failed to build template: %v", err)
		}
		if err := os.WriteFile(*template, data, 0o644); err != nil {
			log.Fatalf("Failed to write template: %v", err)
		}
		return
	}

	if *siteID <= 0 || *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *file, err)
	}
	defer f.Close()

	db, err := database.NewPostgresDB(context.Background(), &cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer database.Close(db)

	svc := service.NewImportService(repository.NewPostgresHierarchyRepository(db), lg)
	report, err := svc.ImportHierarchy(context.Background(), *siteID, f)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}
