package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"mdwiki/internal/config"
	"mdwiki/internal/data"
	"mdwiki/internal/logger"
	"mdwiki/internal/wiki"
)

func main() {
	query := flag.String("query", "", "run a ranked search over the index instead of reindexing")
	ignoreCase := flag.Bool("ignore-case", true, "fold case when searching")
	flag.Parse()

	// --- Configuration Loading ---
	cfg, err := config.LoadConfig()
	if err != nil {
		// Use fmt.Printf here because the logger is not yet initialized.
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Initialization ---
	log := logger.New(cfg.Log, os.Stdout)

	// --- Database Initialization and Migration ---
	log.Info("Applying database migrations...")
	if err := data.ApplyMigrations(cfg.DB.DSN, cfg.DB.MigrationsPath); err != nil {
		log.Fatal(err, "Failed to apply migrations")
	}
	log.Info("Migrations applied successfully.")

	log.Info("Connecting to the database...")
	db, err := data.NewDB(cfg.DB.DSN)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()
	log.Info("Database connection successful.")

	index := data.NewPageIndexRepository(db)
	ctx := context.Background()

	if *query != "" {
		results, err := index.Search(ctx, strings.Fields(*query), *ignoreCase)
		if err != nil {
			log.Fatal(err, "Search failed")
		}
		for _, result := range results {
			fmt.Printf("%s\t%d\n", result.DocID, result.TotalFrequency)
		}
		return
	}

	// --- Full Reindex ---
	w := wiki.New(cfg.Content.Root)
	pages, err := w.Index()
	if err != nil {
		log.Fatal(err, "Failed to walk content root")
	}

	indexed := 0
	for _, page := range pages {
		if err := index.UpdateIndex(ctx, page); err != nil {
			log.With(map[string]interface{}{"url": page.URL}).Error(err, "Failed to index page")
			continue
		}
		indexed++
	}
	log.Info(fmt.Sprintf("Indexed %d of %d pages.", indexed, len(pages)))
}
