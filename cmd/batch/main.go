package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"plantdoctor/internal/app"
	"plantdoctor/internal/config"
	"plantdoctor/internal/logger"
	"plantdoctor/internal/models"
)

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true}

func main() {
	imagesDir := flag.String("images", "leaves", "Directory containing leaf images")
	dbPath := flag.String("db", "data/history.db", "History database path")
	flag.Parse()

	if err := checkDBPath(*dbPath); err != nil {
		fmt.Printf("[ERROR] %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.HistoryDB = *dbPath

	appLogger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Close()

	fmt.Printf("Classifying images from %s into database %s\n", *imagesDir, *dbPath)

	files, err := listImages(*imagesDir)
	if err != nil {
		log.Fatalf("Failed to read images directory: %v", err)
	}
	if len(files) == 0 {
		fmt.Println("No images found to classify")
		return
	}

	application, err := app.New(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer application.Close()

	ctx := context.Background()
	perLabel := make(map[string]int)
	skipped := 0
	for _, path := range files {
		result, err := application.ClassifyFile(ctx, path, models.SourceBatch)
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v", filepath.Base(path), err)
			skipped++
			continue
		}
		perLabel[result.Prediction.Label]++
		fmt.Printf("   %s → %s (%.2f%%)\n", filepath.Base(path), result.TranslatedLabel, result.Prediction.Confidence*100)
	}

	fmt.Printf("✅ Successfully classified %d images\n", len(files)-skipped)
	if skipped > 0 {
		fmt.Printf("⚠️  Skipped %d files (unreadable or classifier errors)\n", skipped)
	}

	fmt.Printf("\n📊 This run:\n")
	for _, label := range sortedKeys(perLabel) {
		fmt.Printf("      - %s: %d images\n", label, perLabel[label])
	}

	repo := application.Predictions()
	if repo == nil {
		return
	}
	stats, err := repo.GetStats()
	if err == nil {
		fmt.Printf("\n📊 Database Statistics:\n")
		fmt.Printf("   Total predictions: %d\n", stats.TotalPredictions)
		fmt.Printf("   Per source:\n")
		for _, source := range sortedKeys(stats.PerSource) {
			fmt.Printf("      - %s: %d\n", source, stats.PerSource[source])
		}
	}
}

// checkDBPath rejects an empty path, which would leave history disabled.
func checkDBPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("-db is required, batch results are stored in the history database")
	}
	return nil
}

// listImages returns the image files directly inside dir, sorted by name.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
