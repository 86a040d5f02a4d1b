// Command importcli loads a spreadsheet into the configured store without
// going through the HTTP API, or prints what is currently stored.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/hercules-motores/service-analytics/internal/app"
	"github.com/hercules-motores/service-analytics/internal/config"
	"github.com/hercules-motores/service-analytics/internal/importer"
)

func main() {
	file := flag.String("file", "", "spreadsheet to import (.xls, .xlsx or .csv)")
	status := flag.Bool("status", false, "print the stored import and exit")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall timeout")
	flag.Parse()

	if *file == "" && !*status {
		flag.Usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("build dependencies: %v", err)
	}
	defer deps.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *status {
		meta, err := deps.Store.FetchMetadata(ctx, cfg.ImportScope)
		if err != nil {
			log.Fatalf("fetch metadata: %v", err)
		}
		if meta == nil {
			fmt.Printf("scope %s has no import\n", cfg.ImportScope)
			return
		}
		_ = enc.Encode(meta)
		return
	}

	payload, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("read file: %v", err)
	}

	result, err := deps.Importer.Import(ctx, filepath.Base(*file), payload)
	if err != nil {
		if errors.Is(err, importer.ErrNoValidRows) {
			_ = enc.Encode(result)
		}
		log.Fatalf("import failed: %v", err)
	}
	_ = enc.Encode(result)
}
