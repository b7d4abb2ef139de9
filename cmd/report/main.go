// Package main writes a summary report of a persisted feature panel.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"market-feature-lab/internal/config"
	"market-feature-lab/internal/pipeline"
	"market-feature-lab/internal/reporting"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults apply when empty)")
	outputDir := flag.String("output-dir", "docs", "Output directory for generated files")
	panelName := flag.String("panel", "", "Panel name (overrides storage.panel_name)")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *panelName != "" {
		cfg.Storage.PanelName = *panelName
	}

	store, closeStore, err := pipeline.OpenPanelStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening panel store: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	p, err := store.Load(ctx, cfg.Storage.PanelName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading panel %s: %v\n", cfg.Storage.PanelName, err)
		os.Exit(1)
	}

	report, err := reporting.Summarize(cfg.Storage.PanelName, p, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error summarizing panel: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output dir: %v\n", err)
		os.Exit(1)
	}
	files := map[string]string{
		"PANEL_REPORT.md": reporting.RenderMarkdown(report),
		"panel_stats.csv": reporting.RenderCSV(report.Stats),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(*outputDir, name), []byte(content), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", name, err)
			os.Exit(1)
		}
	}

	fmt.Println("Panel report generated successfully:")
	fmt.Printf("  - %s/PANEL_REPORT.md\n", *outputDir)
	fmt.Printf("  - %s/panel_stats.csv\n", *outputDir)
}
