package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"wfield/pkg/config"
	"wfield/pkg/pipeline"
	"wfield/pkg/trialio"
	"wfield/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "wfield.yaml", "Path to the YAML configuration file")
	dataDir := flag.String("data", "", "Directory containing per-trial raw data (overrides config)")
	resultsDir := flag.String("results", "", "Directory for saved results (overrides config)")
	saveResults := flag.Bool("save", false, "Save dF/F stack, baseline map and visualizations")
	writeConfig := flag.Bool("write-config", false, "Write a default configuration file and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Load configuration, applying command line overrides
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dataDir != "" {
		cfg.Data.Folder = *dataDir
	}
	if *resultsDir != "" {
		cfg.Output.ResultsDir = *resultsDir
	}
	if *saveResults {
		cfg.Output.SaveResults = true
	}

	if cfg.Data.Folder == "" {
		flag.Usage()
		os.Exit(1)
	}

	fmt.Println("================================")
	fmt.Println("WIDEFIELD CALCIUM IMAGING dF/F PIPELINE")
	fmt.Println("================================")

	// Run the analysis pipeline
	analyzer := pipeline.NewAnalyzer(cfg)

	startTime := time.Now()
	if err := analyzer.Process(); err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}
	processingTime := time.Since(startTime)

	stack := analyzer.GetStack()
	fmt.Printf("\nAnalysis completed in %.2f seconds\n", processingTime.Seconds())
	fmt.Printf("Session stack: %d trials x %d frames at %dx%d pixels\n",
		stack.Trials, stack.Frames, stack.Width, stack.Height)
	fmt.Printf("Stimulus onset at frame %d (%.2f s into each trial)\n",
		analyzer.OnsetFrame(), float64(analyzer.OnsetFrame())/cfg.Timing.SamplingRate)

	if !cfg.Output.SaveResults {
		return
	}

	// Save the dF/F stack, baseline map and visualization artifacts
	fmt.Printf("\nSaving results to %s\n", cfg.Output.ResultsDir)
	if err := os.MkdirAll(cfg.Output.ResultsDir, 0755); err != nil {
		log.Fatalf("Failed to create results directory: %v", err)
	}

	if err := trialio.ExportAccumulated(filepath.Join(cfg.Output.ResultsDir, "dff.npy"), stack); err != nil {
		log.Fatalf("Failed to export dF/F stack: %v", err)
	}

	if baseline := analyzer.GetBaselineMap(); baseline != nil {
		if err := trialio.ExportBaseline(filepath.Join(cfg.Output.ResultsDir, "baseline.npy"), baseline); err != nil {
			log.Fatalf("Failed to export baseline map: %v", err)
		}
	}

	viewer := visualization.NewViewer(stack, analyzer.OnsetFrame(), cfg.Timing.SamplingRate)

	if err := viewer.SaveActivityMap(filepath.Join(cfg.Output.ResultsDir, "activity_map.png"), 4); err != nil {
		log.Printf("Warning: Failed to save activity map: %v", err)
	}

	trace := viewer.GlobalTrace()
	if err := viewer.SaveTraceCSV(filepath.Join(cfg.Output.ResultsDir, "trace.csv"), trace); err != nil {
		log.Printf("Warning: Failed to save trace CSV: %v", err)
	}
	if err := viewer.SaveTraceImage(filepath.Join(cfg.Output.ResultsDir, "trace.png"), trace); err != nil {
		log.Printf("Warning: Failed to save trace image: %v", err)
	}

	fmt.Println("Saved: dff.npy, baseline.npy, activity_map.png, trace.csv, trace.png")
}
