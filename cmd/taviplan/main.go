package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"taviplan/internal/models"
	"taviplan/pkg/centerline"
	"taviplan/pkg/config"
	"taviplan/pkg/logging"
	"taviplan/pkg/planview"
	"taviplan/pkg/reformation"
	"taviplan/pkg/visualization"
	"taviplan/pkg/workflow"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "taviplan.yaml", "Engine configuration file")
	volumePath := flag.String("volume", "", "Raw volume file (little-endian float32 voxels)")
	dims := flag.String("dims", "", "Volume dimensions as NX,NY,NZ")
	spacing := flag.String("spacing", "1,1,1", "Voxel spacing in mm as SX,SY,SZ")
	origin := flag.String("origin", "0,0,0", "Volume origin in mm as X,Y,Z")
	landmarksPath := flag.String("landmarks", "", "Landmark YAML file (ordered, inflow to outflow)")
	outputDir := flag.String("output", "reformation_output", "Directory for exported images")
	sweepSteps := flag.Int("sweep", 0, "Export a rotation sweep with this many steps (0: disabled)")
	window := flag.Float64("window", 1000, "Display window for JPEG export")
	level := flag.Float64("level", 300, "Display level for JPEG export")
	flag.Parse()

	// Validate inputs
	if *volumePath == "" || *dims == "" || *landmarksPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		FilePath:    cfg.Logging.FilePath,
	})
	defer logger.Sync()

	fmt.Println("================================")
	fmt.Println("TAVIPLAN - CURVED REFORMATION AND GUIDED MEASUREMENT ENGINE")
	fmt.Println("================================")

	// Load inputs
	fmt.Println("Loading volume and landmarks...")
	field, err := loadRawVolume(*volumePath, *dims, *spacing, *origin)
	if err != nil {
		log.Fatalf("Failed to load volume: %v", err)
	}
	landmarks, err := loadLandmarks(*landmarksPath)
	if err != nil {
		log.Fatalf("Failed to load landmarks: %v", err)
	}

	// Build the centerline
	builder := centerline.NewBuilder(&centerline.Params{
		SampleCount: cfg.Centerline.SampleCount,
	})
	path, err := builder.Build(landmarks)
	if err != nil {
		log.Fatalf("Failed to build centerline: %v", err)
	}
	fmt.Printf("Centerline built: %d samples, %.1f mm\n", len(path.Samples), path.Length())

	// Render the reformation
	params := reformation.Params{
		Width:          cfg.Reformation.WidthMm,
		Rotation:       cfg.Reformation.RotationDeg * math.Pi / 180,
		Projection:     models.ProjectionMode(cfg.Reformation.Projection),
		SlabThickness:  cfg.Reformation.SlabThicknessMm,
		SlabSamples:    cfg.Reformation.SlabSamples,
		Layout:         models.LayoutMode(cfg.Reformation.Layout),
		LateralSpacing: cfg.Reformation.LateralSpacingMm,
		Workers:        cfg.Reformation.Workers,
	}

	fmt.Println("Rendering curved planar reformation...")
	startTime := time.Now()
	img, err := reformation.Render(context.Background(), field, path, params)
	if err != nil {
		log.Fatalf("Reformation failed: %v", err)
	}
	fmt.Printf("Rendered %dx%d image in %.2f seconds\n",
		img.Width, img.Height, time.Since(startTime).Seconds())

	// Export
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	exporter := visualization.NewExporter(*window, *level)
	mainImage := filepath.Join(*outputDir, "reformation.jpg")
	if err := exporter.SaveJPEG(img, mainImage); err != nil {
		log.Fatalf("Failed to save reformation: %v", err)
	}
	fmt.Printf("Reformation saved to: %s\n", mainImage)

	if *sweepSteps > 0 {
		fmt.Printf("Exporting rotation sweep (%d steps)...\n", *sweepSteps)
		sweepDir := filepath.Join(*outputDir, "rotation_sweep")
		if err := exporter.SaveRotationSweep(context.Background(), field, path, params, *sweepSteps, sweepDir); err != nil {
			log.Printf("Warning: rotation sweep failed: %v", err)
		} else {
			fmt.Printf("Rotation sweep saved to: %s\n", sweepDir)
		}
	}

	// Print the measurement plan
	def, err := loadWorkflowDefinition(cfg)
	if err != nil {
		log.Fatalf("Failed to load workflow definition: %v", err)
	}

	scheduler := reformation.NewScheduler(logger,
		time.Duration(cfg.Reformation.CacheTTLSeconds)*time.Second)
	view := planview.NewController(field, path, landmarks, scheduler, params, logger)
	session, err := workflow.NewSession(def, view, logger)
	if err != nil {
		log.Fatalf("Failed to create workflow session: %v", err)
	}

	fmt.Printf("\nMeasurement plan (%s):\n", def.Name)
	fmt.Printf("=======================================\n")
	for i, step := range def.Steps {
		required := "optional"
		if step.Required {
			required = "required"
		}
		fmt.Printf("%d. %-32s [%s, %s, %s]\n", i+1, step.DisplayName, step.Geometry, step.Level, required)
	}
	fmt.Printf("\nSession %s ready: %d steps, datum at %.1f mm\n",
		session.ID(), len(def.Steps), view.CurrentArc())
}

// loadWorkflowDefinition returns the configured step list, or the built-in
// TAVI sequence when no path is configured.
func loadWorkflowDefinition(cfg *config.Config) (*workflow.Definition, error) {
	if cfg.Workflow.DefinitionPath == "" {
		return workflow.DefaultTAVIDefinition(), nil
	}
	return workflow.LoadDefinition(cfg.Workflow.DefinitionPath)
}
