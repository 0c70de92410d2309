package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"frbsearch/internal/models"
	"frbsearch/pkg/config"
	"frbsearch/pkg/preprocess"
	"frbsearch/pkg/search"
)

func main() {
	// Parse command line arguments
	inputPath := flag.String("input", "", "CSV file with the de-dispersed time-DM image (rows = DM trials)")
	configPath := flag.String("config", "frbsearch.yaml", "Configuration file")
	strategy := flag.String("strategy", "size", "Search strategy: size or ellipse")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	if *inputPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	img, err := readImage(*inputPath)
	if err != nil {
		log.Fatalf("Failed to read image: %v", err)
	}
	fmt.Printf("Loaded %dx%d time-DM image from %s\n", img.Rows, img.Cols, *inputPath)

	clf, err := buildClassifier(*strategy, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Println("Preprocessing image...")
	startTime := time.Now()
	filtered, err := preprocess.Run(img, cfg.PreprocessOptions())
	if err != nil {
		log.Fatalf("Preprocessing failed: %v", err)
	}

	fmt.Printf("Searching candidates with %s strategy...\n", *strategy)
	ctx := &search.Context{
		Mapper:  cfg.Mapper(),
		Workers: cfg.Search.Workers,
	}
	candidates, err := clf.Search(filtered, ctx)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}

	fmt.Printf("\nFound %d candidate(s) in %.2f seconds:\n", len(candidates), time.Since(startTime).Seconds())
	for i, c := range candidates {
		fmt.Printf("%4d  %s\n", i+1, c)
	}
}

// buildClassifier selects the search strategy from its configuration.
func buildClassifier(strategy string, cfg *config.Config) (search.Classifier, error) {
	switch strategy {
	case "size":
		return &search.SizeClassifier{
			NDx: cfg.Size.NDx,
			NDy: cfg.Size.NDy,
		}, nil
	case "ellipse":
		return &search.EllipseClassifier{
			XStddevMin:         cfg.Ellipse.XStddevMin,
			XCosThetaMin:       cfg.Ellipse.XCosThetaMin,
			YToXStddevMax:      cfg.Ellipse.YToXStddevMax,
			ThetaMin:           cfg.Ellipse.ThetaMin,
			ThetaMax:           cfg.Ellipse.ThetaMax,
			AmplitudeThreshold: cfg.Ellipse.AmplitudeThreshold,
			Estimator:          cfg.EstimatorOptions(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q: must be size or ellipse", strategy)
	}
}

// readImage loads a time-DM image from a CSV file of intensity rows.
func readImage(path string) (*models.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty image in %s", path)
	}

	img := models.NewImage(len(records), len(records[0]))
	for r, record := range records {
		if len(record) != img.Cols {
			return nil, fmt.Errorf("ragged row %d: got %d columns, want %d", r, len(record), img.Cols)
		}
		for c, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("bad value at row %d col %d: %w", r, c, err)
			}
			img.Set(r, c, v)
		}
	}
	return img, nil
}
