// Package config provides configuration loading and management for
// frbsearch. It handles loading configuration from YAML files and
// provides default values for every pipeline stage.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"frbsearch/internal/models"
	"frbsearch/pkg/preprocess"
	"frbsearch/pkg/threshold"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Preprocessing parameters for the time-DM image filter
	Preprocessing struct {
		// DiskSize is the smoothing neighborhood radius
		DiskSize int `yaml:"diskSize"`

		// ThresholdBigPercentile thresholds the artifact-location pass
		ThresholdBigPercentile float64 `yaml:"thresholdBigPercentile"`

		// ThresholdPercentile thresholds the final pass; zero falls
		// back to ThresholdBigPercentile
		ThresholdPercentile float64 `yaml:"thresholdPercentile"`

		// Statistic selects the smoothing statistic: mean, median or gauss
		Statistic string `yaml:"statistic"`

		// OpeningKernel is the structuring element for morphological opening
		OpeningKernel [][]int `yaml:"openingKernel"`

		// MaxRegionSize is the pixel count above which regions are blanked
		MaxRegionSize int `yaml:"maxRegionSize"`
	} `yaml:"preprocessing"`

	// Size thresholds for the bounding-box classifier
	Size struct {
		// NDx is the minimum bounding-box width of a candidate
		NDx int `yaml:"nDx"`

		// NDy is the minimum bounding-box height of a candidate
		NDy int `yaml:"nDy"`
	} `yaml:"size"`

	// Ellipse-shape classifier thresholds
	Ellipse struct {
		// XStddevMin is the minimum |x_stddev| of an accepted fit
		XStddevMin float64 `yaml:"xStddevMin"`

		// XCosThetaMin is the minimum |x_stddev*cos(theta)|
		XCosThetaMin float64 `yaml:"xCosThetaMin"`

		// YToXStddevMax is the maximum |y_stddev/x_stddev|
		YToXStddevMax float64 `yaml:"yToXStddevMax"`

		// ThetaMin, ThetaMax bound the fit angle in degrees mod 180
		ThetaMin float64 `yaml:"thetaMin"`
		ThetaMax float64 `yaml:"thetaMax"`

		// AmplitudeThreshold is the fixed amplitude cutoff; zero means
		// estimate it from the image
		AmplitudeThreshold float64 `yaml:"amplitudeThreshold"`
	} `yaml:"ellipse"`

	// Estimator parameters for adaptive amplitude thresholding
	Estimator struct {
		// MinSamples is the DBSCAN core-point neighbor minimum
		MinSamples int `yaml:"minSamples"`

		// LeafSize is a neighbor-search performance hint
		LeafSize int `yaml:"leafSize"`

		// Eps is the clustering radius; zero selects it adaptively
		Eps float64 `yaml:"eps"`
	} `yaml:"estimator"`

	// Mapping converts image coordinates to physical units
	Mapping struct {
		// T0 is the absolute time of column zero, RFC 3339
		T0 string `yaml:"t0"`

		// DT is the seconds per time sample
		DT float64 `yaml:"dT"`

		// DDM is the DM step per row
		DDM float64 `yaml:"dDM"`
	} `yaml:"mapping"`

	// Search parameters
	Search struct {
		// Workers is the number of goroutines fitting regions in parallel
		Workers int `yaml:"workers"`
	} `yaml:"search"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	pre := preprocess.DefaultOptions()
	cfg.Preprocessing.DiskSize = pre.DiskSize
	cfg.Preprocessing.ThresholdBigPercentile = pre.ThresholdBigPercentile
	cfg.Preprocessing.Statistic = string(pre.Statistic)
	cfg.Preprocessing.OpeningKernel = pre.OpeningKernel
	cfg.Preprocessing.MaxRegionSize = pre.MaxRegionSize

	cfg.Size.NDx = 3
	cfg.Size.NDy = 15

	cfg.Ellipse.XStddevMin = 4
	cfg.Ellipse.XCosThetaMin = 4
	cfg.Ellipse.YToXStddevMax = 0.3
	cfg.Ellipse.ThetaMin = 130
	cfg.Ellipse.ThetaMax = 180

	est := threshold.DefaultOptions()
	cfg.Estimator.MinSamples = est.MinSamples
	cfg.Estimator.LeafSize = est.LeafSize

	cfg.Mapping.T0 = time.Unix(0, 0).UTC().Format(time.RFC3339Nano)
	cfg.Mapping.DT = 0.001
	cfg.Mapping.DDM = 1.0

	cfg.Search.Workers = runtime.NumCPU()

	return cfg
}

// Validate checks the configuration before any processing begins.
func (c *Config) Validate() error {
	if err := c.PreprocessOptions().Validate(); err != nil {
		return err
	}
	if c.Ellipse.ThetaMin >= c.Ellipse.ThetaMax {
		return fmt.Errorf("malformed theta range [%v, %v]: min must be below max",
			c.Ellipse.ThetaMin, c.Ellipse.ThetaMax)
	}
	if c.Mapping.DT <= 0 {
		return fmt.Errorf("dT must be positive, got %v", c.Mapping.DT)
	}
	if c.Mapping.DDM <= 0 {
		return fmt.Errorf("dDM must be positive, got %v", c.Mapping.DDM)
	}
	if _, err := time.Parse(time.RFC3339Nano, c.Mapping.T0); err != nil {
		return fmt.Errorf("invalid t0 %q: %w", c.Mapping.T0, err)
	}
	return nil
}

// PreprocessOptions converts the preprocessing section.
func (c *Config) PreprocessOptions() preprocess.Options {
	return preprocess.Options{
		DiskSize:               c.Preprocessing.DiskSize,
		ThresholdBigPercentile: c.Preprocessing.ThresholdBigPercentile,
		ThresholdPercentile:    c.Preprocessing.ThresholdPercentile,
		Statistic:              preprocess.Statistic(c.Preprocessing.Statistic),
		OpeningKernel:          c.Preprocessing.OpeningKernel,
		MaxRegionSize:          c.Preprocessing.MaxRegionSize,
	}
}

// EstimatorOptions converts the estimator section.
func (c *Config) EstimatorOptions() threshold.Options {
	opts := threshold.DefaultOptions()
	if c.Estimator.MinSamples > 0 {
		opts.MinSamples = c.Estimator.MinSamples
	}
	if c.Estimator.LeafSize > 0 {
		opts.LeafSize = c.Estimator.LeafSize
	}
	opts.Eps = c.Estimator.Eps
	return opts
}

// Mapper converts the mapping section. Validate must have passed.
func (c *Config) Mapper() models.CoordMapper {
	t0, _ := time.Parse(time.RFC3339Nano, c.Mapping.T0)
	return models.CoordMapper{T0: t0, DT: c.Mapping.DT, DDM: c.Mapping.DDM}
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
