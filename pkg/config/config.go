// Package config provides configuration loading and management for wfield.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the analysis configuration loaded from YAML
type Config struct {
	// Data location and raw file format parameters
	Data struct {
		// Folder is the directory containing the per-trial raw data files
		Folder string `yaml:"folder"`

		// BaseName is the shared filename prefix of all trial files
		BaseName string `yaml:"baseName"`

		// FileType is the trial file extension, ".dat" for raw binary
		// stacks or ".npy" for preprocessed single-channel stacks
		FileType string `yaml:"fileType"`

		// Preprocessed indicates the input is already reduced to a
		// single channel; channel splitting, motion correction and
		// hemodynamic correction are skipped
		Preprocessed bool `yaml:"preprocessed"`
	} `yaml:"data"`

	// Analog line assignment for the acquisition sidecar files
	Analog struct {
		// StimLine is the index of the analog line carrying the
		// stimulus trigger
		StimLine int `yaml:"stimLine"`

		// TriggerLines are the indices of the analog lines carrying
		// the per-channel illumination triggers, in channel order
		// (signal first, hemodynamic second)
		TriggerLines []int `yaml:"triggerLines"`
	} `yaml:"analog"`

	// Trial timing parameters
	Timing struct {
		// PreStimSec is the duration recorded before stimulus onset
		// in seconds
		PreStimSec float64 `yaml:"preStimSec"`

		// PostStimSec is the duration recorded after stimulus onset
		// in seconds
		PostStimSec float64 `yaml:"postStimSec"`

		// SamplingRate is the per-channel frame rate in Hz
		SamplingRate float64 `yaml:"samplingRate"`
	} `yaml:"timing"`

	// Processing parameters
	Processing struct {
		// Downsample is the integer spatial downsampling factor
		Downsample int `yaml:"downsample"`

		// HemoCorrect enables dual-wavelength hemodynamic correction
		HemoCorrect bool `yaml:"hemoCorrect"`

		// MaxShift is the registration search radius in pixels
		MaxShift int `yaml:"maxShift"`

		// NumWorkers is the number of goroutines used for per-frame
		// registration within a trial
		NumWorkers int `yaml:"numWorkers"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// SaveResults enables writing the dF/F stack, baseline map
		// and visualization artifacts after the run
		SaveResults bool `yaml:"saveResults"`

		// ResultsDir is the directory for saved results
		ResultsDir string `yaml:"resultsDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default data parameters
	cfg.Data.BaseName = "Frames"
	cfg.Data.FileType = ".dat"
	cfg.Data.Preprocessed = false

	// Set default analog line assignment
	cfg.Analog.StimLine = 0
	cfg.Analog.TriggerLines = []int{1, 2}

	// Set default timing parameters
	cfg.Timing.PreStimSec = 1.0
	cfg.Timing.PostStimSec = 2.0
	cfg.Timing.SamplingRate = 30.0

	// Set default processing parameters
	cfg.Processing.Downsample = 4
	cfg.Processing.HemoCorrect = true
	cfg.Processing.MaxShift = 10
	cfg.Processing.NumWorkers = runtime.NumCPU()

	// Set default output parameters
	cfg.Output.SaveResults = false
	cfg.Output.ResultsDir = "results"
	cfg.Output.Verbose = true

	return cfg
}

// Validate checks the configuration invariants before a run starts.
func (c *Config) Validate() error {
	if c.Timing.SamplingRate <= 0 {
		return fmt.Errorf("sampling rate must be positive, got %g", c.Timing.SamplingRate)
	}
	if c.Timing.PreStimSec < 0 || c.Timing.PostStimSec <= 0 {
		return fmt.Errorf("stimulus window must be non-negative pre and positive post, got %g/%g",
			c.Timing.PreStimSec, c.Timing.PostStimSec)
	}

	// The per-trial frame count must come out as an integer
	frames := c.Timing.SamplingRate * (c.Timing.PreStimSec + c.Timing.PostStimSec)
	if math.Abs(frames-math.Round(frames)) > 1e-9 {
		return fmt.Errorf("sampling rate %g Hz with %g s trial window yields non-integer frame count %g",
			c.Timing.SamplingRate, c.Timing.PreStimSec+c.Timing.PostStimSec, frames)
	}

	if c.Processing.Downsample < 1 {
		return fmt.Errorf("downsample factor must be a positive integer, got %d", c.Processing.Downsample)
	}
	if c.Processing.MaxShift < 0 {
		return fmt.Errorf("registration search radius must be non-negative, got %d", c.Processing.MaxShift)
	}

	if !c.Data.Preprocessed && len(c.Analog.TriggerLines) != 2 {
		return fmt.Errorf("dual-channel mode requires exactly 2 illumination trigger lines, got %d",
			len(c.Analog.TriggerLines))
	}

	return nil
}

// TargetFrames returns the fixed per-trial frame count implied by the
// timing parameters.
func (c *Config) TargetFrames() int {
	return int(math.Round(c.Timing.SamplingRate * (c.Timing.PreStimSec + c.Timing.PostStimSec)))
}

// PreStimFrames returns the number of frames recorded before stimulus
// onset.
func (c *Config) PreStimFrames() int {
	return int(math.Round(c.Timing.SamplingRate * c.Timing.PreStimSec))
}

// BaselineFrames returns the length of the baseline window: the first
// min(samplingRate, preStimFrames) frames of each trial.
func (c *Config) BaselineFrames() int {
	rate := int(math.Round(c.Timing.SamplingRate))
	pre := c.PreStimFrames()
	if pre < rate {
		return pre
	}
	return rate
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
