package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultConfig verifies the default values are self-consistent
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	if cfg.Processing.Downsample < 1 {
		t.Errorf("default downsample must be positive, got %d", cfg.Processing.Downsample)
	}
	if len(cfg.Analog.TriggerLines) != 2 {
		t.Errorf("default config must describe two illumination channels, got %d", len(cfg.Analog.TriggerLines))
	}
}

// TestFrameCounts verifies the derived frame counts
func TestFrameCounts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timing.SamplingRate = 30
	cfg.Timing.PreStimSec = 0.5
	cfg.Timing.PostStimSec = 1.0

	if got := cfg.TargetFrames(); got != 45 {
		t.Errorf("TargetFrames: expected 45, got %d", got)
	}
	if got := cfg.PreStimFrames(); got != 15 {
		t.Errorf("PreStimFrames: expected 15, got %d", got)
	}

	// Baseline is min(samplingRate, preStimFrames) frames
	if got := cfg.BaselineFrames(); got != 15 {
		t.Errorf("BaselineFrames: expected 15, got %d", got)
	}

	cfg.Timing.PreStimSec = 2.0
	if got := cfg.BaselineFrames(); got != 30 {
		t.Errorf("BaselineFrames with long pre-stim: expected 30, got %d", got)
	}
}

// TestValidateRejectsBadConfigs verifies invariant enforcement
func TestValidateRejectsBadConfigs(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"non-integer frame count", func(c *Config) {
			c.Timing.SamplingRate = 30
			c.Timing.PreStimSec = 0.52
			c.Timing.PostStimSec = 1.0
		}},
		{"zero sampling rate", func(c *Config) { c.Timing.SamplingRate = 0 }},
		{"zero downsample", func(c *Config) { c.Processing.Downsample = 0 }},
		{"negative search radius", func(c *Config) { c.Processing.MaxShift = -1 }},
		{"three trigger lines", func(c *Config) { c.Analog.TriggerLines = []int{1, 2, 3} }},
		{"one trigger line", func(c *Config) { c.Analog.TriggerLines = []int{1} }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tc.name)
			}
		})
	}
}

// TestTriggerLinesIgnoredWhenPreprocessed verifies single-channel inputs
// skip the dual-channel invariant
func TestTriggerLinesIgnoredWhenPreprocessed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Data.Preprocessed = true
	cfg.Analog.TriggerLines = nil

	if err := cfg.Validate(); err != nil {
		t.Errorf("preprocessed config must not require trigger lines: %v", err)
	}
}

// TestLoadConfigMissingFile verifies defaults are returned when the file
// does not exist
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/wfield.yaml")
	if err != nil {
		t.Fatalf("missing config file must not error: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.Timing.SamplingRate != defaults.Timing.SamplingRate {
		t.Errorf("expected default sampling rate %g, got %g",
			defaults.Timing.SamplingRate, cfg.Timing.SamplingRate)
	}
}

// TestConfigRoundTrip verifies save and load preserve values
func TestConfigRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "wfield-config-test-*")
	if err != nil {
		t.Fatalf("Failed to create temporary directory: %v", err)
	}
	defer os.RemoveAll(dir)

	cfg := DefaultConfig()
	cfg.Data.Folder = "/data/session42"
	cfg.Data.BaseName = "Frames"
	cfg.Timing.SamplingRate = 60
	cfg.Timing.PreStimSec = 0.5
	cfg.Timing.PostStimSec = 1.5
	cfg.Processing.HemoCorrect = false
	cfg.Processing.Downsample = 8

	path := filepath.Join(dir, "wfield.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Data.Folder != cfg.Data.Folder {
		t.Errorf("folder: expected %q, got %q", cfg.Data.Folder, loaded.Data.Folder)
	}
	if loaded.Timing.SamplingRate != cfg.Timing.SamplingRate {
		t.Errorf("sampling rate: expected %g, got %g", cfg.Timing.SamplingRate, loaded.Timing.SamplingRate)
	}
	if loaded.Processing.HemoCorrect != cfg.Processing.HemoCorrect {
		t.Errorf("hemoCorrect: expected %v, got %v", cfg.Processing.HemoCorrect, loaded.Processing.HemoCorrect)
	}
	if loaded.Processing.Downsample != cfg.Processing.Downsample {
		t.Errorf("downsample: expected %d, got %d", cfg.Processing.Downsample, loaded.Processing.Downsample)
	}
}
