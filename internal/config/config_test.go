package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Trainer.MaxIterations != 100 {
		t.Errorf("Trainer.MaxIterations = %d; want 100", cfg.Trainer.MaxIterations)
	}
	if cfg.Bridge.NumStatesPerPhoneme != 5 {
		t.Errorf("Bridge.NumStatesPerPhoneme = %d; want 5", cfg.Bridge.NumStatesPerPhoneme)
	}
	if cfg.Context.WindowRadius != 3 {
		t.Errorf("Context.WindowRadius = %d; want 3", cfg.Context.WindowRadius)
	}
	if cfg.Context.NormalizationType != "zscore" {
		t.Errorf("Context.NormalizationType = %q; want %q", cfg.Context.NormalizationType, "zscore")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "info")
	}
}

func TestToTrainerConfigRoundTrips(t *testing.T) {
	cfg := DefaultConfig()
	tc := cfg.Trainer.ToTrainerConfig()

	if tc.MaxIterations != cfg.Trainer.MaxIterations {
		t.Errorf("MaxIterations = %d; want %d", tc.MaxIterations, cfg.Trainer.MaxIterations)
	}
	if tc.EnableParallelEmissionUpdate != cfg.Trainer.EnableParallelEmission {
		t.Errorf("EnableParallelEmissionUpdate = %v; want %v", tc.EnableParallelEmissionUpdate, cfg.Trainer.EnableParallelEmission)
	}
}

func TestToMLPGConfigRoundTrips(t *testing.T) {
	cfg := DefaultConfig()
	mc := cfg.MLPG.ToMLPGConfig()

	if mc.RegularizationFactor != cfg.MLPG.RegularizationFactor {
		t.Errorf("RegularizationFactor = %g; want %g", mc.RegularizationFactor, cfg.MLPG.RegularizationFactor)
	}
}

func TestToBridgeConfigWiresTrainingSubConfig(t *testing.T) {
	cfg := DefaultConfig()
	bc := cfg.Bridge.ToBridgeConfig(cfg.Trainer.ToTrainerConfig())

	if bc.FeatureDimension != cfg.Bridge.FeatureDimension {
		t.Errorf("FeatureDimension = %d; want %d", bc.FeatureDimension, cfg.Bridge.FeatureDimension)
	}
	if bc.Training.MaxIterations != cfg.Trainer.MaxIterations {
		t.Errorf("Training.MaxIterations = %d; want %d", bc.Training.MaxIterations, cfg.Trainer.MaxIterations)
	}
}

func TestParseNormalizationTypeFromConfig(t *testing.T) {
	kind, err := DefaultConfig().Context.ToNormalizationType()
	if err != nil {
		t.Fatalf("ToNormalizationType() error = %v", err)
	}

	want, _ := ParseNormalizationType("zscore")
	if kind != want {
		t.Errorf("kind = %v; want %v", kind, want)
	}
}

func TestLoadDefaults(t *testing.T) {
	defaults := DefaultConfig()

	cfg, err := Load("", defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Trainer.MaxIterations != defaults.Trainer.MaxIterations {
		t.Errorf("Trainer.MaxIterations = %d; want %d", cfg.Trainer.MaxIterations, defaults.Trainer.MaxIterations)
	}
	if cfg.LogLevel != defaults.LogLevel {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, defaults.LogLevel)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("NEXUSSYNTH_LOG_LEVEL", "warn")

	cfg, err := Load("", DefaultConfig())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "warn")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "nexussynth.yaml")
	content := `
log_level: error
bridge:
  num_states_per_phoneme: 7
context:
  window_radius: 2
`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(cfgFile, DefaultConfig())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "error")
	}
	if cfg.Bridge.NumStatesPerPhoneme != 7 {
		t.Errorf("Bridge.NumStatesPerPhoneme = %d; want 7", cfg.Bridge.NumStatesPerPhoneme)
	}
	if cfg.Context.WindowRadius != 2 {
		t.Errorf("Context.WindowRadius = %d; want 2", cfg.Context.WindowRadius)
	}
}

func TestLoadInvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(cfgFile, []byte(":\t:bad yaml:::"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(cfgFile, DefaultConfig()); err == nil {
		t.Error("Load() = nil; want error for invalid config file")
	}
}

func TestLoadMissingExplicitConfigFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/nexussynth.yaml", DefaultConfig()); err == nil {
		t.Error("Load() = nil; want error for missing explicit config file")
	}
}
