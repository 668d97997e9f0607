package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/nexussynth/nexussynth-core/internal/bridge"
	"github.com/nexussynth/nexussynth-core/internal/context"
	"github.com/nexussynth/nexussynth-core/internal/hmm"
	"github.com/nexussynth/nexussynth-core/internal/mlpg"
	"github.com/nexussynth/nexussynth-core/internal/trainer"
)

// Config is the top-level library configuration: training, MLPG, context
// extraction, the context-HMM bridge, and where trained artifacts persist.
// There is no CLI surface in the core contract; Load reads this shape from
// in-memory defaults, a config file, and NEXUSSYNTH_-prefixed environment
// variables for an embedding application to hand to the trainer/bridge/MLPG
// constructors.
type Config struct {
	Trainer     TrainerConfig     `mapstructure:"trainer"`
	MLPG        MLPGConfig        `mapstructure:"mlpg"`
	Context     ContextConfig     `mapstructure:"context"`
	Bridge      BridgeConfig      `mapstructure:"bridge"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	LogLevel    string            `mapstructure:"log_level"`
}

// TrainerConfig mirrors trainer.Config's fields for file-based loading.
type TrainerConfig struct {
	MaxIterations            int     `mapstructure:"max_iterations"`
	ConvergenceThreshold     float64 `mapstructure:"convergence_threshold"`
	ParameterThreshold       float64 `mapstructure:"parameter_threshold"`
	UseValidationSet         bool    `mapstructure:"use_validation_set"`
	ValidationSplit          float64 `mapstructure:"validation_split"`
	ConvergenceWindow        int     `mapstructure:"convergence_window"`
	Verbose                  bool    `mapstructure:"verbose"`
	EnableAdaptiveThresholds bool    `mapstructure:"enable_adaptive_thresholds"`
	OverfittingThreshold     float64 `mapstructure:"overfitting_threshold"`
	Patience                 int     `mapstructure:"patience"`
	MinImprovement           float64 `mapstructure:"min_improvement"`
	EnableModelCheckpointing bool    `mapstructure:"enable_model_checkpointing"`
	ConvergenceConfidence    float64 `mapstructure:"convergence_confidence"`
	EnableParallelTraining   bool    `mapstructure:"enable_parallel_training"`
	EnableParallelEmission   bool    `mapstructure:"enable_parallel_emission_update"`
}

// ToTrainerConfig converts to trainer.Config.
func (c TrainerConfig) ToTrainerConfig() trainer.Config {
	return trainer.Config{
		MaxIterations:                c.MaxIterations,
		ConvergenceThreshold:         c.ConvergenceThreshold,
		ParameterThreshold:           c.ParameterThreshold,
		UseValidationSet:             c.UseValidationSet,
		ValidationSplit:              c.ValidationSplit,
		ConvergenceWindow:            c.ConvergenceWindow,
		Verbose:                      c.Verbose,
		EnableAdaptiveThresholds:     c.EnableAdaptiveThresholds,
		OverfittingThreshold:         c.OverfittingThreshold,
		Patience:                     c.Patience,
		MinImprovement:               c.MinImprovement,
		EnableModelCheckpointing:     c.EnableModelCheckpointing,
		ConvergenceConfidence:        c.ConvergenceConfidence,
		EnableParallelTraining:       c.EnableParallelTraining,
		EnableParallelEmissionUpdate: c.EnableParallelEmission,
	}
}

func trainerConfigFrom(c trainer.Config) TrainerConfig {
	return TrainerConfig{
		MaxIterations:            c.MaxIterations,
		ConvergenceThreshold:     c.ConvergenceThreshold,
		ParameterThreshold:       c.ParameterThreshold,
		UseValidationSet:         c.UseValidationSet,
		ValidationSplit:          c.ValidationSplit,
		ConvergenceWindow:        c.ConvergenceWindow,
		Verbose:                  c.Verbose,
		EnableAdaptiveThresholds: c.EnableAdaptiveThresholds,
		OverfittingThreshold:     c.OverfittingThreshold,
		Patience:                 c.Patience,
		MinImprovement:           c.MinImprovement,
		EnableModelCheckpointing: c.EnableModelCheckpointing,
		ConvergenceConfidence:    c.ConvergenceConfidence,
		EnableParallelTraining:   c.EnableParallelTraining,
		EnableParallelEmission:  c.EnableParallelEmissionUpdate,
	}
}

// MLPGConfig mirrors mlpg.Config.
type MLPGConfig struct {
	UseDeltaFeatures      bool    `mapstructure:"use_delta_features"`
	UseDeltaDeltaFeatures bool    `mapstructure:"use_delta_delta_features"`
	UseGlobalVariance     bool    `mapstructure:"use_global_variance"`
	RegularizationFactor  float64 `mapstructure:"regularization_factor"`
	GVWeight              float64 `mapstructure:"gv_weight"`
	MaxIterations         int     `mapstructure:"max_iterations"`
	ConvergenceTolerance  float64 `mapstructure:"convergence_tolerance"`
	Verbose               bool    `mapstructure:"verbose"`
}

// ToMLPGConfig converts to mlpg.Config.
func (c MLPGConfig) ToMLPGConfig() mlpg.Config {
	return mlpg.Config{
		UseDeltaFeatures:      c.UseDeltaFeatures,
		UseDeltaDeltaFeatures: c.UseDeltaDeltaFeatures,
		UseGlobalVariance:     c.UseGlobalVariance,
		RegularizationFactor:  c.RegularizationFactor,
		GVWeight:              c.GVWeight,
		MaxIterations:         c.MaxIterations,
		ConvergenceTolerance:  c.ConvergenceTolerance,
		Verbose:               c.Verbose,
	}
}

func mlpgConfigFrom(c mlpg.Config) MLPGConfig {
	return MLPGConfig{
		UseDeltaFeatures:      c.UseDeltaFeatures,
		UseDeltaDeltaFeatures: c.UseDeltaDeltaFeatures,
		UseGlobalVariance:     c.UseGlobalVariance,
		RegularizationFactor:  c.RegularizationFactor,
		GVWeight:              c.GVWeight,
		MaxIterations:         c.MaxIterations,
		ConvergenceTolerance:  c.ConvergenceTolerance,
		Verbose:               c.Verbose,
	}
}

// ContextConfig controls context-feature extraction and normalization.
type ContextConfig struct {
	WindowRadius      int    `mapstructure:"window_radius"`
	NormalizationType string `mapstructure:"normalization_type"`
}

// ToNormalizationType parses NormalizationType, defaulting to NormalizeNone
// for an empty string.
func (c ContextConfig) ToNormalizationType() (context.NormalizationType, error) {
	return ParseNormalizationType(c.NormalizationType)
}

// BridgeConfig mirrors bridge.Config.
type BridgeConfig struct {
	FeatureDimension      int    `mapstructure:"feature_dimension"`
	NumMixturesPerState   int    `mapstructure:"num_mixtures_per_state"`
	NumStatesPerPhoneme   int    `mapstructure:"num_states_per_phoneme"`
	UseDeltaFeatures      bool   `mapstructure:"use_delta_features"`
	UseDeltaDeltaFeatures bool   `mapstructure:"use_delta_delta_features"`
	MinFramesPerModel     int    `mapstructure:"min_frames_per_model"`
	OutputDirectory       string `mapstructure:"output_directory"`
}

// ToBridgeConfig converts to bridge.Config, wiring in the given trainer
// sub-configuration (bridge.Config embeds a trainer.Config it hands to
// each per-model Trainer).
func (c BridgeConfig) ToBridgeConfig(training trainer.Config) bridge.Config {
	return bridge.Config{
		FeatureDimension:      c.FeatureDimension,
		NumMixturesPerState:   c.NumMixturesPerState,
		NumStatesPerPhoneme:   c.NumStatesPerPhoneme,
		UseDeltaFeatures:      c.UseDeltaFeatures,
		UseDeltaDeltaFeatures: c.UseDeltaDeltaFeatures,
		MinFramesPerModel:     c.MinFramesPerModel,
		OutputDirectory:       c.OutputDirectory,
		Training:              training,
	}
}

// PersistenceConfig names where trained artifacts and GV statistics live
// on disk.
type PersistenceConfig struct {
	ModelDirectory   string `mapstructure:"model_directory"`
	GVStatisticsPath string `mapstructure:"gv_statistics_path"`
	LabelDirectory   string `mapstructure:"label_directory"`
}

// DefaultConfig mirrors the reference implementation's constructor
// defaults (ContextHmmConfig, TrainingConfig, MlpgEngine's Config,
// HmmTrainingPipeline::PipelineConfig).
func DefaultConfig() Config {
	return Config{
		Trainer: trainerConfigFrom(trainer.DefaultConfig()),
		MLPG:    mlpgConfigFrom(mlpg.DefaultConfig()),
		Context: ContextConfig{
			WindowRadius:      context.DefaultWindowRadius,
			NormalizationType: "zscore",
		},
		Bridge: BridgeConfig{
			FeatureDimension:      39,
			NumMixturesPerState:   1,
			NumStatesPerPhoneme:   hmm.DefaultNumStates,
			UseDeltaFeatures:      true,
			UseDeltaDeltaFeatures: true,
			MinFramesPerModel:     hmm.DefaultNumStates,
			OutputDirectory:       "./hmm_models",
		},
		Persistence: PersistenceConfig{
			ModelDirectory:   "./hmm_models",
			GVStatisticsPath: "./gv_statistics.json",
			LabelDirectory:   "./labels",
		},
		LogLevel: "info",
	}
}

// Load reads configuration from configFile (if non-empty) or from a
// "nexussynth.{yaml,json,toml}" discovered on the search path, falling
// back to defaults for anything unset; NEXUSSYNTH_-prefixed environment
// variables override both. When configFile is empty, a missing discovered
// file is not an error and the defaults argument's values carry through via
// viper's default layer; an explicit configFile that cannot be read is an
// error.
func Load(configFile string, defaults Config) (Config, error) {
	v := viper.New()
	setDefaults(v, defaults)

	v.SetEnvPrefix("NEXUSSYNTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %q: %w", configFile, err)
		}
	} else {
		v.SetConfigName("nexussynth")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("config: read default config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("trainer.max_iterations", c.Trainer.MaxIterations)
	v.SetDefault("trainer.convergence_threshold", c.Trainer.ConvergenceThreshold)
	v.SetDefault("trainer.parameter_threshold", c.Trainer.ParameterThreshold)
	v.SetDefault("trainer.use_validation_set", c.Trainer.UseValidationSet)
	v.SetDefault("trainer.validation_split", c.Trainer.ValidationSplit)
	v.SetDefault("trainer.convergence_window", c.Trainer.ConvergenceWindow)
	v.SetDefault("trainer.verbose", c.Trainer.Verbose)
	v.SetDefault("trainer.enable_adaptive_thresholds", c.Trainer.EnableAdaptiveThresholds)
	v.SetDefault("trainer.overfitting_threshold", c.Trainer.OverfittingThreshold)
	v.SetDefault("trainer.patience", c.Trainer.Patience)
	v.SetDefault("trainer.min_improvement", c.Trainer.MinImprovement)
	v.SetDefault("trainer.enable_model_checkpointing", c.Trainer.EnableModelCheckpointing)
	v.SetDefault("trainer.convergence_confidence", c.Trainer.ConvergenceConfidence)
	v.SetDefault("trainer.enable_parallel_training", c.Trainer.EnableParallelTraining)
	v.SetDefault("trainer.enable_parallel_emission_update", c.Trainer.EnableParallelEmission)

	v.SetDefault("mlpg.use_delta_features", c.MLPG.UseDeltaFeatures)
	v.SetDefault("mlpg.use_delta_delta_features", c.MLPG.UseDeltaDeltaFeatures)
	v.SetDefault("mlpg.use_global_variance", c.MLPG.UseGlobalVariance)
	v.SetDefault("mlpg.regularization_factor", c.MLPG.RegularizationFactor)
	v.SetDefault("mlpg.gv_weight", c.MLPG.GVWeight)
	v.SetDefault("mlpg.max_iterations", c.MLPG.MaxIterations)
	v.SetDefault("mlpg.convergence_tolerance", c.MLPG.ConvergenceTolerance)
	v.SetDefault("mlpg.verbose", c.MLPG.Verbose)

	v.SetDefault("context.window_radius", c.Context.WindowRadius)
	v.SetDefault("context.normalization_type", c.Context.NormalizationType)

	v.SetDefault("bridge.feature_dimension", c.Bridge.FeatureDimension)
	v.SetDefault("bridge.num_mixtures_per_state", c.Bridge.NumMixturesPerState)
	v.SetDefault("bridge.num_states_per_phoneme", c.Bridge.NumStatesPerPhoneme)
	v.SetDefault("bridge.use_delta_features", c.Bridge.UseDeltaFeatures)
	v.SetDefault("bridge.use_delta_delta_features", c.Bridge.UseDeltaDeltaFeatures)
	v.SetDefault("bridge.min_frames_per_model", c.Bridge.MinFramesPerModel)
	v.SetDefault("bridge.output_directory", c.Bridge.OutputDirectory)

	v.SetDefault("persistence.model_directory", c.Persistence.ModelDirectory)
	v.SetDefault("persistence.gv_statistics_path", c.Persistence.GVStatisticsPath)
	v.SetDefault("persistence.label_directory", c.Persistence.LabelDirectory)

	v.SetDefault("log_level", c.LogLevel)
}
