// Package config loads compute engine configuration from files and the
// environment with sane defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/dashlytics/compute/pkg/models"
)

const envPrefix = "COMPUTE"

// Config is the root configuration of the compute service.
type Config struct {
	Compute models.ComputeConfig `mapstructure:"compute"`
	Logging LoggingConfig        `mapstructure:"logging"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load reads configuration from the given file path. An empty path loads
// defaults plus environment overrides only. Environment variables use the
// COMPUTE_ prefix, e.g. COMPUTE_COMPUTE_MAX_WORKERS=8.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Compute = config.Compute.Clamped()
	return &config, nil
}

// Watch reloads the configuration whenever the file at path changes and
// passes the result to onChange. Reload errors are reported through onError
// when it is non-nil.
func Watch(path string, onChange func(*Config), onError func(error)) error {
	if path == "" {
		return fmt.Errorf("config watch requires a file path")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	v.OnConfigChange(func(fsnotify.Event) {
		var config Config
		if err := v.Unmarshal(&config); err != nil {
			if onError != nil {
				onError(fmt.Errorf("failed to reload config: %w", err))
			}
			return
		}
		config.Compute = config.Compute.Clamped()
		onChange(&config)
	})
	v.WatchConfig()
	return nil
}

func setDefaults(v *viper.Viper) {
	def := models.DefaultComputeConfig()

	v.SetDefault("compute.enable_parallel_processing", def.EnableParallelProcessing)
	v.SetDefault("compute.max_workers", def.MaxWorkers)
	v.SetDefault("compute.chunk_size", def.ChunkSize)
	v.SetDefault("compute.enable_simd", def.EnableSIMD)
	v.SetDefault("compute.enable_threads", def.EnableThreads)
	v.SetDefault("compute.accel_threshold", def.AccelThreshold)
	v.SetDefault("compute.forecast_horizon", def.ForecastHorizon)
	v.SetDefault("compute.smoothing_factor", def.SmoothingFactor)
	v.SetDefault("compute.anomaly_threshold", def.AnomalyThreshold)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}
