package mvreg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	SourceCSV    = "csv"
	SourceSQLite = "sqlite"

	// ConfigFileEnv names a YAML file layered over the defaults
	ConfigFileEnv = "MVREG_CONFIG"
	envPrefix     = "MVREG_"
)

// MvregConfig contains every tunable of the analysis
type MvregConfig struct {
	// === INTERVALS ===
	Confidence     float64 `koanf:"confidence"`      // confidence band level (default: 0.95)
	PredictionBand float64 `koanf:"prediction_band"` // prediction band level (default: 0.95)
	BandSamples    int     `koanf:"band_samples"`    // x samples across each band (default: 1000)

	// === DATA ===
	Source    string `koanf:"source"`     // csv or sqlite
	TrainPath string `koanf:"train_path"` // training csv, a file or http(s) url
	TestPath  string `koanf:"test_path"`  // test csv, a file or http(s) url
	DbPath    string `koanf:"db_path"`    // sqlite database, also receives evaluation runs when set
	CABundle  string `koanf:"ca_bundle"`  // extra PEM roots for https datasets

	// === OUTPUT ===
	ChartPath   string `koanf:"chart_path"`   // where the 2x2 svg grid is written
	ChartWidth  int    `koanf:"chart_width"`  // svg width in px (default: 1000)
	ChartHeight int    `koanf:"chart_height"` // svg height in px (default: 800)
	MetricsPath string `koanf:"metrics_path"` // prometheus textfile, skipped when empty

	// === LOGGING ===
	LogLevel string `koanf:"log_level"`
	LogFile  string `koanf:"log_file"`

	// Axis labels keyed by column key (avg_mv, pts ...)
	Labels map[string]string `koanf:"labels"`
}

// DefaultConfig returns the default configuration with all standard values
func DefaultConfig() *MvregConfig {
	assets := filepath.Join(".", ".mvreg")
	return &MvregConfig{
		Confidence:     0.95,
		PredictionBand: 0.95,
		BandSamples:    1000,

		Source:    SourceCSV,
		TrainPath: filepath.Join(assets, "train_data.csv"),
		TestPath:  filepath.Join(assets, "test_data.csv"),
		DbPath:    "",

		ChartPath:   "mvreg.svg",
		ChartWidth:  1000,
		ChartHeight: 800,
		MetricsPath: "",

		LogLevel: "info",
		LogFile:  filepath.Join(os.TempDir(), "mvreg.log"),

		Labels: map[string]string{},
	}
}

// Global configuration instance
var Config *MvregConfig

func init() {
	Config = DefaultConfig()
}

// UpdateConfig replaces the global configuration
func UpdateConfig(newConfig *MvregConfig) {
	if newConfig.Labels == nil {
		newConfig.Labels = map[string]string{}
	}
	Config = newConfig
}

// ValidateConfig ensures all configuration values are within reasonable ranges
func ValidateConfig(config *MvregConfig) error {
	if !validLevel(config.Confidence) {
		return fmt.Errorf("Confidence must be between 0 and 1 exclusive, got: %f", config.Confidence)
	}
	if !validLevel(config.PredictionBand) {
		return fmt.Errorf("PredictionBand must be between 0 and 1 exclusive, got: %f", config.PredictionBand)
	}
	if config.BandSamples < 2 {
		return fmt.Errorf("BandSamples should be at least 2, got: %d", config.BandSamples)
	}
	switch config.Source {
	case SourceCSV:
		if config.TrainPath == "" || config.TestPath == "" {
			return fmt.Errorf("csv source needs both train_path and test_path")
		}
	case SourceSQLite:
		if config.DbPath == "" {
			return fmt.Errorf("sqlite source needs db_path")
		}
	default:
		return fmt.Errorf("Source must be %q or %q, got: %q", SourceCSV, SourceSQLite, config.Source)
	}
	if config.ChartWidth < 200 || config.ChartHeight < 200 {
		return fmt.Errorf("chart must be at least 200x200, got: %dx%d", config.ChartWidth, config.ChartHeight)
	}
	for key := range config.Labels {
		if _, err := ParseColumn(key); err != nil {
			return fmt.Errorf("labels: %w", err)
		}
	}
	return nil
}

// LoadConfig layers defaults < YAML file named by MVREG_CONFIG < MVREG_* env vars
func LoadConfig() (*MvregConfig, error) {
	k := koanf.New(".")

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// MVREG_BAND_SAMPLES -> band_samples, MVREG_LABELS__PTS -> labels.pts
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Labels == nil {
		cfg.Labels = map[string]string{}
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ColumnLabels resolves the axis labels, config overrides first
func (c *MvregConfig) ColumnLabels() ColumnLabels {
	labels := DefaultColumnLabels()
	for key, label := range c.Labels {
		if col, err := ParseColumn(key); err == nil && label != "" {
			labels[col] = label
		}
	}
	return labels
}
