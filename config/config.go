package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"datasetbuilder/internal/symbols"
)

const (
	DefaultBaseURL       = "https://fapi.binance.com"
	DefaultSymbol        = "BTCUSDT"
	DefaultOutputDir     = "./output"
	DefaultThrottleDelay = 2 * time.Second
	DefaultHTTPTimeout   = 3 * time.Minute
)

// SeriesNames lists every series the builder knows how to sync, in the order
// they are synced.
var SeriesNames = []string{
	"funding_rate",
	"open_interest",
	"long_short_ratio",
	"taker_buy_sell_volume",
}

type Config struct {
	Builder  BuilderConfig  `yaml:"builder"`
	Logging  LoggingConfig  `yaml:"logging"`
	Binance  BinanceConfig  `yaml:"binance"`
	Datasets DatasetsConfig `yaml:"datasets"`
	Export   ExportConfig   `yaml:"export"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type BuilderConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// BinanceConfig controls how the futures market-data API is reached and paced.
type BinanceConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Symbol   string        `yaml:"symbol"`
	Timeout  time.Duration `yaml:"timeout"`
	Throttle time.Duration `yaml:"throttle_delay"`
	// MinRequestInterval is the floor enforced by the client limiter on top of
	// the throttle delays.
	MinRequestInterval time.Duration `yaml:"min_request_interval"`
	CheckWeightLimit   bool          `yaml:"check_weight_limit"`
}

type DatasetsConfig struct {
	OutputDir string         `yaml:"output_dir"`
	Series    []SeriesConfig `yaml:"series"`
}

// SeriesConfig overrides the built-in definition of one series. Zero values
// keep the built-in setting.
type SeriesConfig struct {
	Name         string `yaml:"name"`
	Enabled      *bool  `yaml:"enabled,omitempty"`
	Path         string `yaml:"path,omitempty"`
	LookbackDays int    `yaml:"lookback_days,omitempty"`
	WindowDays   int    `yaml:"window_days,omitempty"`
	Limit        int    `yaml:"limit,omitempty"`
	Period       string `yaml:"period,omitempty"`
}

// IsEnabled reports whether the series should be synced; series are enabled
// unless explicitly switched off.
func (s SeriesConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type ExportConfig struct {
	Parquet ParquetConfig `yaml:"parquet"`
}

type ParquetConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Dir         string `yaml:"dir"`
	Compression string `yaml:"compression"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type MetricsConfig struct {
	UsedWeight bool             `yaml:"used_weight"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	return Config{
		Builder: BuilderConfig{
			Name:    "datasetbuilder",
			Version: "dev",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Binance: BinanceConfig{
			BaseURL:            DefaultBaseURL,
			Symbol:             DefaultSymbol,
			Timeout:            DefaultHTTPTimeout,
			Throttle:           DefaultThrottleDelay,
			MinRequestInterval: 250 * time.Millisecond,
		},
		Datasets: DatasetsConfig{
			OutputDir: DefaultOutputDir,
		},
		Export: ExportConfig{
			Parquet: ParquetConfig{
				Dir:         "./output/parquet",
				Compression: "snappy",
			},
		},
		Metrics: MetricsConfig{
			UsedWeight: true,
			CloudWatch: CloudWatchConfig{
				Namespace: "DatasetBuilder",
			},
		},
	}
}

// LoadConfig reads the YAML file at path on top of the defaults, applies
// environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig is LoadConfig without the file read.
func ParseConfig(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	config.Binance.BaseURL = strings.TrimRight(strings.TrimSpace(config.Binance.BaseURL), "/")
	config.Binance.Symbol = symbols.Normalize(config.Binance.Symbol)
	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("BINANCE_BASE_URL"); v != "" {
		config.Binance.BaseURL = v
	}
	if v := os.Getenv("BINANCE_SYMBOL"); v != "" {
		config.Binance.Symbol = v
	}
	if v := os.Getenv("DATASET_OUTPUT_DIR"); v != "" {
		config.Datasets.OutputDir = strings.TrimSpace(v)
	}

	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
	if config.Metrics.CloudWatch.Enabled && config.Metrics.CloudWatch.Region == "" {
		config.Metrics.CloudWatch.Region = strings.TrimSpace(os.Getenv("AWS_REGION"))
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Builder.Name == "" {
		return fmt.Errorf("builder.name is required")
	}

	if cfg.Binance.BaseURL == "" {
		return fmt.Errorf("binance.base_url is required")
	}
	if !strings.HasPrefix(cfg.Binance.BaseURL, "http://") && !strings.HasPrefix(cfg.Binance.BaseURL, "https://") {
		return fmt.Errorf("binance.base_url '%s' must be an http(s) URL", cfg.Binance.BaseURL)
	}
	if cfg.Binance.Symbol == "" {
		return fmt.Errorf("binance.symbol is required")
	}
	if cfg.Binance.Timeout <= 0 {
		return fmt.Errorf("binance.timeout must be greater than 0")
	}
	if cfg.Binance.Throttle < 0 {
		return fmt.Errorf("binance.throttle_delay must not be negative")
	}
	if cfg.Binance.MinRequestInterval < 0 {
		return fmt.Errorf("binance.min_request_interval must not be negative")
	}

	if strings.TrimSpace(cfg.Datasets.OutputDir) == "" {
		return fmt.Errorf("datasets.output_dir is required")
	}
	seen := make(map[string]struct{}, len(cfg.Datasets.Series))
	for i, s := range cfg.Datasets.Series {
		if s.Name == "" {
			return fmt.Errorf("datasets.series[%d].name is required", i)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("datasets.series '%s' is configured twice", s.Name)
		}
		seen[s.Name] = struct{}{}
		if !isKnownSeries(s.Name) {
			return fmt.Errorf("datasets.series '%s' is not a known series (%s)", s.Name, strings.Join(SeriesNames, ", "))
		}
		if s.LookbackDays < 0 || s.WindowDays < 0 || s.Limit < 0 {
			return fmt.Errorf("datasets.series '%s' has a negative lookback, window or limit", s.Name)
		}
	}

	if cfg.Export.Parquet.Enabled {
		if cfg.Export.Parquet.Dir == "" {
			return fmt.Errorf("export.parquet.dir is required when parquet export is enabled")
		}
		switch strings.ToLower(cfg.Export.Parquet.Compression) {
		case "", "snappy", "gzip", "zstd", "uncompressed", "none":
		default:
			return fmt.Errorf("export.parquet.compression '%s' is not supported", cfg.Export.Parquet.Compression)
		}
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

func isKnownSeries(name string) bool {
	for _, known := range SeriesNames {
		if known == name {
			return true
		}
	}
	return false
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
