package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"ncacli/internal/nca"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Analysis AnalysisConfig `yaml:"analysis" envconfig:"ANALYSIS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	InputFile string `yaml:"input_file" envconfig:"INPUT_FILE"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
}

// AnalysisConfig mirrors the engine configuration in file/env friendly form.
type AnalysisConfig struct {
	AUCMethods         []string `json:"auc_methods" yaml:"auc_methods" envconfig:"AUC_METHODS"`
	LambdaZMethod      string   `json:"lambda_z_method" yaml:"lambda_z_method" envconfig:"LAMBDA_Z_METHOD"`
	LambdaZIndices     []int    `json:"lambda_z_indices" yaml:"lambda_z_indices" envconfig:"LAMBDA_Z_INDICES"`
	LambdaZMinPoints   int      `json:"lambda_z_min_points" yaml:"lambda_z_min_points" envconfig:"LAMBDA_Z_MIN_POINTS" validate:"omitempty,gte=2"`
	LambdaZRSquared    float64  `json:"lambda_z_r_squared" yaml:"lambda_z_r_squared" envconfig:"LAMBDA_Z_R_SQUARED" validate:"gte=0,lte=1"`
	BLQHandling        string   `json:"blq_handling" yaml:"blq_handling" envconfig:"BLQ_HANDLING"`
	TimeUnits          string   `json:"time_units" yaml:"time_units" envconfig:"TIME_UNITS"`
	ConcentrationUnits string   `json:"concentration_units" yaml:"concentration_units" envconfig:"CONCENTRATION_UNITS"`
	StratifyBy         []string `json:"stratify_by" yaml:"stratify_by" envconfig:"STRATIFY_BY"`
	MinNPerStratum     int      `json:"min_n_per_stratum" yaml:"min_n_per_stratum" envconfig:"MIN_N_PER_STRATUM" validate:"omitempty,gte=1"`
	CovariateAnalysis  bool     `json:"covariate_analysis" yaml:"covariate_analysis" envconfig:"COVARIATE_ANALYSIS"`
	DoseNormalization  bool     `json:"dose_normalization" yaml:"dose_normalization" envconfig:"DOSE_NORMALIZATION"`
	Concurrency        int      `json:"concurrency" yaml:"concurrency" envconfig:"CONCURRENCY" validate:"gte=0"`
}

var validate = validator.New()

// Load loads configuration from defaults, an optional YAML file, and
// environment variables. Environment variables take precedence over the file.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process("NCA", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// findConfigFile returns the first config file found in common locations,
// or empty when none exists and env vars alone apply.
func findConfigFile() string {
	locations := []string{
		"nca.yaml",
		"configs/nca.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Validate validates the configuration, including that the analysis section
// maps onto a consistent engine configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.Analysis.ToAnalysisConfig(); err != nil {
		return err
	}
	return nil
}

// ToAnalysisConfig maps the file/env analysis section onto the engine
// configuration.
func (a AnalysisConfig) ToAnalysisConfig() (nca.AnalysisConfig, error) {
	cfg := nca.DefaultAnalysisConfig()
	if a.TimeUnits != "" {
		cfg.TimeUnits = a.TimeUnits
	}
	if a.ConcentrationUnits != "" {
		cfg.ConcentrationUnits = a.ConcentrationUnits
	}
	cfg.PerformCovariateAnalysis = a.CovariateAnalysis
	cfg.DoseNormalization = a.DoseNormalization

	if len(a.AUCMethods) > 0 {
		methods := make([]nca.AUCMethod, 0, len(a.AUCMethods))
		for _, name := range a.AUCMethods {
			m, err := nca.ParseAUCMethod(name)
			if err != nil {
				return nca.AnalysisConfig{}, err
			}
			methods = append(methods, m)
		}
		cfg.AUCMethods = methods
	}

	if a.BLQHandling != "" {
		policy, err := nca.ParseBLQPolicy(a.BLQHandling)
		if err != nil {
			return nca.AnalysisConfig{}, err
		}
		cfg.BLQ = policy
	}

	if a.LambdaZMethod != "" {
		method, err := nca.ParseLambdaZMethod(a.LambdaZMethod)
		if err != nil {
			return nca.AnalysisConfig{}, err
		}
		cfg.LambdaZ.Method = method
		if method == nca.LambdaZManual {
			if len(a.LambdaZIndices) < 2 {
				return nca.AnalysisConfig{}, fmt.Errorf("lambda_z_method %q requires at least 2 lambda_z_indices", a.LambdaZMethod)
			}
			cfg.LambdaZ.Indices = a.LambdaZIndices
		}
		if method == nca.LambdaZBestFit {
			minPoints := a.LambdaZMinPoints
			if minPoints < 2 {
				minPoints = 3
			}
			rSquared := a.LambdaZRSquared
			if rSquared <= 0 || rSquared > 1 {
				rSquared = 0.9
			}
			cfg.LambdaZ.MinPoints = minPoints
			cfg.LambdaZ.RSquaredThreshold = rSquared
		}
	}

	if len(a.StratifyBy) > 0 {
		minN := a.MinNPerStratum
		if minN < 1 {
			minN = 3
		}
		cfg.Stratification = &nca.StratificationConfig{
			StratifyColumns:         a.StratifyBy,
			IncludeInteractions:     len(a.StratifyBy) > 1,
			MinimumNPerStratum:      minN,
			PerformStatisticalTests: true,
		}
	}

	if err := cfg.Validate(); err != nil {
		return nca.AnalysisConfig{}, err
	}
	return cfg, nil
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     10,
				Burst:   20,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Paths: PathsConfig{
			OutputDir: "nca_results",
		},
		Analysis: AnalysisConfig{
			LambdaZMethod:      "auto",
			LambdaZMinPoints:   3,
			LambdaZRSquared:    0.9,
			BLQHandling:        "half_lloq",
			TimeUnits:          "h",
			ConcentrationUnits: "ng/mL",
			MinNPerStratum:     3,
		},
	}
}
