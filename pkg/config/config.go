package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. COVERAGE_REPORT_HTML_CHUNK_SIZE.
const EnvPrefix = "COVERAGE_REPORT"

// DefaultName is the config file looked up in the search directory.
const DefaultName = ".coverage-report"

// Config holds every setting of a report run.
type Config struct {
	Profile    string           `mapstructure:"profile"`
	Manifest   string           `mapstructure:"manifest"`
	Exclude    []string         `mapstructure:"exclude"`
	Markdown   MarkdownConfig   `mapstructure:"markdown"`
	HTML       HTMLConfig       `mapstructure:"html"`
	Screenshot ScreenshotConfig `mapstructure:"screenshot"`
	History    HistoryConfig    `mapstructure:"history"`
	BigQuery   BigQueryConfig   `mapstructure:"bigquery"`
	Log        LogConfig        `mapstructure:"log"`
}

// MarkdownConfig sets where the Markdown report is written.
type MarkdownConfig struct {
	Output string `mapstructure:"output"`
}

// HTMLConfig controls the HTML report and its template set.
type HTMLConfig struct {
	Output      string `mapstructure:"output"`
	TemplateDir string `mapstructure:"template_dir"`
	ChunkSize   int    `mapstructure:"chunk_size"`
}

// ScreenshotConfig controls the headless Chrome capture.
type ScreenshotConfig struct {
	Output   string        `mapstructure:"output"`
	Selector string        `mapstructure:"selector"`
	Timeout  time.Duration `mapstructure:"timeout"`
	KeepHTML bool          `mapstructure:"keep_html"`
}

// HistoryConfig points at the SQLite run history; an empty DB disables it.
type HistoryConfig struct {
	DB string `mapstructure:"db"`
}

// BigQueryConfig names the export destination.
type BigQueryConfig struct {
	Project string `mapstructure:"project"`
	Dataset string `mapstructure:"dataset"`
	Table   string `mapstructure:"table"`
}

// LogConfig sets verbosity and the optional log file directory.
type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("profile", ".cov/coverage.txt")
	v.SetDefault("manifest", "go.mod")
	v.SetDefault("exclude", []string{})
	v.SetDefault("markdown.output", "coverage.md")
	v.SetDefault("html.output", "coverage.html")
	v.SetDefault("html.template_dir", "")
	v.SetDefault("html.chunk_size", 2)
	v.SetDefault("screenshot.output", "assets/coverage.png")
	v.SetDefault("screenshot.selector", "main")
	v.SetDefault("screenshot.timeout", 60*time.Second)
	v.SetDefault("screenshot.keep_html", false)
	v.SetDefault("history.db", "")
	v.SetDefault("bigquery.project", "")
	v.SetDefault("bigquery.dataset", "")
	v.SetDefault("bigquery.table", "function_coverage")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "")
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	cfg := &Config{}
	// defaults always decode
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load builds the configuration from defaults, an optional YAML file and
// COVERAGE_REPORT_* environment variables (a .env file in dir is read
// first). An explicit file must exist; otherwise DefaultName is looked up
// in dir and may be absent.
func Load(file, dir string) (*Config, error) {
	if dir == "" {
		dir = "."
	}
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName(DefaultName)
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would only fail later in the pipeline.
func (c *Config) Validate() error {
	if c.Profile == "" {
		return errors.New("profile path must not be empty")
	}
	if c.Manifest == "" {
		return errors.New("manifest path must not be empty")
	}
	if c.HTML.ChunkSize < 1 {
		return fmt.Errorf("html.chunk_size must be at least 1, got %d", c.HTML.ChunkSize)
	}
	if c.Screenshot.Timeout <= 0 {
		return fmt.Errorf("screenshot.timeout must be positive, got %s", c.Screenshot.Timeout)
	}
	return nil
}
