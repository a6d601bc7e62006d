package roteiro

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/lewtec/roteiro/internal/acquire"
	"github.com/lewtec/roteiro/internal/generator"
)

// Environment overrides
const (
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvLanguage     = "ROTEIRO_LANGUAGE"
	EnvLogLevel     = "ROTEIRO_LOG_LEVEL"
	EnvDatabaseDir  = "ROTEIRO_DATABASE_DIR"
	EnvImagesDir    = "ROTEIRO_IMAGES_DIR"
	EnvExportDir    = "ROTEIRO_EXPORT_DIR"
)

const DefaultDatabaseFile = "roteiro_data.db"

type Config struct {
	Language  string          `yaml:"language"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Images    DirConfig       `yaml:"images"`
	Export    DirConfig       `yaml:"export"`
	Acquire   AcquireConfig   `yaml:"acquire"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	Generator GeneratorConfig `yaml:"generator"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DatabaseConfig struct {
	Dir         string `yaml:"dir"`
	FallbackDir string `yaml:"fallback_dir"`
	File        string `yaml:"file"`
}

// DirConfig is a preferred folder and the one used when it is unavailable
type DirConfig struct {
	Dir         string `yaml:"dir"`
	FallbackDir string `yaml:"fallback_dir"`
}

type AcquireConfig struct {
	Multiplier int            `yaml:"multiplier"`
	HardCap    int            `yaml:"hard_cap"`
	MinSize    string         `yaml:"min_size"`
	MaxPixels  int64          `yaml:"max_pixels"`
	Thresholds map[string]int `yaml:"thresholds"`
	minBytes   int64
}

// MinBytes is min_size parsed by Finalize
func (c *AcquireConfig) MinBytes() int64 {
	return c.minBytes
}

type CrawlerConfig struct {
	BaseURL           string  `yaml:"base_url"`
	Workers           int     `yaml:"workers"`
	PageSize          int     `yaml:"page_size"`
	MaxDownload       string  `yaml:"max_download"`
	MaxTotal          string  `yaml:"max_total"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Timeout           string  `yaml:"timeout"`
	maxDownloadBytes  int64
	maxTotalBytes     int64
	timeout           time.Duration
}

func (c *CrawlerConfig) MaxDownloadBytes() int64 {
	return c.maxDownloadBytes
}

// MaxTotalBytes bounds the candidates one fetch holds in memory
func (c *CrawlerConfig) MaxTotalBytes() int64 {
	return c.maxTotalBytes
}

func (c *CrawlerConfig) TimeoutDuration() time.Duration {
	return c.timeout
}

type GeneratorConfig struct {
	APIKey            string   `yaml:"api_key"`
	Models            []string `yaml:"models"`
	SystemInstruction string   `yaml:"system_instruction"`
	PromptTemplate    string   `yaml:"prompt_template"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	DurationLabel     string   `yaml:"duration_label"`
	TitlePrefix       string   `yaml:"title_prefix"`
}

// DefaultConfig returns a finalized configuration with every default applied
func DefaultConfig() *Config {
	c := &Config{}
	c.loadDefaults()
	if err := c.validate(); err != nil {
		panic(err)
	}
	return c
}

// LoadConfig reads a YAML file, expands ${VAR} references, applies
// defaults and environment overrides and validates the result.
// A missing file yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	var ret Config
	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("while reading config: %w", err)
		default:
			if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &ret); err != nil {
				return nil, fmt.Errorf("while parsing config %s: %w", filename, err)
			}
		}
	}
	if err := ret.Finalize(); err != nil {
		return nil, err
	}
	return &ret, nil
}

// Finalize applies defaults, loads environment overrides and validates
func (c *Config) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

func (c *Config) loadDefaults() {
	tmp := filepath.Join(os.TempDir(), "roteiro")
	if c.Language == "" {
		c.Language = "en"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Database.Dir == "" {
		c.Database.Dir = "db"
	}
	if c.Database.FallbackDir == "" {
		c.Database.FallbackDir = filepath.Join(tmp, "db")
	}
	if c.Database.File == "" {
		c.Database.File = DefaultDatabaseFile
	}
	if c.Images.Dir == "" {
		c.Images.Dir = "images"
	}
	if c.Images.FallbackDir == "" {
		c.Images.FallbackDir = filepath.Join(tmp, "images")
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "exports"
	}
	if c.Export.FallbackDir == "" {
		c.Export.FallbackDir = filepath.Join(tmp, "exports")
	}
	if c.Acquire.Multiplier == 0 {
		c.Acquire.Multiplier = acquire.DefaultMultiplier
	}
	if c.Acquire.HardCap == 0 {
		c.Acquire.HardCap = acquire.DefaultHardCap
	}
	if c.Acquire.MinSize == "" {
		c.Acquire.MinSize = strconv.Itoa(acquire.DefaultMinBytes)
	}
	if c.Acquire.MaxPixels == 0 {
		c.Acquire.MaxPixels = acquire.DefaultMaxPixels
	}
	if c.Acquire.Thresholds == nil {
		c.Acquire.Thresholds = map[string]int{}
	}
	for tier, threshold := range acquire.DefaultThresholds {
		if _, ok := c.Acquire.Thresholds[string(tier)]; !ok {
			c.Acquire.Thresholds[string(tier)] = threshold
		}
	}
	if c.Crawler.Workers == 0 {
		c.Crawler.Workers = 4
	}
	if c.Crawler.PageSize == 0 {
		c.Crawler.PageSize = 35
	}
	if c.Crawler.MaxDownload == "" {
		c.Crawler.MaxDownload = "20MB"
	}
	if c.Crawler.MaxTotal == "" {
		c.Crawler.MaxTotal = "512MB"
	}
	if c.Crawler.RequestsPerSecond == 0 {
		c.Crawler.RequestsPerSecond = 8
	}
	if c.Crawler.Timeout == "" {
		c.Crawler.Timeout = "30s"
	}
	if len(c.Generator.Models) == 0 {
		c.Generator.Models = append([]string(nil), generator.DefaultModels...)
	}
	if c.Generator.RequestsPerMinute == 0 {
		c.Generator.RequestsPerMinute = 15
	}
	if c.Generator.DurationLabel == "" {
		c.Generator.DurationLabel = generator.DefaultDurationLabel
	}
	if c.Generator.TitlePrefix == "" {
		c.Generator.TitlePrefix = generator.DefaultTitlePrefix
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvGeminiAPIKey); v != "" && c.Generator.APIKey == "" {
		c.Generator.APIKey = v
	}
	if v := os.Getenv(EnvLanguage); v != "" {
		c.Language = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvDatabaseDir); v != "" {
		c.Database.Dir = v
	}
	if v := os.Getenv(EnvImagesDir); v != "" {
		c.Images.Dir = v
	}
	if v := os.Getenv(EnvExportDir); v != "" {
		c.Export.Dir = v
	}
}

func (c *Config) validate() error {
	if c.Acquire.Multiplier < 1 {
		return fmt.Errorf("acquire.multiplier must be at least 1")
	}
	if c.Acquire.HardCap < 1 {
		return fmt.Errorf("acquire.hard_cap must be at least 1")
	}
	minBytes, err := units.FromHumanSize(c.Acquire.MinSize)
	if err != nil {
		return fmt.Errorf("invalid acquire.min_size: %w", err)
	}
	if minBytes < 0 {
		return fmt.Errorf("acquire.min_size must not be negative")
	}
	c.Acquire.minBytes = minBytes
	if c.Acquire.MaxPixels < 1 {
		return fmt.Errorf("acquire.max_pixels must be positive")
	}
	for tier, threshold := range c.Acquire.Thresholds {
		if _, err := acquire.ParseTier(tier); err != nil {
			return fmt.Errorf("acquire.thresholds: %w", err)
		}
		if threshold < 1 {
			return fmt.Errorf("acquire.thresholds.%s must be positive", tier)
		}
	}

	size, err := units.FromHumanSize(c.Crawler.MaxDownload)
	if err != nil {
		return fmt.Errorf("invalid crawler.max_download: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("crawler.max_download must be positive")
	}
	c.Crawler.maxDownloadBytes = size
	total, err := units.FromHumanSize(c.Crawler.MaxTotal)
	if err != nil {
		return fmt.Errorf("invalid crawler.max_total: %w", err)
	}
	if total < size {
		return fmt.Errorf("crawler.max_total must be at least crawler.max_download")
	}
	c.Crawler.maxTotalBytes = total
	timeout, err := time.ParseDuration(c.Crawler.Timeout)
	if err != nil {
		return fmt.Errorf("invalid crawler.timeout: %w", err)
	}
	c.Crawler.timeout = timeout
	if c.Crawler.Workers < 1 {
		return fmt.Errorf("crawler.workers must be at least 1")
	}
	if c.Crawler.RequestsPerSecond < 0 {
		return fmt.Errorf("crawler.requests_per_second must not be negative")
	}
	if c.Generator.RequestsPerMinute < 0 {
		return fmt.Errorf("generator.requests_per_minute must not be negative")
	}
	return nil
}

// Filter builds the candidate filter described by the acquire section
func (c *AcquireConfig) Filter() *acquire.Filter {
	thresholds := make(map[acquire.Tier]int, len(c.Thresholds))
	for tier, threshold := range c.Thresholds {
		if t, err := acquire.ParseTier(tier); err == nil {
			thresholds[t] = threshold
		}
	}
	return &acquire.Filter{MinBytes: int(c.minBytes), Thresholds: thresholds, MaxPixels: c.MaxPixels}
}

// SampleConfig is written by the init command
const SampleConfig = `# roteiro configuration
# ${VAR} references are expanded from the environment.

language: en   # en or pt-BR

log:
  level: info      # debug, info, warn, error
  format: console  # console or json

database:
  dir: db
  # used when dir cannot be created or written
  # fallback_dir: /tmp/roteiro/db
  file: roteiro_data.db

images:
  dir: images
  # fallback_dir: /tmp/roteiro/images

export:
  dir: exports

acquire:
  multiplier: 10   # candidates requested per wanted image
  hard_cap: 1000
  min_size: 1kB
  max_pixels: 100000000   # larger images are skipped without decoding
  thresholds:
    normal: 480
    high: 1080

crawler:
  workers: 4
  page_size: 35
  max_download: 20MB
  max_total: 512MB   # memory held by one fetch
  requests_per_second: 8
  timeout: 30s

generator:
  api_key: ${GEMINI_API_KEY}
  models:
    - gemini-2.0-flash
    - gemini-2.0-flash-lite
    - gemini-1.5-pro
    - gemini-1.5-flash
    - gemini-1.5-flash-8b
  requests_per_minute: 15
  duration_label: Duração
  title_prefix: Roteiro
`

// WriteSampleConfig creates filename with SampleConfig unless it already exists
func WriteSampleConfig(filename string) (bool, error) {
	if _, err := os.Stat(filename); err == nil {
		return false, nil
	}
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("while creating config folder: %w", err)
		}
	}
	if err := os.WriteFile(filename, []byte(SampleConfig), 0o644); err != nil {
		return false, fmt.Errorf("while writing sample config: %w", err)
	}
	return true, nil
}
