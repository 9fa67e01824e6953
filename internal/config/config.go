package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. R2MD_TOKENIZER
const EnvPrefix = "R2MD_"

// FileNames are the config files looked up in the working directory, in order
var FileNames = []string{"r2md.yml", "r2md.yaml", "r2md.toml"}

// ErrInvalidConfig is wrapped by every Validate failure
var ErrInvalidConfig = errors.New("invalid config")

// Config holds every setting read from files and the environment
type Config struct {
	MaxContextTokens int           `yaml:"max_context_tokens" toml:"max_context_tokens"`
	SplitRatio       float64       `yaml:"split_ratio" toml:"split_ratio"`
	Tokenizer        string        `yaml:"tokenizer" toml:"tokenizer"`
	IgnorePatterns   []string      `yaml:"ignore_patterns" toml:"ignore_patterns"`
	MaxFileSize      int64         `yaml:"max_file_size" toml:"max_file_size"`
	Workers          int           `yaml:"workers" toml:"workers"`
	ParseTimeout     time.Duration `yaml:"parse_timeout" toml:"parse_timeout"`
	DBPath           string        `yaml:"db_path" toml:"db_path"`
	LogLevel         string        `yaml:"log_level" toml:"log_level"`

	// Source is the file the config was read from, empty for defaults only
	Source string `yaml:"-" toml:"-"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		SplitRatio:  0.8,
		Tokenizer:   "cl100k_base",
		MaxFileSize: 5 * 1024 * 1024,
		LogLevel:    "info",
	}
}

// Load reads the first config file found in dir, then .env from dir, then
// R2MD_* environment variables. Each layer overrides the one before it. A
// missing file or .env is not an error.
func Load(dir string) (*Config, error) {
	cfg := Default()

	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := cfg.loadFile(p); err != nil {
			return nil, err
		}
		break
	}

	// .env never overrides variables already set in the process
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads one config file on top of the defaults. The format follows
// the extension: .toml, otherwise YAML.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	c.Source = path
	return nil
}

// applyEnv overrides fields from R2MD_* variables. lookup is os.LookupEnv
// outside tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	var errs []error
	if v, ok := get("MAX_CONTEXT_TOKENS"); ok {
		n, err := strconv.Atoi(v)
		errs = append(errs, envErr("MAX_CONTEXT_TOKENS", err))
		c.MaxContextTokens = n
	}
	if v, ok := get("SPLIT_RATIO"); ok {
		f, err := strconv.ParseFloat(v, 64)
		errs = append(errs, envErr("SPLIT_RATIO", err))
		c.SplitRatio = f
	}
	if v, ok := get("TOKENIZER"); ok && v != "" {
		c.Tokenizer = v
	}
	if v, ok := get("IGNORE_PATTERNS"); ok {
		c.IgnorePatterns = splitList(v)
	}
	if v, ok := get("MAX_FILE_SIZE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		errs = append(errs, envErr("MAX_FILE_SIZE", err))
		c.MaxFileSize = n
	}
	if v, ok := get("WORKERS"); ok {
		n, err := strconv.Atoi(v)
		errs = append(errs, envErr("WORKERS", err))
		c.Workers = n
	}
	if v, ok := get("PARSE_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		errs = append(errs, envErr("PARSE_TIMEOUT", err))
		c.ParseTimeout = d
	}
	if v, ok := get("DB_PATH"); ok {
		c.DBPath = v
	}
	if v, ok := get("LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	return errors.Join(errs...)
}

func envErr(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s%s: %v", ErrInvalidConfig, EnvPrefix, key, err)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks value ranges. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxContextTokens < 0 {
		errs = append(errs, fmt.Errorf("%w: max_context_tokens must be >= 0, got %d", ErrInvalidConfig, c.MaxContextTokens))
	}
	if !(c.SplitRatio > 0 && c.SplitRatio < 1) {
		errs = append(errs, fmt.Errorf("%w: split_ratio must be in (0, 1), got %g", ErrInvalidConfig, c.SplitRatio))
	}
	if c.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_file_size must be > 0, got %d", ErrInvalidConfig, c.MaxFileSize))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidConfig, c.Workers))
	}
	if c.ParseTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: parse_timeout must be >= 0, got %s", ErrInvalidConfig, c.ParseTimeout))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level parses LogLevel. An empty level is info.
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("%w: log_level: %v", ErrInvalidConfig, err)
	}
	return lvl, nil
}
