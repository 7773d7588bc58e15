package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dgallion1/epiprep/internal/preprocess"
)

// ErrInvalidFlag is returned for a toggle value that is neither a
// recognized truthy nor falsy token.
var ErrInvalidFlag = errors.New("invalid boolean flag")

type Config struct {
	Port string

	// Auth; empty disables it
	APIKey string

	// Upload limits
	MaxUploadBytes int64

	// Pipeline stages
	OptimizeMarkup       bool
	ReconcileAnnotations bool
	CleanupStyles        bool

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Job state
	JobTTL time.Duration

	// Result cache
	CacheBackend  string // memory, redis or none
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// File is the TOML file read, if any.
	File string

	problems []error
}

// fileConfig mirrors the TOML overlay. Unset keys keep their defaults.
type fileConfig struct {
	Port           string `toml:"port"`
	APIKey         string `toml:"api_key"`
	MaxUploadBytes int64  `toml:"max_upload_bytes"`

	Preprocess struct {
		OptimizeMarkup       *bool `toml:"optimize_markup"`
		ReconcileAnnotations *bool `toml:"reconcile_annotations"`
		CleanupStyles        *bool `toml:"cleanup_styles"`
	} `toml:"preprocess"`

	Workers struct {
		Count     int    `toml:"count"`
		QueueSize int    `toml:"queue_size"`
		JobTTL    string `toml:"job_ttl"`
	} `toml:"workers"`

	Cache struct {
		Backend       string `toml:"backend"`
		TTL           string `toml:"ttl"`
		RedisAddr     string `toml:"redis_addr"`
		RedisPassword string `toml:"redis_password"`
		RedisDB       int    `toml:"redis_db"`
	} `toml:"cache"`
}

func defaults() Config {
	return Config{
		Port:                 "8090",
		MaxUploadBytes:       52428800, // 50MB
		OptimizeMarkup:       true,
		ReconcileAnnotations: true,
		WorkerCount:          4,
		MaxQueueSize:         100,
		JobTTL:               1 * time.Hour,
		CacheBackend:         "memory",
		CacheTTL:             15 * time.Minute,
	}
}

// Load builds the configuration from defaults, then the TOML file named
// by EPIPREP_CONFIG, then the environment. Bad values are kept out of the
// result and reported by Validate.
func Load() Config {
	cfg := defaults()
	if path := os.Getenv("EPIPREP_CONFIG"); path != "" {
		cfg.File = path
		if err := cfg.overlayFile(path); err != nil {
			cfg.problems = append(cfg.problems, err)
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("EPIPREP_API_KEY", cfg.APIKey)
	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)

	cfg.OptimizeMarkup = cfg.envFlag("ENABLE_HTML_OPTIMIZATION", cfg.OptimizeMarkup)
	cfg.ReconcileAnnotations = cfg.envFlag("ENABLE_LINK_CLEANUP", cfg.ReconcileAnnotations)
	cfg.CleanupStyles = cfg.envFlag("ENABLE_STYLE_CLEANUP", cfg.CleanupStyles)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)

	cfg.CacheBackend = strings.ToLower(envOr("CACHE_BACKEND", cfg.CacheBackend))
	cfg.CacheTTL = envDuration("CACHE_TTL", cfg.CacheTTL)
	cfg.RedisAddr = envOr("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envOr("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = envInt("REDIS_DB", cfg.RedisDB)

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var f fileConfig
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if f.Port != "" {
		c.Port = f.Port
	}
	if f.APIKey != "" {
		c.APIKey = f.APIKey
	}
	if f.MaxUploadBytes > 0 {
		c.MaxUploadBytes = f.MaxUploadBytes
	}
	if p := f.Preprocess.OptimizeMarkup; p != nil {
		c.OptimizeMarkup = *p
	}
	if p := f.Preprocess.ReconcileAnnotations; p != nil {
		c.ReconcileAnnotations = *p
	}
	if p := f.Preprocess.CleanupStyles; p != nil {
		c.CleanupStyles = *p
	}
	if f.Workers.Count > 0 {
		c.WorkerCount = f.Workers.Count
	}
	if f.Workers.QueueSize > 0 {
		c.MaxQueueSize = f.Workers.QueueSize
	}
	if f.Cache.Backend != "" {
		c.CacheBackend = strings.ToLower(f.Cache.Backend)
	}
	c.RedisAddr = cmpOr(f.Cache.RedisAddr, c.RedisAddr)
	c.RedisPassword = cmpOr(f.Cache.RedisPassword, c.RedisPassword)
	if f.Cache.RedisDB != 0 {
		c.RedisDB = f.Cache.RedisDB
	}

	var errs []error
	if f.Workers.JobTTL != "" {
		d, err := time.ParseDuration(f.Workers.JobTTL)
		if err != nil {
			errs = append(errs, fmt.Errorf("workers.job_ttl: %w", err))
		} else {
			c.JobTTL = d
		}
	}
	if f.Cache.TTL != "" {
		d, err := time.ParseDuration(f.Cache.TTL)
		if err != nil {
			errs = append(errs, fmt.Errorf("cache.ttl: %w", err))
		} else {
			c.CacheTTL = d
		}
	}
	return errors.Join(errs...)
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	errs := append([]error(nil), c.problems...)
	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	switch c.CacheBackend {
	case "memory", "none":
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when CACHE_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be memory, redis or none, got %q", c.CacheBackend))
	}
	// A zero TTL never expires in either backend.
	if c.CacheBackend != "none" && c.CacheTTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	return errors.Join(errs...)
}

// PreprocessOptions returns the stage selection for the pipeline.
func (c Config) PreprocessOptions() preprocess.Options {
	return preprocess.Options{
		OptimizeMarkup:       c.OptimizeMarkup,
		ReconcileAnnotations: c.ReconcileAnnotations,
		CleanupStyles:        c.CleanupStyles,
	}
}

// ParseFlag reads a toggle value. Recognized tokens, in any case and
// surrounded by any whitespace: true, 1, yes, on and false, 0, no, off.
func ParseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidFlag, s)
}

// envFlag reads a toggle; an unset variable keeps fallback and a bad one
// is recorded as a problem.
func (c *Config) envFlag(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := ParseFlag(v)
	if err != nil {
		c.problems = append(c.problems, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func cmpOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func envOr(key, fallback string) string {
	return cmpOr(os.Getenv(key), fallback)
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
