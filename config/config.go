package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"heartrisk/ml"
)

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"http"`
	Model struct {
		Path         string `yaml:"path"`
		Type         string `yaml:"type"`
		FeatureCount int    `yaml:"feature_count"`
		CacheSize    int    `yaml:"cache_size"`
	} `yaml:"model"`
	PredictionLog struct {
		Path       string `yaml:"path"`
		Fsync      bool   `yaml:"fsync"`
		Watch      bool   `yaml:"watch"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"prediction_log"`
	Log struct {
		Level       string `yaml:"level"`
		File        string `yaml:"file"`
		MaxSizeMB   int    `yaml:"max_size_mb"`
		MaxBackups  int    `yaml:"max_backups"`
		MaxAgeDays  int    `yaml:"max_age_days"`
		Compress    bool   `yaml:"compress"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

// Default returns the settings used when no config file is present.
func Default() Config {
	var cfg Config
	cfg.Http.Port = 5000
	cfg.Http.ReadTimeout = 15 * time.Second
	cfg.Http.WriteTimeout = 15 * time.Second
	cfg.Http.MaxBodyBytes = 1 << 20
	cfg.Model.Path = "models/final_heart_model.json"
	cfg.Model.FeatureCount = ml.FeatureCount
	cfg.PredictionLog.Path = "prediction_logs.csv"
	cfg.PredictionLog.Watch = true
	cfg.Log.Level = "info"
	cfg.Log.MaxSizeMB = 100
	cfg.Log.MaxBackups = 5
	cfg.Log.MaxAgeDays = 30
	return cfg
}

// ResolvePath picks the config file: explicit flag, then CONFIG_PATH, then
// config.yaml in the working directory or its parent.
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	configPath := "config.yaml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if _, err := os.Stat(filepath.Join("..", configPath)); err == nil {
			return filepath.Join("..", configPath)
		}
	}
	return configPath
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		cfg.resolveRelative(filepath.Dir(path))
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, err
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// resolveRelative makes file paths in the config relative to the config's own
// directory rather than the working directory.
func (c *Config) resolveRelative(dir string) {
	if dir == "." || dir == "" {
		return
	}
	for _, p := range []*string{&c.Model.Path, &c.PredictionLog.Path, &c.PredictionLog.SQLitePath, &c.Log.File} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HEARTRISK_PORT"); v != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("HEARTRISK_PORT: %w", err)
		}
		c.Http.Port = port
	}
	envOverride(&c.Model.Path, "HEARTRISK_MODEL_PATH")
	envOverride(&c.PredictionLog.Path, "HEARTRISK_LOG_PATH")
	envOverride(&c.PredictionLog.SQLitePath, "HEARTRISK_SQLITE_PATH")
	envOverride(&c.Log.Level, "HEARTRISK_LOG_LEVEL")
	return nil
}

func envOverride(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func (c Config) Validate() error {
	var problems []string
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		problems = append(problems, fmt.Sprintf("http.port %d out of range", c.Http.Port))
	}
	if c.Http.MaxBodyBytes <= 0 {
		problems = append(problems, "http.max_body_bytes must be positive")
	}
	if c.Model.Path == "" {
		problems = append(problems, "model.path is required")
	}
	if c.Model.FeatureCount < 0 {
		problems = append(problems, "model.feature_count must not be negative")
	}
	if c.Model.CacheSize < 0 {
		problems = append(problems, "model.cache_size must not be negative")
	}
	if c.PredictionLog.Path == "" {
		problems = append(problems, "prediction_log.path is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
