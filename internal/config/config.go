package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the capture loop and the training step need.
type Config struct {
	AssetsDir      string  `yaml:"assets_dir"`
	CascadeFile    string  `yaml:"cascade_file"` // relative paths resolve against AssetsDir
	TrainPrefix    string  `yaml:"train_prefix"`
	DefaultLabel   string  `yaml:"default_label"`
	MaxConfidence  float64 `yaml:"max_confidence"` // lower LBPH distance means a better match
	Camera         int     `yaml:"camera"`
	ModelFile      string  `yaml:"model_file"`
	QuitKey        int     `yaml:"quit_key"`
	WindowTitle    string  `yaml:"window_title"`
	Recording      bool    `yaml:"recording"`
	RecordOnlyFace bool    `yaml:"record_only_face"`

	Database DatabaseConfig `yaml:"database"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AssetsDir:     "assets",
		CascadeFile:   "haarcascade_frontalface_default.xml",
		TrainPrefix:   "TrainFace",
		DefaultLabel:  "Face #1",
		MaxConfidence: 80,
		Camera:        0,
		QuitKey:       27, // Escape
		WindowTitle:   "facecam",
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order. A .env file in the working directory is loaded
// into the environment first if present.
func Load(path string) (*Config, error) {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.AssetsDir = envString("FACECAM_ASSETS", cfg.AssetsDir)
	cfg.CascadeFile = envString("FACECAM_CASCADE", cfg.CascadeFile)
	cfg.ModelFile = envString("FACECAM_MODEL", cfg.ModelFile)
	cfg.Camera = envInt("FACECAM_CAMERA", cfg.Camera)
	cfg.MaxConfidence = envFloat("FACECAM_MAX_CONFIDENCE", cfg.MaxConfidence)

	cfg.Database.URL = envString("DATABASE_URL", cfg.Database.URL)
	cfg.Database.Host = envString("POSTGRES_HOST", cfg.Database.Host)
	cfg.Database.Port = envString("POSTGRES_PORT", cfg.Database.Port)
	cfg.Database.User = envString("POSTGRES_USER", cfg.Database.User)
	cfg.Database.Password = envString("POSTGRES_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = envString("POSTGRES_DB", cfg.Database.Name)
}

// envString returns the environment value for key, or fallback when unset or empty.
func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt reads an environment variable and parses it as a non-negative integer.
// Returns the fallback if the env var is unset, empty, or invalid.
func envInt(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return fallback
}

// CascadePath resolves the cascade file against the assets directory.
func (c *Config) CascadePath() string {
	if filepath.IsAbs(c.CascadeFile) {
		return c.CascadeFile
	}
	return filepath.Join(c.AssetsDir, c.CascadeFile)
}

// ConnString returns the PostgreSQL connection string, or "" when persistence is not configured.
func (d DatabaseConfig) ConnString() string {
	if d.URL != "" {
		return d.URL
	}
	if d.Host == "" {
		return ""
	}
	port := d.Port
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", d.User, d.Password, d.Host, port, d.Name)
}

// Validate rejects settings the capture loop cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.AssetsDir == "" {
		errs = append(errs, errors.New("assets directory must be set"))
	}
	if c.TrainPrefix == "" {
		errs = append(errs, errors.New("training folder prefix must not be empty"))
	}
	if c.MaxConfidence <= 0 {
		errs = append(errs, fmt.Errorf("max confidence must be > 0, got %v", c.MaxConfidence))
	}
	if c.Camera < 0 {
		errs = append(errs, fmt.Errorf("camera index must be >= 0, got %d", c.Camera))
	}
	return errors.Join(errs...)
}
