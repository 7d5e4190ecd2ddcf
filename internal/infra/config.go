package infra

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"

	"mediatools/internal/compose"
	"mediatools/internal/raster"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv       string
	MaxDimension int
	Workers      int
	OutputDir    string
	PresetsPath  string
	JPEGQuality  int
	Background   string
}

// LoadConfig reads .env files when present, then environment variables, and
// applies defaults where needed.
func LoadConfig() (*Config, error) {
	// Missing env files are not an error.
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:       getEnv("APP_ENV", "development"),
		MaxDimension: getEnvInt("MEDIATOOLS_MAX_DIMENSION", compose.DefaultMaxDimension),
		Workers:      getEnvInt("MEDIATOOLS_WORKERS", runtime.NumCPU()),
		OutputDir:    getEnv("MEDIATOOLS_OUTPUT_DIR", "./output"),
		PresetsPath:  getEnv("MEDIATOOLS_PRESETS_PATH", "./mediatools-presets.yaml"),
		JPEGQuality:  getEnvInt("MEDIATOOLS_JPEG_QUALITY", raster.DefaultJPEGQuality),
		Background:   getEnv("MEDIATOOLS_BACKGROUND", "solid:#ffffff"),
	}

	if cfg.MaxDimension <= 0 {
		return nil, fmt.Errorf("MEDIATOOLS_MAX_DIMENSION must be positive, got %d", cfg.MaxDimension)
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("MEDIATOOLS_WORKERS must be positive, got %d", cfg.Workers)
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		return nil, fmt.Errorf("MEDIATOOLS_JPEG_QUALITY must be within 1..100, got %d", cfg.JPEGQuality)
	}
	if _, err := raster.ParseBackground(cfg.Background); err != nil {
		return nil, fmt.Errorf("MEDIATOOLS_BACKGROUND: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
