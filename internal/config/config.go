// Package config loads environment configuration for LensDeck.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr      = "0.0.0.0:8787"
	defaultDataDir         = "./data"
	defaultContainerWidth  = 300
	defaultContainerHeight = 300
	defaultCropInset       = 15
	defaultLensDelayMs     = 1000
	defaultHistoryLimit    = 6
	defaultMaxUploadMB     = 10
	defaultMaxUploadPixels = 40_000_000
	defaultHandleSize      = 30
	defaultMJPEGEnabled    = true
	defaultMJPEGIntervalMs = 120
	defaultMJPEGQuality    = 60
	defaultViewerPolicy    = "reject"

	// minContainerSide is twice the minimum crop side.
	minContainerSide = 100
)

// Config holds runtime configuration values.
type Config struct {
	ListenAddr      string
	PasswordMode    bool
	UIPassword      string
	DataDir         string
	HistoryPath     string
	CatalogPath     string
	ContainerWidth  float64
	ContainerHeight float64
	CropInset       float64
	LensDelayMs     int
	HistoryLimit    int
	MaxUploadMB     int
	MaxUploadPixels int64
	HandleSize      float64
	MJPEGEnabled    bool
	MJPEGIntervalMs int
	MJPEGQuality    int
	ViewerPolicy    string
}

// LensDelay returns the simulated lens round trip.
func (c Config) LensDelay() time.Duration {
	return time.Duration(c.LensDelayMs) * time.Millisecond
}

// MJPEGInterval returns the minimum delay between preview frames.
func (c Config) MJPEGInterval() time.Duration {
	return time.Duration(c.MJPEGIntervalMs) * time.Millisecond
}

// MaxUploadBytes returns the photo upload limit in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Load reads configuration from ./data/.env and environment variables.
func Load() (Config, error) {
	if err := loadEnvFile(filepath.Join(defaultDataDir, ".env")); err != nil {
		return Config{}, err
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (Config, error) {
	cfg := Config{
		ListenAddr:      defaultListenAddr,
		DataDir:         defaultDataDir,
		ContainerWidth:  defaultContainerWidth,
		ContainerHeight: defaultContainerHeight,
		CropInset:       defaultCropInset,
		LensDelayMs:     defaultLensDelayMs,
		HistoryLimit:    defaultHistoryLimit,
		MaxUploadMB:     defaultMaxUploadMB,
		MaxUploadPixels: defaultMaxUploadPixels,
		HandleSize:      defaultHandleSize,
		MJPEGEnabled:    defaultMJPEGEnabled,
		MJPEGIntervalMs: defaultMJPEGIntervalMs,
		MJPEGQuality:    defaultMJPEGQuality,
		ViewerPolicy:    defaultViewerPolicy,
	}

	cfg.ListenAddr = envString("LISTEN_ADDR", cfg.ListenAddr)
	cfg.DataDir = envString("DATA_DIR", cfg.DataDir)
	cfg.HistoryPath = envString("HISTORY_PATH", filepath.Join(cfg.DataDir, "history.json"))
	cfg.CatalogPath = envString("CATALOG_PATH", "")
	cfg.PasswordMode = envBool("PASSWORD_MODE", false)
	cfg.UIPassword = strings.TrimSpace(os.Getenv("UI_PASSWORD"))
	cfg.ViewerPolicy = normalizeViewerPolicy(envString("VIEWER_POLICY", cfg.ViewerPolicy))

	width, err := envFloat("CONTAINER_WIDTH", cfg.ContainerWidth)
	if err != nil {
		return Config{}, err
	}
	height, err := envFloat("CONTAINER_HEIGHT", cfg.ContainerHeight)
	if err != nil {
		return Config{}, err
	}
	if width < minContainerSide || height < minContainerSide {
		return Config{}, fmt.Errorf("CONTAINER_WIDTH and CONTAINER_HEIGHT must be >= %d", minContainerSide)
	}
	cfg.ContainerWidth = width
	cfg.ContainerHeight = height

	inset, err := envFloat("CROP_INSET", cfg.CropInset)
	if err != nil {
		return Config{}, err
	}
	if inset < 0 || width-2*inset < minContainerSide/2 || height-2*inset < minContainerSide/2 {
		return Config{}, fmt.Errorf("CROP_INSET leaves no room for the crop box")
	}
	cfg.CropInset = inset

	delay, err := envInt("LENS_DELAY_MS", cfg.LensDelayMs)
	if err != nil {
		return Config{}, err
	}
	if delay < 0 {
		return Config{}, fmt.Errorf("LENS_DELAY_MS must be >= 0")
	}
	cfg.LensDelayMs = delay

	limit, err := envInt("HISTORY_LIMIT", cfg.HistoryLimit)
	if err != nil {
		return Config{}, err
	}
	if limit <= 0 {
		return Config{}, fmt.Errorf("HISTORY_LIMIT must be > 0")
	}
	cfg.HistoryLimit = limit

	maxUpload, err := envInt("MAX_UPLOAD_MB", cfg.MaxUploadMB)
	if err != nil {
		return Config{}, err
	}
	if maxUpload <= 0 {
		return Config{}, fmt.Errorf("MAX_UPLOAD_MB must be > 0")
	}
	cfg.MaxUploadMB = maxUpload

	maxPixels, err := envInt("MAX_UPLOAD_PIXELS", int(cfg.MaxUploadPixels))
	if err != nil {
		return Config{}, err
	}
	if maxPixels <= 0 {
		return Config{}, fmt.Errorf("MAX_UPLOAD_PIXELS must be > 0")
	}
	cfg.MaxUploadPixels = int64(maxPixels)

	handle, err := envFloat("HANDLE_SIZE", cfg.HandleSize)
	if err != nil {
		return Config{}, err
	}
	if handle <= 0 || handle > minContainerSide/2 {
		return Config{}, fmt.Errorf("HANDLE_SIZE must be in (0, %d]", minContainerSide/2)
	}
	cfg.HandleSize = handle

	cfg.MJPEGEnabled = envBool("MJPEG_ENABLED", cfg.MJPEGEnabled)

	mjpegInterval, err := envInt("MJPEG_INTERVAL_MS", cfg.MJPEGIntervalMs)
	if err != nil {
		return Config{}, err
	}
	if mjpegInterval < 0 {
		return Config{}, fmt.Errorf("MJPEG_INTERVAL_MS must be >= 0")
	}
	cfg.MJPEGIntervalMs = mjpegInterval

	mjpegQuality, err := envInt("MJPEG_QUALITY", cfg.MJPEGQuality)
	if err != nil {
		return Config{}, err
	}
	if mjpegQuality <= 0 || mjpegQuality > 100 {
		return Config{}, fmt.Errorf("MJPEG_QUALITY must be 1-100")
	}
	cfg.MJPEGQuality = mjpegQuality

	if cfg.PasswordMode && cfg.UIPassword == "" {
		return Config{}, errors.New("UI_PASSWORD is required when PASSWORD_MODE is on")
	}
	if !cfg.PasswordMode {
		cfg.UIPassword = ""
	}

	return cfg, nil
}

// normalizeViewerPolicy ensures a supported viewer policy value.
func normalizeViewerPolicy(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "replace":
		return "replace"
	default:
		return "reject"
	}
}

// envString returns an env override when present, otherwise a default.
func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt returns an int env override when present, otherwise a default.
func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

// envFloat returns a float env override when present, otherwise a default.
func envFloat(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return value, nil
}

// envBool returns a bool env override when present, otherwise a default.
func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// loadEnvFile loads KEY=VALUE pairs from a .env file.
func loadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := parseEnvLine(line)
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); !exists {
			if err := os.Setenv(key, value); err != nil {
				return err
			}
		}
	}

	return nil
}

// parseEnvLine parses a single .env line into key/value.
func parseEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	if strings.HasPrefix(line, "export ") {
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	}
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	key := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])
	if key == "" {
		return "", "", false
	}
	value = strings.Trim(value, `"'`)
	return key, value, true
}
