package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/plate-roaster/internal/log"
)

// Roast backends
const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
	BackendStatic = "static"
	BackendRemote = "remote"
)

// Config holds the application configuration
type Config struct {
	Capture     CaptureConfig     `json:"capture" yaml:"capture"`
	Compression CompressionConfig `json:"compression" yaml:"compression"`
	Composite   CompositeConfig   `json:"composite" yaml:"composite"`
	Roast       RoastConfig       `json:"roast" yaml:"roast"`
	Server      ServerConfig      `json:"server" yaml:"server"`
	Share       ShareConfig       `json:"share" yaml:"share"`
	Log         log.Options       `json:"log" yaml:"log"`
}

// CaptureConfig holds the camera capture settings
type CaptureConfig struct {
	GuideDiameter       float64 `json:"guide_diameter" yaml:"guide_diameter"`
	Quality             int     `json:"quality" yaml:"quality"`
	ErrorDismissDelayMs int     `json:"error_dismiss_delay_ms" yaml:"error_dismiss_delay_ms"`
	FacingMode          string  `json:"facing_mode" yaml:"facing_mode"`
	IdealWidth          int     `json:"ideal_width" yaml:"ideal_width"`
	IdealHeight         int     `json:"ideal_height" yaml:"ideal_height"`
}

// CompressionConfig bounds photos before upload
type CompressionConfig struct {
	MaxDimension int `json:"max_dimension" yaml:"max_dimension"`
	Quality      int `json:"quality" yaml:"quality"`
}

// CompositeConfig controls the share image
type CompositeConfig struct {
	Width       float64           `json:"width" yaml:"width"`
	Height      float64           `json:"height" yaml:"height"`
	Density     float64           `json:"density" yaml:"density"`
	Quality     int               `json:"quality" yaml:"quality"`
	Backgrounds map[string]string `json:"backgrounds" yaml:"backgrounds"`
	Logo        string            `json:"logo" yaml:"logo"`
	Watermark   string            `json:"watermark" yaml:"watermark"`
}

// RoastConfig selects and tunes the roast backend
type RoastConfig struct {
	Backend        string  `json:"backend" yaml:"backend"`
	URL            string  `json:"url" yaml:"url"`
	Model          string  `json:"model" yaml:"model"`
	APIKeyEnv      string  `json:"api_key_env" yaml:"api_key_env"`
	RatingMax      float64 `json:"rating_max" yaml:"rating_max"`
	RatingScale    int     `json:"rating_scale" yaml:"rating_scale"`
	MinLoadingMs   int     `json:"min_loading_ms" yaml:"min_loading_ms"`
	TimeoutSeconds int     `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// ServerConfig holds the roast HTTP function settings
type ServerConfig struct {
	Addr              string `json:"addr" yaml:"addr"`
	RequestsPerMinute int    `json:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int    `json:"burst" yaml:"burst"`
	MaxBodyBytes      int64  `json:"max_body_bytes" yaml:"max_body_bytes"`
}

// ShareConfig holds the share hand-off settings
type ShareConfig struct {
	DeepLink        string `json:"deep_link" yaml:"deep_link"`
	WebFallback     string `json:"web_fallback" yaml:"web_fallback"`
	FallbackDelayMs int    `json:"fallback_delay_ms" yaml:"fallback_delay_ms"`
	OutputDir       string `json:"output_dir" yaml:"output_dir"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			GuideDiameter:       280,
			Quality:             90,
			ErrorDismissDelayMs: 2000,
			FacingMode:          "environment",
			IdealWidth:          1920,
			IdealHeight:         1080,
		},
		Compression: CompressionConfig{
			MaxDimension: 1000,
			Quality:      70,
		},
		Composite: CompositeConfig{
			Width:   390,
			Height:  844,
			Density: 2,
			Quality: 100,
			Backgrounds: map[string]string{
				"LOW":    "builtin:low",
				"MEDIUM": "builtin:medium",
				"HIGH":   "builtin:high",
			},
			Watermark: "ROASTMYPLATE.APP",
		},
		Roast: RoastConfig{
			Backend:        BackendOpenAI,
			Model:          "gpt-4o",
			APIKeyEnv:      "OPENAI_API_KEY",
			RatingMax:      3.8,
			RatingScale:    10,
			MinLoadingMs:   1500,
			TimeoutSeconds: 120,
		},
		Server: ServerConfig{
			Addr:              ":8888",
			RequestsPerMinute: 30,
			Burst:             5,
			MaxBodyBytes:      10 << 20,
		},
		Share: ShareConfig{
			DeepLink:        "instagram://story-camera",
			WebFallback:     "https://www.instagram.com/",
			FallbackDelayMs: 1000,
			OutputDir:       ".",
		},
	}
}

func isYAML(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadFromFile loads configuration from a JSON or YAML file. Fields absent
// from the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(filename) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration as JSON, or YAML for .yaml/.yml names
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(filename) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Capture.GuideDiameter <= 0 {
		return fmt.Errorf("capture.guide_diameter must be positive")
	}
	if c.Capture.Quality < 1 || c.Capture.Quality > 100 {
		return fmt.Errorf("capture.quality must be between 1 and 100")
	}
	if c.Capture.ErrorDismissDelayMs < 0 {
		return fmt.Errorf("capture.error_dismiss_delay_ms cannot be negative")
	}

	if c.Compression.MaxDimension < 1 {
		return fmt.Errorf("compression.max_dimension must be positive")
	}
	if c.Compression.Quality < 1 || c.Compression.Quality > 100 {
		return fmt.Errorf("compression.quality must be between 1 and 100")
	}

	if c.Composite.Width <= 0 || c.Composite.Height <= 0 {
		return fmt.Errorf("composite.width and composite.height must be positive")
	}
	if c.Composite.Density < 1 {
		return fmt.Errorf("composite.density must be at least 1")
	}
	if c.Composite.Quality < 1 || c.Composite.Quality > 100 {
		return fmt.Errorf("composite.quality must be between 1 and 100")
	}

	switch c.Roast.Backend {
	case BackendOpenAI, BackendOllama, BackendStatic:
	case BackendRemote:
		if c.Roast.URL == "" {
			return fmt.Errorf("roast.url is required for the remote backend")
		}
	default:
		return fmt.Errorf("roast.backend must be one of openai, ollama, static, remote (got %q)", c.Roast.Backend)
	}
	if c.Roast.RatingMax <= 0 {
		return fmt.Errorf("roast.rating_max must be positive")
	}
	if c.Roast.RatingScale < 1 || float64(c.Roast.RatingScale) < c.Roast.RatingMax {
		return fmt.Errorf("roast.rating_scale must be at least roast.rating_max")
	}
	if c.Roast.MinLoadingMs < 0 || c.Roast.TimeoutSeconds < 0 {
		return fmt.Errorf("roast.min_loading_ms and roast.timeout_seconds cannot be negative")
	}

	if c.Server.RequestsPerMinute < 0 || c.Server.Burst < 0 {
		return fmt.Errorf("server.requests_per_minute and server.burst cannot be negative")
	}
	if c.Server.MaxBodyBytes < 1 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}

	if c.Share.FallbackDelayMs < 0 {
		return fmt.Errorf("share.fallback_delay_ms cannot be negative")
	}

	return nil
}

// APIKey returns the roast backend API key from the configured environment variable
func (c *Config) APIKey() string {
	if c.Roast.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Roast.APIKeyEnv)
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "plate-roaster", "config.json")
}
