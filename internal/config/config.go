package config

import (
	"encoding/json"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/menta2k/geostamp/pkg/annotate"
	"github.com/menta2k/geostamp/pkg/codec"
	"github.com/menta2k/geostamp/pkg/maptile"
	"github.com/menta2k/geostamp/pkg/store"
)

// EnvPrefix prefixes environment overrides, e.g. GEOSTAMP_MAP_API_KEY
const EnvPrefix = "GEOSTAMP"

// Map providers
const (
	ProviderNone   = "none"
	ProviderStatic = "static"
	ProviderTiles  = "tiles"
)

// Config holds the application configuration
type Config struct {
	Annotation AnnotationConfig `json:"annotation" mapstructure:"annotation"`
	Map        MapConfig        `json:"map" mapstructure:"map"`
	Output     OutputConfig     `json:"output" mapstructure:"output"`
	Server     ServerConfig     `json:"server" mapstructure:"server"`
}

// AnnotationConfig holds the stamp style
type AnnotationConfig struct {
	PanelAlpha       int     `json:"panel_alpha" mapstructure:"panel_alpha"`
	ReserveMapColumn bool    `json:"reserve_map_column" mapstructure:"reserve_map_column"`
	MapScale         float64 `json:"map_scale" mapstructure:"map_scale"`
	MapFrame         bool    `json:"map_frame" mapstructure:"map_frame"`
	MapFrameMargin   int     `json:"map_frame_margin" mapstructure:"map_frame_margin"`
	MapCornerRadius  int     `json:"map_corner_radius" mapstructure:"map_corner_radius"`
	FontPath         string  `json:"font_path" mapstructure:"font_path"`
}

// MapConfig selects and configures the map thumbnail source
type MapConfig struct {
	Provider  string        `json:"provider" mapstructure:"provider"`
	URL       string        `json:"url" mapstructure:"url"`
	APIKey    string        `json:"api_key" mapstructure:"api_key"`
	Zoom      int           `json:"zoom" mapstructure:"zoom"`
	Size      int           `json:"size" mapstructure:"size"`
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
	UserAgent string        `json:"user_agent" mapstructure:"user_agent"`
}

// OutputConfig holds configuration for encoding and persisting captures
type OutputConfig struct {
	Format   string `json:"format" mapstructure:"format"`
	Quality  int    `json:"quality" mapstructure:"quality"`
	Lossless bool   `json:"lossless" mapstructure:"lossless"`
	Dir      string `json:"dir" mapstructure:"dir"`
	Suffix   string `json:"suffix" mapstructure:"suffix"`
}

// ServerConfig holds the HTTP service settings
type ServerConfig struct {
	Bind     string        `json:"bind" mapstructure:"bind"`
	Port     int           `json:"port" mapstructure:"port"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxBytes int64         `json:"max_bytes" mapstructure:"max_bytes"`
}

// Default returns a configuration with default values
func Default() *Config {
	style := annotate.DefaultConfig()
	return &Config{
		Annotation: AnnotationConfig{
			PanelAlpha:       int(style.PanelAlpha),
			ReserveMapColumn: style.ReserveMapColumn,
			MapScale:         style.MapScale,
			MapFrame:         style.MapFrame,
			MapFrameMargin:   style.MapFrameMargin,
			MapCornerRadius:  style.MapCornerRadius,
		},
		Map: MapConfig{
			Provider:  ProviderNone,
			Zoom:      maptile.DefaultZoom,
			Size:      maptile.DefaultSize,
			Timeout:   10 * time.Second,
			UserAgent: maptile.DefaultUserAgent,
		},
		Output: OutputConfig{
			Format:  string(codec.JPEG),
			Quality: 100,
			Dir:     "./" + store.DefaultDir,
			Suffix:  "_stamped",
		},
		Server: ServerConfig{
			Bind:     "localhost",
			Port:     8080,
			Timeout:  30 * time.Second,
			MaxBytes: 32 << 20,
		},
	}
}

// SetDefaults registers every key with v so env overrides are picked up
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("annotation.panel_alpha", d.Annotation.PanelAlpha)
	v.SetDefault("annotation.reserve_map_column", d.Annotation.ReserveMapColumn)
	v.SetDefault("annotation.map_scale", d.Annotation.MapScale)
	v.SetDefault("annotation.map_frame", d.Annotation.MapFrame)
	v.SetDefault("annotation.map_frame_margin", d.Annotation.MapFrameMargin)
	v.SetDefault("annotation.map_corner_radius", d.Annotation.MapCornerRadius)
	v.SetDefault("annotation.font_path", d.Annotation.FontPath)

	v.SetDefault("map.provider", d.Map.Provider)
	v.SetDefault("map.url", d.Map.URL)
	v.SetDefault("map.api_key", d.Map.APIKey)
	v.SetDefault("map.zoom", d.Map.Zoom)
	v.SetDefault("map.size", d.Map.Size)
	v.SetDefault("map.timeout", d.Map.Timeout)
	v.SetDefault("map.user_agent", d.Map.UserAgent)

	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.quality", d.Output.Quality)
	v.SetDefault("output.lossless", d.Output.Lossless)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.suffix", d.Output.Suffix)

	v.SetDefault("server.bind", d.Server.Bind)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.timeout", d.Server.Timeout)
	v.SetDefault("server.max_bytes", d.Server.MaxBytes)
}

// Load reads a configuration file (JSON, YAML or TOML by extension),
// GEOSTAMP_* environment variables and a .env file in the working
// directory. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	}
	return LoadViper(v)
}

// LoadViper decodes the configuration held by v, which may already carry
// bound flags and a config file location
func LoadViper(v *viper.Viper) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Annotation.PanelAlpha < 0 || c.Annotation.PanelAlpha > 255 {
		return fmt.Errorf("annotation.panel_alpha must be between 0 and 255")
	}
	if err := c.AnnotateConfig().Validate(); err != nil {
		return fmt.Errorf("annotation: %w", err)
	}

	switch c.Map.Provider {
	case ProviderNone, ProviderStatic, ProviderTiles:
	default:
		return fmt.Errorf("map.provider must be one of none, static, tiles; got %q", c.Map.Provider)
	}
	if c.Map.Zoom < 1 || c.Map.Zoom > 20 {
		return fmt.Errorf("map.zoom must be between 1 and 20")
	}
	if c.Map.Size < 1 || c.Map.Size > 2048 {
		return fmt.Errorf("map.size must be between 1 and 2048")
	}
	if c.Map.Timeout < 0 {
		return fmt.Errorf("map.timeout must not be negative")
	}

	if _, err := codec.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.MaxBytes <= 0 {
		return fmt.Errorf("server.max_bytes must be positive")
	}
	return nil
}

// AnnotateConfig converts the annotation section into a compositor style
func (c *Config) AnnotateConfig() annotate.Config {
	a := c.Annotation
	return annotate.Config{
		PanelAlpha:       uint8(a.PanelAlpha),
		ReserveMapColumn: a.ReserveMapColumn,
		MapScale:         a.MapScale,
		MapFrame:         a.MapFrame,
		MapFrameMargin:   a.MapFrameMargin,
		MapCornerRadius:  a.MapCornerRadius,
		FontPath:         a.FontPath,
		TextColor:        color.White,
	}
}

// MapProvider builds the configured map thumbnail source
func (c *Config) MapProvider(logger *log.Logger) maptile.Provider {
	mc := maptile.Config{
		URL:       c.Map.URL,
		APIKey:    c.Map.APIKey,
		Zoom:      c.Map.Zoom,
		Size:      c.Map.Size,
		Timeout:   c.Map.Timeout,
		UserAgent: c.Map.UserAgent,
		Logger:    logger,
	}
	switch c.Map.Provider {
	case ProviderStatic:
		return maptile.NewStaticProvider(mc)
	case ProviderTiles:
		return maptile.NewTileProvider(mc)
	}
	return maptile.Noop{}
}

// OutputOptions returns the encoder settings for stamped images
func (c *Config) OutputOptions() codec.Options {
	format, err := codec.ParseFormat(c.Output.Format)
	if err != nil {
		format = codec.JPEG
	}
	return codec.Options{Format: format, Quality: c.Output.Quality, Lossless: c.Output.Lossless}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.geostamp.json"
	}
	return filepath.Join(home, ".geostamp.json")
}
