package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Strava  StravaConfig  `mapstructure:"strava" json:"strava"`
	Athlete AthleteConfig `mapstructure:"athlete" json:"athlete"`
	Display DisplayConfig `mapstructure:"display" json:"display"`
}

// StravaConfig holds Strava API credentials
type StravaConfig struct {
	ClientID     string `mapstructure:"client_id" json:"client_id"`
	ClientSecret string `mapstructure:"client_secret" json:"client_secret"`
}

// AthleteConfig holds athlete-specific settings
type AthleteConfig struct {
	FTP FTPConfig `mapstructure:"ftp" json:"ftp"`
}

// FTPConfig holds functional threshold power per sport, in watts.
// Zero means unknown.
type FTPConfig struct {
	Ride     float64 `mapstructure:"ride" json:"ride"`
	Run      float64 `mapstructure:"run" json:"run"`
	Swim     float64 `mapstructure:"swim" json:"swim"`
	Row      float64 `mapstructure:"row" json:"row"`
	Strength float64 `mapstructure:"strength" json:"strength"`
	Other    float64 `mapstructure:"other" json:"other"`
}

// FTP bounds; configured values outside are clamped
const (
	MinFTP = 50
	MaxFTP = 600
)

// FTPFor returns the sanitized FTP for a sport key, or 0 when none is set.
func (f FTPConfig) FTPFor(sportKey string) float64 {
	var v float64
	switch sportKey {
	case "ride":
		v = f.Ride
	case "run":
		v = f.Run
	case "swim":
		v = f.Swim
	case "row":
		v = f.Row
	case "strength":
		v = f.Strength
	default:
		v = f.Other
	}
	return SanitizeFTP(v)
}

// SanitizeFTP maps non-positive values to 0 and clamps the rest to [MinFTP, MaxFTP].
func SanitizeFTP(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return max(MinFTP, min(MaxFTP, v))
}

// DisplayConfig holds display preferences
type DisplayConfig struct {
	DistanceUnit  string `mapstructure:"distance_unit" json:"distance_unit"`
	ElevationUnit string `mapstructure:"elevation_unit" json:"elevation_unit"`
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

// EnvPrefix prefixes environment overrides, e.g. PLANNER_ATHLETE_FTP_RIDE
const EnvPrefix = "PLANNER"

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Display: DisplayConfig{
			DistanceUnit:  "km",
			ElevationUnit: "m",
		},
	}
}

// Load reads the configuration from ~/.planner/config.json
func Load() (*Config, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom reads config.json from dir. Environment variables override file values.
func LoadFrom(dir string) (*Config, error) {
	path := filepath.Join(dir, "config.json")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ErrNoConfig
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Empty strings in the file fall back to defaults
	defaults := DefaultConfig()
	if cfg.Display.DistanceUnit == "" {
		cfg.Display.DistanceUnit = defaults.Display.DistanceUnit
	}
	if cfg.Display.ElevationUnit == "" {
		cfg.Display.ElevationUnit = defaults.Display.ElevationUnit
	}

	return &cfg, nil
}

// newViper returns a viper instance with defaults registered for every key,
// so that AutomaticEnv can override any of them.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("strava.client_id", d.Strava.ClientID)
	v.SetDefault("strava.client_secret", d.Strava.ClientSecret)
	v.SetDefault("athlete.ftp.ride", d.Athlete.FTP.Ride)
	v.SetDefault("athlete.ftp.run", d.Athlete.FTP.Run)
	v.SetDefault("athlete.ftp.swim", d.Athlete.FTP.Swim)
	v.SetDefault("athlete.ftp.row", d.Athlete.FTP.Row)
	v.SetDefault("athlete.ftp.strength", d.Athlete.FTP.Strength)
	v.SetDefault("athlete.ftp.other", d.Athlete.FTP.Other)
	v.SetDefault("display.distance_unit", d.Display.DistanceUnit)
	v.SetDefault("display.elevation_unit", d.Display.ElevationUnit)
	return v
}

// Save writes the configuration to ~/.planner/config.json
func Save(cfg *Config) error {
	dir, err := GetConfigDir()
	if err != nil {
		return err
	}
	return SaveTo(dir, cfg)
}

// SaveTo writes the configuration to config.json in dir
func SaveTo(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample creates an example config file in dir if none exists
func CreateExample(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, "config.json")); err == nil {
		return nil // Config exists, don't overwrite
	}

	example := DefaultConfig()
	example.Strava = StravaConfig{
		ClientID:     "YOUR_CLIENT_ID",
		ClientSecret: "YOUR_CLIENT_SECRET",
	}
	example.Athlete.FTP = FTPConfig{Ride: 250, Run: 300}

	return SaveTo(dir, &example)
}

// Validate checks units and FTP values
func (c *Config) Validate() error {
	switch c.Display.DistanceUnit {
	case "", "km", "mi", "m":
	default:
		return fmt.Errorf("display.distance_unit must be \"km\", \"mi\" or \"m\", got %q", c.Display.DistanceUnit)
	}
	switch c.Display.ElevationUnit {
	case "", "m", "ft":
	default:
		return fmt.Errorf("display.elevation_unit must be \"m\" or \"ft\", got %q", c.Display.ElevationUnit)
	}

	ftp := map[string]float64{
		"ride": c.Athlete.FTP.Ride, "run": c.Athlete.FTP.Run, "swim": c.Athlete.FTP.Swim,
		"row": c.Athlete.FTP.Row, "strength": c.Athlete.FTP.Strength, "other": c.Athlete.FTP.Other,
	}
	for sport, v := range ftp {
		if v < 0 {
			return fmt.Errorf("athlete.ftp.%s must not be negative, got %v", sport, v)
		}
	}

	return nil
}

// ValidateStrava checks that Strava credentials are present
func (c *Config) ValidateStrava() error {
	if c.Strava.ClientID == "" || c.Strava.ClientID == "YOUR_CLIENT_ID" {
		return errors.New("strava.client_id is required - get it from https://www.strava.com/settings/api")
	}
	if c.Strava.ClientSecret == "" || c.Strava.ClientSecret == "YOUR_CLIENT_SECRET" {
		return errors.New("strava.client_secret is required - get it from https://www.strava.com/settings/api")
	}
	return nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".planner"), nil
}
