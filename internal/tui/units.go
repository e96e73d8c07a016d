package tui

import (
	"fmt"

	"planner/internal/config"
)

const (
	metersPerMile = 1609.34
	metersPerKm   = 1000.0
	feetPerMeter  = 3.28084
)

// Units provides unit conversion and formatting based on user preferences
type Units struct {
	cfg config.DisplayConfig
}

// NewUnits creates a new Units helper with the given display config
func NewUnits(cfg config.DisplayConfig) Units {
	return Units{cfg: cfg}
}

// FormatDistance formats a distance in meters to the user's preferred unit
func (u Units) FormatDistance(meters float64) string {
	switch u.cfg.DistanceUnit {
	case "mi":
		return fmt.Sprintf("%.1f mi", meters/metersPerMile)
	case "m":
		return fmt.Sprintf("%.0f m", meters)
	default:
		return fmt.Sprintf("%.1f km", meters/metersPerKm)
	}
}

// FormatElevation formats an elevation in meters
func (u Units) FormatElevation(meters float64) string {
	if u.cfg.ElevationUnit == "ft" {
		return fmt.Sprintf("%.0f ft", meters*feetPerMeter)
	}
	return fmt.Sprintf("%.0f m", meters)
}

// FormatSpeed formats a speed in m/s as km/h or mph
func (u Units) FormatSpeed(mps float64) string {
	if u.cfg.DistanceUnit == "mi" {
		return fmt.Sprintf("%.1f mph", mps*3600/metersPerMile)
	}
	return fmt.Sprintf("%.1f km/h", mps*3.6)
}

// FormatChannel formats a reading of a telemetry channel
func (u Units) FormatChannel(name string, v float64) string {
	switch name {
	case "heart_rate":
		return fmt.Sprintf("%.0f bpm", v)
	case "power":
		return fmt.Sprintf("%.0f W", v)
	case "cadence":
		return fmt.Sprintf("%.0f rpm", v)
	case "speed":
		return u.FormatSpeed(v)
	case "distance":
		return u.FormatDistance(v)
	case "altitude":
		return u.FormatElevation(v)
	}
	return fmt.Sprintf("%.1f", v)
}

// DistanceLabel returns the short unit label
func (u Units) DistanceLabel() string {
	switch u.cfg.DistanceUnit {
	case "mi", "m":
		return u.cfg.DistanceUnit
	}
	return "km"
}

// formatDuration formats seconds as h:mm:ss, or m:ss under an hour
func formatDuration(seconds float64) string {
	s := int(seconds + 0.5)
	h, m := s/3600, (s%3600)/60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s%60)
	}
	return fmt.Sprintf("%d:%02d", m, s%60)
}

// formatMinutes formats a duration in minutes as "1h 05m" or "45m"
func formatMinutes(minutes float64) string {
	total := int(minutes + 0.5)
	if total >= 60 {
		return fmt.Sprintf("%dh %02dm", total/60, total%60)
	}
	return fmt.Sprintf("%dm", total)
}
