package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigPath is the path to the canonical tracker defaults file.
const DefaultConfigPath = "config/tracker.defaults.json"

// Feature-point selection policies.
const (
	PolicyInterpolated = "interpolated"
	PolicyNearest      = "nearest"
)

// Foreground polarities.
const (
	ForegroundBelow = "below"
	ForegroundAbove = "above"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid tracker configuration")

// OSCConfig is the network destination of emitted messages.
type OSCConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns host:port.
func (o OSCConfig) Addr() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

// SerialConfig optionally mirrors emitted messages onto a serial line.
// An empty Device disables the serial sink.
type SerialConfig struct {
	Device   string `json:"device,omitempty"`
	BaudRate int    `json:"baud_rate,omitempty"`
	DataBits int    `json:"data_bits,omitempty"`
	StopBits int    `json:"stop_bits,omitempty"`
	Parity   string `json:"parity,omitempty"`
}

// SensorConfig describes the depth sensor the tracker reads from.
type SensorConfig struct {
	ID     int `json:"id"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TrackerConfig is the complete set of tracking parameters. The pipeline
// reads one snapshot of it per tick and never writes to it.
type TrackerConfig struct {
	// Segmentation
	Threshold  int     `json:"threshold"`
	Foreground string  `json:"foreground"`
	NearClip   float64 `json:"near_clip"`
	FarClip    float64 `json:"far_clip"`
	AreaMin    int     `json:"area_min"`
	AreaMax    int     `json:"area_max"`
	MaxBlobs   int     `json:"max_blobs"`

	// Feature selection
	Policy                string  `json:"policy"`
	HighestPointBand      float64 `json:"highest_point_band"`
	InterpolationFraction float64 `json:"interpolation_fraction"`
	NearestMaxValue       int     `json:"nearest_max_value"`

	// Transform
	NormalizeX bool    `json:"normalize_x"`
	NormalizeY bool    `json:"normalize_y"`
	NormalizeZ bool    `json:"normalize_z"`
	ScaleX     bool    `json:"scale_x"`
	ScaleY     bool    `json:"scale_y"`
	ScaleZ     bool    `json:"scale_z"`
	ScaleXAmt  float64 `json:"scale_x_amt"`
	ScaleYAmt  float64 `json:"scale_y_amt"`
	ScaleZAmt  float64 `json:"scale_z_amt"`

	// Emission
	Address string       `json:"address"`
	OSC     OSCConfig    `json:"osc"`
	Serial  SerialConfig `json:"serial"`

	Sensor    SensorConfig `json:"sensor"`
	FrameRate float64      `json:"frame_rate"`
}

// DefaultTrackerConfig returns the head-tracking preset.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		Threshold:  160,
		Foreground: ForegroundBelow,
		NearClip:   500,
		FarClip:    4000,
		AreaMin:    3000,
		AreaMax:    640 * 480 / 2,
		MaxBlobs:   1,

		Policy:                PolicyInterpolated,
		HighestPointBand:      50,
		InterpolationFraction: 0.6,
		NearestMaxValue:       256,

		ScaleXAmt: 1,
		ScaleYAmt: 1,
		ScaleZAmt: 1,

		Address: "/head",
		OSC:     OSCConfig{Host: "127.0.0.1", Port: 9000},
		Serial:  SerialConfig{BaudRate: 115200},

		Sensor:    SensorConfig{ID: 0, Width: 640, Height: 480},
		FrameRate: 30,
	}
}

// LoadTrackerConfig loads a TrackerConfig from a JSON file.
// Fields omitted from the file keep their default values, so partial
// configs are safe.
func LoadTrackerConfig(path string) (TrackerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return TrackerConfig{}, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return TrackerConfig{}, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return TrackerConfig{}, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return TrackerConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseTrackerConfig(data)
}

// ParseTrackerConfig overlays JSON data onto the defaults and validates
// the result.
func ParseTrackerConfig(data []byte) (TrackerConfig, error) {
	cfg := DefaultTrackerConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return TrackerConfig{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return TrackerConfig{}, err
	}
	return cfg, nil
}

// SaveTrackerConfig writes cfg as indented JSON. The file is replaced
// atomically via a temporary file in the same directory.
func SaveTrackerConfig(path string, cfg TrackerConfig) error {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(cleanPath), ".tracker-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp config file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), cleanPath); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories and
// panics if the file cannot be loaded. Intended for test setup.
func MustLoadDefaultConfig() TrackerConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/*
	}
	for _, path := range candidates {
		if cfg, err := LoadTrackerConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the invariants the pipeline relies on.
func (c TrackerConfig) Validate() error {
	if c.Threshold < 0 || c.Threshold > 255 {
		return fmt.Errorf("%w: threshold must be between 0 and 255, got %d", ErrInvalidConfig, c.Threshold)
	}
	switch strings.ToLower(c.Foreground) {
	case "", ForegroundBelow, ForegroundAbove:
	default:
		return fmt.Errorf("%w: foreground must be %q or %q, got %q", ErrInvalidConfig, ForegroundBelow, ForegroundAbove, c.Foreground)
	}
	if c.AreaMin < 0 {
		return fmt.Errorf("%w: area_min must be non-negative, got %d", ErrInvalidConfig, c.AreaMin)
	}
	if c.AreaMin > c.AreaMax {
		return fmt.Errorf("%w: area_min (%d) must not exceed area_max (%d)", ErrInvalidConfig, c.AreaMin, c.AreaMax)
	}
	if c.MaxBlobs < 0 {
		return fmt.Errorf("%w: max_blobs must be non-negative, got %d", ErrInvalidConfig, c.MaxBlobs)
	}
	switch c.Policy {
	case PolicyInterpolated, PolicyNearest:
	default:
		return fmt.Errorf("%w: policy must be %q or %q, got %q", ErrInvalidConfig, PolicyInterpolated, PolicyNearest, c.Policy)
	}
	if c.InterpolationFraction < 0 || c.InterpolationFraction > 1 {
		return fmt.Errorf("%w: interpolation_fraction must be between 0 and 1, got %f", ErrInvalidConfig, c.InterpolationFraction)
	}
	if c.HighestPointBand < 0 {
		return fmt.Errorf("%w: highest_point_band must be non-negative, got %f", ErrInvalidConfig, c.HighestPointBand)
	}
	if c.Address == "" || !strings.HasPrefix(c.Address, "/") {
		return fmt.Errorf("%w: address must start with '/', got %q", ErrInvalidConfig, c.Address)
	}
	if c.OSC.Port < 0 || c.OSC.Port > 65535 {
		return fmt.Errorf("%w: osc.port out of range: %d", ErrInvalidConfig, c.OSC.Port)
	}
	if c.Sensor.Width <= 0 || c.Sensor.Height <= 0 {
		return fmt.Errorf("%w: sensor dimensions must be positive, got %dx%d", ErrInvalidConfig, c.Sensor.Width, c.Sensor.Height)
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("%w: frame_rate must be positive, got %f", ErrInvalidConfig, c.FrameRate)
	}
	return nil
}

// NudgeThreshold shifts the threshold by delta, clamped to [0, 255].
func (c *TrackerConfig) NudgeThreshold(delta int) {
	c.Threshold = min(max(c.Threshold+delta, 0), 255)
}
