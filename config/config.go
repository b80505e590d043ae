package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// InputConfig selects the video source
type InputConfig struct {
	Source string `json:"source"` // File path, stream URL, or camera index
	// Telemetry defaults used when the source does not provide any
	BatteryPercent float64 `json:"battery_percent"`
	Autonomous     bool    `json:"autonomous"`
	BellyCamera    bool    `json:"belly_camera"`
}

// DetectorConfig names the face model files
type DetectorConfig struct {
	CascadePath       string  `json:"cascade_path"`
	DNNModelPath      string  `json:"dnn_model_path"`
	DNNConfigPath     string  `json:"dnn_config_path"`
	MinConfidence     float64 `json:"min_confidence"`
	MinFaceWidth      int     `json:"min_face_width"`
	MinBatteryPercent float64 `json:"min_battery_percent"`
}

// LinkConfig selects the command transport
type LinkConfig struct {
	Type     string  `json:"type"` // serial, udp or none
	Addr     string  `json:"addr"` // Serial device or host:port
	BaudRate int     `json:"baud_rate"`
	MaxAbs   float64 `json:"max_abs"` // Per-axis magnitude limit on the wire
}

// OverlayConfig controls debug frame rendering and dumps
type OverlayConfig struct {
	Enabled        bool   `json:"enabled"`
	Terminal       bool   `json:"terminal"`
	JpgPath        string `json:"jpg_path"`
	PreOverlayJpg  bool   `json:"pre_overlay_jpg"`
	PostOverlayJpg bool   `json:"post_overlay_jpg"`
}

// LogConfig controls console logging
type LogConfig struct {
	Debug   bool `json:"debug"`
	Verbose bool `json:"verbose"`
}

// Config aggregates all configuration sections
type Config struct {
	Input    InputConfig    `json:"input"`
	Detector DetectorConfig `json:"detector"`
	Link     LinkConfig     `json:"link"`
	Overlay  OverlayConfig  `json:"overlay"`
	Log      LogConfig      `json:"log"`
}

// Link types
const (
	LinkSerial = "serial"
	LinkUDP    = "udp"
	LinkNone   = "none"
)

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Input: InputConfig{
			Source:         "0",
			BatteryPercent: 100,
			Autonomous:     true,
		},
		Detector: DetectorConfig{
			CascadePath:       "data/haarcascade_frontalface_default.xml",
			MinConfidence:     0.5,
			MinFaceWidth:      24,
			MinBatteryPercent: 15,
		},
		Link: LinkConfig{
			Type:     LinkNone,
			BaudRate: 115200,
			MaxAbs:   1,
		},
	}
}

// Load reads a JSON config from path on top of Default()
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.Link.Type = strings.ToLower(strings.TrimSpace(cfg.Link.Type))

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c Config) Validate() error {
	if c.Input.Source == "" {
		return fmt.Errorf("input.source must be set")
	}
	if c.Detector.CascadePath == "" && c.Detector.DNNModelPath == "" {
		return fmt.Errorf("detector needs cascade_path or dnn_model_path")
	}
	if c.Detector.DNNModelPath != "" && c.Detector.DNNConfigPath == "" {
		return fmt.Errorf("detector.dnn_config_path must be set with dnn_model_path")
	}
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		return fmt.Errorf("detector.min_confidence must be within [0, 1], got %v", c.Detector.MinConfidence)
	}

	switch c.Link.Type {
	case LinkSerial, LinkUDP:
		if c.Link.Addr == "" {
			return fmt.Errorf("link.addr must be set for %s link", c.Link.Type)
		}
	case LinkNone:
	default:
		return fmt.Errorf("unknown link.type %q", c.Link.Type)
	}
	if c.Link.MaxAbs <= 0 {
		return fmt.Errorf("link.max_abs must be > 0")
	}

	if (c.Overlay.PreOverlayJpg || c.Overlay.PostOverlayJpg) && c.Overlay.JpgPath == "" {
		return fmt.Errorf("overlay.jpg_path is required when saving JPEG frames")
	}
	return nil
}
