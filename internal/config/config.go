// Package config loads and validates the YAML configuration for the
// people counting pipeline. Defaults are seeded before decoding, so a
// partial file only overrides what it names; validation runs once at
// startup and configuration is read-only afterwards.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the root of the configuration tree.
type Config struct {
	Video    VideoConfig    `yaml:"video"`
	Detector DetectorConfig `yaml:"detector"`
	Tracking TrackingConfig `yaml:"tracking"`
	Line     LineConfig     `yaml:"line"`
	Counting CountingConfig `yaml:"counting"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// VideoConfig selects the input stream and output artifacts. Path is a
// video file, or a bare integer to read from that camera device.
type VideoConfig struct {
	Path       string `yaml:"path" validate:"required"`
	SaveResult bool   `yaml:"save_result"`
	OutputDir  string `yaml:"output_dir" validate:"required"`
}

// DetectorConfig tunes the ONNX person detector.
type DetectorConfig struct {
	ModelPath     string  `yaml:"model_path"`
	LibraryPath   string  `yaml:"library_path"`
	ClassID       int     `yaml:"class_id" validate:"gte=0"`
	NumClasses    int     `yaml:"num_classes" validate:"gt=0"`
	ConfThreshold float64 `yaml:"conf_threshold" validate:"gte=0,lte=1"`
	IoUThreshold  float64 `yaml:"iou_threshold" validate:"gte=0,lte=1"`
	InputWidth    int     `yaml:"input_width" validate:"gt=0"`
	InputHeight   int     `yaml:"input_height" validate:"gt=0"`
}

// TrackingConfig tunes the IoU tracker.
type TrackingConfig struct {
	TrackThresh float64 `yaml:"track_thresh" validate:"gte=0,lte=1"`
	TrackBuffer int     `yaml:"track_buffer" validate:"gte=0"`
	MatchThresh float64 `yaml:"match_thresh" validate:"gte=0,lte=1"`
}

// LineConfig places the counting line in normalized [0,1] coordinates and
// names which side of it counts as inside.
type LineConfig struct {
	X1     float64 `yaml:"x1" validate:"gte=0,lte=1"`
	Y1     float64 `yaml:"y1" validate:"gte=0,lte=1"`
	X2     float64 `yaml:"x2" validate:"gte=0,lte=1"`
	Y2     float64 `yaml:"y2" validate:"gte=0,lte=1"`
	InSide string  `yaml:"in_side" validate:"oneof=left right"`
}

// ROIPoint is one vertex of the optional region of interest, in
// normalized coordinates.
type ROIPoint struct {
	X float64 `yaml:"x" validate:"gte=0,lte=1"`
	Y float64 `yaml:"y" validate:"gte=0,lte=1"`
}

// CountingConfig selects how a person's position is reduced to a crossing
// point, and optionally restricts counting to a region of the frame.
type CountingConfig struct {
	Criteria string     `yaml:"criteria" validate:"oneof=center top bottom left right whole_bbox"`
	ROI      []ROIPoint `yaml:"roi" validate:"omitempty,min=3,dive"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr      string `yaml:"addr" validate:"required"`
	StaticDir string `yaml:"static_dir"`
}

// DatabaseConfig locates the sqlite database.
type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// LoggingConfig tunes log output.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=trace debug info warn error"`
	File  string `yaml:"file"`
}

// Default returns a configuration with every tunable at its documented
// default. The video path is deliberately left empty; there is no sensible
// default input.
func Default() *Config {
	return &Config{
		Video: VideoConfig{
			OutputDir: "outputs",
		},
		Detector: DetectorConfig{
			ClassID:       0,
			NumClasses:    80,
			ConfThreshold: 0.25,
			IoUThreshold:  0.45,
			InputWidth:    640,
			InputHeight:   640,
		},
		Tracking: TrackingConfig{
			TrackThresh: 0.5,
			TrackBuffer: 30,
			MatchThresh: 0.8,
		},
		Line: LineConfig{
			X1:     0.5,
			Y1:     0.0,
			X2:     0.5,
			Y2:     1.0,
			InSide: "left",
		},
		Counting: CountingConfig{
			Criteria: "center",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Database: DatabaseConfig{
			Path: "headcountguard.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the struct tags plus the constraints tags cannot
// express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Line.X1 == c.Line.X2 && c.Line.Y1 == c.Line.Y2 {
		return fmt.Errorf("invalid configuration: line endpoints must be distinct")
	}

	return nil
}
