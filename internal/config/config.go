package config

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/tiresias/internal/gallery"
	"github.com/MeKo-Tech/tiresias/internal/inputs"
	"github.com/MeKo-Tech/tiresias/internal/objdet"
	"github.com/MeKo-Tech/tiresias/internal/ocr"
	"github.com/MeKo-Tech/tiresias/internal/render"
	"github.com/MeKo-Tech/tiresias/internal/report"
	"github.com/MeKo-Tech/tiresias/internal/textrec"
)

// DefaultModelsDir is used when neither the config nor the environment names one.
const DefaultModelsDir = "models"

// Config represents the complete configuration of tiresias. It is loaded
// from a config file, TIRESIAS_* environment variables and command-line flags.
type Config struct {
	LogLevel        string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose         bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`
	ModelsDir       string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	Device          string `mapstructure:"device" yaml:"device" json:"device"`
	ONNXLibraryPath string `mapstructure:"onnx_library_path" yaml:"onnx_library_path" json:"onnx_library_path"`

	Input     InputConfig     `mapstructure:"input" yaml:"input" json:"input"`
	Gallery   GalleryConfig   `mapstructure:"gallery" yaml:"gallery" json:"gallery"`
	OCR       OCRConfig       `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Detection DetectionConfig `mapstructure:"detection" yaml:"detection" json:"detection"`
	Display   DisplayConfig   `mapstructure:"display" yaml:"display" json:"display"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output" json:"output"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server" json:"server"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store" json:"store"`
}

// InputConfig controls which photo files are picked up.
type InputConfig struct {
	AllowedExtensions []string `mapstructure:"allowed_extensions" yaml:"allowed_extensions" json:"allowed_extensions"`
	Workers           int      `mapstructure:"workers" yaml:"workers" json:"workers"`
}

// GalleryConfig describes the gallery shapefile.
type GalleryConfig struct {
	Shapefile        string  `mapstructure:"shapefile" yaml:"shapefile" json:"shapefile"`
	ColumnID         string  `mapstructure:"column_id" yaml:"column_id" json:"column_id"`
	CRSWKT           string  `mapstructure:"crs_wkt" yaml:"crs_wkt" json:"crs_wkt"`
	NeighborDistance float64 `mapstructure:"neighbor_distance" yaml:"neighbor_distance" json:"neighbor_distance"`
	BufferSize       float64 `mapstructure:"buffer_size" yaml:"buffer_size" json:"buffer_size"`
	MaxIDLength      int     `mapstructure:"max_id_length" yaml:"max_id_length" json:"max_id_length"`
	Encoding         string  `mapstructure:"encoding" yaml:"encoding" json:"encoding"`
}

// OCRConfig selects and tunes the OCR engine.
type OCRConfig struct {
	Engine           string  `mapstructure:"engine" yaml:"engine" json:"engine"`
	DetModel         string  `mapstructure:"det_model" yaml:"det_model" json:"det_model"`
	RecModel         string  `mapstructure:"rec_model" yaml:"rec_model" json:"rec_model"`
	Dictionary       string  `mapstructure:"dictionary" yaml:"dictionary" json:"dictionary"`
	DetThreshold     float64 `mapstructure:"det_threshold" yaml:"det_threshold" json:"det_threshold"`
	BoxThreshold     float64 `mapstructure:"box_threshold" yaml:"box_threshold" json:"box_threshold"`
	RecHeight        int     `mapstructure:"rec_height" yaml:"rec_height" json:"rec_height"`
	RecWidth         int     `mapstructure:"rec_width" yaml:"rec_width" json:"rec_width"`
	BlankPosition    string  `mapstructure:"blank_position" yaml:"blank_position" json:"blank_position"`
	MinRecConfidence float64 `mapstructure:"min_rec_confidence" yaml:"min_rec_confidence" json:"min_rec_confidence"`
	NumThreads       int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	Language         string  `mapstructure:"language" yaml:"language" json:"language"`
	TesseractLang    string  `mapstructure:"tesseract_lang" yaml:"tesseract_lang" json:"tesseract_lang"`
	Enhance          bool    `mapstructure:"enhance" yaml:"enhance" json:"enhance"`
}

// DetectionConfig lists the object detection models.
type DetectionConfig struct {
	Models         []objdet.ModelSpec `mapstructure:"models" yaml:"models" json:"models"`
	ScoreThreshold float64            `mapstructure:"score_threshold" yaml:"score_threshold" json:"score_threshold"`
	NMSThreshold   float64            `mapstructure:"nms_threshold" yaml:"nms_threshold" json:"nms_threshold"`
	InputSize      int                `mapstructure:"input_size" yaml:"input_size" json:"input_size"`
	Timing         bool               `mapstructure:"timing" yaml:"timing" json:"timing"`
	Mean           []float32          `mapstructure:"mean" yaml:"mean" json:"mean"`
	Std            []float32          `mapstructure:"std" yaml:"std" json:"std"`
}

// DisplayConfig holds the figure colours and sizes.
type DisplayConfig struct {
	NeighborColor string `mapstructure:"neighbor_color" yaml:"neighbor_color" json:"neighbor_color"`
	OCRColor      string `mapstructure:"ocr_color" yaml:"ocr_color" json:"ocr_color"`
	LaboColor     string `mapstructure:"labo_color" yaml:"labo_color" json:"labo_color"`
	PanelSize     int    `mapstructure:"panel_size" yaml:"panel_size" json:"panel_size"`
	Neighbors     bool   `mapstructure:"neighbors" yaml:"neighbors" json:"neighbors"`
}

// OutputConfig controls where results go.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	Dir    string `mapstructure:"dir" yaml:"dir" json:"dir"`
	PDF    string `mapstructure:"pdf" yaml:"pdf" json:"pdf"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	RateLimitEnabled  bool `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int  `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
}

// StoreConfig enables result persistence in MySQL.
type StoreConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	DSN         string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
	KeepFigures bool   `mapstructure:"keep_figures" yaml:"keep_figures" json:"keep_figures"`
}

// DefaultConfig returns a configuration with the defaults of the original tool.
func DefaultConfig() Config {
	det := objdet.DefaultConfig()
	return Config{
		LogLevel:  "info",
		ModelsDir: DefaultModelsDir,
		Device:    "cpu",
		Input: InputConfig{
			AllowedExtensions: append([]string(nil), inputs.DefaultExtensions...),
			Workers:           1,
		},
		Gallery: GalleryConfig{
			ColumnID:         gallery.DefaultColumn,
			NeighborDistance: gallery.DefaultDistance,
			BufferSize:       gallery.DefaultBufferSize,
			MaxIDLength:      gallery.DefaultMaxIDLength,
		},
		OCR: OCRConfig{
			Engine:        ocr.EngineONNX,
			DetModel:      "ocr/dbnetpp.onnx",
			RecModel:      "ocr/svtr_small.onnx",
			Dictionary:    "ocr/dict.txt",
			DetThreshold:  0.3,
			BoxThreshold:  0.5,
			RecHeight:     32,
			RecWidth:      100,
			BlankPosition: textrec.BlankLast,
			Language:      "fr",
			TesseractLang: ocr.DefaultTesseractConfig().Language,
			Enhance:       true,
		},
		Detection: DetectionConfig{
			ScoreThreshold: det.ScoreThreshold,
			NMSThreshold:   det.NMSThreshold,
			InputSize:      det.InputSize,
			Timing:         det.Timing,
			Mean:           det.Mean[:],
			Std:            det.Std[:],
		},
		Display: DisplayConfig{
			NeighborColor: "red",
			OCRColor:      "yellow",
			LaboColor:     "blue",
			PanelSize:     render.DefaultPanelSize,
			Neighbors:     true,
		},
		Output: OutputConfig{
			Format: report.FormatText,
		},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8080,
			CORSOrigin:        "*",
			MaxUploadMB:       20,
			TimeoutSec:        60,
			ShutdownTimeout:   10,
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validEngines := []string{ocr.EngineONNX, ocr.EngineTesseract}
	if !contains(validEngines, c.OCR.Engine) {
		return fmt.Errorf("invalid ocr engine: %s (must be one of: %s)", c.OCR.Engine, strings.Join(validEngines, ", "))
	}
	validBlanks := []string{textrec.BlankFirst, textrec.BlankLast}
	if !contains(validBlanks, c.OCR.BlankPosition) {
		return fmt.Errorf("invalid blank position: %s (must be one of: %s)", c.OCR.BlankPosition, strings.Join(validBlanks, ", "))
	}
	if c.Output.Format != "" && !contains(report.Formats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(report.Formats, ", "))
	}

	thresholds := []struct {
		name  string
		value float64
	}{
		{"ocr.det_threshold", c.OCR.DetThreshold},
		{"ocr.box_threshold", c.OCR.BoxThreshold},
		{"ocr.min_rec_confidence", c.OCR.MinRecConfidence},
		{"detection.score_threshold", c.Detection.ScoreThreshold},
		{"detection.nms_threshold", c.Detection.NMSThreshold},
	}
	for _, th := range thresholds {
		if err := validateThreshold(th.value, th.name); err != nil {
			return err
		}
	}

	if c.Gallery.ColumnID == "" {
		return fmt.Errorf("gallery.column_id cannot be empty")
	}
	if c.Gallery.NeighborDistance < 0 {
		return fmt.Errorf("invalid gallery.neighbor_distance: %g (must not be negative)", c.Gallery.NeighborDistance)
	}
	if c.Gallery.BufferSize <= 0 {
		return fmt.Errorf("invalid gallery.buffer_size: %g (must be positive)", c.Gallery.BufferSize)
	}
	if c.OCR.RecHeight <= 0 {
		return fmt.Errorf("invalid ocr.rec_height: %d (must be positive)", c.OCR.RecHeight)
	}
	if c.Input.Workers <= 0 {
		return fmt.Errorf("invalid input.workers: %d (must be positive)", c.Input.Workers)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RequestsPerMinute < 0 || c.Server.RequestsPerHour < 0 {
		return fmt.Errorf("rate limits cannot be negative")
	}

	if _, err := c.Style(); err != nil {
		return fmt.Errorf("invalid display colours: %w", err)
	}
	if _, err := c.DetectorConfig(); err != nil {
		return err
	}
	if c.Store.Enabled && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required when the store is enabled")
	}
	return nil
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
