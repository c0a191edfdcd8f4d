// Package config holds the conversion settings loaded from a JSON file.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/banshee-data/sciconv/internal/fsutil"
)

// MaxFileSize bounds the size of a config file.
const MaxFileSize = 1 * 1024 * 1024 // 1MB

// Log formats understood by the monitoring package.
var logFormats = []string{"console", "json", "logfmt"}

// Config is the root configuration. Every field is optional; the Get*
// methods supply the default for fields left out of the JSON.
type Config struct {
	// Motion file output
	FrameRate  *float64 `json:"frame_rate,omitempty"`
	FirstFrame *int     `json:"first_frame,omitempty"`

	// Raster output
	RowsPerStrip   *int `json:"rows_per_strip,omitempty"` // 0 selects about 8 KiB per strip
	ASCIIPrecision *int `json:"ascii_precision,omitempty"`

	// Logging
	LogLevel  *string `json:"log_level,omitempty"`
	LogFormat *string `json:"log_format,omitempty"`

	// AllowedDirs restricts the files a conversion may read or write.
	// Empty means unrestricted.
	AllowedDirs []string `json:"allowed_dirs,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Defaults returns a Config with every field set to its default.
func Defaults() *Config {
	return &Config{
		FrameRate:      ptrFloat64(60),
		FirstFrame:     ptrInt(1),
		RowsPerStrip:   ptrInt(0),
		ASCIIPrecision: ptrInt(6),
		LogLevel:       ptrString("info"),
		LogFormat:      ptrString("console"),
	}
}

// Load reads a Config from a JSON file on fsys. The file must have a .json
// extension and be at most MaxFileSize bytes. Fields omitted from the file
// stay unset, so partial configs are safe.
func Load(fsys fsutil.FileSystem, path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	if c.FrameRate != nil {
		if v := *c.FrameRate; v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) || v > math.MaxFloat32 {
			return fmt.Errorf("frame_rate must be a positive number, got %v", v)
		}
	}
	if c.FirstFrame != nil && (*c.FirstFrame < 1 || *c.FirstFrame > math.MaxUint16) {
		return fmt.Errorf("first_frame must be between 1 and %d, got %d", math.MaxUint16, *c.FirstFrame)
	}
	if c.RowsPerStrip != nil && *c.RowsPerStrip < 0 {
		return fmt.Errorf("rows_per_strip must be non-negative, got %d", *c.RowsPerStrip)
	}
	if c.ASCIIPrecision != nil && (*c.ASCIIPrecision < 1 || *c.ASCIIPrecision > 17) {
		return fmt.Errorf("ascii_precision must be between 1 and 17, got %d", *c.ASCIIPrecision)
	}
	if c.LogLevel != nil {
		if _, err := zapcore.ParseLevel(*c.LogLevel); err != nil {
			return fmt.Errorf("invalid log_level %q: %w", *c.LogLevel, err)
		}
	}
	if c.LogFormat != nil {
		ok := false
		for _, f := range logFormats {
			if *c.LogFormat == f {
				ok = true
			}
		}
		if !ok {
			return fmt.Errorf("log_format must be one of %s, got %q", strings.Join(logFormats, ", "), *c.LogFormat)
		}
	}
	for _, d := range c.AllowedDirs {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("allowed_dirs contains an empty entry")
		}
	}
	return nil
}

// GetFrameRate returns the frame_rate value or the default.
func (c *Config) GetFrameRate() float32 {
	if c == nil || c.FrameRate == nil {
		return 60
	}
	return float32(*c.FrameRate)
}

// GetFirstFrame returns the first_frame value or the default.
func (c *Config) GetFirstFrame() int {
	if c == nil || c.FirstFrame == nil {
		return 1
	}
	return *c.FirstFrame
}

// GetRowsPerStrip returns the rows_per_strip value or the default.
func (c *Config) GetRowsPerStrip() int {
	if c == nil || c.RowsPerStrip == nil {
		return 0
	}
	return *c.RowsPerStrip
}

// GetASCIIPrecision returns the ascii_precision value or the default.
func (c *Config) GetASCIIPrecision() int {
	if c == nil || c.ASCIIPrecision == nil {
		return 6
	}
	return *c.ASCIIPrecision
}

// GetLogLevel returns the parsed log_level or info.
func (c *Config) GetLogLevel() zapcore.Level {
	if c == nil || c.LogLevel == nil {
		return zapcore.InfoLevel
	}
	lvl, err := zapcore.ParseLevel(*c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel // default on parse error
	}
	return lvl
}

// GetLogFormat returns the log_format value or the default.
func (c *Config) GetLogFormat() string {
	if c == nil || c.LogFormat == nil {
		return "console"
	}
	return *c.LogFormat
}

// GetAllowedDirs returns the allowed_dirs list, possibly empty.
func (c *Config) GetAllowedDirs() []string {
	if c == nil {
		return nil
	}
	return c.AllowedDirs
}
