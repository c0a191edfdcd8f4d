package config

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/banshee-data/sciconv/internal/fsutil"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.FrameRate == nil || *cfg.FrameRate != 60 {
		t.Errorf("Expected FrameRate 60, got %v", cfg.FrameRate)
	}
	if cfg.FirstFrame == nil || *cfg.FirstFrame != 1 {
		t.Errorf("Expected FirstFrame 1, got %v", cfg.FirstFrame)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults() should validate, got %v", err)
	}

	// Getters on an empty config fall back to the same values.
	empty := Empty()
	if empty.GetFrameRate() != cfg.GetFrameRate() {
		t.Errorf("GetFrameRate() = %v, want %v", empty.GetFrameRate(), cfg.GetFrameRate())
	}
	if empty.GetFirstFrame() != 1 {
		t.Errorf("GetFirstFrame() = %d, want 1", empty.GetFirstFrame())
	}
	if empty.GetRowsPerStrip() != 0 {
		t.Errorf("GetRowsPerStrip() = %d, want 0", empty.GetRowsPerStrip())
	}
	if empty.GetASCIIPrecision() != 6 {
		t.Errorf("GetASCIIPrecision() = %d, want 6", empty.GetASCIIPrecision())
	}
	if empty.GetLogLevel() != zapcore.InfoLevel {
		t.Errorf("GetLogLevel() = %v, want info", empty.GetLogLevel())
	}
	if empty.GetLogFormat() != "console" {
		t.Errorf("GetLogFormat() = %q, want console", empty.GetLogFormat())
	}
	if len(empty.GetAllowedDirs()) != 0 {
		t.Errorf("GetAllowedDirs() = %v, want none", empty.GetAllowedDirs())
	}
}

func TestNilConfigGetters(t *testing.T) {
	var cfg *Config
	if cfg.GetFrameRate() != 60 || cfg.GetFirstFrame() != 1 || cfg.GetAllowedDirs() != nil {
		t.Error("nil config should yield defaults")
	}
}

func TestLoad(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	fsys.AddFile("/etc/sciconv.json", []byte(`{
  "frame_rate": 120,
  "first_frame": 10,
  "rows_per_strip": 16,
  "ascii_precision": 3,
  "log_level": "debug",
  "log_format": "logfmt",
  "allowed_dirs": ["/data", "/tmp"]
}`))

	cfg, err := Load(fsys, "/etc/sciconv.json")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetFrameRate() != 120 {
		t.Errorf("GetFrameRate() = %v, want 120", cfg.GetFrameRate())
	}
	if cfg.GetFirstFrame() != 10 {
		t.Errorf("GetFirstFrame() = %d, want 10", cfg.GetFirstFrame())
	}
	if cfg.GetRowsPerStrip() != 16 {
		t.Errorf("GetRowsPerStrip() = %d, want 16", cfg.GetRowsPerStrip())
	}
	if cfg.GetASCIIPrecision() != 3 {
		t.Errorf("GetASCIIPrecision() = %d, want 3", cfg.GetASCIIPrecision())
	}
	if cfg.GetLogLevel() != zapcore.DebugLevel {
		t.Errorf("GetLogLevel() = %v, want debug", cfg.GetLogLevel())
	}
	if cfg.GetLogFormat() != "logfmt" {
		t.Errorf("GetLogFormat() = %q, want logfmt", cfg.GetLogFormat())
	}
	if got := cfg.GetAllowedDirs(); len(got) != 2 || got[0] != "/data" {
		t.Errorf("GetAllowedDirs() = %v", got)
	}
}

func TestLoad_Partial(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	fsys.AddFile("partial.json", []byte(`{"frame_rate": 25}`))

	cfg, err := Load(fsys, "partial.json")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetFrameRate() != 25 {
		t.Errorf("GetFrameRate() = %v, want 25", cfg.GetFrameRate())
	}
	if cfg.FirstFrame != nil {
		t.Errorf("FirstFrame should stay unset, got %v", *cfg.FirstFrame)
	}
	if cfg.GetFirstFrame() != 1 {
		t.Errorf("GetFirstFrame() = %d, want 1", cfg.GetFirstFrame())
	}
}

func TestLoad_Errors(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	fsys.AddFile("bad.json", []byte(`{"frame_rate": `))
	fsys.AddFile("unknown.json", []byte(`{"frame_rat": 25}`))
	fsys.AddFile("invalid.json", []byte(`{"frame_rate": -1}`))
	fsys.AddFile("config.yaml", []byte(`frame_rate: 25`))
	fsys.AddFile("huge.json", make([]byte, MaxFileSize+1))

	tests := []struct {
		path string
		want string
	}{
		{"config.yaml", ".json extension"},
		{"missing.json", "failed to stat"},
		{"huge.json", "too large"},
		{"bad.json", "failed to parse"},
		{"unknown.json", "failed to parse"},
		{"invalid.json", "invalid configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := Load(fsys, tt.path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty", Config{}, false},
		{"zero frame rate", Config{FrameRate: ptrFloat64(0)}, true},
		{"first frame zero", Config{FirstFrame: ptrInt(0)}, true},
		{"first frame too large", Config{FirstFrame: ptrInt(70000)}, true},
		{"negative rows per strip", Config{RowsPerStrip: ptrInt(-1)}, true},
		{"precision too high", Config{ASCIIPrecision: ptrInt(40)}, true},
		{"bad level", Config{LogLevel: ptrString("loud")}, true},
		{"bad format", Config{LogFormat: ptrString("xml")}, true},
		{"json format", Config{LogFormat: ptrString("json")}, false},
		{"blank dir", Config{AllowedDirs: []string{"/data", " "}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
