// Package config defines process configuration and how it is loaded.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageFile   = "file"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`
	// WebDir serves static files when set.
	WebDir string `koanf:"web_dir"`
	// Tray shows the system tray menu.
	Tray bool `koanf:"tray"`

	// DataDir holds the database and file-backed datasets.
	DataDir string `koanf:"data_dir"`
	// DBPath defaults to <data_dir>/handsign.db.
	DBPath string `koanf:"db_path"`
	// Storage is sqlite or file.
	Storage string `koanf:"storage"`
	// Session names a stored dataset to load at startup.
	Session string `koanf:"session"`

	CameraID         int    `koanf:"camera_id"`
	CameraWidth      int    `koanf:"camera_width"`
	CameraHeight     int    `koanf:"camera_height"`
	SampleIntervalMS int    `koanf:"sample_interval_ms"`
	DetectorScript   string `koanf:"detector_script"`

	// Classes names each label position; the label width is len(Classes).
	Classes   []string `koanf:"classes"`
	Threshold float64  `koanf:"threshold"`

	BatchSize    int     `koanf:"batch_size"`
	Epochs       int     `koanf:"epochs"`
	LearningRate float64 `koanf:"learning_rate"`
	HiddenUnits  []int   `koanf:"hidden_units"`
	Seed         int64   `koanf:"seed"`
	Workers      int     `koanf:"workers"`
}

// New returns a Config with defaults. List fields are left empty here and
// filled after loading so that overrides replace them instead of merging.
func New() *Config {
	dataDir := ".handsign"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".handsign")
	}
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":8080",
		DataDir:          dataDir,
		Storage:          StorageSQLite,
		CameraID:         0,
		CameraWidth:      640,
		CameraHeight:     480,
		SampleIntervalMS: 100,
		Threshold:        0.8,
		BatchSize:        32,
		Epochs:           50,
		LearningRate:     0.001,
		Seed:             1,
	}
}

func (c *Config) applyListDefaults() {
	if len(c.Classes) == 0 {
		c.Classes = []string{"thumbs_up", "open_palm"}
	}
	if len(c.HiddenUnits) == 0 {
		c.HiddenUnits = []int{50, 50, 50, 50}
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "handsign.db")
	}
}

// SampleInterval returns the sampling period.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.SampleIntervalMS) * time.Millisecond
}
