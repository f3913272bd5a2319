// Package server wires the stores, workers, and HTTP routers of the label
// engine into one process.
package server

import (
	"os"
	"path/filepath"
)

// Config holds process-wide settings. Paths default to subdirectories of
// DataDir so a single volume mount carries all state.
type Config struct {
	ListenAddr string // Address to listen on. Default ":8080".
	DataDir    string // Root of all persistent state. Default "./data".
	DBPath     string // SQLite database file. Default "<DataDir>/huandan.db".
	LabelsDir  string // Working label PDF storage. Default "<DataDir>/labels".
	PacksDir   string // Built version pack zips. Default "<DataDir>/packs".
	UploadsDir string // Parked async uploads. Default "<DataDir>/uploads".
	ClientDir  string // Uploaded client builds. Default "<DataDir>/client".

	// WatchLabels enables the fsnotify watcher that registers loose PDFs
	// dropped straight into LabelsDir. Default true.
	WatchLabels bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	cfg := &Config{
		ListenAddr:  ":8080",
		DataDir:     "./data",
		WatchLabels: true,
	}
	cfg.applyDerived()
	return cfg
}

// ConfigFromEnv loads config from environment variables: HUANDAN_LISTEN,
// HUANDAN_DATA_DIR, HUANDAN_DB_PATH, HUANDAN_LABELS_DIR, HUANDAN_PACKS_DIR,
// HUANDAN_UPLOADS_DIR, HUANDAN_CLIENT_DIR, HUANDAN_WATCH_LABELS.
func ConfigFromEnv() *Config {
	cfg := &Config{
		ListenAddr:  envOrDefault("HUANDAN_LISTEN", ":8080"),
		DataDir:     envOrDefault("HUANDAN_DATA_DIR", "./data"),
		DBPath:      os.Getenv("HUANDAN_DB_PATH"),
		LabelsDir:   os.Getenv("HUANDAN_LABELS_DIR"),
		PacksDir:    os.Getenv("HUANDAN_PACKS_DIR"),
		UploadsDir:  os.Getenv("HUANDAN_UPLOADS_DIR"),
		ClientDir:   os.Getenv("HUANDAN_CLIENT_DIR"),
		WatchLabels: envOrDefault("HUANDAN_WATCH_LABELS", "true") != "false",
	}
	cfg.applyDerived()
	return cfg
}

// applyDerived fills empty paths from DataDir.
func (c *Config) applyDerived() {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "huandan.db")
	}
	if c.LabelsDir == "" {
		c.LabelsDir = filepath.Join(c.DataDir, "labels")
	}
	if c.PacksDir == "" {
		c.PacksDir = filepath.Join(c.DataDir, "packs")
	}
	if c.UploadsDir == "" {
		c.UploadsDir = filepath.Join(c.DataDir, "uploads")
	}
	if c.ClientDir == "" {
		c.ClientDir = filepath.Join(c.DataDir, "client")
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
