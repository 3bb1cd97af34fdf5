// Package config resolves the database path and optional settings.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// EnvDBPath is the environment variable overriding the database path.
	EnvDBPath = "RLM_DB_PATH"

	// DefaultDBPath is the database location relative to the working
	// directory when nothing else is configured.
	DefaultDBPath = ".rlm/rlm-state.db"

	// settingsFile is the optional settings file, relative to the working
	// directory.
	settingsFile = ".rlm/config.yaml"
)

// Settings carries optional tuning knobs from .rlm/config.yaml.
type Settings struct {
	Chunking ChunkingSettings `yaml:"chunking"`
	Search   SearchSettings   `yaml:"search"`
	Embedder EmbedderSettings `yaml:"embedder"`
}

// ChunkingSettings overrides chunking defaults.
type ChunkingSettings struct {
	ChunkSize int    `yaml:"chunk_size"`
	Overlap   int    `yaml:"overlap"`
	Strategy  string `yaml:"strategy"`
}

// SearchSettings overrides search defaults.
type SearchSettings struct {
	TopK        int     `yaml:"top_k"`
	RRFConstant int     `yaml:"rrf_constant"`
	Threshold   float32 `yaml:"threshold"`
}

// EmbedderSettings configures the embedder.
type EmbedderSettings struct {
	Dimensions int `yaml:"dimensions"`
}

// LoadEnv loads a .env file from the working directory when present.
// Missing files are not an error.
func LoadEnv() {
	_ = godotenv.Load()
}

// ResolveDBPath returns the database path with decreasing priority:
// explicit flag value, RLM_DB_PATH, then the default relative path.
func ResolveDBPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvDBPath); env != "" {
		return env
	}
	return DefaultDBPath
}

// DenseIndexPath returns the HNSW sidecar path for a database path.
func DenseIndexPath(dbPath string) string {
	return dbPath + ".hnsw"
}

// LoadSettings reads the optional settings file near the working directory.
// A missing file returns zero settings.
func LoadSettings() (Settings, error) {
	var s Settings
	data, err := os.ReadFile(settingsFile)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, err
	}
	return s, nil
}

// EnsureParentDir creates the parent directory of path.
func EnsureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
