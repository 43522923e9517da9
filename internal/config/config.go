package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the recipedex configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Store      StoreConfig      `yaml:"store"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	// Addr is the bind address, host:port. A full URL (http://host:port) is
	// accepted so SERVER_URL can be shared with the client unchanged.
	Addr            string `yaml:"addr"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_timeout_sec"`
}

// ListenAddr returns the host:port to bind, stripping an http:// scheme
// and any trailing path.
func (h HTTPConfig) ListenAddr() string {
	addr := h.Addr
	if i := strings.Index(addr, "://"); i >= 0 {
		addr = addr[i+3:]
	}
	if i := strings.IndexByte(addr, '/'); i >= 0 {
		addr = addr[:i]
	}
	return addr
}

// StoreConfig holds the persisted store location.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// IngestConfig holds ingestion job settings.
type IngestConfig struct {
	InputPath  string `yaml:"input_path"`
	ColumnID   string `yaml:"column_id"`
	ColumnText string `yaml:"column_text"`
	BatchSize  int    `yaml:"batch_size"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// GenerationConfig holds LLM generation settings.
type GenerationConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	// Model is the generation model identifier, echoed back in responses.
	Model string `yaml:"model"`
	// ContextWindow is an optional token budget for prompt construction.
	// 0 means unlimited.
	ContextWindow int `yaml:"context_window"`
	TimeoutSec    int `yaml:"timeout_sec"`
}

// RetrievalConfig holds retriever settings.
type RetrievalConfig struct {
	DefaultResults int `yaml:"default_results"`
	MaxResults     int `yaml:"max_results"`
	// VectorWeight is the hybrid fusion weight for the vector ranking,
	// in [0,1]. The lexical ranking gets 1-VectorWeight.
	VectorWeight float64 `yaml:"vector_weight"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Write timeout bounds the whole handler, including generation.
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = 64
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 60
	}
	if c.Retrieval.DefaultResults <= 0 {
		c.Retrieval.DefaultResults = 10
	}
	if c.Retrieval.MaxResults <= 0 {
		c.Retrieval.MaxResults = 100
	}
	if c.Retrieval.VectorWeight <= 0 {
		c.Retrieval.VectorWeight = 0.5
	}
}

// Validate checks the configuration for correctness. It runs once at startup,
// before any socket is bound or store is opened.
func (c *Config) Validate() error {
	if c.HTTP.ListenAddr() == "" {
		return fmt.Errorf("http.addr is required (set SERVER_URL)")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required (set DB_PATH)")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Generation.Model == "" {
		return fmt.Errorf("generation.model is required (set AI_MODEL)")
	}
	if c.Retrieval.VectorWeight > 1 {
		return fmt.Errorf("retrieval.vector_weight must be in [0,1], got %v", c.Retrieval.VectorWeight)
	}
	if c.Generation.ContextWindow < 0 {
		return fmt.Errorf("generation.context_window must be >= 0, got %d", c.Generation.ContextWindow)
	}
	return nil
}

// ValidateIngest checks the fields the ingestion job additionally requires.
func (c *Config) ValidateIngest() error {
	if c.Ingest.InputPath == "" {
		return fmt.Errorf("ingest.input_path is required")
	}
	if c.Ingest.ColumnID == "" {
		return fmt.Errorf("ingest.column_id is required (set COLUMN_ID)")
	}
	if c.Ingest.ColumnText == "" {
		return fmt.Errorf("ingest.column_text is required (set COLUMN_TEXT)")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
