// Package config loads service configuration from an optional YAML file with
// environment-variable overrides (NEWSCAT_*).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all newscat configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Model   ModelConfig   `yaml:"model"`
	Record  RecordConfig  `yaml:"record"`
	Logging LoggingConfig `yaml:"logging"`
}

// Duration wraps time.Duration so YAML values like "30s" parse with
// time.ParseDuration semantics.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	Mode         string   `yaml:"mode"` // gin mode: "debug", "release", "test"
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	IdleTimeout  Duration `yaml:"idle_timeout"`
}

// ModelConfig holds the pretrained artifact locations and the expected
// embedding dimensionality.
type ModelConfig struct {
	ONNXPath       string `yaml:"onnx_path"`
	VocabPath      string `yaml:"vocab_path"`
	ClassifierPath string `yaml:"classifier_path"`
	EmbeddingDim   int    `yaml:"embedding_dim"`
}

// RecordConfig holds prediction log settings. AsyncBuffer > 0 routes records
// through a single-writer channel of that capacity instead of appending
// synchronously on the request path.
type RecordConfig struct {
	Path        string `yaml:"path"`
	AsyncBuffer int    `yaml:"async_buffer"`
}

// LoggingConfig holds service (diagnostic) logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// Load reads configuration from the YAML file at path (skipped when path is
// empty), applies defaults, then applies NEWSCAT_* environment overrides.
func Load(path string) (Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	c.applyDefaults()
	c.applyEnv()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(30 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(60 * time.Second)
	}
	if c.Model.ONNXPath == "" {
		c.Model.ONNXPath = "models/model.onnx"
	}
	if c.Model.VocabPath == "" {
		c.Model.VocabPath = "models/vocab.txt"
	}
	if c.Model.ClassifierPath == "" {
		c.Model.ClassifierPath = "data/news_classifier.st"
	}
	if c.Model.EmbeddingDim == 0 {
		c.Model.EmbeddingDim = 768
	}
	if c.Record.Path == "" {
		c.Record.Path = "data/logs.out"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "NEWSCAT_ADDR")
	setString(&c.Server.Mode, "NEWSCAT_MODE")
	setString(&c.Model.ONNXPath, "NEWSCAT_MODEL_PATH")
	setString(&c.Model.VocabPath, "NEWSCAT_VOCAB_PATH")
	setString(&c.Model.ClassifierPath, "NEWSCAT_CLASSIFIER_PATH")
	setInt(&c.Model.EmbeddingDim, "NEWSCAT_EMBEDDING_DIM")
	setString(&c.Record.Path, "NEWSCAT_RECORD_PATH")
	setInt(&c.Record.AsyncBuffer, "NEWSCAT_RECORD_ASYNC_BUFFER")
	setString(&c.Logging.Level, "NEWSCAT_LOG_LEVEL")
	setString(&c.Logging.Format, "NEWSCAT_LOG_FORMAT")
}

func setString(dest *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dest = v
	}
}

func setInt(dest *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dest = n
}
