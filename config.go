package weave

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/deepnoodle-ai/weave/checkpoint"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds settings shared by workflows and the weave CLI.
//
// Values are resolved in order: defaults, the config file, then WEAVE_*
// environment variables.
type Config struct {
	// Checkpoints enables checkpoint writes.
	Checkpoints bool `yaml:"checkpoints"`

	// CheckpointDir is where file checkpoints are written. Defaults to
	// ~/.weave/executions.
	CheckpointDir string `yaml:"checkpoint_dir,omitempty"`

	// DevServerURL sends checkpoints to a trace API instead of files.
	DevServerURL string `yaml:"dev_server_url,omitempty" validate:"omitempty,url"`

	// ConsoleURL is logged as a link to each execution.
	ConsoleURL string `yaml:"console_url,omitempty" validate:"omitempty,url"`

	APIKey string `yaml:"api_key,omitempty"`
	Org    string `yaml:"org,omitempty"`

	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Checkpoints: true,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// DefaultConfigPath returns $WEAVE_CONFIG_DIR/config.yaml, or
// weave/config.yaml under the user config directory.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("WEAVE_CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, "config.yaml"), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(dir, "weave", "config.yaml"), nil
}

// LoadConfig reads the config file at path, or the default path when path
// is empty. A missing file at the default path is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	explicit := path != ""
	if !explicit {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("WEAVE_CHECKPOINTS"); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "false", "0", "no", "off":
			c.Checkpoints = false
		case "true", "1", "yes", "on", "":
			c.Checkpoints = true
		default:
			return fmt.Errorf("invalid WEAVE_CHECKPOINTS value %q", v)
		}
	}
	for name, field := range map[string]*string{
		"WEAVE_CHECKPOINT_DIR": &c.CheckpointDir,
		"WEAVE_DEV_SERVER_URL": &c.DevServerURL,
		"WEAVE_CONSOLE_URL":    &c.ConsoleURL,
		"WEAVE_API_KEY":        &c.APIKey,
		"WEAVE_ORG":            &c.Org,
		"WEAVE_LOG_LEVEL":      &c.LogLevel,
		"WEAVE_LOG_FORMAT":     &c.LogFormat,
	} {
		if v, ok := lookup(name); ok && v != "" {
			*field = v
		}
	}
	return nil
}

var validate = validator.New()

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Logger builds the logger described by the configuration, writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return newTextLogger(w, level)
}

// NewCheckpointWriter builds the checkpoint writer described by the
// configuration: a null writer when checkpoints are disabled, an HTTP
// writer when a dev server is configured, and a file writer otherwise. A
// dev server and an explicit checkpoint directory write to both.
func (c *Config) NewCheckpointWriter(logger *slog.Logger) (checkpoint.Writer, error) {
	if !c.Checkpoints {
		return checkpoint.NewNullWriter(), nil
	}
	var writers checkpoint.MultiWriter
	if c.DevServerURL != "" {
		httpWriter, err := checkpoint.NewHTTPWriter(checkpoint.HTTPWriterOptions{
			BaseURL:    c.DevServerURL,
			Org:        c.Org,
			APIKey:     c.APIKey,
			ConsoleURL: c.ConsoleURL,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		writers = append(writers, httpWriter)
	}
	if c.DevServerURL == "" || c.CheckpointDir != "" {
		fileWriter, err := checkpoint.NewFileWriter(c.CheckpointDir)
		if err != nil {
			return nil, err
		}
		writers = append(writers, fileWriter)
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return writers, nil
}
