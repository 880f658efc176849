// Package logging builds the zerolog loggers used by the command line tools.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Environment variables that override Config fields.
const (
	EnvLevel   = "AMQP_LOG_LEVEL"
	EnvFormat  = "AMQP_LOG_FORMAT"
	EnvNoColor = "AMQP_LOG_NOCOLOR"
)

// Rotation configures size based rotation of file outputs.
type Rotation struct {
	Enable     bool   `toml:"enable"`
	Filename   string `toml:"filename"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Config selects level, format and outputs. Outputs are "stdout", "stderr"
// or file paths.
type Config struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"`
	Outputs  []string `toml:"outputs"`
	NoColor  bool     `toml:"no_color"`
	Rotation Rotation `toml:"rotation"`
}

// DefaultConfig logs info and above to stderr in console format.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "console", Outputs: []string{"stderr"}}
}

// ApplyEnv returns config with the AMQP_LOG_* overrides applied.
func ApplyEnv(config Config) Config {
	if level, ok := os.LookupEnv(EnvLevel); ok && level != "" {
		config.Level = level
	}
	if format, ok := os.LookupEnv(EnvFormat); ok && format != "" {
		config.Format = format
	}
	if raw, ok := os.LookupEnv(EnvNoColor); ok {
		if noColor, err := strconv.ParseBool(raw); err == nil {
			config.NoColor = noColor
		}
	}
	return config
}

// ParseLevel maps a level name to a zerolog level; unknown names mean info.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

type closers []io.Closer

func (list closers) Close() error {
	var first error
	for _, closer := range list {
		if err := closer.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// New builds a logger tagged with app. The returned closer releases file
// outputs and must be called once the logger is no longer used.
func New(app string, config Config) (zerolog.Logger, io.Closer, error) {
	outputs := config.Outputs
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	var writers []io.Writer
	var files closers
	for _, output := range outputs {
		var target io.Writer
		switch strings.ToLower(output) {
		case "stdout":
			target = os.Stdout
		case "stderr":
			target = os.Stderr
		default:
			file, err := openFile(output, config)
			if err != nil {
				_ = files.Close()
				return zerolog.Nop(), nil, err
			}
			files = append(files, file)
			target = file
		}
		writers = append(writers, format(target, config))
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(config.Level)).
		With().Timestamp().Str("app", app).Logger()
	return logger, files, nil
}

func format(target io.Writer, config Config) io.Writer {
	if strings.EqualFold(config.Format, "json") {
		return target
	}
	return zerolog.ConsoleWriter{Out: target, TimeFormat: time.RFC3339, NoColor: config.NoColor || target != os.Stdout && target != os.Stderr}
}

func openFile(path string, config Config) (io.WriteCloser, error) {
	if config.Rotation.Enable {
		filename := path
		if strings.TrimSpace(config.Rotation.Filename) != "" {
			filename = config.Rotation.Filename
		}
		return &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    max(config.Rotation.MaxSizeMB, 10),
			MaxBackups: max(config.Rotation.MaxBackups, 1),
			MaxAge:     max(config.Rotation.MaxAgeDays, 7),
			Compress:   config.Rotation.Compress,
		}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}
