package config

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level  string         `yaml:"level"`          // "debug", "info", "warn", "error" or "none"
	Format string         `yaml:"format"`         // "console" or "json"
	File   *LogFileConfig `yaml:"file,omitempty"` // Optional rotating log file
}

// LogFileConfig configures the rotating log file
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`  // Default: 10
	MaxBackups int    `yaml:"max_backups,omitempty"`  // Default: 3
	MaxAgeDays int    `yaml:"max_age_days,omitempty"` // Default: 28
	Compress   bool   `yaml:"compress,omitempty"`
}

func (c LoggingConfig) level() (zapcore.Level, bool, error) {
	switch strings.ToLower(c.Level) {
	case "", "info", "normal":
		return zapcore.InfoLevel, true, nil
	case "debug":
		return zapcore.DebugLevel, true, nil
	case "warn":
		return zapcore.WarnLevel, true, nil
	case "error":
		return zapcore.ErrorLevel, true, nil
	case "none":
		return zapcore.InfoLevel, false, nil
	}
	return zapcore.InfoLevel, false, fmt.Errorf("logging.level: unknown level %q", c.Level)
}

// Validate checks the logging section
func (c LoggingConfig) Validate() error {
	if _, _, err := c.level(); err != nil {
		return err
	}
	if f := strings.ToLower(c.Format); f != "" && f != "console" && f != "json" {
		return fmt.Errorf("logging.format: %q must be \"console\" or \"json\"", c.Format)
	}
	if c.File != nil && c.File.Path == "" {
		return fmt.Errorf("logging.file.path is required when logging.file is set")
	}
	return nil
}

// Prepare returns the program logger: a console core on stderr and, when
// configured, a JSON core writing to a rotating file.
func (c LoggingConfig) Prepare() (*zap.Logger, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	lvl, enabled, _ := c.level()
	if !enabled {
		return zap.NewNop(), nil
	}

	var consoleEncoder zapcore.Encoder
	if strings.EqualFold(c.Format, "json") {
		consoleEncoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeCaller = nil
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		consoleEncoder = zapcore.NewConsoleEncoder(ec)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), lvl),
	}

	if c.File != nil {
		w := &lumberjack.Logger{
			Filename:   c.File.Path,
			MaxSize:    orDefault(c.File.MaxSizeMB, 10),
			MaxBackups: orDefault(c.File.MaxBackups, 3),
			MaxAge:     orDefault(c.File.MaxAgeDays, 28),
			Compress:   c.File.Compress,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(w),
			lvl,
		))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Named("patternview"), nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
