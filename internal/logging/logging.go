// Package logging builds the zap logger used by the command line tools.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Modes.
const (
	ModeDev  = "dev"
	ModeProd = "prod"
)

const timeFormat = "2006/01/02 15:04:05.000"

// Config selects the logger's mode and level.
type Config struct {
	Mode  string `yaml:"mode" env:"MODE"`   // dev (console, colored) or prod (JSON)
	Level string `yaml:"level" env:"LEVEL"` // debug, info, warn, error
}

// New builds a logger writing to stderr.
func New(c Config) (*zap.Logger, error) {
	return NewWithWriter(c, os.Stderr)
}

// NewWithWriter builds a logger writing to w.
func NewWithWriter(c Config, w io.Writer) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if c.Level != "" {
		if err := level.UnmarshalText([]byte(c.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
		}
	}

	var encoder zapcore.Encoder
	switch c.Mode {
	case "", ModeDev:
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = timeEncoder
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.ConsoleSeparator = " "
		encoder = zapcore.NewConsoleEncoder(cfg)
	case ModeProd:
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	default:
		return nil, fmt.Errorf("invalid log mode %q", c.Mode)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zap.PanicLevel)), nil
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format(timeFormat))
}
