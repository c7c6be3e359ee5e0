package wall_nav

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger from cfg.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = !cfg.Development
	return zc.Build()
}

// lidarFields flattens a lidar snapshot into log fields.
func lidarFields(l Lidars) []zap.Field {
	fields := make([]zap.Field, 0, numChannels)
	for _, c := range Channels {
		if l[c].Valid {
			fields = append(fields, zap.Float64(c.String(), l[c].Meters))
		} else {
			fields = append(fields, zap.Skip())
		}
	}
	return fields
}
