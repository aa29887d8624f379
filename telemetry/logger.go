package telemetry

import (
	"io"
	"log/slog"

	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"

	"github.com/freekieb7/staticd/config"
)

// NewLogger returns a text or JSON logger writing to w. When telemetry is
// enabled every record is also handed to the global OTLP logger provider.
func NewLogger(w io.Writer, logCfg config.LogConfig, telemetryCfg config.TelemetryConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(logCfg.Level)}

	var handler slog.Handler
	if logCfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	if telemetryCfg.Enabled() {
		handler = slogmulti.Fanout(handler, otelslog.NewHandler(telemetryCfg.ServiceName))
	}

	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}
