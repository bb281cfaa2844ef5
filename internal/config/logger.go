package config

import (
	"log/slog"
	"os"
)

// NewLoggerはLOG_FORMATに応じたslog.Loggerを返す。
func NewLogger(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if !cfg.IsProduction() {
		opts.Level = slog.LevelDebug
	}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
