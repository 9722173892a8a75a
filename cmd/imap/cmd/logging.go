package cmd

import (
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/polytrackmods/PolyDeobfuscated/internal/config"
)

const defaultLogFilename = ".imap.log"

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// numeric slog levels, e.g. -4 for debug
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger installs a slog logger writing to a rotating log file and
// tags every record with a fresh run id. Verbose forces the debug level.
func configureLogger(cfg config.LogConfig) io.Closer {
	logPath := strings.TrimSpace(cfg.Filename)
	if logPath == "" {
		logPath = defaultLogFilename
	}

	logLevel := parseSlogLevel(cfg.Level, slog.LevelInfo)
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})
	slog.SetDefault(slog.New(handler).With("run", uuid.NewString()))
	return logWriter
}
