package logging

import (
	"log/slog"
	"os"
)

// Logger is the application-wide structured logger instance. It starts as
// the process default so packages can log before InitLogger runs.
var Logger = slog.Default()

// InitLogger initializes the global logger with the specified level and format.
// level: "debug", "info", "warn", "error" (defaults to "info")
// format: "json" or "text" (defaults to "text")
func InitLogger(level, format string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: logLevel}

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// WithDeployment returns a logger with a deployment_id field.
func WithDeployment(deploymentID string) *slog.Logger {
	return Logger.With("deployment_id", deploymentID)
}

// WithImage returns a logger with an image field.
func WithImage(image string) *slog.Logger {
	return Logger.With("image", image)
}
