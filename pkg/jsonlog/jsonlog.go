// Package jsonlog configures the Gateway's process-wide structured
// logger. The Gateway logs via log/slog (matching the
// teacher's slog-based handlers), the Robot Agent via zap (matching the
// reference agent). This package only standardizes the slog side;
// zap.NewProduction()/zap.NewDevelopment() is used directly where zap
// is the chosen logger.
package jsonlog

import (
	"log/slog"
	"os"
)

// InitGateway installs a JSON slog handler at the given level as the
// process default logger, used by cmd/gateway.
func InitGateway(env string) *slog.Logger {
	level := slog.LevelInfo
	if env == "development" {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
