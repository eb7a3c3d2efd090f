package sl

import (
	"io"
	"log/slog"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// SetupLogger создаёт текстовый логгер: debug для local и dev, info для остальных окружений.
func SetupLogger(env string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch env {
	case envLocal, envDev:
		level = slog.LevelDebug
	case envProd:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
