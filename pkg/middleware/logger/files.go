package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogDir is where rotated log files are written. LOG_DIR overrides it.
func LogDir() string {
	if d := os.Getenv("LOG_DIR"); d != "" {
		return d
	}
	return "log"
}

// NewLog returns a JSON logger that tees to a rotated file under LogDir and
// to stdout.
func NewLog(n string) *zap.Logger {
	return NewLogIn(LogDir(), n, zap.InfoLevel)
}

func NewLogIn(dir, n string, lvl zapcore.Level) *zap.Logger {
	_ = os.MkdirAll(dir, 0o755)

	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(dir, n),
		MaxSize:    50, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
	})

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, lvl),
		zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.Lock(os.Stdout), lvl),
	)
	return zap.New(core)
}
