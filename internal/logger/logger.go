package logger

import (
	"io"
	"os"
	"time"

	"github.com/natefinch/lumberjack"
	logrus "github.com/sirupsen/logrus"
)

// Setup routes logrus to a rotating file mirrored on stderr and returns that
// writer so the HTTP access log can share it. An empty file logs to stderr only.
func Setup(file, level string) io.Writer {
	var out io.Writer = os.Stderr
	if file != "" {
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 7,
			MaxAge:     7, // days
			Compress:   true,
		}
		out = io.MultiWriter(rotator, os.Stderr)
	}

	logrus.SetOutput(out)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
		logrus.WithField("log_level", level).Warn("Unknown LOG_LEVEL, using info")
	}
	logrus.SetLevel(lvl)
	return out
}
