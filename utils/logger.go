package utils

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// base carries the fields every auction-bidding log line shares
var base = log.WithField("service", "auction-bidding")

func init() {
	log.SetFormatter(&log.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
}

// SetLevel changes the global log level ("debug", "info", "warn", ...)
func SetLevel(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	return nil
}

func Debug(message string, fields map[string]any) {
	base.WithFields(fields).Debug(message)
}

// Info logs a message at info level with optional fields
func Info(message string, fields map[string]any) {
	base.WithFields(fields).Info(message)
}

func Warn(message string, fields map[string]any) {
	base.WithFields(fields).Warn(message)
}

// Error logs a message at error level with optional fields
func Error(message string, fields map[string]any) {
	base.WithFields(fields).Error(message)
}

// Fatal logs and exits
func Fatal(message string, fields map[string]any) {
	base.WithFields(fields).Fatal(message)
}
