// Package logger builds the bridge's logrus instance and the hook that
// mirrors warnings onto the event bus for live observers.
package logger

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/silabio/sila2-bridge/internal/config"
)

// New creates a logrus logger from config. Unknown levels fall back to
// info.
func New(cfg config.LoggingConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log
}
