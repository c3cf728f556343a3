// Package observability provides logging, metrics, health probes, and
// graceful shutdown.
package observability

import (
	"github.com/sirupsen/logrus"
)

// NewLogger creates a JSON structured logger at the given level. Unknown
// levels fall back to info.
func NewLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}
