// Package logger configures the process-wide structured logger.
package logger

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup configures the standard logger for the given level and returns it.
// Unknown levels fall back to info with a warning so a configuration typo
// never blocks startup.
func Setup(level string) *logrus.Logger {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		log.Warnf("Unknown log level %q, using info", level)
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}

// WithComponent returns an entry on the given logger tagged with the
// originating component.
func WithComponent(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}
