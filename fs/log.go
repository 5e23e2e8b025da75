// Package fs contains the core helpers shared by the whole program:
// leveled logging with an object prefix and small IO utilities.
package fs

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LogLevel describes the verbosity of the log output.
type LogLevel byte

// Log levels in decreasing severity.
const (
	LogLevelError LogLevel = iota
	LogLevelNotice
	LogLevelInfo
	LogLevelDebug
)

var logLevelToLogrus = map[LogLevel]logrus.Level{
	LogLevelError:  logrus.ErrorLevel,
	LogLevelNotice: logrus.WarnLevel,
	LogLevelInfo:   logrus.InfoLevel,
	LogLevelDebug:  logrus.DebugLevel,
}

// SetLogLevel sets the global log verbosity.
func SetLogLevel(level LogLevel) {
	logrus.SetLevel(logLevelToLogrus[level])
}

func logPrefix(o interface{}) string {
	if o == nil {
		return ""
	}
	return fmt.Sprintf("%v: ", o)
}

// Debugf writes debug level output for o.
func Debugf(o interface{}, format string, args ...interface{}) {
	logrus.Debugf(logPrefix(o)+format, args...)
}

// Infof writes info level output for o.
func Infof(o interface{}, format string, args ...interface{}) {
	logrus.Infof(logPrefix(o)+format, args...)
}

// Logf writes notice level output for o.
func Logf(o interface{}, format string, args ...interface{}) {
	logrus.Warnf(logPrefix(o)+format, args...)
}

// Errorf writes error level output for o.
func Errorf(o interface{}, format string, args ...interface{}) {
	logrus.Errorf(logPrefix(o)+format, args...)
}
