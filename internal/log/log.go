// Package log wraps logrus behind a small Logger interface shared by the
// CLI and the pcapng engine.
package log

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	mu     sync.RWMutex
	logger = &logrusAdapter{entry: logrus.NewEntry(logrus.StandardLogger())}
)

// GetLogger returns the process logger. Before Init it writes to the
// logrus standard logger.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Entry returns the logrus entry behind the process logger, for libraries
// that accept a logrus.FieldLogger.
func Entry() *logrus.Entry {
	mu.RLock()
	defer mu.RUnlock()
	return logger.entry
}

func setLogger(l *logrus.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = &logrusAdapter{entry: logrus.NewEntry(l)}
}
