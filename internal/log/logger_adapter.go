package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"firestige.xyz/ngcap/internal/config"
)

const (
	defaultPattern    = "%time [%level] %field %msg\n"
	defaultTimeFormat = "2006-01-02 15:04:05.000"
)

type logrusAdapter struct {
	entry *logrus.Entry
}

// Init replaces the process logger with one built from cfg. Logs go to
// stderr so that command output on stdout stays machine readable.
func Init(cfg config.LogConfig) error {
	l, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	prev := Entry().Logger.Out
	setLogger(l)
	if m, ok := prev.(*MultiWriter); ok {
		return m.Close()
	}
	return nil
}

func newLogger(cfg config.LogConfig, console io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	l := logrus.New()
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		pattern, timeFormat := cfg.Pattern, cfg.TimeFormat
		if pattern == "" {
			pattern = defaultPattern
		}
		if timeFormat == "" {
			timeFormat = defaultTimeFormat
		}
		l.SetFormatter(&formatter{pattern: pattern, time: timeFormat})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: cfg.TimeFormat})
	case "console":
		l.SetFormatter(&prefixed.TextFormatter{FullTimestamp: true, TimestampFormat: cfg.TimeFormat})
	default:
		return nil, fmt.Errorf("unsupported log format: %s (must be text, json or console)", cfg.Format)
	}

	out := NewMultiWriter().Add(console)
	if cfg.Outputs.File.Enabled {
		fc := cfg.Outputs.File
		if fc.Path == "" {
			return nil, fmt.Errorf("file output requires 'path' field")
		}
		out.AddFileAppender(FileAppenderOpt{
			Filename:   fc.Path,
			MaxSize:    fc.Rotation.MaxSizeMB,
			MaxBackups: fc.Rotation.MaxBackups,
			MaxAge:     fc.Rotation.MaxAgeDays,
			Compress:   fc.Rotation.Compress,
		})
	}
	l.SetOutput(out)
	return l, nil
}

func (l *logrusAdapter) Print(args ...interface{})                 { l.entry.Print(args...) }
func (l *logrusAdapter) Printf(format string, args ...interface{}) { l.entry.Printf(format, args...) }

func (l *logrusAdapter) Trace(args ...interface{})                 { l.entry.Trace(args...) }
func (l *logrusAdapter) Tracef(format string, args ...interface{}) { l.entry.Tracef(format, args...) }

func (l *logrusAdapter) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logrusAdapter) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *logrusAdapter) Info(args ...interface{})                 { l.entry.Info(args...) }
func (l *logrusAdapter) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

func (l *logrusAdapter) Warn(args ...interface{})                 { l.entry.Warn(args...) }
func (l *logrusAdapter) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

func (l *logrusAdapter) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logrusAdapter) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusAdapter) Fatal(args ...interface{})                 { l.entry.Fatal(args...) }
func (l *logrusAdapter) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

func (l *logrusAdapter) WithField(field string, value interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithField(field, value)}
}
func (l *logrusAdapter) WithFields(fields map[string]interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithFields(fields)}
}
func (l *logrusAdapter) WithError(err error) Logger {
	return &logrusAdapter{entry: l.entry.WithError(err)}
}

func (l *logrusAdapter) IsTraceEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.TraceLevel)
}
func (l *logrusAdapter) IsDebugEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}
func (l *logrusAdapter) IsInfoEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.InfoLevel)
}
