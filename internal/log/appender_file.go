package log

import "gopkg.in/natefinch/lumberjack.v2"

// FileAppenderOpt configures a rotating log file.
type FileAppenderOpt struct {
	Filename   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// AddFileAppender appends a rotating file that Close releases.
func (m *MultiWriter) AddFileAppender(options FileAppenderOpt) *MultiWriter {
	return m.own(&lumberjack.Logger{
		Filename:   options.Filename,
		MaxSize:    options.MaxSize,
		MaxBackups: options.MaxBackups,
		MaxAge:     options.MaxAge,
		Compress:   options.Compress,
	})
}
