package log

import (
	"errors"
	"fmt"
	"io"
)

// MultiWriter fans log output out to its appenders. Every appender gets each
// write and the failures are reported together.
type MultiWriter struct {
	appenders []appender
}

type appender struct {
	w     io.Writer
	owned bool
}

func (m *MultiWriter) Write(p []byte) (int, error) {
	var errs []error
	for i, a := range m.appenders {
		n, err := a.w.Write(p)
		if err == nil && n < len(p) {
			err = io.ErrShortWrite
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("log appender %d: %w", i, err))
		}
	}
	return len(p), errors.Join(errs...)
}

// Add appends a writer the caller keeps ownership of.
func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.appenders = append(m.appenders, appender{w: writer})
	return m
}

func (m *MultiWriter) own(writer io.WriteCloser) *MultiWriter {
	m.appenders = append(m.appenders, appender{w: writer, owned: true})
	return m
}

// Close closes the appenders the writer opened itself, such as rotating
// files. Writers given to Add stay open.
func (m *MultiWriter) Close() error {
	var errs []error
	for _, a := range m.appenders {
		if a.owned {
			errs = append(errs, a.w.(io.Closer).Close())
		}
	}
	return errors.Join(errs...)
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{}
}
