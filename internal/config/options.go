package config

import (
	"github.com/sirupsen/logrus"

	"firestige.xyz/ngcap/pkg/pcapng"
)

// ReaderOptions converts the reader section into pcapng reader options.
func (c ReaderConfig) ReaderOptions(log logrus.FieldLogger) pcapng.ReaderOptions {
	return pcapng.ReaderOptions{
		MaxBlockSize:        uint32(c.MaxBlockSize),
		Strict:              c.Strict,
		SkipUnknownSections: c.SkipUnknownSections,
		ReturnUnknownBlocks: c.ReturnUnknownBlocks,
		Logger:              log,
	}
}

// WriterOptions converts the writer section into pcapng writer options.
func (c WriterConfig) WriterOptions(log logrus.FieldLogger) []pcapng.WriterOption {
	opts := []pcapng.WriterOption{
		pcapng.WithByteOrder(c.ByteOrder),
		pcapng.WithMaxNRBSize(c.MaxNRBSize.Int()),
		pcapng.WithLogger(log),
	}
	if c.Application != "" {
		opts = append(opts, pcapng.WithApplication(c.Application))
	}
	if c.BufferSize > 0 {
		opts = append(opts, pcapng.WithBufferSize(c.BufferSize.Int()))
	}
	return opts
}
