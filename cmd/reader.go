package cmd

import (
	"fmt"
	"os"

	"firestige.xyz/ngcap/internal/config"
	"firestige.xyz/ngcap/internal/log"
	"firestige.xyz/ngcap/internal/metrics"
	"firestige.xyz/ngcap/pkg/pcapng"
)

// capture is an open pcapng file.
type capture struct {
	file   *os.File
	reader *pcapng.Reader
}

// openCapture opens path with the configured reader settings. Every reader
// reports to the prometheus counters.
func openCapture(path string, rc config.ReaderConfig, tune func(*pcapng.ReaderOptions)) (*capture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	opts := rc.ReaderOptions(log.Entry().WithField("file", path))
	opts.Observer = metrics.ReaderObserver{}
	if tune != nil {
		tune(&opts)
	}

	r, err := pcapng.NewReader(f, opts)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &capture{file: f, reader: r}, nil
}

func (c *capture) Close() error {
	return c.file.Close()
}
