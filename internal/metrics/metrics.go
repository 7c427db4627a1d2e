// Package metrics implements Prometheus metrics.
package metrics

import (
	"errors"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"firestige.xyz/ngcap/pkg/pcapng"
)

var (
	// BlocksReadTotal counts blocks framed by readers, by block type
	BlocksReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ngcap_blocks_read_total",
			Help: "Total number of pcapng blocks read",
		},
		[]string{"type"},
	)

	// BlockBytesReadTotal counts block bytes read, header and trailer included
	BlockBytesReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ngcap_block_bytes_read_total",
			Help: "Total number of pcapng block bytes read",
		},
		[]string{"type"},
	)

	// BlocksSkippedTotal counts blocks read but not decoded
	BlocksSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ngcap_blocks_skipped_total",
			Help: "Total number of pcapng blocks skipped",
		},
		[]string{"type"},
	)

	// ReadErrorsTotal counts terminal read errors by kind
	ReadErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ngcap_read_errors_total",
			Help: "Total number of pcapng read errors",
		},
		[]string{"kind"},
	)

	// BlocksWrittenTotal counts blocks written, by block type
	BlocksWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ngcap_blocks_written_total",
			Help: "Total number of pcapng blocks written",
		},
		[]string{"type"},
	)

	// PacketsFilteredTotal counts packets dropped by a packet filter
	PacketsFilteredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ngcap_packets_filtered_total",
			Help: "Total number of packets dropped by the packet filter",
		},
	)
)

// ReaderObserver feeds reader progress into the package counters.
type ReaderObserver struct{}

var _ pcapng.Observer = ReaderObserver{}

func (ReaderObserver) BlockRead(blockType uint32, length uint32) {
	name := pcapng.BlockTypeName(blockType)
	BlocksReadTotal.WithLabelValues(name).Inc()
	BlockBytesReadTotal.WithLabelValues(name).Add(float64(length))
}

func (ReaderObserver) BlockSkipped(blockType uint32) {
	BlocksSkippedTotal.WithLabelValues(pcapng.BlockTypeName(blockType)).Inc()
}

func (ReaderObserver) ReadError(err error) {
	ReadErrorsTotal.WithLabelValues(ErrorKind(err)).Inc()
}

// ErrorKind classifies a reader error for the kind label.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, pcapng.ErrMalformed):
		return "malformed"
	case errors.Is(err, pcapng.ErrUnsupported):
		return "unsupported"
	case errors.Is(err, pcapng.ErrResourceLimit):
		return "resource_limit"
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "truncated"
	default:
		return "io"
	}
}
