package pcapng

import (
	"errors"
	"fmt"
)

// Sentinel errors. Reader errors are wrapped in *BlockError, so test with errors.Is.
var (
	// ErrMalformed reports a file that violates the block or option layout.
	ErrMalformed = errors.New("pcapng: malformed file")
	// ErrUnsupported reports a well-formed block whose meaning cannot be represented.
	ErrUnsupported = errors.New("pcapng: unsupported")
	// ErrResourceLimit reports a declared size above a fixed bound.
	ErrResourceLimit = errors.New("pcapng: resource limit exceeded")
	// ErrLengthMismatch reports a block whose encoded size differs from its declared size.
	ErrLengthMismatch = errors.New("pcapng: encoded length mismatch")

	ErrNoSection        = errors.New("pcapng: no section header")
	ErrNotSeekable      = errors.New("pcapng: reader is not seekable")
	ErrUnknownInterface = errors.New("pcapng: unknown interface")
)

// BlockError locates a read error in the file.
type BlockError struct {
	Offset int64
	Type   uint32
	Err    error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("block %s at offset %d: %v", BlockTypeName(e.Type), e.Offset, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

func malformedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

func unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}

func limitf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrResourceLimit, fmt.Sprintf(format, args...))
}
