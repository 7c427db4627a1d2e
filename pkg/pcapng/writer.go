package pcapng

import (
	"bufio"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// WriterOptions configures a Writer.
type WriterOptions struct {
	ByteOrder   ByteOrder
	MaxNRBSize  int
	Application string
	BufferSize  int
	Logger      logrus.FieldLogger
}

// WriterOption sets one field of WriterOptions, failing on out-of-range values.
type WriterOption func(*WriterOptions) error

// WithByteOrder sets the byte order of the section header written when the
// first block is not one.
func WithByteOrder(order ByteOrder) WriterOption {
	return func(o *WriterOptions) error {
		if order != LittleEndian && order != BigEndian {
			return fmt.Errorf("pcapng: unsupported byte order %d", order)
		}
		o.ByteOrder = order
		return nil
	}
}

// WithMaxNRBSize bounds the total length of each name resolution block.
func WithMaxNRBSize(n int) WriterOption {
	return func(o *WriterOptions) error {
		if n < minNRBLength+nrbRecordHdrLen || n > MaxBlockSize {
			return fmt.Errorf("pcapng: name resolution block size %d out of range", n)
		}
		o.MaxNRBSize = n
		return nil
	}
}

// WithApplication sets shb_userappl of the default section header.
func WithApplication(name string) WriterOption {
	return func(o *WriterOptions) error {
		o.Application = name
		return nil
	}
}

// WithBufferSize buffers output in chunks of size bytes. Flush must be
// called for the last chunk to reach the underlying writer.
func WithBufferSize(size int) WriterOption {
	return func(o *WriterOptions) error {
		if size <= 0 {
			return fmt.Errorf("pcapng: buffer size must be positive")
		}
		o.BufferSize = size
		return nil
	}
}

// WithLogger sets the logger for writer diagnostics.
func WithLogger(log logrus.FieldLogger) WriterOption {
	return func(o *WriterOptions) error {
		o.Logger = log
		return nil
	}
}

// Writer encodes blocks to a pcapng stream. It is not safe for concurrent use.
type Writer struct {
	w    io.Writer
	buf  *bufio.Writer
	opts WriterOptions
	enc  Encoder

	section *Section
	blocks  int
}

// NewWriter returns a Writer emitting to w. Nothing is written until the
// first block; a section header is supplied then if that block is not one.
func NewWriter(w io.Writer, opts ...WriterOption) (*Writer, error) {
	cfg := WriterOptions{
		ByteOrder:  LittleEndian,
		MaxNRBSize: DefaultMaxNRBSize,
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	writer := &Writer{
		w:    w,
		opts: cfg,
		enc:  Encoder{log: cfg.Logger},
	}
	if cfg.BufferSize > 0 {
		writer.buf = bufio.NewWriterSize(w, cfg.BufferSize)
		writer.w = writer.buf
	}
	return writer, nil
}

// Section is the section being written, nil before the first block.
func (w *Writer) Section() *Section { return w.section }

// Blocks is the number of blocks written.
func (w *Writer) Blocks() int { return w.blocks }

// WriteBlock encodes b, starting a default section first when needed and
// splitting b when its handler requires it.
func (w *Writer) WriteBlock(b Block) error {
	if b == nil {
		return fmt.Errorf("pcapng: block is nil")
	}
	if b.BlockType() != BlockTypeSectionHeader && w.section == nil {
		if err := w.writeDefaultSection(); err != nil {
			return err
		}
	}

	h, _ := handlerFor(b.BlockType())
	if _, raw := b.(*RawBlock); raw {
		h = &rawHandler
	}
	if h.Split == nil {
		return w.writeFrame(h, b)
	}
	parts, err := h.Split(&w.enc, b, w.splitLimit(b.BlockType()))
	if err != nil {
		return err
	}
	for _, part := range parts {
		if err := w.writeFrame(h, part); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) splitLimit(blockType uint32) int {
	if blockType == BlockTypeNameResolution {
		return w.opts.MaxNRBSize
	}
	return MaxBlockSize
}

func (w *Writer) writeDefaultSection() error {
	shb := NewSectionHeader(w.opts.ByteOrder)
	if w.opts.Application != "" {
		shb.Options.Add(OptSHBUserAppl, w.opts.Application)
	}
	return w.WriteSectionHeader(shb)
}

// writeFrame buffers the whole block so that nothing is emitted when the
// encoded content disagrees with its size.
func (w *Writer) writeFrame(h *BlockHandler, b Block) error {
	typ := b.BlockType()
	e := &w.enc
	e.buf.Reset()
	if shb, ok := b.(*SectionHeader); ok {
		e.order = shb.ByteOrder.Binary()
		e.section = nil
	}

	size, err := h.Size(e, b)
	if err != nil {
		return fmt.Errorf("pcapng: sizing %s: %w", BlockTypeName(typ), err)
	}
	if size%4 != 0 {
		return fmt.Errorf("%w: %s content of %d bytes is not 32-bit aligned", ErrLengthMismatch, BlockTypeName(typ), size)
	}
	total := size + blockOverhead
	if total > MaxBlockSize {
		return limitf("%s of %d bytes exceeds %d", BlockTypeName(typ), total, MaxBlockSize)
	}

	e.PutUint32(typ)
	e.PutUint32(uint32(total))
	if err := h.Write(e, b); err != nil {
		return fmt.Errorf("pcapng: writing %s: %w", BlockTypeName(typ), err)
	}
	if got := e.Len() - blockHeaderLen; got != size {
		return fmt.Errorf("%w: %s sized %d bytes, wrote %d", ErrLengthMismatch, BlockTypeName(typ), size, got)
	}
	e.PutUint32(uint32(total))

	if _, err := w.w.Write(e.buf.Bytes()); err != nil {
		return err
	}
	w.blocks++
	return w.track(b)
}

// track mirrors the reader's section state for the blocks just written.
func (w *Writer) track(b Block) error {
	switch blk := b.(type) {
	case *SectionHeader:
		w.section = newSection(0, blk.ByteOrder, blk)
		w.enc.section = w.section
	case *InterfaceDescription:
		iface, err := NewInterface(blk)
		if err != nil {
			return err
		}
		w.section.addInterface(iface)
	}
	return nil
}

// WriteSectionHeader starts a new section. Interfaces of earlier sections
// are no longer addressable.
func (w *Writer) WriteSectionHeader(h *SectionHeader) error {
	return w.WriteBlock(h)
}

// AddInterface writes an interface description and returns the interface
// packets must refer to.
func (w *Writer) AddInterface(desc *InterfaceDescription) (*Interface, error) {
	if _, err := NewInterface(desc); err != nil {
		return nil, err
	}
	if err := w.WriteBlock(desc); err != nil {
		return nil, err
	}
	return w.section.Interfaces[len(w.section.Interfaces)-1], nil
}

// WritePacket writes an enhanced, simple or obsolete packet block depending
// on p.Kind. A zero OriginalLength is taken as the captured length.
func (w *Writer) WritePacket(p *Packet) error {
	if p == nil {
		return fmt.Errorf("pcapng: packet is nil")
	}
	if w.section == nil {
		return fmt.Errorf("%w: add an interface before writing packets", ErrNoSection)
	}
	if _, err := w.section.Interface(p.InterfaceID); err != nil {
		return err
	}
	if p.OriginalLength == 0 {
		p.OriginalLength = p.captured()
	}
	return w.WriteBlock(p)
}

// WriteNameResolution writes nrb, split into several blocks when it exceeds
// the configured maximum size.
func (w *Writer) WriteNameResolution(nrb *NameResolution) error {
	return w.WriteBlock(nrb)
}

func (w *Writer) WriteStatistics(s *InterfaceStatistics) error {
	if w.section == nil {
		return ErrNoSection
	}
	if _, err := w.section.Interface(s.InterfaceID); err != nil {
		return err
	}
	return w.WriteBlock(s)
}

func (w *Writer) WriteSecrets(s *DecryptionSecrets) error {
	return w.WriteBlock(s)
}

func (w *Writer) WriteCustom(cb *CustomBlock) error {
	return w.WriteBlock(cb)
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.buf == nil {
		return nil
	}
	return w.buf.Flush()
}
