package pcapng

import (
	"bytes"
	"encoding/binary"

	"github.com/sirupsen/logrus"
)

// BlockHeader is the fixed 8-byte prefix of every block.
type BlockHeader struct {
	Type        uint32
	TotalLength uint32
}

// ContentLength is the number of bytes between header and trailer.
func (h BlockHeader) ContentLength() int {
	return int(h.TotalLength) - blockOverhead
}

// Decoder walks the content of one block. Reads past the end set a sticky
// malformed-file error and return zero values; Need checks up front.
type Decoder struct {
	buf     []byte
	pos     int
	order   binary.ByteOrder
	header  BlockHeader
	offset  int64
	section *Section
	reader  *Reader
	err     error
}

func newDecoder(content []byte, h BlockHeader, offset int64, sec *Section, r *Reader) *Decoder {
	return &Decoder{
		buf:     content,
		order:   sec.ByteOrder.Binary(),
		header:  h,
		offset:  offset,
		section: sec,
		reader:  r,
	}
}

// Order is the byte order of the section the block belongs to.
func (d *Decoder) Order() binary.ByteOrder { return d.order }

// Header is the block header as read from the file, length rounded up to 4.
func (d *Decoder) Header() BlockHeader { return d.header }

// Offset is the file offset of the block header.
func (d *Decoder) Offset() int64 { return d.offset }

// Section is the section governing the block.
func (d *Decoder) Section() *Section { return d.section }

// Logger returns the reader's logger.
func (d *Decoder) Logger() logrus.FieldLogger {
	if d.reader != nil {
		return d.reader.log
	}
	return logrus.StandardLogger()
}

// Remaining is the number of unread content bytes.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

// Err returns the first out-of-bounds read, if any.
func (d *Decoder) Err() error { return d.err }

// Need fails with a malformed-file error when fewer than n bytes remain.
func (d *Decoder) Need(n int, what string) error {
	if d.err != nil {
		return d.err
	}
	if n < 0 || d.Remaining() < n {
		d.err = malformedf("%s: need %d bytes, %d left in %s", what, n, d.Remaining(), BlockTypeName(d.header.Type))
	}
	return d.err
}

func (d *Decoder) take(n int) []byte {
	if d.Need(n, "read") != nil {
		return nil
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b
}

// Uint8 reads one byte. Like the other fixed-size reads it returns zero
// once the content is exhausted and leaves the failure in Err.
func (d *Decoder) Uint8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Uint16 reads a 16-bit value in the section's byte order.
func (d *Decoder) Uint16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return d.order.Uint16(b)
}

// Uint32 reads a 32-bit value in the section's byte order.
func (d *Decoder) Uint32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return d.order.Uint32(b)
}

// Uint64 reads a 64-bit value in the section's byte order.
func (d *Decoder) Uint64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return d.order.Uint64(b)
}

// Bytes returns the next n bytes without copying.
func (d *Decoder) Bytes(n int) []byte {
	return d.take(n)
}

// Skip advances over n bytes.
func (d *Decoder) Skip(n int) {
	d.take(n)
}

// Rest consumes and returns all remaining bytes.
func (d *Decoder) Rest() []byte {
	if d.err != nil {
		return nil
	}
	b := d.buf[d.pos:]
	d.pos = len(d.buf)
	return b
}

// Options parses the remaining bytes as the block's option list.
func (d *Decoder) Options() (Options, error) {
	if d.err != nil {
		return nil, d.err
	}
	return parseOptions(d, d.header.Type, d.Rest())
}

// Interface resolves an interface index of the current section.
func (d *Decoder) Interface(id uint32) (*Interface, error) {
	return d.section.Interface(id)
}

func (d *Decoder) strict() bool {
	return d.reader != nil && d.reader.opts.Strict
}

// Encoder accumulates the encoding of one block in the byte order of the
// section being written.
type Encoder struct {
	buf     bytes.Buffer
	order   binary.ByteOrder
	section *Section
	log     logrus.FieldLogger
}

// Order is the byte order of the section being written.
func (e *Encoder) Order() binary.ByteOrder { return e.order }

// Section is the section being written, nil before the first section header.
func (e *Encoder) Section() *Section { return e.section }

// Logger returns the writer's logger.
func (e *Encoder) Logger() logrus.FieldLogger {
	if e.log != nil {
		return e.log
	}
	return logrus.StandardLogger()
}

// Interface resolves an interface index of the section being written.
func (e *Encoder) Interface(id uint32) (*Interface, error) {
	if e.section == nil {
		return nil, ErrNoSection
	}
	return e.section.Interface(id)
}

func (e *Encoder) PutUint8(v uint8) {
	e.buf.WriteByte(v)
}

func (e *Encoder) PutUint16(v uint16) {
	var b [2]byte
	e.order.PutUint16(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) PutUint32(v uint32) {
	var b [4]byte
	e.order.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) PutUint64(v uint64) {
	var b [8]byte
	e.order.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) PutBytes(b []byte) {
	e.buf.Write(b)
}

// Pad writes the zero bytes that align a field of length n to 32 bits.
func (e *Encoder) Pad(n int) {
	var zero [3]byte
	e.buf.Write(zero[:padLen(n)])
}

// Len is the number of bytes encoded so far, block header included.
func (e *Encoder) Len() int {
	return e.buf.Len()
}

// OptionsSize is the encoded length of opts, end-of-options marker included.
func (e *Encoder) OptionsSize(blockType uint32, opts Options) (int, error) {
	return optionsSize(e, blockType, opts)
}

// PutOptions encodes opts followed by the end-of-options marker.
func (e *Encoder) PutOptions(blockType uint32, opts Options) error {
	return writeOptions(e, blockType, opts)
}
