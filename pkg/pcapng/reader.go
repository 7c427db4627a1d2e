package pcapng

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/google/gopacket"
	"github.com/sirupsen/logrus"
)

const readerBufferSize = 64 * 1024

// Observer is notified of reader progress. Implementations must be cheap;
// they run on the reading goroutine.
type Observer interface {
	BlockRead(blockType uint32, length uint32)
	BlockSkipped(blockType uint32)
	ReadError(err error)
}

// ReaderOptions tunes a Reader. The zero value is usable.
type ReaderOptions struct {
	// MaxBlockSize lowers the largest accepted block length. Zero or values
	// above MaxBlockSize mean MaxBlockSize.
	MaxBlockSize uint32
	// Strict rejects block lengths that are not a multiple of 4 instead of
	// rounding them up.
	Strict bool
	// SkipUnknownSections ignores sections of an unsupported version instead
	// of failing.
	SkipUnknownSections bool
	// ReturnUnknownBlocks makes Next return blocks of unregistered types as
	// *RawBlock instead of skipping them.
	ReturnUnknownBlocks bool
	// ReturnAllBlocks makes Next return administrative blocks as well, after
	// they have updated the reader state. Implies ReturnUnknownBlocks.
	ReturnAllBlocks bool

	Logger   logrus.FieldLogger
	Observer Observer
}

// Reader is a pull iterator over the blocks of a pcapng stream. It is not
// safe for concurrent use.
type Reader struct {
	src  io.Reader
	br   *bufio.Reader
	opts ReaderOptions
	log  logrus.FieldLogger

	offset   int64
	sections sectionTable
	section  *Section

	linkType    uint16
	precision   Precision
	aggregateOK bool

	names   NameTable
	stats   []*InterfaceStatistics
	secrets []*DecryptionSecrets

	pending Block
	err     error
}

var _ gopacket.PacketDataSource = (*Reader)(nil)

// NewReader reads the first section header of r. ReadAt needs r to be an
// io.ReaderAt or an io.Seeker positioned at the start of the stream.
func NewReader(r io.Reader, opts ReaderOptions) (*Reader, error) {
	if opts.MaxBlockSize == 0 || opts.MaxBlockSize > MaxBlockSize {
		opts.MaxBlockSize = MaxBlockSize
	}
	if opts.ReturnAllBlocks {
		opts.ReturnUnknownBlocks = true
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	reader := &Reader{
		src:   r,
		br:    bufio.NewReaderSize(r, readerBufferSize),
		opts:  opts,
		log:   log,
		names: make(NameTable),
	}

	b, ret, err := reader.next()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty input", ErrNoSection)
		}
		return nil, err
	}
	if ret {
		reader.pending = b
	}
	return reader, nil
}

// Next returns the next block for the caller: packets, custom blocks and
// events, plus unknown and administrative blocks when the options ask for
// them. It returns io.EOF at the end of the stream. Errors are terminal.
func (r *Reader) Next() (Block, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.pending != nil {
		b := r.pending
		r.pending = nil
		return b, nil
	}
	for {
		b, ret, err := r.next()
		if err != nil {
			r.fail(err)
			return nil, err
		}
		if ret {
			return b, nil
		}
	}
}

// ReadPacket returns the next packet record, absorbing every other block.
func (r *Reader) ReadPacket() (*Packet, error) {
	for {
		b, err := r.Next()
		if err != nil {
			return nil, err
		}
		if p, ok := b.(*Packet); ok {
			return p, nil
		}
	}
}

// ReadPacketData implements gopacket.PacketDataSource. The pseudo-header, if
// any, is not part of data.
func (r *Reader) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	p, err := r.ReadPacket()
	if err != nil {
		return nil, gopacket.CaptureInfo{}, err
	}
	return p.Data, p.CaptureInfo(), nil
}

// ReadAt decodes the single block at offset using the section that governs
// it. Reader state is not updated and the sequential position is kept.
func (r *Reader) ReadAt(offset int64) (b Block, err error) {
	sec, ok := r.sections.at(offset)
	if !ok {
		return nil, &BlockError{Offset: offset, Err: ErrNoSection}
	}

	var src io.Reader
	switch s := r.src.(type) {
	case io.ReaderAt:
		src = io.NewSectionReader(s, offset, math.MaxInt64-offset)
	case io.Seeker:
		pos, serr := s.Seek(0, io.SeekCurrent)
		if serr != nil {
			return nil, serr
		}
		if _, serr := s.Seek(offset, io.SeekStart); serr != nil {
			return nil, serr
		}
		defer func() {
			if _, serr := s.Seek(pos, io.SeekStart); serr != nil && err == nil {
				b, err = nil, serr
			}
		}()
		src = r.src
	default:
		return nil, ErrNotSeekable
	}

	f, err := r.readFrame(src, offset, sec)
	if err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, &BlockError{Offset: offset, Err: err}
	}
	if f.header.Type == BlockTypeSectionHeader {
		sec = newSection(offset, f.order, nil)
	}
	h, _ := handlerFor(f.header.Type)
	b, err = h.Read(newDecoder(f.content, f.header, offset, sec, r))
	if err != nil {
		return nil, &BlockError{Offset: offset, Type: f.header.Type, Err: err}
	}
	return b, nil
}

// next reads one block and reports whether Next should return it.
func (r *Reader) next() (Block, bool, error) {
	offset := r.offset
	f, err := r.readFrame(r.br, offset, r.section)
	if err != nil {
		if err == io.EOF {
			return nil, false, io.EOF
		}
		return nil, false, &BlockError{Offset: offset, Err: err}
	}
	r.offset += int64(f.header.TotalLength)
	typ := f.header.Type
	if r.opts.Observer != nil {
		r.opts.Observer.BlockRead(typ, f.header.TotalLength)
	}

	if r.section != nil && r.section.skipped && typ != BlockTypeSectionHeader {
		r.skipped(typ)
		return nil, false, nil
	}

	h, known := handlerFor(typ)
	if !known && !r.opts.ReturnUnknownBlocks {
		r.log.WithField("offset", offset).Debugf("skipping unknown block type 0x%08X", typ)
		r.skipped(typ)
		return nil, false, nil
	}

	sec := r.section
	if typ == BlockTypeSectionHeader {
		sec = newSection(offset, f.order, nil)
	}
	b, err := h.Read(newDecoder(f.content, f.header, offset, sec, r))
	if err != nil {
		return nil, false, &BlockError{Offset: offset, Type: typ, Err: err}
	}
	if h.Process != nil {
		if err := h.Process(r, b); err != nil {
			return nil, false, &BlockError{Offset: offset, Type: typ, Err: err}
		}
	}
	if h.Kind == KindAdministrative && !r.opts.ReturnAllBlocks {
		return nil, false, nil
	}
	return b, true, nil
}

func (r *Reader) skipped(typ uint32) {
	if r.opts.Observer != nil {
		r.opts.Observer.BlockSkipped(typ)
	}
}

func (r *Reader) fail(err error) {
	r.err = err
	if err != io.EOF && r.opts.Observer != nil {
		r.opts.Observer.ReadError(err)
	}
}

func (r *Reader) beginSection(sec *Section) {
	r.sections.add(sec)
	r.section = sec
}

func (r *Reader) addInterface(iface *Interface) {
	r.section.addInterface(iface)
	if !r.aggregateOK {
		r.linkType = iface.LinkType
		r.precision = iface.Precision
		r.aggregateOK = true
		return
	}
	if r.linkType != iface.LinkType {
		r.linkType = LinkTypePerPacket
	}
	if r.precision != iface.Precision {
		r.precision = PrecisionPerPacket
	}
}

// Offset is the file offset of the next block read by Next.
func (r *Reader) Offset() int64 { return r.offset }

// Sections returns every section seen so far in file order.
func (r *Reader) Sections() []*Section { return r.sections.all() }

// Section returns the current section.
func (r *Reader) Section() *Section { return r.section }

// Interfaces returns the interfaces of the current section.
func (r *Reader) Interfaces() []*Interface {
	if r.section == nil {
		return nil
	}
	return r.section.Interfaces
}

// Interface returns interface i of the current section.
func (r *Reader) Interface(i int) (*Interface, error) {
	if r.section == nil {
		return nil, ErrNoSection
	}
	if i < 0 {
		return nil, ErrUnknownInterface
	}
	return r.section.Interface(uint32(i))
}

// NameTable returns the names accumulated from every name resolution block.
func (r *Reader) NameTable() NameTable { return r.names }

// Statistics returns every interface statistics block read so far.
func (r *Reader) Statistics() []*InterfaceStatistics { return r.stats }

// Secrets returns every decryption secrets block read so far.
func (r *Reader) Secrets() []*DecryptionSecrets { return r.secrets }

// LinkType is the link type shared by all interfaces, LinkTypePerPacket when
// they differ.
func (r *Reader) LinkType() uint16 { return r.linkType }

// Precision is the timestamp precision shared by all interfaces,
// PrecisionPerPacket when they differ.
func (r *Reader) Precision() Precision { return r.precision }

// Err returns the terminal error, nil while reading can continue.
func (r *Reader) Err() error {
	if errors.Is(r.err, io.EOF) {
		return nil
	}
	return r.err
}
