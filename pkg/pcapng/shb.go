package pcapng

// Section header options.
const (
	OptSHBHardware uint16 = 2
	OptSHBOS       uint16 = 3
	OptSHBUserAppl uint16 = 4
)

const (
	VersionMajor = 1
	VersionMinor = 0

	// SectionLengthUnknown is written when the section length is not tracked.
	SectionLengthUnknown int64 = -1
)

// SectionHeader is a section header block.
type SectionHeader struct {
	ByteOrder     ByteOrder
	VersionMajor  uint16
	VersionMinor  uint16
	SectionLength int64
	Options       Options
	Offset        int64
}

// NewSectionHeader returns a version 1.0 header of unknown length.
func NewSectionHeader(order ByteOrder) *SectionHeader {
	return &SectionHeader{
		ByteOrder:     order,
		VersionMajor:  VersionMajor,
		VersionMinor:  VersionMinor,
		SectionLength: SectionLengthUnknown,
	}
}

func (*SectionHeader) BlockType() uint32 { return BlockTypeSectionHeader }

func (h *SectionHeader) Hardware() string {
	s, _ := h.Options.StringValue(OptSHBHardware)
	return s
}

func (h *SectionHeader) OS() string {
	s, _ := h.Options.StringValue(OptSHBOS)
	return s
}

func (h *SectionHeader) UserApplication() string {
	s, _ := h.Options.StringValue(OptSHBUserAppl)
	return s
}

// Supported reports whether the engine understands the section's version.
func (h *SectionHeader) Supported() bool {
	return h.VersionMajor == 1 && (h.VersionMinor == 0 || h.VersionMinor == 2)
}

func readSectionHeader(d *Decoder) (Block, error) {
	if err := d.Need(16, "section header"); err != nil {
		return nil, err
	}
	d.Skip(4) // magic, checked by the framer
	h := &SectionHeader{
		ByteOrder:     d.Section().ByteOrder,
		VersionMajor:  d.Uint16(),
		VersionMinor:  d.Uint16(),
		SectionLength: int64(d.Uint64()),
		Offset:        d.Offset(),
	}
	if !h.Supported() {
		// Later majors may change the block layout, leave the rest unparsed.
		return h, nil
	}
	opts, err := d.Options()
	if err != nil {
		return nil, err
	}
	h.Options = opts
	return h, nil
}

func sizeSectionHeader(e *Encoder, b Block) (int, error) {
	h := b.(*SectionHeader)
	n, err := e.OptionsSize(BlockTypeSectionHeader, h.Options)
	if err != nil {
		return 0, err
	}
	return 16 + n, nil
}

func writeSectionHeader(e *Encoder, b Block) error {
	h := b.(*SectionHeader)
	e.PutUint32(ByteOrderMagic)
	e.PutUint16(h.VersionMajor)
	e.PutUint16(h.VersionMinor)
	e.PutUint64(uint64(h.SectionLength))
	return e.PutOptions(BlockTypeSectionHeader, h.Options)
}

func processSectionHeader(r *Reader, b Block) error {
	h := b.(*SectionHeader)
	sec := newSection(h.Offset, h.ByteOrder, h)
	if !h.Supported() {
		if !r.opts.SkipUnknownSections {
			return unsupportedf("section version %d.%d", h.VersionMajor, h.VersionMinor)
		}
		r.log.WithField("offset", h.Offset).Warnf("skipping section with version %d.%d", h.VersionMajor, h.VersionMinor)
		sec.skipped = true
	}
	r.beginSection(sec)
	return nil
}
