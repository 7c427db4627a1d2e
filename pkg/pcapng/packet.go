package pcapng

import (
	"time"

	"github.com/google/gopacket"
)

// Enhanced packet options. The obsolete packet block shares flags and hash.
const (
	OptEPBFlags     uint16 = 2
	OptEPBHash      uint16 = 3
	OptEPBDropCount uint16 = 4
	OptEPBPacketID  uint16 = 5
	OptEPBQueue     uint16 = 6
	OptEPBVerdict   uint16 = 7
)

// epb_flags fields.
const (
	FlagDirectionMask    uint32 = 0x00000003
	FlagReceptionMask    uint32 = 0x0000001C
	FlagFCSLenMask       uint32 = 0x000001E0
	FlagLinkErrorMask    uint32 = 0xFFFF0000
	DirectionUnknown     uint32 = 0
	DirectionInbound     uint32 = 1
	DirectionOutbound    uint32 = 2
	ReceptionUnspecified uint32 = 0
	ReceptionUnicast     uint32 = 1
	ReceptionMulticast   uint32 = 2
	ReceptionBroadcast   uint32 = 3
	ReceptionPromiscuous uint32 = 4
)

const (
	flagReceptionShift = 2
	flagFCSLenShift    = 5
)

// Reception returns the reception type bits of a flags word.
func Reception(flags uint32) uint32 {
	return (flags & FlagReceptionMask) >> flagReceptionShift
}

// Verdict types carried in the first byte of epb_verdict.
const (
	VerdictHardware uint8 = 0
	VerdictLinuxTC  uint8 = 1
	VerdictXDP      uint8 = 2
)

// PacketKind is the block a packet record came from.
type PacketKind uint8

const (
	PacketEnhanced PacketKind = iota
	PacketSimple
	PacketObsolete
)

func (k PacketKind) String() string {
	switch k {
	case PacketEnhanced:
		return "EPB"
	case PacketSimple:
		return "SPB"
	case PacketObsolete:
		return "PB"
	}
	return "unknown"
}

// Packet is a packet record from an enhanced, simple or obsolete packet block.
type Packet struct {
	Kind        PacketKind
	InterfaceID uint32
	Interface   *Interface

	// TimestampUnits is the raw counter in units of the interface resolution.
	// The writer uses it when non-zero and derives it from Timestamp otherwise.
	TimestampUnits uint64
	Timestamp      time.Time

	CaptureLength  uint32
	OriginalLength uint32
	PseudoHeader   []byte
	Data           []byte

	// FCSLen is the frame check sequence length in bits, -1 when unknown.
	FCSLen int
	// DropCount is the drops_count field of an obsolete packet block.
	DropCount uint16

	Options Options
	Offset  int64
}

func (p *Packet) BlockType() uint32 {
	switch p.Kind {
	case PacketSimple:
		return BlockTypeSimplePacket
	case PacketObsolete:
		return BlockTypePacket
	}
	return BlockTypeEnhancedPacket
}

// CaptureInfo describes the packet for gopacket. Lengths exclude the
// pseudo-header.
func (p *Packet) CaptureInfo() gopacket.CaptureInfo {
	length := int(p.OriginalLength) - len(p.PseudoHeader)
	if length < len(p.Data) {
		length = len(p.Data)
	}
	return gopacket.CaptureInfo{
		Timestamp:      p.Timestamp,
		CaptureLength:  len(p.Data),
		Length:         length,
		InterfaceIndex: int(p.InterfaceID),
	}
}

// Flags returns the epb_flags word.
func (p *Packet) Flags() (uint32, bool) { return p.Options.Uint32(OptEPBFlags) }

// Direction is the inbound/outbound bits of the flags word.
func (p *Packet) Direction() uint32 {
	f, _ := p.Flags()
	return f & FlagDirectionMask
}

// Hash returns the raw epb_hash value: the algorithm byte followed by the
// digest.
func (p *Packet) Hash() ([]byte, bool) {
	v, ok := p.Options.Get(OptEPBHash)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

// DroppedSincePrevious is epb_dropcount.
func (p *Packet) DroppedSincePrevious() (uint64, bool) { return p.Options.Uint64(OptEPBDropCount) }

// PacketID is epb_packetid.
func (p *Packet) PacketID() (uint64, bool) { return p.Options.Uint64(OptEPBPacketID) }

// Queue is the epb_queue the packet was received on.
func (p *Packet) Queue() (uint32, bool) { return p.Options.Uint32(OptEPBQueue) }

// Verdicts returns every epb_verdict value in order.
func (p *Packet) Verdicts() [][]byte {
	var verdicts [][]byte
	for _, v := range p.Options.All(OptEPBVerdict) {
		if b, ok := v.([]byte); ok {
			verdicts = append(verdicts, b)
		}
	}
	return verdicts
}

// FlagsFCSLen returns the FCS length in octets encoded in a flags word.
func FlagsFCSLen(flags uint32) int {
	return int((flags & FlagFCSLenMask) >> flagFCSLenShift)
}

func (p *Packet) captured() uint32 {
	return uint32(len(p.PseudoHeader) + len(p.Data))
}

// readData consumes caplen bytes of packet data and its padding.
func (p *Packet) readData(d *Decoder, linkType uint16) error {
	if limit := MaxSnapLenFor(linkType); p.CaptureLength > limit {
		return malformedf("%s captured length %d exceeds %d for link type %d", p.Kind, p.CaptureLength, limit, linkType)
	}
	if int(p.CaptureLength) > d.Remaining() {
		return malformedf("%s captured length %d exceeds the %d bytes left in the block", p.Kind, p.CaptureLength, d.Remaining())
	}
	data := d.Bytes(int(p.CaptureLength))
	if pad := padLen(int(p.CaptureLength)); pad <= d.Remaining() {
		d.Skip(pad)
	} else {
		d.Skip(d.Remaining())
	}

	if n := pseudoHeaderLen(linkType); n > 0 {
		if len(data) < n {
			return malformedf("%s captured length %d is shorter than the %d-byte pseudo-header of link type %d", p.Kind, len(data), n, linkType)
		}
		p.PseudoHeader, data = data[:n], data[n:]
	}
	p.Data = data
	return d.Err()
}

func (p *Packet) resolve(iface *Interface) {
	p.Interface = iface
	if p.Kind != PacketSimple {
		p.Timestamp = UnitsToTime(p.TimestampUnits, iface.UnitsPerSecond, iface.TimeOffset)
	}
	p.FCSLen = -1
	if iface.FCSLen >= 0 {
		p.FCSLen = iface.FCSLen * 8
	}
	if flags, ok := p.Flags(); ok {
		if n := FlagsFCSLen(flags); n > 0 {
			p.FCSLen = n * 8
		}
	}
}

func readEnhancedPacket(d *Decoder) (Block, error) {
	if err := d.Need(20, "enhanced packet"); err != nil {
		return nil, err
	}
	p := &Packet{Kind: PacketEnhanced, Offset: d.Offset()}
	p.InterfaceID = d.Uint32()
	hi := d.Uint32()
	lo := d.Uint32()
	p.TimestampUnits = joinUnits(hi, lo)
	p.CaptureLength = d.Uint32()
	p.OriginalLength = d.Uint32()

	iface, err := d.Interface(p.InterfaceID)
	if err != nil {
		return nil, err
	}
	if err := p.readData(d, iface.LinkType); err != nil {
		return nil, err
	}
	if p.Options, err = d.Options(); err != nil {
		return nil, err
	}
	p.resolve(iface)
	return p, nil
}

func readObsoletePacket(d *Decoder) (Block, error) {
	if err := d.Need(20, "packet"); err != nil {
		return nil, err
	}
	p := &Packet{Kind: PacketObsolete, Offset: d.Offset()}
	p.InterfaceID = uint32(d.Uint16())
	p.DropCount = d.Uint16()
	hi := d.Uint32()
	lo := d.Uint32()
	p.TimestampUnits = joinUnits(hi, lo)
	p.CaptureLength = d.Uint32()
	p.OriginalLength = d.Uint32()

	iface, err := d.Interface(p.InterfaceID)
	if err != nil {
		return nil, err
	}
	if err := p.readData(d, iface.LinkType); err != nil {
		return nil, err
	}
	if p.Options, err = d.Options(); err != nil {
		return nil, err
	}
	p.resolve(iface)
	return p, nil
}

// readSimplePacket derives the captured length from the original length,
// the snapshot length of interface 0 and the bytes present.
func readSimplePacket(d *Decoder) (Block, error) {
	if err := d.Need(4, "simple packet"); err != nil {
		return nil, err
	}
	p := &Packet{Kind: PacketSimple, Offset: d.Offset()}
	p.OriginalLength = d.Uint32()

	iface, err := d.Interface(0)
	if err != nil {
		return nil, err
	}
	caplen := p.OriginalLength
	if iface.SnapLen != 0 && caplen > iface.SnapLen {
		caplen = iface.SnapLen
	}
	if remaining := uint32(d.Remaining()); caplen > remaining {
		caplen = remaining
	}
	p.CaptureLength = caplen
	if err := p.readData(d, iface.LinkType); err != nil {
		return nil, err
	}
	d.Rest()
	p.resolve(iface)
	return p, nil
}

func checkCaptureLength(e *Encoder, p *Packet) error {
	iface, err := e.Interface(p.InterfaceID)
	if err != nil {
		return err
	}
	if limit := iface.MaxCaptureLength(); p.captured() > limit {
		return limitf("%s captured length %d exceeds %d for link type %d", p.Kind, p.captured(), limit, iface.LinkType)
	}
	if n := pseudoHeaderLen(iface.LinkType); n > 0 && len(p.PseudoHeader) != n {
		return malformedf("link type %d needs a %d-byte pseudo-header, packet has %d", iface.LinkType, n, len(p.PseudoHeader))
	}
	return nil
}

func packetUnits(e *Encoder, p *Packet) (uint64, error) {
	if p.TimestampUnits != 0 || p.Timestamp.IsZero() {
		return p.TimestampUnits, nil
	}
	iface, err := e.Interface(p.InterfaceID)
	if err != nil {
		return 0, err
	}
	return TimeToUnits(p.Timestamp, iface.UnitsPerSecond, iface.TimeOffset)
}

func sizeEnhancedPacket(e *Encoder, b Block) (int, error) {
	p := b.(*Packet)
	if err := checkCaptureLength(e, p); err != nil {
		return 0, err
	}
	n, err := e.OptionsSize(BlockTypeEnhancedPacket, p.Options)
	if err != nil {
		return 0, err
	}
	return 20 + roundUp4(int(p.captured())) + n, nil
}

func writeEnhancedPacket(e *Encoder, b Block) error {
	p := b.(*Packet)
	units, err := packetUnits(e, p)
	if err != nil {
		return err
	}
	hi, lo := splitUnits(units)
	e.PutUint32(p.InterfaceID)
	e.PutUint32(hi)
	e.PutUint32(lo)
	e.PutUint32(p.captured())
	e.PutUint32(p.OriginalLength)
	e.PutBytes(p.PseudoHeader)
	e.PutBytes(p.Data)
	e.Pad(int(p.captured()))
	return e.PutOptions(BlockTypeEnhancedPacket, p.Options)
}

func sizeObsoletePacket(e *Encoder, b Block) (int, error) {
	p := b.(*Packet)
	if p.InterfaceID > 0xFFFF {
		return 0, unsupportedf("interface %d does not fit a packet block", p.InterfaceID)
	}
	if err := checkCaptureLength(e, p); err != nil {
		return 0, err
	}
	n, err := e.OptionsSize(BlockTypePacket, p.Options)
	if err != nil {
		return 0, err
	}
	return 20 + roundUp4(int(p.captured())) + n, nil
}

func writeObsoletePacket(e *Encoder, b Block) error {
	p := b.(*Packet)
	units, err := packetUnits(e, p)
	if err != nil {
		return err
	}
	hi, lo := splitUnits(units)
	e.PutUint16(uint16(p.InterfaceID))
	e.PutUint16(p.DropCount)
	e.PutUint32(hi)
	e.PutUint32(lo)
	e.PutUint32(p.captured())
	e.PutUint32(p.OriginalLength)
	e.PutBytes(p.PseudoHeader)
	e.PutBytes(p.Data)
	e.Pad(int(p.captured()))
	return e.PutOptions(BlockTypePacket, p.Options)
}

func sizeSimplePacket(e *Encoder, b Block) (int, error) {
	p := b.(*Packet)
	if p.InterfaceID != 0 {
		return 0, unsupportedf("simple packet blocks always refer to interface 0, got %d", p.InterfaceID)
	}
	if err := checkCaptureLength(e, p); err != nil {
		return 0, err
	}
	return 4 + roundUp4(int(p.captured())), nil
}

func writeSimplePacket(e *Encoder, b Block) error {
	p := b.(*Packet)
	e.PutUint32(p.OriginalLength)
	e.PutBytes(p.PseudoHeader)
	e.PutBytes(p.Data)
	e.Pad(int(p.captured()))
	return nil
}
