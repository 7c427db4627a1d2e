package pcapng

import (
	"bytes"
	"encoding/binary"
	"net/netip"
	"slices"
	"strings"
)

// Name resolution record types.
const (
	NameRecordEnd  uint16 = 0
	NameRecordIPv4 uint16 = 1
	NameRecordIPv6 uint16 = 2
)

// Name resolution options.
const (
	OptNSDNSName    uint16 = 2
	OptNSDNSIP4Addr uint16 = 3
	OptNSDNSIP6Addr uint16 = 4
)

// NameRecord maps an address to host names. Records of other types keep
// their value in Data.
type NameRecord struct {
	Type  uint16
	Addr  netip.Addr
	Names []string
	Data  []byte
}

func (rec NameRecord) valueLen() int {
	switch rec.Type {
	case NameRecordIPv4, NameRecordIPv6:
		n := rec.Addr.BitLen() / 8
		for _, name := range rec.Names {
			n += len(name) + 1
		}
		return n
	}
	return len(rec.Data)
}

func (rec NameRecord) validate() error {
	switch rec.Type {
	case NameRecordIPv4:
		if !rec.Addr.Is4() {
			return malformedf("IPv4 name record holds address %v", rec.Addr)
		}
	case NameRecordIPv6:
		if !rec.Addr.Is6() {
			return malformedf("IPv6 name record holds address %v", rec.Addr)
		}
	default:
		return nil
	}
	if len(rec.Names) == 0 {
		return malformedf("name record for %v has no name", rec.Addr)
	}
	for _, name := range rec.Names {
		if strings.IndexByte(name, 0) >= 0 {
			return malformedf("name %q for %v contains a NUL byte", name, rec.Addr)
		}
	}
	return nil
}

func (rec NameRecord) size() (int, error) {
	if err := rec.validate(); err != nil {
		return 0, err
	}
	l := rec.valueLen()
	if l > maxNRBRecordSize {
		return 0, limitf("name record of %d bytes does not fit a 16-bit length", l)
	}
	return nrbRecordHdrLen + roundUp4(l), nil
}

// NameResolution is a name resolution block.
type NameResolution struct {
	Records []NameRecord
	Options Options
	Offset  int64
}

func (*NameResolution) BlockType() uint32 { return BlockTypeNameResolution }

// NameTable accumulates the address to name mappings of a file.
type NameTable map[netip.Addr][]string

// Lookup returns the names recorded for addr.
func (t NameTable) Lookup(addr netip.Addr) []string {
	return t[addr]
}

func (t NameTable) add(rec NameRecord) {
	if !rec.Addr.IsValid() {
		return
	}
	for _, name := range rec.Names {
		if !slices.Contains(t[rec.Addr], name) {
			t[rec.Addr] = append(t[rec.Addr], name)
		}
	}
}

func parseNames(value []byte) ([]string, error) {
	var names []string
	for len(value) > 0 {
		i := bytes.IndexByte(value, 0)
		if i < 0 {
			return nil, malformedf("name record entry is not NUL-terminated")
		}
		names = append(names, string(value[:i]))
		value = value[i+1:]
	}
	if len(names) == 0 {
		return nil, malformedf("name record has an address but no name")
	}
	return names, nil
}

func parseNameRecord(typ uint16, value []byte) (NameRecord, error) {
	rec := NameRecord{Type: typ}
	switch typ {
	case NameRecordIPv4:
		if len(value) < 4 {
			return rec, malformedf("IPv4 name record has length %d", len(value))
		}
		rec.Addr = netip.AddrFrom4([4]byte(value[:4]))
		names, err := parseNames(value[4:])
		if err != nil {
			return rec, err
		}
		rec.Names = names
	case NameRecordIPv6:
		if len(value) < 16 {
			return rec, malformedf("IPv6 name record has length %d", len(value))
		}
		rec.Addr = netip.AddrFrom16([16]byte(value[:16]))
		names, err := parseNames(value[16:])
		if err != nil {
			return rec, err
		}
		rec.Names = names
	default:
		rec.Data = append([]byte(nil), value...)
	}
	return rec, nil
}

func readNameResolution(d *Decoder) (Block, error) {
	nrb := &NameResolution{Offset: d.Offset()}
	for d.Remaining() > 0 {
		if err := d.Need(nrbRecordHdrLen, "name record header"); err != nil {
			return nil, err
		}
		typ := d.Uint16()
		length := int(d.Uint16())
		if err := d.Need(roundUp4(length), "name record"); err != nil {
			return nil, err
		}
		value := d.Bytes(length)
		d.Skip(padLen(length))
		if typ == NameRecordEnd {
			opts, err := d.Options()
			if err != nil {
				return nil, err
			}
			nrb.Options = opts
			return nrb, nil
		}
		rec, err := parseNameRecord(typ, value)
		if err != nil {
			return nil, err
		}
		nrb.Records = append(nrb.Records, rec)
	}
	d.Logger().WithField("offset", d.Offset()).Debug("name resolution block without end record")
	return nrb, nil
}

func recordsSize(recs []NameRecord) (int, error) {
	n := nrbRecordHdrLen
	for _, rec := range recs {
		l, err := rec.size()
		if err != nil {
			return 0, err
		}
		n += l
	}
	return n, nil
}

func sizeNameResolution(e *Encoder, b Block) (int, error) {
	nrb := b.(*NameResolution)
	n, err := recordsSize(nrb.Records)
	if err != nil {
		return 0, err
	}
	o, err := e.OptionsSize(BlockTypeNameResolution, nrb.Options)
	if err != nil {
		return 0, err
	}
	return n + o, nil
}

func writeNameResolution(e *Encoder, b Block) error {
	nrb := b.(*NameResolution)
	for _, rec := range nrb.Records {
		l := rec.valueLen()
		e.PutUint16(rec.Type)
		e.PutUint16(uint16(l))
		switch rec.Type {
		case NameRecordIPv4, NameRecordIPv6:
			e.PutBytes(rec.Addr.AsSlice())
			for _, name := range rec.Names {
				e.PutBytes([]byte(name))
				e.PutUint8(0)
			}
		default:
			e.PutBytes(rec.Data)
		}
		e.Pad(l)
	}
	e.PutUint16(NameRecordEnd)
	e.PutUint16(0)
	return e.PutOptions(BlockTypeNameResolution, nrb.Options)
}

// splitNameResolution packs the records into blocks of at most limit bytes,
// each repeating the block's options.
func splitNameResolution(e *Encoder, b Block, limit int) ([]Block, error) {
	nrb := b.(*NameResolution)
	total, err := sizeNameResolution(e, nrb)
	if err != nil {
		return nil, err
	}
	if total+blockOverhead <= limit {
		return []Block{nrb}, nil
	}

	opts, err := e.OptionsSize(BlockTypeNameResolution, nrb.Options)
	if err != nil {
		return nil, err
	}
	budget := limit - blockOverhead - nrbRecordHdrLen - opts
	if len(nrb.Records) == 0 || budget < 0 {
		return nil, limitf("name resolution options of %d bytes do not fit a block of at most %d bytes", opts, limit)
	}

	var blocks []Block
	var chunk []NameRecord
	used := 0
	for _, rec := range nrb.Records {
		l, err := rec.size()
		if err != nil {
			return nil, err
		}
		if l > budget {
			return nil, limitf("name record of %d bytes does not fit a name resolution block of at most %d bytes", l, limit)
		}
		if used+l > budget {
			blocks = append(blocks, &NameResolution{Records: chunk, Options: nrb.Options})
			chunk, used = nil, 0
		}
		chunk = append(chunk, rec)
		used += l
	}
	if len(chunk) > 0 {
		blocks = append(blocks, &NameResolution{Records: chunk, Options: nrb.Options})
	}
	return blocks, nil
}

func processNameResolution(r *Reader, b Block) error {
	for _, rec := range b.(*NameResolution).Records {
		r.names.add(rec)
	}
	return nil
}

func dnsAddrOption(name string, length int) OptionCodec {
	return OptionCodec{
		Name: name,
		Parse: func(_ binary.ByteOrder, value []byte) (any, error) {
			addr, ok := netip.AddrFromSlice(value)
			if !ok || len(value) != length {
				return nil, malformedf("%s has length %d, want %d", name, len(value), length)
			}
			return addr, nil
		},
		Size: func(v any) (int, error) {
			addr, ok := v.(netip.Addr)
			if !ok {
				return 0, valueTypeError(name, v, "netip.Addr")
			}
			if addr.BitLen()/8 != length {
				return 0, malformedf("%s address %s has the wrong family", name, addr)
			}
			return length, nil
		},
		Write: func(e *Encoder, v any) error {
			e.PutBytes(v.(netip.Addr).AsSlice())
			return nil
		},
	}
}
