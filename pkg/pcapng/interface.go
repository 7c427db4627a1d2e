package pcapng

import (
	"encoding/binary"
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Interface description options.
const (
	OptIfName        uint16 = 2
	OptIfDescription uint16 = 3
	OptIfIPv4Addr    uint16 = 4
	OptIfIPv6Addr    uint16 = 5
	OptIfMACAddr     uint16 = 6
	OptIfEUIAddr     uint16 = 7
	OptIfSpeed       uint16 = 8
	OptIfTSResol     uint16 = 9
	OptIfTZone       uint16 = 10
	OptIfFilter      uint16 = 11
	OptIfOS          uint16 = 12
	OptIfFCSLen      uint16 = 13
	OptIfTSOffset    uint16 = 14
	OptIfHardware    uint16 = 15
	OptIfTxSpeed     uint16 = 16
	OptIfRxSpeed     uint16 = 17
	OptIfIANATZName  uint16 = 18
)

// InterfaceDescription is an interface description block.
type InterfaceDescription struct {
	LinkType uint16
	SnapLen  uint32
	Options  Options
	Offset   int64
}

func (*InterfaceDescription) BlockType() uint32 { return BlockTypeInterfaceDescription }

// Interface is a capture interface resolved from its description.
type Interface struct {
	Index          uint32
	LinkType       uint16
	SnapLen        uint32
	TSResolution   uint8
	UnitsPerSecond uint64
	Precision      Precision
	TimeOffset     int64
	// FCSLen is the frame check sequence length in bytes, -1 when unknown.
	FCSLen      int
	Name        string
	Description string
	Statistics  *InterfaceStatistics
	Block       *InterfaceDescription
}

// NewInterface resolves the options of an interface description.
func NewInterface(desc *InterfaceDescription) (*Interface, error) {
	i := &Interface{
		LinkType:     desc.LinkType,
		SnapLen:      desc.SnapLen,
		TSResolution: DefaultTSResolution,
		FCSLen:       -1,
		Block:        desc,
	}
	if v, ok := desc.Options.Uint8(OptIfTSResol); ok {
		i.TSResolution = v
	}
	ups, err := TimeUnitsPerSecond(i.TSResolution)
	if err != nil {
		return nil, err
	}
	i.UnitsPerSecond = ups
	i.Precision = PrecisionFor(ups)

	if v, ok := desc.Options.Int64(OptIfTSOffset); ok {
		i.TimeOffset = v
	}
	if v, ok := desc.Options.Uint8(OptIfFCSLen); ok {
		i.FCSLen = int(v)
	}
	i.Name, _ = desc.Options.StringValue(OptIfName)
	i.Description, _ = desc.Options.StringValue(OptIfDescription)
	return i, nil
}

// MaxCaptureLength is the largest captured length accepted on the interface.
func (i *Interface) MaxCaptureLength() uint32 {
	return MaxSnapLenFor(i.LinkType)
}

// LayerDecoder returns the gopacket decoder for the interface's link type.
// Link types beyond gopacket's table decode as raw payload.
func (i *Interface) LayerDecoder() gopacket.Decoder {
	if i.LinkType <= 0xFF {
		return layers.LinkType(i.LinkType)
	}
	return gopacket.DecodePayload
}

// IPv4Address is the value of if_IPv4addr.
type IPv4Address struct {
	Addr netip.Addr
	Mask netip.Addr
}

// Filter is the value of if_filter: a filter type followed by its expression.
type Filter struct {
	Type uint8
	Expr []byte
}

func ipv4AddressOption() OptionCodec {
	const name = "if_IPv4addr"
	return OptionCodec{
		Name:     name,
		Multiple: true,
		Parse: func(_ binary.ByteOrder, value []byte) (any, error) {
			if len(value) != 8 {
				return nil, malformedf("%s has length %d, want 8", name, len(value))
			}
			return IPv4Address{
				Addr: netip.AddrFrom4([4]byte(value[0:4])),
				Mask: netip.AddrFrom4([4]byte(value[4:8])),
			}, nil
		},
		Size: fixedSize[IPv4Address](name, 8),
		Write: func(e *Encoder, v any) error {
			a := v.(IPv4Address)
			addr, mask := a.Addr.As4(), a.Mask.As4()
			e.PutBytes(addr[:])
			e.PutBytes(mask[:])
			return nil
		},
	}
}

func ipv6PrefixOption(name string) OptionCodec {
	return OptionCodec{
		Name:     name,
		Multiple: true,
		Parse: func(_ binary.ByteOrder, value []byte) (any, error) {
			if len(value) != 17 {
				return nil, malformedf("%s has length %d, want 17", name, len(value))
			}
			p := netip.PrefixFrom(netip.AddrFrom16([16]byte(value[0:16])), int(value[16]))
			if !p.IsValid() {
				return nil, malformedf("%s prefix length %d out of range", name, value[16])
			}
			return p, nil
		},
		Size: fixedSize[netip.Prefix](name, 17),
		Write: func(e *Encoder, v any) error {
			p := v.(netip.Prefix)
			addr := p.Addr().As16()
			e.PutBytes(addr[:])
			e.PutUint8(uint8(p.Bits()))
			return nil
		},
	}
}

func hardwareAddrOption(name string, length int) OptionCodec {
	return OptionCodec{
		Name: name,
		Parse: func(_ binary.ByteOrder, value []byte) (any, error) {
			if len(value) != length {
				return nil, malformedf("%s has length %d, want %d", name, len(value), length)
			}
			return net.HardwareAddr(append([]byte(nil), value...)), nil
		},
		Size: func(v any) (int, error) {
			hw, ok := v.(net.HardwareAddr)
			if !ok {
				return 0, valueTypeError(name, v, "net.HardwareAddr")
			}
			if len(hw) != length {
				return 0, malformedf("%s has length %d, want %d", name, len(hw), length)
			}
			return length, nil
		},
		Write: func(e *Encoder, v any) error {
			e.PutBytes(v.(net.HardwareAddr))
			return nil
		},
	}
}

func filterOption() OptionCodec {
	const name = "if_filter"
	return OptionCodec{
		Name: name,
		Parse: func(_ binary.ByteOrder, value []byte) (any, error) {
			if len(value) < 1 {
				return nil, malformedf("%s is empty", name)
			}
			return Filter{Type: value[0], Expr: append([]byte(nil), value[1:]...)}, nil
		},
		Size: func(v any) (int, error) {
			f, ok := v.(Filter)
			if !ok {
				return 0, valueTypeError(name, v, "Filter")
			}
			return 1 + len(f.Expr), nil
		},
		Write: func(e *Encoder, v any) error {
			f := v.(Filter)
			e.PutUint8(f.Type)
			e.PutBytes(f.Expr)
			return nil
		},
	}
}

func readInterfaceDescription(d *Decoder) (Block, error) {
	if err := d.Need(8, "interface description"); err != nil {
		return nil, err
	}
	desc := &InterfaceDescription{Offset: d.Offset()}
	desc.LinkType = d.Uint16()
	d.Skip(2) // reserved
	desc.SnapLen = d.Uint32()

	opts, err := d.Options()
	if err != nil {
		return nil, err
	}
	desc.Options = opts
	if _, err := NewInterface(desc); err != nil {
		return nil, err
	}
	return desc, nil
}

func sizeInterfaceDescription(e *Encoder, b Block) (int, error) {
	n, err := e.OptionsSize(BlockTypeInterfaceDescription, b.(*InterfaceDescription).Options)
	if err != nil {
		return 0, err
	}
	return 8 + n, nil
}

func writeInterfaceDescription(e *Encoder, b Block) error {
	desc := b.(*InterfaceDescription)
	e.PutUint16(desc.LinkType)
	e.PutUint16(0)
	e.PutUint32(desc.SnapLen)
	return e.PutOptions(BlockTypeInterfaceDescription, desc.Options)
}

func processInterfaceDescription(r *Reader, b Block) error {
	iface, err := NewInterface(b.(*InterfaceDescription))
	if err != nil {
		return err
	}
	r.addInterface(iface)
	return nil
}
