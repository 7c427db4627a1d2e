package pcapng

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ByteOrder is the byte order of one section.
type ByteOrder uint8

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

// Binary returns the encoding/binary order for o.
func (o ByteOrder) Binary() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Swap returns the opposite byte order.
func (o ByteOrder) Swap() ByteOrder {
	if o == BigEndian {
		return LittleEndian
	}
	return BigEndian
}

func (o ByteOrder) String() string {
	if o == BigEndian {
		return "big-endian"
	}
	return "little-endian"
}

// ParseByteOrder accepts "little", "le", "big", "be" and the String forms.
func ParseByteOrder(s string) (ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "little", "le", "little-endian", "littleendian":
		return LittleEndian, nil
	case "big", "be", "big-endian", "bigendian":
		return BigEndian, nil
	default:
		return LittleEndian, fmt.Errorf("pcapng: unknown byte order %q (must be little or big)", s)
	}
}

// byteOrderFromMagic detects the section byte order from the raw magic bytes.
func byteOrderFromMagic(raw []byte) (ByteOrder, bool) {
	switch {
	case binary.LittleEndian.Uint32(raw) == ByteOrderMagic:
		return LittleEndian, true
	case binary.BigEndian.Uint32(raw) == ByteOrderMagic:
		return BigEndian, true
	default:
		return LittleEndian, false
	}
}
