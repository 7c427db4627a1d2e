package pcapng

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// EnterpriseHandler interprets custom blocks and options of one private
// enterprise number (PEN). Every function is optional: a missing parser keeps
// the payload opaque and a missing writer emits the opaque payload.
type EnterpriseHandler struct {
	Name string

	// ParseOption decodes the payload following the PEN of a custom option.
	ParseOption func(order binary.ByteOrder, code uint16, data []byte) (any, error)
	OptionSize  func(code uint16, value any) (int, error)
	WriteOption func(e *Encoder, code uint16, value any) error

	// ParseBlock decodes the content following the PEN of a custom block and
	// may consume a trailing option list with d.Options.
	ParseBlock func(d *Decoder, cb *CustomBlock) error
	BlockSize  func(e *Encoder, cb *CustomBlock) (int, error)
	WriteBlock func(e *Encoder, cb *CustomBlock) error
}

// CustomOption is the value of the four custom option codes. Value is set
// only when an EnterpriseHandler understood Data.
type CustomOption struct {
	PEN   uint32
	Data  []byte
	Value any
}

// IsString reports whether code is one of the UTF-8 custom option codes.
func IsString(code uint16) bool {
	return code == OptCustomStringCopy || code == OptCustomStringNoCopy
}

func parseCustomOption(order binary.ByteOrder, code uint16, value []byte, log logrus.FieldLogger) (*CustomOption, error) {
	if len(value) < 4 {
		return nil, malformedf("custom option %d has length %d, shorter than its enterprise number", code, len(value))
	}
	c := &CustomOption{
		PEN:  order.Uint32(value[:4]),
		Data: append([]byte(nil), value[4:]...),
	}
	if IsString(code) && !utf8.Valid(c.Data) {
		log.WithField("pen", c.PEN).Debug("custom string option is not valid UTF-8")
	}

	h, ok := lookupEnterprise(c.PEN)
	if !ok || h.ParseOption == nil {
		log.WithField("pen", c.PEN).Debugf("custom option %d kept opaque", code)
		return c, nil
	}
	v, err := h.ParseOption(order, code, c.Data)
	if err != nil {
		return nil, fmt.Errorf("custom option of enterprise %s: %w", h.Name, err)
	}
	c.Value = v
	return c, nil
}

func customOptionWriter(c *CustomOption) (*EnterpriseHandler, bool) {
	if c.Value == nil {
		return nil, false
	}
	h, ok := lookupEnterprise(c.PEN)
	if !ok || h.OptionSize == nil || h.WriteOption == nil {
		return nil, false
	}
	return h, true
}

func customOptionSize(code uint16, c *CustomOption) (int, error) {
	if h, ok := customOptionWriter(c); ok {
		n, err := h.OptionSize(code, c.Value)
		if err != nil {
			return 0, err
		}
		return 4 + n, nil
	}
	return 4 + len(c.Data), nil
}

func writeCustomOption(e *Encoder, code uint16, c *CustomOption) error {
	e.PutUint32(c.PEN)
	if h, ok := customOptionWriter(c); ok {
		return h.WriteOption(e, code, c.Value)
	}
	e.PutBytes(c.Data)
	return nil
}

// CustomBlock is a vendor block qualified by a PEN. Copy distinguishes the
// block that may be copied into other files from the one that may not.
type CustomBlock struct {
	Copy    bool
	PEN     uint32
	Data    []byte
	Value   any
	Options Options
	Offset  int64
}

func (b *CustomBlock) BlockType() uint32 {
	if b.Copy {
		return BlockTypeCustomCopy
	}
	return BlockTypeCustomNoCopy
}

func readCustomBlock(copyable bool) BlockReadFunc {
	return func(d *Decoder) (Block, error) {
		if err := d.Need(4, "custom block enterprise number"); err != nil {
			return nil, err
		}
		cb := &CustomBlock{Copy: copyable, PEN: d.Uint32(), Offset: d.Offset()}

		h, ok := lookupEnterprise(cb.PEN)
		if !ok || h.ParseBlock == nil {
			d.Logger().WithField("pen", cb.PEN).Debug("custom block kept opaque")
			cb.Data = d.Rest()
			return cb, nil
		}
		if err := h.ParseBlock(d, cb); err != nil {
			return nil, fmt.Errorf("custom block of enterprise %s: %w", h.Name, err)
		}
		return cb, d.Err()
	}
}

func customBlockWriter(cb *CustomBlock) (*EnterpriseHandler, bool) {
	if cb.Value == nil {
		return nil, false
	}
	h, ok := lookupEnterprise(cb.PEN)
	if !ok || h.BlockSize == nil || h.WriteBlock == nil {
		return nil, false
	}
	return h, true
}

func sizeCustomBlock(e *Encoder, b Block) (int, error) {
	cb := b.(*CustomBlock)
	if h, ok := customBlockWriter(cb); ok {
		n, err := h.BlockSize(e, cb)
		if err != nil {
			return 0, err
		}
		return 4 + n, nil
	}
	return 4 + roundUp4(len(cb.Data)), nil
}

func writeCustomBlock(e *Encoder, b Block) error {
	cb := b.(*CustomBlock)
	e.PutUint32(cb.PEN)
	if h, ok := customBlockWriter(cb); ok {
		return h.WriteBlock(e, cb)
	}
	e.PutBytes(cb.Data)
	e.Pad(len(cb.Data))
	return nil
}

// RawBlock is a block of a type without a registered handler. It is written
// back unchanged.
type RawBlock struct {
	Type   uint32
	Data   []byte
	Offset int64
}

func (b *RawBlock) BlockType() uint32 { return b.Type }

var rawHandler = BlockHandler{
	Name:      "RAW",
	Kind:      KindEvent,
	MinLength: minBlockLength,
	Read: func(d *Decoder) (Block, error) {
		return &RawBlock{Type: d.Header().Type, Data: d.Rest(), Offset: d.Offset()}, nil
	},
	Size: func(_ *Encoder, b Block) (int, error) {
		return roundUp4(len(b.(*RawBlock).Data)), nil
	},
	Write: func(e *Encoder, b Block) error {
		raw := b.(*RawBlock)
		e.PutBytes(raw.Data)
		e.Pad(len(raw.Data))
		return nil
	},
}
