package pcapng

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Option codes shared by every block type.
const (
	OptEndOfOpt           uint16 = 0
	OptComment            uint16 = 1
	OptCustomStringCopy   uint16 = 2988
	OptCustomBinaryCopy   uint16 = 2989
	OptCustomStringNoCopy uint16 = 19372
	OptCustomBinaryNoCopy uint16 = 19373
)

func isReservedOption(code uint16) bool {
	switch code {
	case OptEndOfOpt, OptComment, OptCustomStringCopy, OptCustomBinaryCopy, OptCustomStringNoCopy, OptCustomBinaryNoCopy:
		return true
	}
	return false
}

func isCustomOption(code uint16) bool {
	switch code {
	case OptCustomStringCopy, OptCustomBinaryCopy, OptCustomStringNoCopy, OptCustomBinaryNoCopy:
		return true
	}
	return false
}

// Option is one decoded option. Value holds the codec's type (string, uint64,
// *CustomOption, ...) or the raw []byte when no codec is registered.
type Option struct {
	Code  uint16
	Value any
}

// Options is an ordered option list. A non-empty list is written with an
// opt_endofopt marker unless its last entry is an OptEndOfOpt option whose
// OptionsEnd value says otherwise.
type Options []Option

// OptionsEnd is the value of a final OptEndOfOpt entry. The reader adds one
// only when the list on the wire ends unusually: a lone opt_endofopt, or
// options running to the end of the block without it.
type OptionsEnd uint8

const (
	// EndMarker terminates the list with opt_endofopt, even when empty.
	EndMarker OptionsEnd = iota
	// EndOfBlock lets the list run to the end of the block.
	EndOfBlock
)

// encoded splits o into the options to write and whether opt_endofopt
// follows them.
func (o Options) encoded() (Options, bool, error) {
	for i, opt := range o {
		if opt.Code != OptEndOfOpt {
			continue
		}
		if i != len(o)-1 {
			return nil, false, fmt.Errorf("pcapng: end-of-options must be the last option")
		}
		end, ok := opt.Value.(OptionsEnd)
		if !ok && opt.Value != nil {
			return nil, false, fmt.Errorf("pcapng: end-of-options value is %T, want OptionsEnd", opt.Value)
		}
		return o[:i], end == EndMarker, nil
	}
	return o, len(o) > 0, nil
}

// Get returns the first value with code.
func (o Options) Get(code uint16) (any, bool) {
	for _, opt := range o {
		if opt.Code == code {
			return opt.Value, true
		}
	}
	return nil, false
}

// All returns every value with code, in file order.
func (o Options) All(code uint16) []any {
	var values []any
	for _, opt := range o {
		if opt.Code == code {
			values = append(values, opt.Value)
		}
	}
	return values
}

// Add appends an option, keeping a final end-of-options entry last.
func (o *Options) Add(code uint16, value any) {
	opt := Option{Code: code, Value: value}
	if n := len(*o); n > 0 && code != OptEndOfOpt && (*o)[n-1].Code == OptEndOfOpt {
		*o = append((*o)[:n-1], opt, (*o)[n-1])
		return
	}
	*o = append(*o, opt)
}

// Set replaces the first option with code, or appends it.
func (o *Options) Set(code uint16, value any) {
	for i := range *o {
		if (*o)[i].Code == code {
			(*o)[i].Value = value
			return
		}
	}
	o.Add(code, value)
}

// Remove drops every option with code.
func (o *Options) Remove(code uint16) {
	kept := (*o)[:0]
	for _, opt := range *o {
		if opt.Code != code {
			kept = append(kept, opt)
		}
	}
	*o = kept
}

func (o Options) StringValue(code uint16) (string, bool) {
	v, ok := o.Get(code)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (o Options) Uint8(code uint16) (uint8, bool) {
	v, ok := o.Get(code)
	if !ok {
		return 0, false
	}
	n, ok := v.(uint8)
	return n, ok
}

func (o Options) Uint32(code uint16) (uint32, bool) {
	v, ok := o.Get(code)
	if !ok {
		return 0, false
	}
	n, ok := v.(uint32)
	return n, ok
}

func (o Options) Uint64(code uint16) (uint64, bool) {
	v, ok := o.Get(code)
	if !ok {
		return 0, false
	}
	n, ok := v.(uint64)
	return n, ok
}

func (o Options) Int64(code uint16) (int64, bool) {
	v, ok := o.Get(code)
	if !ok {
		return 0, false
	}
	n, ok := v.(int64)
	return n, ok
}

// Comments returns all opt_comment values as valid UTF-8.
func (o Options) Comments() []string {
	var comments []string
	for _, v := range o.All(OptComment) {
		if s, ok := v.(string); ok {
			comments = append(comments, strings.ToValidUTF8(s, "�"))
		}
	}
	return comments
}

// Custom returns all custom options.
func (o Options) Custom() []*CustomOption {
	var custom []*CustomOption
	for _, opt := range o {
		if c, ok := opt.Value.(*CustomOption); ok && isCustomOption(opt.Code) {
			custom = append(custom, c)
		}
	}
	return custom
}

// StripNoCopy returns o without the custom options that must not be copied
// into another file.
func (o Options) StripNoCopy() Options {
	kept := make(Options, 0, len(o))
	for _, opt := range o {
		if opt.Code == OptCustomStringNoCopy || opt.Code == OptCustomBinaryNoCopy {
			continue
		}
		kept = append(kept, opt)
	}
	return kept
}

// OptionCodec decodes and encodes the value of one option code.
type OptionCodec struct {
	Name     string
	Multiple bool
	Parse    func(order binary.ByteOrder, value []byte) (any, error)
	Size     func(value any) (int, error)
	Write    func(e *Encoder, value any) error
}

// parseOptions walks an option list. Trailing bytes after opt_endofopt are
// ignored; an option running past the block content is fatal.
func parseOptions(d *Decoder, blockType uint32, raw []byte) (Options, error) {
	order := d.order
	var opts Options
	if len(raw) == 0 {
		return nil, nil
	}
	for len(raw) > 0 {
		if len(raw) < optionHeaderLen {
			return nil, malformedf("%s: %d bytes left where an option header should be", BlockTypeName(blockType), len(raw))
		}
		code := order.Uint16(raw[0:2])
		length := int(order.Uint16(raw[2:4]))
		raw = raw[optionHeaderLen:]

		padded := roundUp4(length)
		if len(raw) < padded {
			return nil, malformedf("%s: option %d declares %d bytes (%d padded) but only %d remain", BlockTypeName(blockType), code, length, padded, len(raw))
		}
		value := raw[:length]
		raw = raw[padded:]

		switch {
		case code == OptEndOfOpt:
			if len(raw) > 0 {
				d.Logger().WithField("block", BlockTypeName(blockType)).Debugf("%d bytes after end of options ignored", len(raw))
			}
			if len(opts) == 0 {
				opts.Add(OptEndOfOpt, EndMarker)
			}
			return opts, nil
		case code == OptComment:
			if !utf8.Valid(value) {
				d.Logger().WithField("block", BlockTypeName(blockType)).Debug("comment option is not valid UTF-8")
			}
			opts.Add(code, string(value))
		case isCustomOption(code):
			c, err := parseCustomOption(order, code, value, d.Logger())
			if err != nil {
				return nil, err
			}
			opts.Add(code, c)
		default:
			codec, ok := lookupOption(blockType, code)
			if !ok {
				d.Logger().WithField("block", BlockTypeName(blockType)).Debugf("unknown option %d (%d bytes) kept opaque", code, length)
				opts.Add(code, append([]byte(nil), value...))
				continue
			}
			if !codec.Multiple {
				if _, dup := opts.Get(code); dup {
					d.Logger().WithField("block", BlockTypeName(blockType)).Debugf("option %s repeated", codec.Name)
				}
			}
			v, err := codec.Parse(order, value)
			if err != nil {
				return nil, fmt.Errorf("%s option %s: %w", BlockTypeName(blockType), codec.Name, err)
			}
			opts.Add(code, v)
		}
	}
	d.Logger().WithField("block", BlockTypeName(blockType)).Debug("options end without end-of-options marker")
	opts.Add(OptEndOfOpt, EndOfBlock)
	return opts, nil
}

func optionValueSize(e *Encoder, blockType uint32, opt Option) (int, error) {
	switch {
	case opt.Code == OptEndOfOpt:
		return 0, fmt.Errorf("pcapng: end-of-options must be the last option")
	case opt.Code == OptComment:
		s, ok := opt.Value.(string)
		if !ok {
			return 0, fmt.Errorf("pcapng: comment value is %T, want string", opt.Value)
		}
		return len(s), nil
	case isCustomOption(opt.Code):
		c, ok := opt.Value.(*CustomOption)
		if !ok {
			return 0, fmt.Errorf("pcapng: custom option value is %T, want *CustomOption", opt.Value)
		}
		return customOptionSize(opt.Code, c)
	}
	if codec, ok := lookupOption(blockType, opt.Code); ok {
		if raw, isRaw := opt.Value.([]byte); isRaw {
			return len(raw), nil
		}
		return codec.Size(opt.Value)
	}
	raw, ok := opt.Value.([]byte)
	if !ok {
		return 0, fmt.Errorf("pcapng: no codec for option %d of %s with value %T", opt.Code, BlockTypeName(blockType), opt.Value)
	}
	return len(raw), nil
}

func optionsSize(e *Encoder, blockType uint32, opts Options) (int, error) {
	opts, marker, err := opts.encoded()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, opt := range opts {
		l, err := optionValueSize(e, blockType, opt)
		if err != nil {
			return 0, err
		}
		if l > maxOptionValue {
			return 0, limitf("option %d value of %d bytes does not fit a 16-bit length", opt.Code, l)
		}
		n += optionHeaderLen + roundUp4(l)
	}
	if marker {
		n += optionHeaderLen
	}
	return n, nil
}

func writeOptions(e *Encoder, blockType uint32, opts Options) error {
	opts, marker, err := opts.encoded()
	if err != nil {
		return err
	}
	for _, opt := range opts {
		l, err := optionValueSize(e, blockType, opt)
		if err != nil {
			return err
		}
		e.PutUint16(opt.Code)
		e.PutUint16(uint16(l))
		start := e.Len()
		if err := writeOptionValue(e, blockType, opt); err != nil {
			return err
		}
		if got := e.Len() - start; got != l {
			return fmt.Errorf("%w: option %d of %s sized %d bytes, wrote %d", ErrLengthMismatch, opt.Code, BlockTypeName(blockType), l, got)
		}
		e.Pad(l)
	}
	if marker {
		e.PutUint16(OptEndOfOpt)
		e.PutUint16(0)
	}
	return nil
}

func writeOptionValue(e *Encoder, blockType uint32, opt Option) error {
	switch {
	case opt.Code == OptComment:
		e.PutBytes([]byte(opt.Value.(string)))
		return nil
	case isCustomOption(opt.Code):
		return writeCustomOption(e, opt.Code, opt.Value.(*CustomOption))
	}
	if raw, ok := opt.Value.([]byte); ok {
		e.PutBytes(raw)
		return nil
	}
	codec, ok := lookupOption(blockType, opt.Code)
	if !ok {
		return fmt.Errorf("pcapng: no codec for option %d of %s", opt.Code, BlockTypeName(blockType))
	}
	return codec.Write(e, opt.Value)
}

// Numeric option helpers. Each takes the byte order that applies to the
// option, which for enterprise formats may differ from the section's.

func OptionUint8(value []byte) (uint8, error) {
	if len(value) != 1 {
		return 0, malformedf("8-bit option has length %d", len(value))
	}
	return value[0], nil
}

func OptionUint32(order binary.ByteOrder, value []byte) (uint32, error) {
	if len(value) != 4 {
		return 0, malformedf("32-bit option has length %d", len(value))
	}
	return order.Uint32(value), nil
}

func OptionUint64(order binary.ByteOrder, value []byte) (uint64, error) {
	if len(value) != 8 {
		return 0, malformedf("64-bit option has length %d", len(value))
	}
	return order.Uint64(value), nil
}

func OptionInt64(order binary.ByteOrder, value []byte) (int64, error) {
	n, err := OptionUint64(order, value)
	return int64(n), err
}

// OptionSplitTime decodes a timestamp stored as two 32-bit halves, high first.
func OptionSplitTime(order binary.ByteOrder, value []byte) (uint64, error) {
	if len(value) != 8 {
		return 0, malformedf("timestamp option has length %d", len(value))
	}
	return uint64(order.Uint32(value[0:4]))<<32 | uint64(order.Uint32(value[4:8])), nil
}

func valueTypeError(name string, v any, want string) error {
	return fmt.Errorf("pcapng: option %s value is %T, want %s", name, v, want)
}

// StringOption is a codec for UTF-8 string options.
func StringOption(name string, multiple bool) OptionCodec {
	return OptionCodec{
		Name:     name,
		Multiple: multiple,
		Parse: func(_ binary.ByteOrder, value []byte) (any, error) {
			return string(value), nil
		},
		Size: func(v any) (int, error) {
			s, ok := v.(string)
			if !ok {
				return 0, valueTypeError(name, v, "string")
			}
			return len(s), nil
		},
		Write: func(e *Encoder, v any) error {
			e.PutBytes([]byte(v.(string)))
			return nil
		},
	}
}

// Uint8Option is a codec for single-byte options.
func Uint8Option(name string) OptionCodec {
	return OptionCodec{
		Name: name,
		Parse: func(_ binary.ByteOrder, value []byte) (any, error) {
			return OptionUint8(value)
		},
		Size: fixedSize[uint8](name, 1),
		Write: func(e *Encoder, v any) error {
			e.PutUint8(v.(uint8))
			return nil
		},
	}
}

// Uint32Option is a codec for 32-bit options in section byte order.
func Uint32Option(name string) OptionCodec {
	return OptionCodec{
		Name: name,
		Parse: func(order binary.ByteOrder, value []byte) (any, error) {
			return OptionUint32(order, value)
		},
		Size: fixedSize[uint32](name, 4),
		Write: func(e *Encoder, v any) error {
			e.PutUint32(v.(uint32))
			return nil
		},
	}
}

// Uint64Option is a codec for 64-bit options in section byte order.
func Uint64Option(name string) OptionCodec {
	return OptionCodec{
		Name: name,
		Parse: func(order binary.ByteOrder, value []byte) (any, error) {
			return OptionUint64(order, value)
		},
		Size: fixedSize[uint64](name, 8),
		Write: func(e *Encoder, v any) error {
			e.PutUint64(v.(uint64))
			return nil
		},
	}
}

// Int64Option is a codec for signed 64-bit options in section byte order.
func Int64Option(name string) OptionCodec {
	return OptionCodec{
		Name: name,
		Parse: func(order binary.ByteOrder, value []byte) (any, error) {
			return OptionInt64(order, value)
		},
		Size: fixedSize[int64](name, 8),
		Write: func(e *Encoder, v any) error {
			e.PutUint64(uint64(v.(int64)))
			return nil
		},
	}
}

// SplitTimeOption is a codec for timestamps stored as high and low 32-bit
// halves. The value is the raw interface time-unit counter.
func SplitTimeOption(name string) OptionCodec {
	return OptionCodec{
		Name: name,
		Parse: func(order binary.ByteOrder, value []byte) (any, error) {
			return OptionSplitTime(order, value)
		},
		Size: fixedSize[uint64](name, 8),
		Write: func(e *Encoder, v any) error {
			units := v.(uint64)
			e.PutUint32(uint32(units >> 32))
			e.PutUint32(uint32(units))
			return nil
		},
	}
}

// BytesOption is a codec for opaque byte options of at least min bytes.
func BytesOption(name string, multiple bool, min int) OptionCodec {
	return OptionCodec{
		Name:     name,
		Multiple: multiple,
		Parse: func(_ binary.ByteOrder, value []byte) (any, error) {
			if len(value) < min {
				return nil, malformedf("option %s has length %d, want at least %d", name, len(value), min)
			}
			return append([]byte(nil), value...), nil
		},
		Size: func(v any) (int, error) {
			b, ok := v.([]byte)
			if !ok {
				return 0, valueTypeError(name, v, "[]byte")
			}
			return len(b), nil
		},
		Write: func(e *Encoder, v any) error {
			e.PutBytes(v.([]byte))
			return nil
		},
	}
}

func fixedSize[T any](name string, size int) func(any) (int, error) {
	return func(v any) (int, error) {
		if _, ok := v.(T); !ok {
			var zero T
			return 0, valueTypeError(name, v, fmt.Sprintf("%T", zero))
		}
		return size, nil
	}
}
