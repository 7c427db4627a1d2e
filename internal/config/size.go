package config

import (
	"fmt"
	"math"
	"reflect"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/mapstructure"

	"firestige.xyz/ngcap/pkg/pcapng"
)

// ByteSize is a size in bytes that can be written as "64KiB", "1MB" or a
// plain number in config files.
type ByteSize int64

// ParseByteSize parses a human-readable byte size.
func ParseByteSize(s string) (ByteSize, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("byte size %q is too large", s)
	}
	return ByteSize(n), nil
}

func (b ByteSize) String() string {
	if b < 0 {
		return fmt.Sprintf("%dB", int64(b))
	}
	return humanize.IBytes(uint64(b))
}

// Int returns the size as an int.
func (b ByteSize) Int() int {
	return int(b)
}

// byteSizeDecodeHook converts strings and numbers to ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return ParseByteSize(v)
		case int:
			return ByteSize(v), nil
		case int64:
			return ByteSize(v), nil
		case uint64:
			return ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// byteOrderDecodeHook converts "little"/"big" strings to pcapng.ByteOrder.
func byteOrderDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(pcapng.ByteOrder(0)) {
			return data, nil
		}
		if s, ok := data.(string); ok {
			return pcapng.ParseByteOrder(s)
		}
		return data, nil
	}
}
