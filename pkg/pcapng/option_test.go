package pcapng

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsEdit(t *testing.T) {
	var opts Options
	opts.Add(OptComment, "first")
	opts.Add(OptIfName, "eth0")
	opts.Add(OptComment, "second")

	assert.Len(t, opts.All(OptComment), 2)
	v, ok := opts.Get(OptComment)
	require.True(t, ok)
	assert.Equal(t, "first", v)

	opts.Set(OptIfName, "eth1")
	name, _ := opts.StringValue(OptIfName)
	assert.Equal(t, "eth1", name)
	assert.Len(t, opts, 3)

	opts.Set(OptIfSpeed, uint64(1_000_000_000))
	speed, ok := opts.Uint64(OptIfSpeed)
	assert.True(t, ok)
	assert.Equal(t, uint64(1_000_000_000), speed)

	opts.Remove(OptComment)
	assert.Empty(t, opts.All(OptComment))
	assert.Len(t, opts, 2)

	_, ok = opts.Uint32(OptIfName)
	assert.False(t, ok, "wrong value type")
}

func TestOptionsCommentsSanitized(t *testing.T) {
	opts := Options{{Code: OptComment, Value: "ok"}, {Code: OptComment, Value: "bad\xffbyte"}}
	assert.Equal(t, []string{"ok", "bad�byte"}, opts.Comments())
	raw, _ := opts.StringValue(OptComment)
	assert.Equal(t, "ok", raw)
}

func TestOptionsEncoding(t *testing.T) {
	e := &Encoder{order: binary.LittleEndian}

	n, err := e.OptionsSize(BlockTypeInterfaceDescription, nil)
	require.NoError(t, err)
	assert.Zero(t, n, "an empty list has no end marker")

	opts := Options{
		{Code: OptIfName, Value: "eth0"},
		{Code: OptIfTSResol, Value: uint8(9)},
		{Code: 0x7000, Value: []byte{1, 2, 3, 4, 5}},
	}
	n, err = e.OptionsSize(BlockTypeInterfaceDescription, opts)
	require.NoError(t, err)
	assert.Equal(t, 8+8+12+4, n)

	require.NoError(t, e.PutOptions(BlockTypeInterfaceDescription, opts))
	assert.Equal(t, n, e.Len())

	_, err = e.OptionsSize(BlockTypeInterfaceDescription, Options{{Code: 0x7000, Value: 5}})
	assert.Error(t, err, "unregistered option without raw bytes")

	_, err = e.OptionsSize(BlockTypeInterfaceDescription, Options{{Code: OptComment, Value: string(make([]byte, 0x10000))}})
	assert.ErrorIs(t, err, ErrResourceLimit)
}

func TestRepeatedSingleOptionKept(t *testing.T) {
	bo := binary.LittleEndian
	data := newFile(LittleEndian).
		section(LittleEndian, opt(bo, OptSHBOS, []byte("linux")), opt(bo, OptSHBOS, []byte("bsd"))).
		build()
	r, err := NewReader(bytes.NewReader(data), ReaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, []any{"linux", "bsd"}, r.Section().Header.Options.All(OptSHBOS))
	assert.Equal(t, "linux", r.Section().Header.OS())
}

func TestOptionValueHelpers(t *testing.T) {
	_, err := OptionUint8([]byte{1, 2})
	assert.ErrorIs(t, err, ErrMalformed)

	v32, err := OptionUint32(binary.BigEndian, []byte{0, 0, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, uint32(256), v32)

	i64, err := OptionInt64(binary.LittleEndian, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
	require.NoError(t, err)
	assert.Equal(t, int64(-1), i64)

	ts, err := OptionSplitTime(binary.LittleEndian, []byte{1, 0, 0, 0, 2, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, uint64(1)<<32|2, ts)

	_, err = OptionUint64(binary.LittleEndian, []byte{1})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestOptionsTermination(t *testing.T) {
	comment := Option{Code: OptComment, Value: "hi"}
	tests := []struct {
		name    string
		opts    Options
		size    int
		wantErr bool
	}{
		{name: "empty", opts: nil, size: 0},
		{name: "lone end marker", opts: Options{{Code: OptEndOfOpt}}, size: 4},
		{name: "explicit end marker", opts: Options{{Code: OptEndOfOpt, Value: EndMarker}}, size: 4},
		{name: "terminated", opts: Options{comment}, size: 8 + 4},
		{name: "runs to end of block", opts: Options{comment, {Code: OptEndOfOpt, Value: EndOfBlock}}, size: 8},
		{name: "end marker not last", opts: Options{{Code: OptEndOfOpt}, comment}, wantErr: true},
		{name: "bad end value", opts: Options{comment, {Code: OptEndOfOpt, Value: "x"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Encoder{order: binary.LittleEndian}
			n, err := e.OptionsSize(BlockTypeEnhancedPacket, tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.size, n)
			require.NoError(t, e.PutOptions(BlockTypeEnhancedPacket, tt.opts))
			assert.Equal(t, n, e.Len())
		})
	}
}

func TestOptionsAddKeepsEndLast(t *testing.T) {
	opts := Options{{Code: OptEndOfOpt, Value: EndOfBlock}}
	opts.Add(OptComment, "a")
	require.Len(t, opts, 2)
	assert.Equal(t, uint16(OptComment), opts[0].Code)
	assert.Equal(t, uint16(OptEndOfOpt), opts[1].Code)
}

func TestReaderRecordsOptionsEnd(t *testing.T) {
	bo := binary.LittleEndian
	fixed := enc(bo, uint32(0), uint32(0), uint32(1), uint32(1), uint32(1), uint8(9), [3]byte{})
	data := newFile(LittleEndian).
		section(LittleEndian).
		idb(LinkTypeEthernet, 0).
		epb(0, 1, []byte{9}, opt(bo, OptComment, []byte("c"))).
		block(BlockTypeEnhancedPacket, append(bytes.Clone(fixed), endOpt(bo)...)).
		block(BlockTypeEnhancedPacket, append(bytes.Clone(fixed), opt(bo, OptComment, []byte("c"))...)).
		build()

	_, blocks := readAll(t, data)
	require.Len(t, blocks, 5)

	tests := []struct {
		name string
		opts Options
		want Options
	}{
		{name: "terminated", opts: blocks[2].(*Packet).Options, want: Options{{Code: OptComment, Value: "c"}}},
		{name: "lone end marker", opts: blocks[3].(*Packet).Options, want: Options{{Code: OptEndOfOpt, Value: EndMarker}}},
		{name: "no end marker", opts: blocks[4].(*Packet).Options, want: Options{{Code: OptComment, Value: "c"}, {Code: OptEndOfOpt, Value: EndOfBlock}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts)
		})
	}
}
