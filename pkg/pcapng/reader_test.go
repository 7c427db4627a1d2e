package pcapng

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderMinimalCapture(t *testing.T) {
	for _, order := range []ByteOrder{LittleEndian, BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			bo := order.Binary()
			f := newFile(order).
				section(order).
				idb(LinkTypeEthernet, 65535, opt(bo, OptIfTSResol, u8(6))).
				epb(0, 2_000_000, nil)

			r, err := NewReader(f.reader(), ReaderOptions{})
			require.NoError(t, err)

			p, err := r.ReadPacket()
			require.NoError(t, err)
			assert.Equal(t, PacketEnhanced, p.Kind)
			assert.True(t, p.Timestamp.Equal(time.Unix(2, 0)), "got %s", p.Timestamp)
			assert.Equal(t, uint32(0), p.CaptureLength)
			assert.Empty(t, p.Data)
			assert.Equal(t, -1, p.FCSLen)
			assert.Equal(t, f.offsets[2], p.Offset)

			_, err = r.ReadPacket()
			assert.ErrorIs(t, err, io.EOF)

			assert.Equal(t, order, r.Section().ByteOrder)
			assert.Equal(t, LinkTypeEthernet, r.LinkType())
			assert.Equal(t, Precision(6), r.Precision())
			assert.NoError(t, r.Err())
		})
	}
}

func TestReaderSectionsKeepTheirByteOrder(t *testing.T) {
	be := binary.BigEndian
	f := newFile(LittleEndian).
		section(LittleEndian).
		idb(LinkTypeEthernet, 0).
		epb(0, 1_000_000, []byte{1, 2, 3}).
		section(BigEndian).
		idb(LinkTypePPPDir, 0, opt(be, OptIfTSResol, u8(9))).
		idb(LinkTypeEthernet, 0, opt(be, OptIfName, []byte("eth1"))).
		epb(1, 3_000_000_000, []byte{4, 5, 6, 7, 8})

	r, err := NewReader(f.reader(), ReaderOptions{})
	require.NoError(t, err)

	p1, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, p1.Data)
	assert.Equal(t, int64(1), p1.Timestamp.Unix())

	p2, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5, 6, 7, 8}, p2.Data)
	assert.Equal(t, uint32(1), p2.Interface.Index)
	assert.Equal(t, "eth1", p2.Interface.Name)
	assert.Equal(t, int64(3000), p2.Timestamp.Unix())

	sections := r.Sections()
	require.Len(t, sections, 2)
	assert.Equal(t, LittleEndian, sections[0].ByteOrder)
	assert.Equal(t, BigEndian, sections[1].ByteOrder)
	assert.Len(t, sections[0].Interfaces, 1)
	assert.Len(t, sections[1].Interfaces, 2)
	assert.Equal(t, f.offsets[3], sections[1].Offset)

	assert.Equal(t, LinkTypePerPacket, r.LinkType())
	assert.Equal(t, PrecisionPerPacket, r.Precision())
}

func TestReaderUnknownBlocks(t *testing.T) {
	const unknown = 0x0BADF00D
	build := func() *fileBuilder {
		return newFile(LittleEndian).
			section(LittleEndian).
			block(unknown, []byte{1, 2, 3, 4}).
			idb(LinkTypeEthernet, 0).
			epb(0, 0, []byte{9})
	}

	t.Run("skipped", func(t *testing.T) {
		r, err := NewReader(build().reader(), ReaderOptions{})
		require.NoError(t, err)
		b, err := r.Next()
		require.NoError(t, err)
		assert.IsType(t, &Packet{}, b)
	})

	t.Run("returned", func(t *testing.T) {
		r, err := NewReader(build().reader(), ReaderOptions{ReturnUnknownBlocks: true})
		require.NoError(t, err)
		b, err := r.Next()
		require.NoError(t, err)
		raw, ok := b.(*RawBlock)
		require.True(t, ok, "got %T", b)
		assert.Equal(t, uint32(unknown), raw.Type)
		assert.Equal(t, []byte{1, 2, 3, 4}, raw.Data)

		b, err = r.Next()
		require.NoError(t, err)
		assert.IsType(t, &Packet{}, b)
	})
}

func TestReaderReturnAllBlocks(t *testing.T) {
	bo := binary.LittleEndian
	f := newFile(LittleEndian).
		section(LittleEndian, opt(bo, OptSHBUserAppl, []byte("builder"))).
		idb(LinkTypeEthernet, 0).
		epb(0, 0, []byte{1})

	r, err := NewReader(f.reader(), ReaderOptions{ReturnAllBlocks: true})
	require.NoError(t, err)

	var types []uint32
	for {
		b, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		types = append(types, b.BlockType())
	}
	assert.Equal(t, []uint32{BlockTypeSectionHeader, BlockTypeInterfaceDescription, BlockTypeEnhancedPacket}, types)
	assert.Equal(t, "builder", r.Section().Header.UserApplication())
}

func TestReaderBounds(t *testing.T) {
	le := binary.LittleEndian
	header := func() *fileBuilder { return newFile(LittleEndian).section(LittleEndian) }

	// Blocks after the 28-byte section header start at 28, after an
	// interface description without options at 48.
	tests := []struct {
		name   string
		data   []byte
		opts   ReaderOptions
		want   error
		offset int64
	}{
		{
			name: "declared length above the maximum",
			data: append(header().build(), enc(le, BlockTypeEnhancedPacket, uint32(0xFFFFFFF0))...),
			want: ErrResourceLimit,
		},
		{
			name: "declared length above a lowered maximum",
			data: header().epb(0, 0, make([]byte, 100)).build(),
			opts: ReaderOptions{MaxBlockSize: 64},
			want: ErrResourceLimit,
		},
		{
			name: "below the block minimum",
			data: header().block(BlockTypeEnhancedPacket, make([]byte, 4)).build(),
			want: ErrMalformed,
		},
		{
			name: "trailer mismatch",
			data: header().rawBlock(BlockTypeInterfaceDescription, 20, idbContent(le, 1, 0), 24).build(),
			want: ErrMalformed,
		},
		{
			name: "truncated content",
			data: append(header().build(), enc(le, BlockTypeInterfaceDescription, uint32(64), uint16(1))...),
			want: ErrMalformed,
		},
		{
			name: "option runs past the block",
			data: header().block(BlockTypeInterfaceDescription, append(idbContent(le, 1, 0), enc(le, OptIfName, uint16(8), []byte("abcd"))...)).build(),
			want: ErrMalformed,
		},
		{
			name: "numeric option with the wrong width",
			data: header().idb(1, 0, opt(le, OptIfTSResol, []byte{6, 0})).build(),
			want: ErrMalformed,
		},
		{
			name: "time resolution out of range",
			data: header().idb(1, 0, opt(le, OptIfTSResol, u8(0x80|64))).build(),
			want: ErrUnsupported,
		},
		{
			name:   "interface index out of range",
			data:   header().idb(1, 0).epb(1, 0, nil).build(),
			want:   ErrUnknownInterface,
			offset: 48,
		},
		{
			name: "packet before any interface",
			data: header().epb(0, 0, nil).build(),
			want: ErrMalformed,
		},
		{
			name:   "captured length above the link type maximum",
			data:   header().idb(1, 0).block(BlockTypeEnhancedPacket, epbContent(le, 0, 0, MaxPacketSize+1, 0, nil)).build(),
			want:   ErrMalformed,
			offset: 48,
		},
		{
			name:   "captured length beyond the block",
			data:   header().idb(1, 0).block(BlockTypeEnhancedPacket, epbContent(le, 0, 0, 16, 16, make([]byte, 4))).build(),
			want:   ErrMalformed,
			offset: 48,
		},
		{
			name: "unaligned length in strict mode",
			data: header().rawBlock(BlockTypeInterfaceDescription, 21, append(idbContent(le, 1, 0), endOpt(le)...), 21).build(),
			opts: ReaderOptions{Strict: true},
			want: ErrMalformed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReader(bytes.NewReader(tt.data), tt.opts)
			require.NoError(t, err)

			_, err = r.Next()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			want := tt.offset
			if want == 0 {
				want = 28
			}
			var blockErr *BlockError
			require.ErrorAs(t, err, &blockErr)
			assert.Equal(t, want, blockErr.Offset)

			_, again := r.Next()
			assert.Equal(t, err, again, "errors are terminal")
			assert.Equal(t, err, r.Err())
		})
	}
}

func TestReaderUnalignedLengthIsRounded(t *testing.T) {
	le := binary.LittleEndian
	f := newFile(LittleEndian).
		section(LittleEndian).
		rawBlock(BlockTypeInterfaceDescription, 21, append(idbContent(le, LinkTypeEthernet, 0), endOpt(le)...), 21).
		epb(0, 0, []byte{7})

	r, err := NewReader(f.reader(), ReaderOptions{})
	require.NoError(t, err)
	p, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte{7}, p.Data)
}

func TestReaderRejectsNonPcapng(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := NewReader(bytes.NewReader(nil), ReaderOptions{})
		assert.ErrorIs(t, err, ErrNoSection)
	})

	t.Run("block before section header", func(t *testing.T) {
		data := enc(binary.LittleEndian, BlockTypeInterfaceDescription, uint32(20), uint16(1), uint16(0), uint32(0), uint32(20))
		_, err := NewReader(bytes.NewReader(data), ReaderOptions{})
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("bad magic", func(t *testing.T) {
		data := newFile(LittleEndian).section(LittleEndian).build()
		copy(data[8:12], []byte{1, 2, 3, 4})
		_, err := NewReader(bytes.NewReader(data), ReaderOptions{})
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestReaderSectionVersion(t *testing.T) {
	le := binary.LittleEndian
	build := func() []byte {
		f := newFile(LittleEndian)
		f.block(BlockTypeSectionHeader, shbContent(le, 2, 0))
		f.idb(LinkTypeEthernet, 0).epb(0, 0, []byte{1})
		return f.section(LittleEndian).idb(LinkTypeEthernet, 0).epb(0, 0, []byte{2}).build()
	}

	_, err := NewReader(bytes.NewReader(build()), ReaderOptions{})
	assert.ErrorIs(t, err, ErrUnsupported)

	r, err := NewReader(bytes.NewReader(build()), ReaderOptions{SkipUnknownSections: true})
	require.NoError(t, err)
	p, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, p.Data)

	sections := r.Sections()
	require.Len(t, sections, 2)
	assert.True(t, sections[0].Skipped())
	assert.False(t, sections[1].Skipped())
}

func TestReaderOptions(t *testing.T) {
	le := binary.LittleEndian
	f := newFile(LittleEndian).
		section(LittleEndian,
			opt(le, OptComment, []byte("first")),
			opt(le, OptSHBHardware, []byte("x86_64")),
			opt(le, 0x7777, []byte{1, 2, 3}),
			opt(le, OptComment, []byte{'b', 0xff, 'd'}),
		)
	// Trailing bytes after the end of options are ignored.
	f.block(BlockTypeInterfaceDescription, append(idbContent(le, LinkTypeEthernet, 0, opt(le, OptIfFCSLen, u8(4))), 0xde, 0xad, 0xbe, 0xef))
	f.epb(0, 0, []byte{1, 2, 3, 4, 5, 6}, opt(le, OptEPBFlags, u32(le, 2<<5|DirectionOutbound)))
	f.epb(0, 0, []byte{1})

	r, err := NewReader(f.reader(), ReaderOptions{})
	require.NoError(t, err)

	shb := r.Section().Header
	assert.Equal(t, "x86_64", shb.Hardware())
	raw, ok := shb.Options.Get(0x7777)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, raw)
	assert.Equal(t, []string{"first", "b�d"}, shb.Options.Comments())

	p, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, 16, p.FCSLen, "epb_flags overrides if_fcslen")
	assert.Equal(t, DirectionOutbound, p.Direction())

	p, err = r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, 32, p.FCSLen)
	assert.Equal(t, 4, r.Interfaces()[0].FCSLen)
}

func TestReaderInterfaceOptions(t *testing.T) {
	be := binary.BigEndian
	v6 := netip.MustParseAddr("2001:db8::1").As16()
	f := newFile(BigEndian).
		section(BigEndian).
		idb(LinkTypeEthernet, 128,
			opt(be, OptIfName, []byte("eth0")),
			opt(be, OptIfDescription, []byte("uplink")),
			opt(be, OptIfIPv4Addr, []byte{10, 0, 0, 1, 255, 255, 255, 0}),
			opt(be, OptIfIPv4Addr, []byte{10, 0, 1, 1, 255, 255, 0, 0}),
			opt(be, OptIfIPv6Addr, append(v6[:], 64)),
			opt(be, OptIfMACAddr, []byte{0, 1, 2, 3, 4, 5}),
			opt(be, OptIfSpeed, u64(be, 10_000_000_000)),
			opt(be, OptIfTSResol, u8(0x80|20)),
			opt(be, OptIfFilter, []byte{0, 't', 'c', 'p'}),
			opt(be, OptIfTSOffset, u64(be, 60)),
		)

	r, err := NewReader(f.reader(), ReaderOptions{})
	require.NoError(t, err)
	// Interfaces are absorbed on the way to the end of the stream.
	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)

	iface, err := r.Interface(0)
	require.NoError(t, err)
	assert.Equal(t, "eth0", iface.Name)
	assert.Equal(t, "uplink", iface.Description)
	assert.Equal(t, uint32(128), iface.SnapLen)
	assert.Equal(t, uint64(1<<20), iface.UnitsPerSecond)
	assert.Equal(t, Precision(6), iface.Precision)
	assert.Equal(t, int64(60), iface.TimeOffset)

	opts := iface.Block.Options
	addrs := opts.All(OptIfIPv4Addr)
	require.Len(t, addrs, 2)
	assert.Equal(t, IPv4Address{Addr: netip.MustParseAddr("10.0.0.1"), Mask: netip.MustParseAddr("255.255.255.0")}, addrs[0])
	v, _ := opts.Get(OptIfIPv6Addr)
	assert.Equal(t, netip.MustParsePrefix("2001:db8::1/64"), v)
	speed, _ := opts.Uint64(OptIfSpeed)
	assert.Equal(t, uint64(10_000_000_000), speed)
	v, _ = opts.Get(OptIfFilter)
	assert.Equal(t, Filter{Type: 0, Expr: []byte("tcp")}, v)

	_, err = r.Interface(1)
	assert.ErrorIs(t, err, ErrUnknownInterface)
}

func TestReaderSimplePacket(t *testing.T) {
	le := binary.LittleEndian
	spb := func(origlen uint32, data []byte) []byte {
		return append(enc(le, origlen), pad(data)...)
	}

	tests := []struct {
		name    string
		snapLen uint32
		origlen uint32
		data    []byte
		want    []byte
	}{
		{name: "snaplen limits", snapLen: 4, origlen: 10, data: []byte{1, 2, 3, 4, 5, 6, 7, 8}, want: []byte{1, 2, 3, 4}},
		{name: "origlen limits", snapLen: 0, origlen: 3, data: []byte{1, 2, 3, 0}, want: []byte{1, 2, 3}},
		{name: "content limits", snapLen: 0, origlen: 1500, data: []byte{1, 2, 3, 4}, want: []byte{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFile(LittleEndian).
				section(LittleEndian).
				idb(LinkTypeEthernet, tt.snapLen).
				block(BlockTypeSimplePacket, spb(tt.origlen, tt.data))

			r, err := NewReader(f.reader(), ReaderOptions{})
			require.NoError(t, err)
			p, err := r.ReadPacket()
			require.NoError(t, err)
			assert.Equal(t, PacketSimple, p.Kind)
			assert.Equal(t, tt.want, p.Data)
			assert.Equal(t, uint32(len(tt.want)), p.CaptureLength)
			assert.Equal(t, tt.origlen, p.OriginalLength)
		})
	}

	t.Run("needs interface 0", func(t *testing.T) {
		f := newFile(LittleEndian).section(LittleEndian).block(BlockTypeSimplePacket, spb(1, []byte{1}))
		r, err := NewReader(f.reader(), ReaderOptions{})
		require.NoError(t, err)
		_, err = r.Next()
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestReaderObsoletePacket(t *testing.T) {
	be := binary.BigEndian
	content := enc(be, uint16(0), uint16(7), uint32(0), uint32(5_000_000), uint32(2), uint32(60))
	content = append(content, pad([]byte{0xaa, 0xbb})...)
	content = append(content, withEnd(be, [][]byte{opt(be, OptEPBFlags, u32(be, DirectionInbound))})...)

	f := newFile(BigEndian).section(BigEndian).idb(LinkTypeEthernet, 0).block(BlockTypePacket, content)
	r, err := NewReader(f.reader(), ReaderOptions{})
	require.NoError(t, err)

	p, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, PacketObsolete, p.Kind)
	assert.Equal(t, uint16(7), p.DropCount)
	assert.Equal(t, []byte{0xaa, 0xbb}, p.Data)
	assert.Equal(t, uint32(60), p.OriginalLength)
	assert.Equal(t, int64(5), p.Timestamp.Unix())
	assert.Equal(t, DirectionInbound, p.Direction())
}

func TestReaderPseudoHeader(t *testing.T) {
	t.Run("split off the data", func(t *testing.T) {
		f := newFile(LittleEndian).
			section(LittleEndian).
			idb(LinkTypePPPDir, 0).
			epb(0, 0, []byte{0x01, 0xaa, 0xbb})

		r, err := NewReader(f.reader(), ReaderOptions{})
		require.NoError(t, err)
		data, ci, err := r.ReadPacketData()
		require.NoError(t, err)
		assert.Equal(t, []byte{0xaa, 0xbb}, data)
		assert.Equal(t, 2, ci.CaptureLength)
		assert.Equal(t, 2, ci.Length)
	})

	t.Run("shorter than the pseudo-header", func(t *testing.T) {
		f := newFile(LittleEndian).
			section(LittleEndian).
			idb(LinkTypeSunATM, 0).
			epb(0, 0, []byte{1, 2})

		r, err := NewReader(f.reader(), ReaderOptions{})
		require.NoError(t, err)
		_, err = r.ReadPacket()
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestReaderNameResolution(t *testing.T) {
	le := binary.LittleEndian
	v6 := netip.MustParseAddr("2001:db8::2")
	records := bytes.Join([][]byte{
		nameRecord(le, NameRecordIPv4, []byte{10, 0, 0, 1}, "a.example", "b.example"),
		nameRecord(le, NameRecordIPv6, v6.AsSlice(), "v6.example"),
		nameRecord(le, 9, []byte{1, 2, 3}),
		enc(le, NameRecordEnd, uint16(0)),
		withEnd(le, [][]byte{opt(le, OptNSDNSName, []byte("ns1.example"))}),
	}, nil)

	t.Run("accumulates the name table", func(t *testing.T) {
		f := newFile(LittleEndian).
			section(LittleEndian).
			block(BlockTypeNameResolution, records).
			block(BlockTypeNameResolution, bytes.Join([][]byte{
				nameRecord(le, NameRecordIPv4, []byte{10, 0, 0, 1}, "a.example", "c.example"),
				enc(le, NameRecordEnd, uint16(0)),
			}, nil))

		r, err := NewReader(f.reader(), ReaderOptions{ReturnAllBlocks: true})
		require.NoError(t, err)
		_, err = r.Next() // SHB
		require.NoError(t, err)
		b, err := r.Next()
		require.NoError(t, err)
		nrb := b.(*NameResolution)
		require.Len(t, nrb.Records, 3)
		assert.Equal(t, []byte{1, 2, 3}, nrb.Records[2].Data)
		dns, _ := nrb.Options.StringValue(OptNSDNSName)
		assert.Equal(t, "ns1.example", dns)

		_, err = r.Next()
		require.NoError(t, err)
		_, err = r.Next()
		require.ErrorIs(t, err, io.EOF)

		table := r.NameTable()
		assert.Equal(t, []string{"a.example", "b.example", "c.example"}, table.Lookup(netip.MustParseAddr("10.0.0.1")))
		assert.Equal(t, []string{"v6.example"}, table.Lookup(v6))
	})

	t.Run("name without terminator", func(t *testing.T) {
		bad := pad(append(enc(le, NameRecordIPv4, uint16(7)), 10, 0, 0, 1, 'a', 'b', 'c'))
		f := newFile(LittleEndian).section(LittleEndian).block(BlockTypeNameResolution, append(bad, enc(le, NameRecordEnd, uint16(0))...))
		r, err := NewReader(f.reader(), ReaderOptions{})
		require.NoError(t, err)
		_, err = r.Next()
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestReaderInterfaceStatistics(t *testing.T) {
	le := binary.LittleEndian
	isb := func(ifid uint32) []byte {
		return append(enc(le, ifid, uint32(0), uint32(9_000_000)), withEnd(le, [][]byte{
			opt(le, OptISBStartTime, enc(le, uint32(0), uint32(1_000_000))),
			opt(le, OptISBIfRecv, u64(le, 100)),
			opt(le, OptISBIfDrop, u64(le, 3)),
		})...)
	}

	f := newFile(LittleEndian).section(LittleEndian).idb(LinkTypeEthernet, 0).
		block(BlockTypeInterfaceStatistics, isb(0))
	r, err := NewReader(f.reader(), ReaderOptions{})
	require.NoError(t, err)
	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)

	require.Len(t, r.Statistics(), 1)
	iface, err := r.Interface(0)
	require.NoError(t, err)
	stats := iface.Statistics
	require.NotNil(t, stats)
	recv, _ := stats.Received()
	drop, _ := stats.Dropped()
	assert.Equal(t, uint64(100), recv)
	assert.Equal(t, uint64(3), drop)
	assert.Equal(t, int64(9), stats.Timestamp.Unix())
	start, ok := stats.StartTime(iface)
	require.True(t, ok)
	assert.Equal(t, int64(1), start.Unix())

	f = newFile(LittleEndian).section(LittleEndian).idb(LinkTypeEthernet, 0).
		block(BlockTypeInterfaceStatistics, isb(2))
	r, err = NewReader(f.reader(), ReaderOptions{})
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, ErrUnknownInterface)
}

func TestReaderDecryptionSecrets(t *testing.T) {
	le := binary.LittleEndian
	keylog := []byte("CLIENT_RANDOM 00 11\n")

	t.Run("collected", func(t *testing.T) {
		f := newFile(LittleEndian).section(LittleEndian).
			block(BlockTypeDecryptionSecrets, append(enc(le, SecretsTLSKeyLog, uint32(len(keylog))), pad(keylog)...))
		r, err := NewReader(f.reader(), ReaderOptions{})
		require.NoError(t, err)
		_, err = r.Next()
		require.ErrorIs(t, err, io.EOF)
		require.Len(t, r.Secrets(), 1)
		assert.Equal(t, SecretsTLSKeyLog, r.Secrets()[0].Type)
		assert.Equal(t, keylog, r.Secrets()[0].Data)
	})

	t.Run("length above the cap", func(t *testing.T) {
		f := newFile(LittleEndian).section(LittleEndian).
			block(BlockTypeDecryptionSecrets, append(enc(le, SecretsTLSKeyLog, uint32(MaxSecretsLength+1)), make([]byte, 4)...))
		r, err := NewReader(f.reader(), ReaderOptions{})
		require.NoError(t, err)
		_, err = r.Next()
		assert.ErrorIs(t, err, ErrResourceLimit)
	})

	t.Run("length beyond the block", func(t *testing.T) {
		f := newFile(LittleEndian).section(LittleEndian).
			block(BlockTypeDecryptionSecrets, append(enc(le, SecretsSSHKeyLog, uint32(64)), make([]byte, 8)...))
		r, err := NewReader(f.reader(), ReaderOptions{})
		require.NoError(t, err)
		_, err = r.Next()
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

// seekOnly hides io.ReaderAt so that ReadAt goes through Seek.
type seekOnly struct{ io.ReadSeeker }

type streamOnly struct{ io.Reader }

func TestReaderReadAt(t *testing.T) {
	f := newFile(LittleEndian).
		section(LittleEndian).
		idb(LinkTypeEthernet, 0).
		epb(0, 1_000_000, []byte{1}).
		section(BigEndian).
		idb(LinkTypeEthernet, 0, opt(binary.BigEndian, OptIfTSResol, u8(3))).
		epb(0, 7_000, []byte{2}).
		epb(0, 8_000, []byte{3})

	sources := map[string]func() io.Reader{
		"reader at": func() io.Reader { return f.reader() },
		"seeker":    func() io.Reader { return seekOnly{f.reader()} },
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			r, err := NewReader(src(), ReaderOptions{})
			require.NoError(t, err)

			_, err = r.ReadPacket()
			require.NoError(t, err)
			p, err := r.ReadPacket()
			require.NoError(t, err)
			assert.Equal(t, []byte{2}, p.Data)

			b, err := r.ReadAt(f.offsets[2])
			require.NoError(t, err)
			first := b.(*Packet)
			assert.Equal(t, []byte{1}, first.Data)
			assert.Equal(t, int64(1), first.Timestamp.Unix())

			b, err = r.ReadAt(f.offsets[5])
			require.NoError(t, err)
			assert.Equal(t, int64(7), b.(*Packet).Timestamp.Unix(), "decoded with the big-endian section")

			b, err = r.ReadAt(f.offsets[3])
			require.NoError(t, err)
			assert.Equal(t, BigEndian, b.(*SectionHeader).ByteOrder)

			_, err = r.ReadAt(f.offsets[2] + 4)
			assert.ErrorIs(t, err, ErrMalformed)

			p, err = r.ReadPacket()
			require.NoError(t, err, "sequential position is kept")
			assert.Equal(t, []byte{3}, p.Data)
			assert.Len(t, r.Sections(), 2)
		})
	}

	t.Run("not seekable", func(t *testing.T) {
		r, err := NewReader(streamOnly{f.reader()}, ReaderOptions{})
		require.NoError(t, err)
		_, err = r.ReadAt(0)
		assert.ErrorIs(t, err, ErrNotSeekable)
	})
}

type countingObserver struct {
	read, skipped, errors int
}

func (o *countingObserver) BlockRead(uint32, uint32) { o.read++ }
func (o *countingObserver) BlockSkipped(uint32)      { o.skipped++ }
func (o *countingObserver) ReadError(error)          { o.errors++ }

func TestReaderObserver(t *testing.T) {
	f := newFile(LittleEndian).
		section(LittleEndian).
		block(0x0BADF00D, nil).
		idb(LinkTypeEthernet, 0).
		epb(0, 0, []byte{1}).
		epb(3, 0, []byte{1})

	obs := &countingObserver{}
	r, err := NewReader(f.reader(), ReaderOptions{Observer: obs})
	require.NoError(t, err)
	_, err = r.ReadPacket()
	require.NoError(t, err)
	_, err = r.ReadPacket()
	require.Error(t, err)

	assert.Equal(t, 5, obs.read)
	assert.Equal(t, 1, obs.skipped)
	assert.Equal(t, 1, obs.errors)
}
