package pcapng

import (
	"bytes"
	"encoding/binary"
)

// fileBuilder assembles pcapng bytes by hand so that tests do not depend on
// the writer under test.
type fileBuilder struct {
	order   binary.ByteOrder
	buf     bytes.Buffer
	offsets []int64
}

func newFile(order ByteOrder) *fileBuilder {
	return &fileBuilder{order: order.Binary()}
}

// block appends a block; content must already be padded.
func (b *fileBuilder) block(typ uint32, content []byte) *fileBuilder {
	total := uint32(blockOverhead + len(content))
	return b.rawBlock(typ, total, content, total)
}

func (b *fileBuilder) rawBlock(typ, total uint32, content []byte, trailer uint32) *fileBuilder {
	b.offsets = append(b.offsets, int64(b.buf.Len()))
	b.buf.Write(enc(b.order, typ, total))
	b.buf.Write(content)
	b.buf.Write(enc(b.order, trailer))
	return b
}

// section switches the builder to order and appends a version 1.0 header.
func (b *fileBuilder) section(order ByteOrder, opts ...[]byte) *fileBuilder {
	b.order = order.Binary()
	return b.block(BlockTypeSectionHeader, shbContent(b.order, 1, 0, opts...))
}

func (b *fileBuilder) idb(linkType uint16, snapLen uint32, opts ...[]byte) *fileBuilder {
	return b.block(BlockTypeInterfaceDescription, idbContent(b.order, linkType, snapLen, opts...))
}

func (b *fileBuilder) epb(ifid uint32, units uint64, data []byte, opts ...[]byte) *fileBuilder {
	return b.block(BlockTypeEnhancedPacket, epbContent(b.order, ifid, units, uint32(len(data)), uint32(len(data)), data, opts...))
}

func (b *fileBuilder) build() []byte {
	return bytes.Clone(b.buf.Bytes())
}

func (b *fileBuilder) reader() *bytes.Reader {
	return bytes.NewReader(b.build())
}

// enc encodes fixed-size values and byte slices in order.
func enc(order binary.ByteOrder, vals ...any) []byte {
	var buf bytes.Buffer
	for _, v := range vals {
		if err := binary.Write(&buf, order, v); err != nil {
			panic(err)
		}
	}
	return buf.Bytes()
}

func pad(b []byte) []byte {
	return append(b, make([]byte, padLen(len(b)))...)
}

func opt(order binary.ByteOrder, code uint16, value []byte) []byte {
	return pad(append(enc(order, code, uint16(len(value))), value...))
}

func endOpt(order binary.ByteOrder) []byte {
	return enc(order, OptEndOfOpt, uint16(0))
}

func withEnd(order binary.ByteOrder, opts [][]byte) []byte {
	if len(opts) == 0 {
		return nil
	}
	return append(bytes.Join(opts, nil), endOpt(order)...)
}

func shbContent(order binary.ByteOrder, major, minor uint16, opts ...[]byte) []byte {
	return append(enc(order, ByteOrderMagic, major, minor, int64(-1)), withEnd(order, opts)...)
}

func idbContent(order binary.ByteOrder, linkType uint16, snapLen uint32, opts ...[]byte) []byte {
	return append(enc(order, linkType, uint16(0), snapLen), withEnd(order, opts)...)
}

func epbContent(order binary.ByteOrder, ifid uint32, units uint64, caplen, origlen uint32, data []byte, opts ...[]byte) []byte {
	c := enc(order, ifid, uint32(units>>32), uint32(units), caplen, origlen)
	c = append(c, pad(bytes.Clone(data))...)
	return append(c, withEnd(order, opts)...)
}

func u8(v uint8) []byte { return []byte{v} }

func u32(order binary.ByteOrder, v uint32) []byte { return enc(order, v) }

func u64(order binary.ByteOrder, v uint64) []byte { return enc(order, v) }

// nameRecord encodes one name resolution record with its padding.
func nameRecord(order binary.ByteOrder, typ uint16, addr []byte, names ...string) []byte {
	value := bytes.Clone(addr)
	for _, n := range names {
		value = append(value, n...)
		value = append(value, 0)
	}
	return pad(append(enc(order, typ, uint16(len(value))), value...))
}
