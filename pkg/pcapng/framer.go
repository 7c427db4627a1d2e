package pcapng

import (
	"encoding/binary"
	"errors"
	"io"
)

// frame is one block as cut from the input, before content decoding.
type frame struct {
	header   BlockHeader
	declared uint32
	order    ByteOrder
	content  []byte
}

// readFrame reads the block starting at offset. The section header is
// recognized by its type alone, which reads the same in both byte orders;
// its magic then fixes the order of everything that follows.
func (r *Reader) readFrame(src io.Reader, offset int64, sec *Section) (*frame, error) {
	var hdr [blockHeaderLen + 4]byte
	if _, err := io.ReadFull(src, hdr[:blockHeaderLen]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, truncated(err, "block header")
	}

	f := &frame{}
	raw := hdr[:blockHeaderLen]
	if binary.LittleEndian.Uint32(raw[0:4]) == BlockTypeSectionHeader {
		if _, err := io.ReadFull(src, hdr[blockHeaderLen:]); err != nil {
			return nil, truncated(err, "section header")
		}
		order, ok := byteOrderFromMagic(hdr[blockHeaderLen:])
		if !ok {
			return nil, malformedf("bad byte-order magic 0x%x", hdr[blockHeaderLen:])
		}
		f.order = order
		f.header.Type = BlockTypeSectionHeader
	} else {
		if sec == nil {
			return nil, malformedf("block before the first section header")
		}
		f.order = sec.ByteOrder
		f.header.Type = f.order.Binary().Uint32(raw[0:4])
	}
	bo := f.order.Binary()
	f.declared = bo.Uint32(raw[4:8])

	h, _ := handlerFor(f.header.Type)
	if f.declared > r.opts.MaxBlockSize {
		return nil, limitf("block length %d exceeds %d", f.declared, r.opts.MaxBlockSize)
	}
	length := f.declared
	if length%4 != 0 {
		if r.opts.Strict {
			return nil, malformedf("block length %d is not a multiple of 4", length)
		}
		r.log.WithField("offset", offset).Debugf("block length %d rounded up to a multiple of 4", length)
		length = uint32(roundUp4(int(length)))
	}
	if length < h.MinLength {
		return nil, malformedf("block length %d below the %d-byte minimum of %s", length, h.MinLength, BlockTypeName(f.header.Type))
	}
	f.header.TotalLength = length

	f.content = make([]byte, f.header.ContentLength())
	n := 0
	if f.header.Type == BlockTypeSectionHeader {
		n = copy(f.content, hdr[blockHeaderLen:])
	}
	if _, err := io.ReadFull(src, f.content[n:]); err != nil {
		return nil, truncated(err, BlockTypeName(f.header.Type)+" content")
	}

	var trailer [blockTrailerLen]byte
	if _, err := io.ReadFull(src, trailer[:]); err != nil {
		return nil, truncated(err, BlockTypeName(f.header.Type)+" trailer")
	}
	if t := bo.Uint32(trailer[:]); t != f.declared && t != length {
		return nil, malformedf("trailer length %d does not match header length %d", t, f.declared)
	}
	return f, nil
}

// truncated turns a short read into a malformed-file error and passes other
// I/O errors through.
func truncated(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return malformedf("truncated %s", what)
	}
	return err
}
