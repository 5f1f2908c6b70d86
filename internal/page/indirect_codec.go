package page

import (
	"encoding/binary"

	"github.com/arbordb/arbor/internal/bitmap"
	arborerr "github.com/arbordb/arbor/errors"
)

// denseFormTag / bitmapFormTag distinguish the two wire shapes an
// IndirectPage can take (§4.2).
const (
	denseFormTag  byte = 0
	bitmapFormTag byte = 1
)

// EncodeIndirectPage writes the canonical wire form for whichever
// representation p currently holds:
//
//	dense:  tag(0) || u16 count || (u16 offset, ref)*count
//	bitmap: tag(1) || u32 count || u32 word_count || word_count*u64 || ref*count (bitmap order)
func EncodeIndirectPage(buf []byte, p *IndirectPage) []byte {
	var scratch [8]byte

	if !p.bitmapMode {
		buf = append(buf, denseFormTag)
		binary.BigEndian.PutUint16(scratch[:2], uint16(len(p.sparse)))
		buf = append(buf, scratch[:2]...)
		p.Each(func(offset int, ref *Ref) {
			binary.BigEndian.PutUint16(scratch[:2], uint16(offset))
			buf = append(buf, scratch[:2]...)
			buf = EncodeRef(buf, ref)
		})
		return buf
	}

	buf = append(buf, bitmapFormTag)
	binary.BigEndian.PutUint32(scratch[:4], uint32(p.bits.Cardinality()))
	buf = append(buf, scratch[:4]...)

	words := p.bits.Words()
	binary.BigEndian.PutUint32(scratch[:4], uint32(len(words)))
	buf = append(buf, scratch[:4]...)
	for _, w := range words {
		binary.BigEndian.PutUint64(scratch[:], w)
		buf = append(buf, scratch[:8]...)
	}
	for _, ref := range p.refs {
		buf = EncodeRef(buf, ref)
	}
	return buf
}

// DecodeIndirectPage parses either wire shape back into an IndirectPage
// with fanout slots available.
func DecodeIndirectPage(buf []byte, fanout int) (*IndirectPage, error) {
	if len(buf) < 1 {
		return nil, arborerr.New(arborerr.CodeCorrupt, "indirect page truncated: missing tag")
	}
	tag := buf[0]
	pos := 1

	switch tag {
	case denseFormTag:
		if len(buf) < pos+2 {
			return nil, arborerr.New(arborerr.CodeCorrupt, "indirect page truncated: missing count")
		}
		count := int(binary.BigEndian.Uint16(buf[pos:]))
		pos += 2

		p := NewIndirectPage(fanout)
		for i := 0; i < count; i++ {
			if len(buf) < pos+2 {
				return nil, arborerr.New(arborerr.CodeCorrupt, "indirect page truncated: missing slot offset")
			}
			offset := int(binary.BigEndian.Uint16(buf[pos:]))
			pos += 2
			ref, n, err := DecodeRef(buf[pos:])
			if err != nil {
				return nil, err
			}
			pos += n
			p.sparse[offset] = ref
		}
		return p, nil

	case bitmapFormTag:
		if len(buf) < pos+8 {
			return nil, arborerr.New(arborerr.CodeCorrupt, "indirect page truncated: missing bitmap header")
		}
		count := int(binary.BigEndian.Uint32(buf[pos:]))
		pos += 4
		wordCount := int(binary.BigEndian.Uint32(buf[pos:]))
		pos += 4

		words := make([]uint64, wordCount)
		for i := 0; i < wordCount; i++ {
			if len(buf) < pos+8 {
				return nil, arborerr.New(arborerr.CodeCorrupt, "indirect page truncated: missing bitmap word")
			}
			words[i] = binary.BigEndian.Uint64(buf[pos:])
			pos += 8
		}

		refs := make([]*Ref, 0, count)
		for i := 0; i < count; i++ {
			ref, n, err := DecodeRef(buf[pos:])
			if err != nil {
				return nil, err
			}
			pos += n
			refs = append(refs, ref)
		}

		p := &IndirectPage{
			fanout:     fanout,
			bitmapMode: true,
			bits:       bitmap.FromWords(words),
			refs:       refs,
		}
		return p, nil
	}

	return nil, arborerr.New(arborerr.CodeCorrupt, "indirect page: unrecognized representation tag")
}
