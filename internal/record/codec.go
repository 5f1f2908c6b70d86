package record

import (
	"encoding/binary"

	arborerr "github.com/arbordb/arbor/errors"
	"github.com/arbordb/arbor/internal/page"
)

// inlineOverflowThreshold bounds how large an encoded node may be before
// it is pushed out to an overflow page instead of stored inline (§4.4).
const inlineOverflowThreshold = 4096

// Encode writes the canonical record page wire form:
//
//	u16 capacity || u64 revision || u8 indexType ||
//	u16 slotCount || (u16 slot, u16 len, bytes)*slotCount ||
//	u16 deweyCount || (u16 slot, u8 len, bytes)*deweyCount ||
//	u16 overflowCount || (u16 slot, ref)*overflowCount
func Encode(buf []byte, p *Page) []byte {
	var scratch [8]byte

	binary.BigEndian.PutUint16(scratch[:2], uint16(p.Capacity))
	buf = append(buf, scratch[:2]...)
	binary.BigEndian.PutUint64(scratch[:], p.Revision)
	buf = append(buf, scratch[:8]...)
	buf = append(buf, byte(p.Index))

	var slotIdx []int
	for i, s := range p.slots {
		if s != nil {
			slotIdx = append(slotIdx, i)
		}
	}
	binary.BigEndian.PutUint16(scratch[:2], uint16(len(slotIdx)))
	buf = append(buf, scratch[:2]...)
	for _, i := range slotIdx {
		binary.BigEndian.PutUint16(scratch[:2], uint16(i))
		buf = append(buf, scratch[:2]...)
		binary.BigEndian.PutUint16(scratch[:2], uint16(len(p.slots[i])))
		buf = append(buf, scratch[:2]...)
		buf = append(buf, p.slots[i]...)
	}

	var deweyIdx []int
	for i, d := range p.dewey {
		if d != nil {
			deweyIdx = append(deweyIdx, i)
		}
	}
	binary.BigEndian.PutUint16(scratch[:2], uint16(len(deweyIdx)))
	buf = append(buf, scratch[:2]...)
	for _, i := range deweyIdx {
		binary.BigEndian.PutUint16(scratch[:2], uint16(i))
		buf = append(buf, scratch[:2]...)
		buf = append(buf, byte(len(p.dewey[i])))
		buf = append(buf, p.dewey[i]...)
	}

	binary.BigEndian.PutUint16(scratch[:2], uint16(len(p.overflow)))
	buf = append(buf, scratch[:2]...)
	for slot, ref := range p.overflow {
		binary.BigEndian.PutUint16(scratch[:2], uint16(slot))
		buf = append(buf, scratch[:2]...)
		buf = page.EncodeRef(buf, ref)
	}

	return buf
}

// Decode is the inverse of Encode.
func Decode(buf []byte) (*Page, error) {
	if len(buf) < 2+8+1+2 {
		return nil, arborerr.New(arborerr.CodeCorrupt, "record page truncated: header")
	}
	pos := 0
	capacity := int(binary.BigEndian.Uint16(buf[pos:]))
	pos += 2
	revision := binary.BigEndian.Uint64(buf[pos:])
	pos += 8
	indexType := IndexType(buf[pos])
	pos++

	p := New(capacity, indexType, revision)

	slotCount := int(binary.BigEndian.Uint16(buf[pos:]))
	pos += 2
	for i := 0; i < slotCount; i++ {
		if len(buf) < pos+4 {
			return nil, arborerr.New(arborerr.CodeCorrupt, "record page truncated: slot header")
		}
		slot := int(binary.BigEndian.Uint16(buf[pos:]))
		pos += 2
		length := int(binary.BigEndian.Uint16(buf[pos:]))
		pos += 2
		if len(buf) < pos+length {
			return nil, arborerr.New(arborerr.CodeCorrupt, "record page truncated: slot bytes")
		}
		p.slots[slot] = append([]byte(nil), buf[pos:pos+length]...)
		pos += length
	}

	if len(buf) < pos+2 {
		return nil, arborerr.New(arborerr.CodeCorrupt, "record page truncated: dewey count")
	}
	deweyCount := int(binary.BigEndian.Uint16(buf[pos:]))
	pos += 2
	for i := 0; i < deweyCount; i++ {
		if len(buf) < pos+3 {
			return nil, arborerr.New(arborerr.CodeCorrupt, "record page truncated: dewey header")
		}
		slot := int(binary.BigEndian.Uint16(buf[pos:]))
		pos += 2
		length := int(buf[pos])
		pos++
		if len(buf) < pos+length {
			return nil, arborerr.New(arborerr.CodeCorrupt, "record page truncated: dewey bytes")
		}
		p.dewey[slot] = append([]byte(nil), buf[pos:pos+length]...)
		pos += length
	}

	if len(buf) < pos+2 {
		return nil, arborerr.New(arborerr.CodeCorrupt, "record page truncated: overflow count")
	}
	overflowCount := int(binary.BigEndian.Uint16(buf[pos:]))
	pos += 2
	for i := 0; i < overflowCount; i++ {
		if len(buf) < pos+2 {
			return nil, arborerr.New(arborerr.CodeCorrupt, "record page truncated: overflow slot")
		}
		slot := int(binary.BigEndian.Uint16(buf[pos:]))
		pos += 2
		ref, n, err := page.DecodeRef(buf[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		p.overflow[slot] = ref
	}

	return p, nil
}

// NeedsOverflow reports whether an encoded node of the given length
// should be pushed to an overflow page instead of stored inline.
func NeedsOverflow(encodedLen int) bool {
	return encodedLen > inlineOverflowThreshold
}
