package page

import (
	"encoding/binary"

	arborerr "github.com/arbordb/arbor/errors"
)

// EncodeRef writes the canonical wire form of a PageReference (§6):
//
//	u64 offset || u8 hash_len || hash_len bytes || u16 fragment_count || (u32 revision, u64 offset) * fragment_count
func EncodeRef(buf []byte, r *Ref) []byte {
	var scratch [8]byte

	binary.BigEndian.PutUint64(scratch[:], r.Offset)
	buf = append(buf, scratch[:]...)

	buf = append(buf, byte(len(r.Hash)))
	buf = append(buf, r.Hash...)

	binary.BigEndian.PutUint16(scratch[:2], uint16(len(r.Fragments)))
	buf = append(buf, scratch[:2]...)

	for _, f := range r.Fragments {
		binary.BigEndian.PutUint32(scratch[:4], f.Revision)
		buf = append(buf, scratch[:4]...)
		binary.BigEndian.PutUint64(scratch[:], f.Offset)
		buf = append(buf, scratch[:8]...)
	}
	return buf
}

// DecodeRef reads one wire-form PageReference starting at buf[0],
// returning it and the number of bytes consumed.
func DecodeRef(buf []byte) (*Ref, int, error) {
	if len(buf) < 8+1+2 {
		return nil, 0, arborerr.New(arborerr.CodeCorrupt, "page reference truncated")
	}
	pos := 0
	offset := binary.BigEndian.Uint64(buf[pos:])
	pos += 8

	hashLen := int(buf[pos])
	pos++
	if len(buf) < pos+hashLen+2 {
		return nil, 0, arborerr.New(arborerr.CodeCorrupt, "page reference hash truncated")
	}
	var hash []byte
	if hashLen > 0 {
		hash = append([]byte(nil), buf[pos:pos+hashLen]...)
	}
	pos += hashLen

	fragCount := int(binary.BigEndian.Uint16(buf[pos:]))
	pos += 2

	fragments := make([]Fragment, 0, fragCount)
	for i := 0; i < fragCount; i++ {
		if len(buf) < pos+12 {
			return nil, 0, arborerr.New(arborerr.CodeCorrupt, "page reference fragment truncated")
		}
		rev := binary.BigEndian.Uint32(buf[pos:])
		pos += 4
		off := binary.BigEndian.Uint64(buf[pos:])
		pos += 8
		fragments = append(fragments, Fragment{Revision: rev, Offset: off})
	}

	return &Ref{Offset: offset, Hash: hash, LogKey: -1, Fragments: fragments}, pos, nil
}
