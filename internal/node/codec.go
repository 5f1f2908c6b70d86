package node

import (
	"encoding/binary"

	arborerr "github.com/arbordb/arbor/errors"
)

// Encode serializes n into the canonical compact form: a fixed header
// followed by the fields the kind's flags (IsStructural/IsNameBearing/
// IsValue) say are present. The explicit, hand-rolled field layout
// mirrors sirgallo-mari's Serialize.go (SerializeINode/SerializeLNode),
// generalized from Mari's two fixed shapes to arbor's larger variant
// set by conditioning on Kind instead of an internal/leaf split.
func Encode(buf []byte, n *Node) []byte {
	buf = append(buf, byte(n.Kind))
	buf = appendUint64(buf, uint64(n.NodeKey))
	buf = appendUint64(buf, uint64(n.ParentKey))
	buf = appendUint64(buf, n.Hash)
	buf = appendUint64(buf, n.PreviousRevision)
	buf = appendUint64(buf, n.LastModifiedRevision)

	buf = append(buf, byte(len(n.DeweyID)))
	buf = append(buf, n.DeweyID...)

	if n.IsStructural() {
		buf = appendUint64(buf, uint64(n.FirstChildKey))
		buf = appendUint64(buf, uint64(n.LastChildKey))
		buf = appendUint64(buf, uint64(n.LeftSiblingKey))
		buf = appendUint64(buf, uint64(n.RightSiblingKey))
		buf = appendUint64(buf, uint64(n.ChildCount))
		buf = appendUint64(buf, uint64(n.DescendantCount))
	}

	if n.IsNameBearing() {
		buf = appendUint32(buf, uint32(n.URIKey))
		buf = appendUint32(buf, uint32(n.PrefixKey))
		buf = appendUint32(buf, uint32(n.LocalNameKey))
		buf = appendUint64(buf, uint64(n.PathNodeKey))
	}

	if n.IsValue() {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(n.RawValue)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, n.RawValue...)
	}

	return buf
}

// Decode is the inverse of Encode, returning the node and the number of
// bytes consumed.
func Decode(buf []byte) (*Node, int, error) {
	if len(buf) < 1+8*5+1 {
		return nil, 0, arborerr.New(arborerr.CodeCorrupt, "node record truncated")
	}
	n := &Node{}
	pos := 0

	n.Kind = Kind(buf[pos])
	pos++

	nodeKey, pos2 := readUint64(buf, pos)
	n.NodeKey = int64(nodeKey)
	pos = pos2

	parentKey, pos2 := readUint64(buf, pos)
	n.ParentKey = int64(parentKey)
	pos = pos2

	hash, pos2 := readUint64(buf, pos)
	n.Hash = hash
	pos = pos2

	prevRev, pos2 := readUint64(buf, pos)
	n.PreviousRevision = prevRev
	pos = pos2

	lastRev, pos2 := readUint64(buf, pos)
	n.LastModifiedRevision = lastRev
	pos = pos2

	if pos >= len(buf) {
		return nil, 0, arborerr.New(arborerr.CodeCorrupt, "node record truncated: dewey id length")
	}
	deweyLen := int(buf[pos])
	pos++
	if deweyLen > 0 {
		if len(buf) < pos+deweyLen {
			return nil, 0, arborerr.New(arborerr.CodeCorrupt, "node record truncated: dewey id")
		}
		n.DeweyID = append([]byte(nil), buf[pos:pos+deweyLen]...)
		pos += deweyLen
	}

	if n.IsStructural() {
		if len(buf) < pos+48 {
			return nil, 0, arborerr.New(arborerr.CodeCorrupt, "node record truncated: structural fields")
		}
		var v uint64
		v, pos = readUint64(buf, pos)
		n.FirstChildKey = int64(v)
		v, pos = readUint64(buf, pos)
		n.LastChildKey = int64(v)
		v, pos = readUint64(buf, pos)
		n.LeftSiblingKey = int64(v)
		v, pos = readUint64(buf, pos)
		n.RightSiblingKey = int64(v)
		v, pos = readUint64(buf, pos)
		n.ChildCount = int64(v)
		v, pos = readUint64(buf, pos)
		n.DescendantCount = int64(v)
	}

	if n.IsNameBearing() {
		if len(buf) < pos+20 {
			return nil, 0, arborerr.New(arborerr.CodeCorrupt, "node record truncated: name fields")
		}
		n.URIKey = int32(binary.BigEndian.Uint32(buf[pos:]))
		pos += 4
		n.PrefixKey = int32(binary.BigEndian.Uint32(buf[pos:]))
		pos += 4
		n.LocalNameKey = int32(binary.BigEndian.Uint32(buf[pos:]))
		pos += 4
		var v uint64
		v, pos = readUint64(buf, pos)
		n.PathNodeKey = int64(v)
	}

	if n.IsValue() {
		if len(buf) < pos+4 {
			return nil, 0, arborerr.New(arborerr.CodeCorrupt, "node record truncated: value length")
		}
		valLen := int(binary.BigEndian.Uint32(buf[pos:]))
		pos += 4
		if len(buf) < pos+valLen {
			return nil, 0, arborerr.New(arborerr.CodeCorrupt, "node record truncated: value bytes")
		}
		n.RawValue = append([]byte(nil), buf[pos:pos+valLen]...)
		pos += valLen
	}

	return n, pos, nil
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func readUint64(buf []byte, pos int) (uint64, int) {
	return binary.BigEndian.Uint64(buf[pos:]), pos + 8
}
