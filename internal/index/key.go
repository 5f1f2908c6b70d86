// Package index implements C10: the secondary index glue sitting
// between the data tree and a canonical or alternative ordered key-value
// backend. Every index type (PATH, CAS, NAME) reduces its typed key to
// a byte string here, so both the red-black backend (C9) and the
// trie-based "HOT" backend walk the same lexicographic order and can be
// swapped per resource config without either side caring which one is
// live.
package index

import "encoding/binary"

// Kind names which secondary index a builder/listener pair maintains
// (§4.10).
type Kind int

const (
	KindPath Kind = iota
	KindCAS
	KindName
)

func (k Kind) String() string {
	switch k {
	case KindPath:
		return "path"
	case KindCAS:
		return "cas"
	case KindName:
		return "name"
	default:
		return "unknown"
	}
}

// PathKey encodes a path index key: the pathNodeKey alone, big-endian
// so byte order matches numeric order (§4.10 "PATH index key: a
// pathNodeKey").
func PathKey(pathNodeKey int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(pathNodeKey))
	return buf
}

// NameKey encodes a qualified name key as (uriKey, prefixKey,
// localNameKey), each big-endian int32, concatenated in that order so
// byte order matches the RB comparator's tie-break rule (§4.9).
func NameKey(uriKey, prefixKey, localNameKey int32) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint32(buf[0:4], uint32(uriKey))
	binary.BigEndian.PutUint32(buf[4:8], uint32(prefixKey))
	binary.BigEndian.PutUint32(buf[8:12], uint32(localNameKey))
	return buf
}

// CASKey encodes a content-and-structure index key as
// (pathNodeKey, xsType, atomicValue), ordered so pathNodeKey dominates
// the comparison before the typed atomic value, matching §4.9's
// "(pathNodeKey asc, typedAtomic asc)" tie-break.
func CASKey(pathNodeKey int64, xsType uint8, atomic []byte) []byte {
	buf := make([]byte, 8+1+len(atomic))
	binary.BigEndian.PutUint64(buf[0:8], uint64(pathNodeKey))
	buf[8] = xsType
	copy(buf[9:], atomic)
	return buf
}
