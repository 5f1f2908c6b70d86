package rbtree

import "bytes"

// BytesComparator orders raw byte-string keys lexicographically. This
// is what the secondary-index glue (C10) uses so the red-black backend
// and the trie-based alternative backend agree on one ordering for
// every index type, each already reduced to a byte key.
func BytesComparator(a, b any) int {
	return bytes.Compare(a.([]byte), b.([]byte))
}

// PathKey orders the path index by raw path-node key (§4.9 "K is long
// for the path index").
func PathKey(a, b any) int {
	x, y := a.(int64), b.(int64)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// NameKey is the name index's QualifiedName key: (uriKey, prefixKey,
// localNameKey) compared lexicographically in that order.
type NameKey struct {
	URIKey, PrefixKey, LocalNameKey int32
}

func cmpInt32(x, y int32) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// NameComparator orders NameKey values by (uri, prefix, localName).
func NameComparator(a, b any) int {
	x, y := a.(NameKey), b.(NameKey)
	if c := cmpInt32(x.URIKey, y.URIKey); c != 0 {
		return c
	}
	if c := cmpInt32(x.PrefixKey, y.PrefixKey); c != 0 {
		return c
	}
	return cmpInt32(x.LocalNameKey, y.LocalNameKey)
}

// CASKey is the content-and-structure index's key: a typed, encoded
// atomic value scoped to a path node (§4.9 "(atomic, type, pathNodeKey)").
type CASKey struct {
	PathNodeKey int64
	Type        uint8
	Atomic      []byte
}

// CASComparator orders by (pathNodeKey asc, typedAtomic asc) per §4.9's
// explicit tie-break rule; typedAtomic here is (Type, Atomic) compared
// as a type tag followed by a byte-lexicographic value compare.
func CASComparator(a, b any) int {
	x, y := a.(CASKey), b.(CASKey)
	if x.PathNodeKey != y.PathNodeKey {
		if x.PathNodeKey < y.PathNodeKey {
			return -1
		}
		return 1
	}
	if x.Type != y.Type {
		if x.Type < y.Type {
			return -1
		}
		return 1
	}
	return bytes.Compare(x.Atomic, y.Atomic)
}
