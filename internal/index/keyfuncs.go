package index

import "github.com/arbordb/arbor/internal/node"

// PathKeyOf is the PATH index's KeyFunc: every name-bearing node
// (elements, attributes, object keys, ...) has a PathNodeKey; nodes
// without one (text, values) are skipped by returning ok=false.
func PathKeyOf(n *node.Node) ([]byte, bool) {
	if !n.IsNameBearing() {
		return nil, false
	}
	return PathKey(n.PathNodeKey), true
}

// NameKeyOf is the NAME index's KeyFunc: keyed by the qualified-name
// triple name-bearing nodes already carry.
func NameKeyOf(n *node.Node) ([]byte, bool) {
	if !n.IsNameBearing() {
		return nil, false
	}
	return NameKey(n.URIKey, n.PrefixKey, n.LocalNameKey), true
}

// xsType is a coarse type tag for CAS keys, derived from Kind rather
// than a full XML Schema type system (§4.10 names "xs type" as part of
// the CAS key but the type lattice itself is out of scope here).
func xsType(k node.Kind) uint8 {
	switch k {
	case node.KindStringValue, node.KindObjectStringValue, node.KindText:
		return 1
	case node.KindBooleanValue, node.KindObjectBooleanValue:
		return 2
	case node.KindNumberValue, node.KindObjectNumberValue:
		return 3
	case node.KindNullValue, node.KindObjectNullValue:
		return 4
	default:
		return 0
	}
}

// CASKeyOf is the CAS index's KeyFunc: keyed by
// (pathNodeKey, xsType, atomicValue) for value-bearing nodes that have
// a resolvable path ancestor. Value nodes carry no PathNodeKey of their
// own (they hang off their parent's path), so the caller supplies the
// owning element/key's PathNodeKey via parentPathNodeKey.
func CASKeyOf(parentPathNodeKey func(n *node.Node) (int64, bool)) KeyFunc {
	return func(n *node.Node) ([]byte, bool) {
		if !n.IsValue() {
			return nil, false
		}
		pathNodeKey, ok := parentPathNodeKey(n)
		if !ok {
			return nil, false
		}
		return CASKey(pathNodeKey, xsType(n.Kind), n.RawValue), true
	}
}
