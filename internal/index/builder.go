package index

import "github.com/arbordb/arbor/internal/node"

// Filter narrows which nodes a PATH/CAS/NAME builder or listener
// indexes (§4.10 "filter by ..."). A nil Filter accepts everything.
type Filter func(n *node.Node) bool

// KeyFunc reduces an accepted node to its byte index key. The PATH
// variant needs only the node; NAME and CAS variants close over a
// name/atomic-value resolver the caller supplies, since neither lives
// on node.Node directly (names resolve through a dictionary, atomic
// values through type-aware parsing of RawValue).
type KeyFunc func(n *node.Node) ([]byte, bool)

// Builder performs the one-shot scan over an existing revision that
// populates an index from scratch (§4.10 "a builder (one-shot scan
// over a revision)").
type Builder struct {
	kind    Kind
	backend Backend
	filter  Filter
	keyOf   KeyFunc
}

// NewBuilder creates a builder for the given index kind and backend.
// filter may be nil to accept every node; keyOf must return ok=false
// for any node that, despite passing filter, has no derivable key
// (e.g. a CAS builder hitting a non-atomic-typed value).
func NewBuilder(kind Kind, backend Backend, filter Filter, keyOf KeyFunc) *Builder {
	return &Builder{kind: kind, backend: backend, filter: filter, keyOf: keyOf}
}

// Scan drives walk, which must call emit once per node in the revision
// being indexed (in any order: a one-shot build has no ordering
// requirement beyond each key's own Apply call being well-formed).
func (b *Builder) Scan(walk func(emit func(n *node.Node))) {
	walk(func(n *node.Node) {
		if b.filter != nil && !b.filter(n) {
			return
		}
		key, ok := b.keyOf(n)
		if !ok {
			return
		}
		b.backend.Apply(Insert, key, n.NodeKey)
	})
}

// Listener applies incremental index updates as a write transaction
// mutates the tree (§4.10 "a listener (incremental updates on
// transaction mutation)"). Built with the same filter/keyOf pair as the
// corresponding Builder, so a resource's initial build and subsequent
// listener stay in lockstep about which nodes are indexed and under
// what key.
type Listener struct {
	kind    Kind
	backend Backend
	filter  Filter
	keyOf   KeyFunc
}

// NewListener creates a listener for the given index kind and backend.
func NewListener(kind Kind, backend Backend, filter Filter, keyOf KeyFunc) *Listener {
	return &Listener{kind: kind, backend: backend, filter: filter, keyOf: keyOf}
}

// Notify applies one incremental change. pathNodeKey is accepted
// separately from n because callers resolve it once per mutation and
// may want to reuse it across several listeners (PATH/CAS/NAME can all
// fire off the same structural edit).
func (l *Listener) Notify(change ChangeType, n *node.Node, pathNodeKey int64) bool {
	if l.filter != nil && !l.filter(n) {
		return false
	}
	key, ok := l.keyOf(n)
	if !ok {
		return false
	}
	return l.backend.Apply(change, key, n.NodeKey)
}

// Kind reports which secondary index this listener maintains.
func (l *Listener) Kind() Kind { return l.kind }
