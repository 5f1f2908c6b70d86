package arbor

import (
	"fmt"

	"github.com/arbordb/arbor/internal/axis"
	"github.com/arbordb/arbor/internal/diff"
	"github.com/arbordb/arbor/internal/node"
	"github.com/arbordb/arbor/internal/txn"
)

// ReadTrx is a read-only transaction pinned at one revision (§6
// "begin_node_read_only_trx(revision?) -> ReadCursor").
type ReadTrx struct {
	txn *txn.ReadTxn
}

// Revision returns the pinned revision number.
func (t *ReadTrx) Revision() uint64 { return t.txn.Revision() }

// Cursor returns a navigation cursor over this transaction's pinned
// revision, positioned at the document root.
func (t *ReadTrx) Cursor() *txn.ReadCursor { return t.txn.Cursor() }

// DescendantAxis walks c's subtree in preorder (§4.8 "Basic"), starting
// from c's current position. includeSelf controls whether that
// starting node is itself emitted first.
func (t *ReadTrx) DescendantAxis(c *txn.ReadCursor, includeSelf bool) *axis.DescendantAxis {
	return axis.NewDescendantAxis(c, includeSelf)
}

// JSONDescendants walks c's subtree in preorder using the depth-tracked
// JSON-aware axis (§4.8 "JSON-aware"), e.g. to drive the
// OBJECT/OBJECT_KEY/value-kind sequence spec.md's end-to-end scenario 2
// expects after committing a JSON document.
func (t *ReadTrx) JSONDescendants(c *txn.ReadCursor, includeSelf bool) *axis.JSONDescendantAxis {
	return axis.NewJSONDescendantAxis(c, includeSelf)
}

// LimitedJSONDescendants adds the maxLevel/maxChildren cut-offs of §4.8
// "Limited" on top of JSONDescendants's walk.
func (t *ReadTrx) LimitedJSONDescendants(c *txn.ReadCursor, includeSelf bool, maxLevel, maxChildren int, isKeyToValueTransition func(parentKey, childKey int64) bool) *axis.LimitedJSONDescendantAxis {
	return axis.NewLimitedJSONDescendantAxis(c, includeSelf, maxLevel, maxChildren, isKeyToValueTransition)
}

// Close releases the transaction's pinned-revision epoch ticket.
func (t *ReadTrx) Close() { t.txn.Close() }

// WriteTrx is the single write transaction a Resource allows at a time
// (§6 "begin_node_write_trx() -> WriteCursor").
type WriteTrx struct {
	txn *txn.WriteTxn
}

// Cursor returns a mutating cursor over this write transaction.
func (t *WriteTrx) Cursor() *txn.WriteCursor { return t.txn.Cursor() }

// DescendantAxis walks c's subtree in preorder (§4.8 "Basic"), reading
// through the in-progress write transaction's redo log and base
// revision the same way WriteCursor navigation already does.
func (t *WriteTrx) DescendantAxis(c *txn.WriteCursor, includeSelf bool) *axis.DescendantAxis {
	return axis.NewDescendantAxis(c, includeSelf)
}

// Commit durably writes this transaction's changes as a new revision
// (§6 "WriteCursor::commit() -> RevisionInfo").
func (t *WriteTrx) Commit() (*txn.CommitInfo, error) { return t.txn.Commit() }

// Abort discards this transaction's changes (§6 "WriteCursor::abort()").
func (t *WriteTrx) Abort() error { return t.txn.Abort() }

// cursorDiffTree adapts a pinned ReadTrx to diff.Tree and diff.PathTree,
// so JSONDiff can drive the structural co-walk and path resolution
// directly off the node model without an intermediate snapshot.
type cursorDiffTree struct {
	trx *ReadTrx
}

func (t *cursorDiffTree) Root() int64 { return txn.DocumentRootKey }

func (t *cursorDiffTree) Node(key int64) (diff.NodeView, bool) {
	n, err := t.trx.txn.Node(key)
	if err != nil || n == nil {
		return diff.NodeView{}, false
	}
	return diff.NodeView{
		NodeKey:      n.NodeKey,
		ParentKey:    n.ParentKey,
		Hash:         n.Hash,
		FirstChild:   n.FirstChildKey,
		RightSibling: n.RightSiblingKey,
	}, true
}

// Step labels key's edge from its parent. Array elements always get
// the diff engine's unresolved-position placeholder ("[]"), rewritten
// to a concrete index by ResolvePath; named nodes are labeled by their
// raw name-dictionary key, since no string-interning dictionary
// component was built to resolve it back to source text.
func (t *cursorDiffTree) Step(key int64) string {
	n, err := t.trx.txn.Node(key)
	if err != nil || n == nil {
		return ""
	}
	if parent, err := t.trx.txn.Node(n.ParentKey); err == nil && parent != nil && parent.Kind == node.KindArray {
		return "[]"
	}
	if n.IsNameBearing() {
		return fmt.Sprintf("k%d", n.LocalNameKey)
	}
	return ""
}
