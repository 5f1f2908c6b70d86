package txn

import (
	"github.com/arbordb/arbor/internal/epoch"
	"github.com/arbordb/arbor/internal/index"
	"github.com/arbordb/arbor/internal/iostore"
	"github.com/arbordb/arbor/internal/node"
	"github.com/arbordb/arbor/internal/page"
	"github.com/arbordb/arbor/internal/record"
)

// WriteTxn is the single writer transaction a resource allows at a time
// (§4.6, §4.7 "a per-resource single-permit lock"). It overlays the
// latest committed revision with a redo log of record pages touched
// this transaction; every page in the redo log is write-through copied
// from the base revision (or freshly allocated) on first touch, so a
// page is cloned at most once per write transaction regardless of how
// many of its slots get mutated.
type WriteTxn struct {
	resource     *Resource
	baseRevision uint64
	baseRoot     *page.RevisionRootPage
	newRoot      *page.RevisionRootPage

	ticket epoch.Ticket
	local  *pageCache

	writer         iostore.Writer
	priorEndOffset uint64

	redoLog map[int64]*record.Page
	done    bool
}

// BaseRevision returns the revision this write transaction overlays.
func (w *WriteTxn) BaseRevision() uint64 { return w.baseRevision }

// pageForWrite returns the redo-log page for pageKey, write-through
// cloning it from the base revision (or allocating an empty one) the
// first time this transaction touches it.
func (w *WriteTxn) pageForWrite(pageKey int64) (*record.Page, error) {
	if p, ok := w.redoLog[pageKey]; ok {
		return p, nil
	}
	base, err := w.resource.fetchRecordPage(w.baseRoot, pageKey, w.local)
	if err != nil {
		return nil, err
	}
	p := base.Clone(w.newRoot.RevisionNumber)
	w.redoLog[pageKey] = p
	return p, nil
}

// nodeAt is the WriteCursor's lookup hook: redo-log pages first (this
// transaction's own uncommitted writes), falling through to the base
// revision for slots it has not touched yet.
func (w *WriteTxn) nodeAt(key int64) (*node.Node, error) {
	if key == node.NoKey {
		return nil, nil
	}
	pageKey, slot := pageAddress(key, w.resource.opts.RecordPageCapacity)
	if p, ok := w.redoLog[pageKey]; ok {
		return p.GetRecord(slot)
	}
	p, err := w.resource.fetchRecordPage(w.baseRoot, pageKey, w.local)
	if err != nil {
		return nil, err
	}
	return p.GetRecord(slot)
}

// AllocateNodeKey draws the next node key from this revision's counter
// (§3 "nodeKey is monotonically allocated from a per-resource counter
// stored in the revision root page").
func (w *WriteTxn) AllocateNodeKey() int64 {
	return int64(w.newRoot.NextNodeKey())
}

// PutNode writes n into its slot (n.NodeKey must already be assigned,
// typically via AllocateNodeKey) and notifies every registered
// secondary-index listener of the resulting INSERT, so PATH/CAS/NAME
// indexes stay live for same-session queries (§4.10).
func (w *WriteTxn) PutNode(n *node.Node) error {
	pageKey, slot := pageAddress(n.NodeKey, w.resource.opts.RecordPageCapacity)
	p, err := w.pageForWrite(pageKey)
	if err != nil {
		return err
	}
	p.SetRecord(slot, n)
	w.notifyListeners(index.Insert, n)
	return nil
}

// DeleteNode clears nodeKey's slot and notifies listeners of the
// resulting DELETE.
func (w *WriteTxn) DeleteNode(nodeKey int64) error {
	n, err := w.nodeAt(nodeKey)
	if err != nil {
		return err
	}
	if n == nil {
		return nil
	}
	pageKey, slot := pageAddress(nodeKey, w.resource.opts.RecordPageCapacity)
	p, err := w.pageForWrite(pageKey)
	if err != nil {
		return err
	}
	p.SetSlot(slot, nil)
	w.notifyListeners(index.Delete, n)
	return nil
}

// notifyListeners fans a structural change out to every secondary-index
// listener registered on the resource. Notify's result is ignored, so a
// listener never aborts the write.
func (w *WriteTxn) notifyListeners(change index.ChangeType, n *node.Node) {
	for _, l := range w.resource.listenersSnapshot() {
		l.Notify(change, n, n.PathNodeKey)
	}
}

// Cursor returns a new write-aware cursor positioned at the document
// root, seeing this transaction's own uncommitted writes layered over
// the base revision.
func (w *WriteTxn) Cursor() *WriteCursor {
	c := &WriteCursor{txn: w}
	c.cursorBase = cursorBase{at: DocumentRootKey, nodeAt: w.nodeAt}
	return c
}

// Commit durably writes every touched record page plus a new revision
// root and uber page, per the seven-step protocol of §4.6.
func (w *WriteTxn) Commit() (*CommitInfo, error) {
	if w.done {
		return nil, nil
	}
	w.done = true
	return w.resource.commit(w)
}

// Abort discards this transaction's redo log and rolls the data file
// back to the offset it had before the transaction began appending.
func (w *WriteTxn) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	return w.resource.abort(w)
}

// WriteCursor is the mutating Cursor implementation. Navigation is
// identical to ReadCursor (inherited via cursorBase); mutation goes
// through its owning WriteTxn.
type WriteCursor struct {
	cursorBase
	txn *WriteTxn
}

// InsertChild allocates a node key for child, wires it in as the new
// last child of the cursor's current node (updating sibling and count
// bookkeeping on both sides), writes it, and moves the cursor onto it.
func (c *WriteCursor) InsertChild(child *node.Node) (int64, error) {
	parent := c.current()
	if parent == nil {
		return node.NoKey, nil
	}
	key := c.txn.AllocateNodeKey()
	child.NodeKey = key
	child.ParentKey = parent.NodeKey
	child.LeftSiblingKey = parent.LastChildKey
	child.RightSiblingKey = node.NoKey
	child.FirstChildKey = node.NoKey
	child.LastChildKey = node.NoKey

	if parent.LastChildKey != node.NoKey {
		if sib, err := c.txn.nodeAt(parent.LastChildKey); err == nil && sib != nil {
			sib.RightSiblingKey = key
			if err := c.txn.PutNode(sib); err != nil {
				return node.NoKey, err
			}
		}
	} else {
		parent.FirstChildKey = key
	}
	parent.LastChildKey = key
	parent.ChildCount++
	parent.DescendantCount++
	for k := parent.ParentKey; k != node.NoKey; {
		anc, err := c.txn.nodeAt(k)
		if err != nil || anc == nil {
			break
		}
		anc.DescendantCount++
		if err := c.txn.PutNode(anc); err != nil {
			return node.NoKey, err
		}
		k = anc.ParentKey
	}

	if err := c.txn.PutNode(parent); err != nil {
		return node.NoKey, err
	}
	if err := c.txn.PutNode(child); err != nil {
		return node.NoKey, err
	}
	c.at = key
	return key, nil
}
