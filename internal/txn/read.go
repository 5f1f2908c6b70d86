package txn

import (
	"github.com/arbordb/arbor/internal/epoch"
	"github.com/arbordb/arbor/internal/node"
	"github.com/arbordb/arbor/internal/page"
)

// ReadTxn is a read-only transaction pinned at one revision
// (§4.6 "pinned revisionNumber, a per-transaction page cache (bounded,
// LRU), a reference to the shared resource-level page cache, a
// reference to the epoch tracker ticket").
type ReadTxn struct {
	resource *Resource
	revision uint64
	root     *page.RevisionRootPage
	ticket   epoch.Ticket
	local    *pageCache
}

// Revision returns the pinned revision number.
func (t *ReadTxn) Revision() uint64 { return t.revision }

// Node exposes nodeAt for callers outside the package that need direct
// by-key lookups (e.g. the diff engine's tree adapter), without going
// through a cursor.
func (t *ReadTxn) Node(key int64) (*node.Node, error) { return t.nodeAt(key) }

// nodeAt resolves the record page holding key (checking the
// transaction-local cache before the shared resource-level one) and
// decodes the node out of its slot.
func (t *ReadTxn) nodeAt(key int64) (*node.Node, error) {
	if key == node.NoKey {
		return nil, nil
	}
	pageKey, slot := pageAddress(key, t.resource.opts.RecordPageCapacity)
	p, err := t.resource.fetchRecordPage(t.root, pageKey, t.local)
	if err != nil {
		return nil, err
	}
	return p.GetRecord(slot)
}

// Close releases the transaction's epoch ticket, making its pinned
// revision's pages eligible for eviction/compaction once no other
// reader needs them (§4.7).
func (t *ReadTxn) Close() {
	t.resource.epochs.Deregister(t.ticket)
}

// Cursor returns a new cursor over this transaction's pinned revision,
// positioned at the document root.
func (t *ReadTxn) Cursor() *ReadCursor {
	c := &ReadCursor{txn: t}
	c.cursorBase = cursorBase{at: DocumentRootKey, nodeAt: t.nodeAt}
	return c
}

// ReadCursor is the read-only Cursor implementation.
type ReadCursor struct {
	cursorBase
	txn *ReadTxn
}
