// Package record implements C4, the record page: a fixed-capacity array
// of node slots plus a parallel dewey-ID side table and an overflow map
// for oversized encoded records. The slot-array-plus-side-cache shape
// follows sirgallo-mari's leaf node handling (Node.go's
// ReadLNodeFromMemMap deserializing lazily per access, cached via the
// node pool) generalized from Mari's single-key-value leaf to a page of
// up to Capacity node slots.
package record

import (
	"github.com/arbordb/arbor/internal/node"
	"github.com/arbordb/arbor/internal/page"
)

// IndexType selects which of the five subtrees a RecordPage belongs to
// (§4.4); mirrors page.SubtreeKind value for value but is kept as its
// own type. The zero value is IndexTypeRecord.
type IndexType int

const (
	IndexTypeRecord IndexType = iota
	IndexTypePathSummary
	IndexTypeCASIndex
	IndexTypePathIndex
	IndexTypeNameIndex
)

// Page holds up to Capacity node slots addressed by their position
// within the page (the low bits of a nodeKey after the 4-level indirect
// tree split), a dense dewey-ID side table, and overflow references for
// any slot whose encoded node exceeds the inline threshold.
type Page struct {
	Capacity int
	Revision uint64
	Index    IndexType
	pinCount int

	slots   [][]byte   // raw encoded node per slot; nodes caches its lazy decode
	nodes   []*node.Node
	dewey   [][]byte
	overflow map[int]*page.Ref
}

// New allocates an empty record page with room for capacity slots.
func New(capacity int, indexType IndexType, revision uint64) *Page {
	return &Page{
		Capacity: capacity,
		Revision: revision,
		Index:    indexType,
		slots:    make([][]byte, capacity),
		nodes:    make([]*node.Node, capacity),
		dewey:    make([][]byte, capacity),
		overflow: make(map[int]*page.Ref),
	}
}

// Pin/Unpin keep a count of live readers of this page. Nothing in the
// transaction layer calls them, and the page caches evict in plain LRU
// order without consulting this count or the epoch watermark.
func (p *Page) Pin()   { p.pinCount++ }
func (p *Page) Unpin() { p.pinCount-- }
func (p *Page) PinCount() int { return p.pinCount }

// SetSlot stores the raw encoded bytes for slot, invalidating any
// cached decoded Node.
func (p *Page) SetSlot(slot int, encoded []byte) {
	p.slots[slot] = encoded
	p.nodes[slot] = nil
}

// GetSlot returns the raw encoded bytes for slot, or nil if unset.
func (p *Page) GetSlot(slot int) []byte { return p.slots[slot] }

// SetRecord encodes n and stores it at slot, caching the decoded form
// so a subsequent GetRecord in the same page lifetime avoids
// re-decoding (§4.4 "deserializes once per slot using a side cache").
func (p *Page) SetRecord(slot int, n *node.Node) {
	p.slots[slot] = node.Encode(nil, n)
	p.nodes[slot] = n
}

// GetRecord decodes (or returns the cached decode of) the node at slot.
func (p *Page) GetRecord(slot int) (*node.Node, error) {
	if p.nodes[slot] != nil {
		return p.nodes[slot], nil
	}
	if p.slots[slot] == nil {
		return nil, nil
	}
	n, _, err := node.Decode(p.slots[slot])
	if err != nil {
		return nil, err
	}
	p.nodes[slot] = n
	return n, nil
}

// SetDeweyID stores the dewey-ID bytes for slot in the dense side
// table.
func (p *Page) SetDeweyID(slot int, id []byte) { p.dewey[slot] = id }

// GetDeweyID returns the dewey-ID bytes for slot, or nil.
func (p *Page) GetDeweyID(slot int) []byte { return p.dewey[slot] }

// SetPageReference records an overflow PageReference for a slot whose
// encoded record exceeded the inline threshold (§4.4).
func (p *Page) SetPageReference(slot int, ref *page.Ref) {
	p.overflow[slot] = ref
}

// GetPageReference returns the overflow reference for slot, if any.
func (p *Page) GetPageReference(slot int) *page.Ref {
	return p.overflow[slot]
}

// Clone returns a copy-on-write duplicate: slot bytes and dewey IDs are
// shared (immutable once written) but the slice/map headers are
// independent so the clone's subsequent SetSlot/SetRecord calls don't
// mutate the original page.
func (p *Page) Clone(newRevision uint64) *Page {
	c := &Page{
		Capacity: p.Capacity,
		Revision: newRevision,
		Index:    p.Index,
		slots:    append([][]byte(nil), p.slots...),
		nodes:    append([]*node.Node(nil), p.nodes...),
		dewey:    append([][]byte(nil), p.dewey...),
		overflow: make(map[int]*page.Ref, len(p.overflow)),
	}
	for k, v := range p.overflow {
		c.overflow[k] = v
	}
	return c
}
