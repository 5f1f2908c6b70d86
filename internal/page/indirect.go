package page

import (
	"sort"

	"github.com/arbordb/arbor/internal/bitmap"
)

// IndirectPage holds up to Fanout PageReferences, one per slot, using
// the two representations from §4.2: a small offset -> ref map
// while the page is sparse, converting to a bitmap-indexed dense array
// once cardinality reaches Fanout-16 (the "nearly full" regime, where a
// fixed bitmap plus popcount-addressed array beats a linear scan of
// offset/ref pairs). This mirrors sirgallo-mari's MariINode, which
// always carries a bitmap over its children array; arbor adds the
// sparse pre-stage the spec calls out explicitly for small page
// occupancy.
type IndirectPage struct {
	fanout int

	// dense mode (small cardinality): offset -> ref map.
	sparse map[int]*Ref

	// bitmap mode (cardinality >= fanout-16).
	bitmapMode bool
	bits       *bitmap.Bitmap
	refs       []*Ref // ordered by ascending bit offset
}

// NewIndirectPage creates an empty page with room for fanout slots.
func NewIndirectPage(fanout int) *IndirectPage {
	return &IndirectPage{fanout: fanout, sparse: make(map[int]*Ref)}
}

func (p *IndirectPage) Fanout() int { return p.fanout }

// GetReference returns the PageReference at offset, or nil if unset.
func (p *IndirectPage) GetReference(offset int) *Ref {
	if p.bitmapMode {
		if !p.bits.IsSet(offset) {
			return nil
		}
		return p.refs[p.bits.Index(offset)]
	}
	return p.sparse[offset]
}

// SetReference writes ref into the slot at offset, converting to bitmap
// mode if this set pushes cardinality to the fanout-16 threshold.
// Returns true exactly when this call performed that conversion (the
// "full-signal" of §4.3, telling the caller a format transition
// happened so it can re-link any external offset table if needed).
func (p *IndirectPage) SetReference(offset int, ref *Ref) bool {
	if p.bitmapMode {
		alreadySet := p.bits.IsSet(offset)
		if ref == nil {
			if alreadySet {
				idx := p.bits.Index(offset)
				p.refs = append(p.refs[:idx], p.refs[idx+1:]...)
				p.bits.Clear(offset)
			}
			return false
		}
		if alreadySet {
			p.refs[p.bits.Index(offset)] = ref
			return false
		}
		p.bits.Set(offset)
		idx := p.bits.Index(offset)
		p.refs = append(p.refs, nil)
		copy(p.refs[idx+1:], p.refs[idx:])
		p.refs[idx] = ref
		return false
	}

	if ref == nil {
		delete(p.sparse, offset)
		return false
	}
	p.sparse[offset] = ref

	if len(p.sparse) >= p.fanout-16 {
		p.convertToBitmap()
		return true
	}
	return false
}

// Cardinality returns how many slots are currently occupied.
func (p *IndirectPage) Cardinality() int {
	if p.bitmapMode {
		return p.bits.Cardinality()
	}
	return len(p.sparse)
}

// IsBitmapMode reports which wire representation this page currently
// uses; exercised directly by tests and by the page codec when
// serializing.
func (p *IndirectPage) IsBitmapMode() bool { return p.bitmapMode }

func (p *IndirectPage) convertToBitmap() {
	offsets := make([]int, 0, len(p.sparse))
	for off := range p.sparse {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)

	bm := bitmap.New(p.fanout)
	refs := make([]*Ref, 0, len(offsets))
	for _, off := range offsets {
		bm.Set(off)
		refs = append(refs, p.sparse[off])
	}

	p.bits = bm
	p.refs = refs
	p.bitmapMode = true
	p.sparse = nil
}

// Each visits every occupied (offset, ref) pair in ascending offset
// order, regardless of current representation.
func (p *IndirectPage) Each(fn func(offset int, ref *Ref)) {
	if p.bitmapMode {
		i := 0
		p.bits.Each(func(offset int) {
			fn(offset, p.refs[i])
			i++
		})
		return
	}
	offsets := make([]int, 0, len(p.sparse))
	for off := range p.sparse {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)
	for _, off := range offsets {
		fn(off, p.sparse[off])
	}
}
