// Package bitmap implements the sparse bitmap indexing scheme shared by
// the indirect page tree (C3) and the HOT index backend's trie nodes
// (C10): a fixed-capacity bitmap marking which of up-to-N slots are
// occupied, with O(words) population counts via a cached shadow.
//
// The technique is the same one sirgallo-mari uses for its hash-array
// mapped trie's sparse index (its [8]uint32 Bitmap plus setBit /
// isBitSet / populationCount / getPosition in Utils.go), generalized
// here from a fixed 256-bit bitmap to an arbitrary bit count so it can
// back both the R-ary indirect page reference table and the HOT
// backend's branch fan-out. rbtree.NodeReferences does not use it; that
// set is a plain Go map.
package bitmap

import "math/bits"

// Bitmap is a dense bit-set over a fixed capacity, backed by 64-bit
// words, with a cached popcount prefix shadow invalidated on mutation.
type Bitmap struct {
	words []uint64
	// shadow[i] is the population count of bits [0, 64*i), i.e. the
	// running total before word i. Cleared (nil) whenever words is
	// mutated; rebuilt lazily on the next Index() call.
	shadow []int
}

// New allocates a Bitmap with room for at least capacity bits.
func New(capacity int) *Bitmap {
	n := (capacity + 63) / 64
	if n == 0 {
		n = 1
	}
	return &Bitmap{words: make([]uint64, n)}
}

// FromWords wraps an existing word slice (e.g. one just deserialized
// off disk) without copying.
func FromWords(words []uint64) *Bitmap {
	return &Bitmap{words: words}
}

func (b *Bitmap) Words() []uint64 { return b.words }

func (b *Bitmap) Capacity() int { return len(b.words) * 64 }

// Set marks bit i occupied. Returns whether the bit was previously
// clear (i.e. whether this call changed the bitmap).
func (b *Bitmap) Set(i int) bool {
	word, mask := i/64, uint64(1)<<uint(i%64)
	if b.words[word]&mask != 0 {
		return false
	}
	b.words[word] |= mask
	b.shadow = nil
	return true
}

// Clear unsets bit i. Returns whether it was previously set.
func (b *Bitmap) Clear(i int) bool {
	word, mask := i/64, uint64(1)<<uint(i%64)
	if b.words[word]&mask == 0 {
		return false
	}
	b.words[word] &^= mask
	b.shadow = nil
	return true
}

// IsSet reports whether bit i is occupied.
func (b *Bitmap) IsSet(i int) bool {
	word, mask := i/64, uint64(1)<<uint(i%64)
	return b.words[word]&mask != 0
}

// Cardinality returns the total number of set bits.
func (b *Bitmap) Cardinality() int {
	total := 0
	for _, w := range b.words {
		total += bits.OnesCount64(w)
	}
	return total
}

// ensureShadow rebuilds the prefix-popcount shadow if it was
// invalidated by a mutation since the last rebuild.
func (b *Bitmap) ensureShadow() {
	if b.shadow != nil {
		return
	}
	shadow := make([]int, len(b.words)+1)
	running := 0
	for i, w := range b.words {
		shadow[i] = running
		running += bits.OnesCount64(w)
	}
	shadow[len(b.words)] = running
	b.shadow = shadow
}

// Index computes popcount(bitmap[0, offset)) — the dense-array position
// a slot at sparse offset `offset` occupies — in O(offset/64) using the
// cached word shadow, per §4.3's requirement.
func (b *Bitmap) Index(offset int) int {
	b.ensureShadow()
	word := offset / 64
	count := b.shadow[word]
	if rem := offset % 64; rem > 0 {
		mask := uint64(1)<<uint(rem) - 1
		count += bits.OnesCount64(b.words[word] & mask)
	}
	return count
}

// Each calls fn for every set bit in ascending order, matching the
// bitmap-ordering guarantee §4.2's wire format relies on for
// reconstructing the dense PageReference array.
func (b *Bitmap) Each(fn func(i int)) {
	for word, w := range b.words {
		for w != 0 {
			bit := bits.TrailingZeros64(w)
			fn(word*64 + bit)
			w &= w - 1
		}
	}
}

// Clone returns an independent copy, used when copy-on-write duplicates
// a page before mutating it.
func (b *Bitmap) Clone() *Bitmap {
	words := make([]uint64, len(b.words))
	copy(words, b.words)
	return &Bitmap{words: words}
}
