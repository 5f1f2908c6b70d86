package page

import "math/bits"

// Levels is the fixed indirect-page tree depth from a subtree root down
// to the record-page level (§4.3).
const Levels = 4

// BitsPerLevel returns log2(fanout), the number of nodeKey bits each of
// the Levels groups consumes. fanout must be a power of two.
func BitsPerLevel(fanout int) int {
	return bits.Len(uint(fanout)) - 1
}

// SplitKey breaks a logical leaf key into Levels group indices, most
// significant group first, each in [0, fanout).
func SplitKey(key uint64, fanout int) [Levels]int {
	bpl := uint(BitsPerLevel(fanout))
	mask := uint64(fanout - 1)
	var groups [Levels]int
	for i := 0; i < Levels; i++ {
		shift := bpl * uint(Levels-1-i)
		groups[i] = int((key >> shift) & mask)
	}
	return groups
}

// Loader materializes the IndirectPage a Ref points at (fetching from
// cache or storage); a nil ref yields a fresh empty page.
type Loader func(ref *Ref) (*IndirectPage, error)

// Allocator durably records a (possibly new) IndirectPage and returns
// the Ref a parent slot should now point at. Supplied by the
// transaction layer, which knows how to append to the redo log.
type Allocator func(p *IndirectPage) (*Ref, error)

// Resolve walks from root down Levels indirect pages to the leaf-level
// Ref for key, using loader to materialize each level. Returns nil if
// no reference has ever been set along the path.
func Resolve(root *Ref, key uint64, fanout int, loader Loader) (*Ref, error) {
	groups := SplitKey(key, fanout)
	cur := root
	for level := 0; level < Levels; level++ {
		page, err := loader(cur)
		if err != nil {
			return nil, err
		}
		if page == nil {
			return nil, nil
		}
		cur = page.GetReference(groups[level])
		if cur == nil {
			return nil, nil
		}
	}
	return cur, nil
}

// Set walks from root down Levels indirect pages, copy-on-write
// duplicating every page on the path (fresh IndirectPage derived from
// the loaded one, mutated, then persisted via alloc), and returns the
// new root Ref the caller should install in place of root. This is the
// "propagate hashes upward" half of the commit protocol (§4.6 step 2) —
// alloc is expected to compute/store the content hash when it persists
// a page, so the Ref it returns already carries the hash the parent
// slot needs.
func Set(root *Ref, key uint64, fanout int, leaf *Ref, loader Loader, alloc Allocator) (*Ref, error) {
	groups := SplitKey(key, fanout)

	pages := make([]*IndirectPage, Levels)
	cur := root
	for level := 0; level < Levels; level++ {
		loaded, err := loader(cur)
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			loaded = NewIndirectPage(fanout)
		} else {
			loaded = copyIndirectPage(loaded)
		}
		pages[level] = loaded
		cur = loaded.GetReference(groups[level])
	}

	childRef := leaf
	for level := Levels - 1; level >= 0; level-- {
		pages[level].SetReference(groups[level], childRef)
		newRef, err := alloc(pages[level])
		if err != nil {
			return nil, err
		}
		childRef = newRef
	}
	return childRef, nil
}

// copyIndirectPage duplicates an IndirectPage's references (not the
// referenced pages themselves) for copy-on-write mutation, preserving
// whichever representation (dense/bitmap) the source page was in.
func copyIndirectPage(p *IndirectPage) *IndirectPage {
	cp := NewIndirectPage(p.fanout)
	p.Each(func(offset int, ref *Ref) {
		cp.SetReference(offset, ref.Clone())
	})
	return cp
}

// Walk visits every populated leaf-level Ref reachable from root,
// depth-first, calling fn with the logical key reconstructed from the
// group indices on the path to it. Unlike Resolve, which needs the key
// in advance, Walk lets a caller enumerate every leaf a subtree
// reaches without already knowing its keys — compaction's way of
// finding every live record page without re-deriving page keys from
// node keys.
func Walk(root *Ref, fanout int, loader Loader, fn func(key uint64, leaf *Ref) error) error {
	return walk(root, 0, 0, fanout, loader, fn)
}

func walk(ref *Ref, level int, prefix uint64, fanout int, loader Loader, fn func(key uint64, leaf *Ref) error) error {
	if level == Levels {
		if ref == nil || ref.Unresolved() {
			return nil
		}
		return fn(prefix, ref)
	}
	page, err := loader(ref)
	if err != nil {
		return err
	}
	if page == nil {
		return nil
	}
	bpl := uint(BitsPerLevel(fanout))
	var walkErr error
	page.Each(func(offset int, child *Ref) {
		if walkErr != nil {
			return
		}
		walkErr = walk(child, level+1, (prefix<<bpl)|uint64(offset), fanout, loader, fn)
	})
	return walkErr
}
