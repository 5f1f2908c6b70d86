package page

import "encoding/binary"

// SubtreeKind indexes the five subtree roots a RevisionRootPage carries
// (§3 "RevisionRootPage").
type SubtreeKind int

const (
	SubtreeRecord SubtreeKind = iota
	SubtreePathSummary
	SubtreeCASIndex
	SubtreePathIndex
	SubtreeNameIndex
	subtreeCount
)

// RevisionRootPage is the per-revision root: five subtree pointers plus
// the bookkeeping needed to resume allocation and detect index
// inconsistency (§3, §9 Open Question on listener-failure handling).
type RevisionRootPage struct {
	RevisionNumber  uint64
	TimestampMillis int64
	MaxNodeKey      uint64
	Subtrees        [subtreeCount]*Ref

	// RebuildNeeded marks, per SubtreeKind, whether a secondary-index
	// listener failed during the commit that produced this revision —
	// the index is still readable from the main tree but should be
	// treated as possibly stale until rebuilt (§9 Open Question).
	RebuildNeeded [subtreeCount]bool
}

// NewRevisionRootPage allocates an empty root for revisionNumber,
// inheriting subtree roots from the prior revision (nil on revision 0).
func NewRevisionRootPage(revisionNumber uint64, timestampMillis int64, prior *RevisionRootPage) *RevisionRootPage {
	r := &RevisionRootPage{RevisionNumber: revisionNumber, TimestampMillis: timestampMillis}
	if prior != nil {
		r.MaxNodeKey = prior.MaxNodeKey
		for i := range r.Subtrees {
			r.Subtrees[i] = prior.Subtrees[i].Clone()
		}
	}
	return r
}

// NextNodeKey allocates and returns the next nodeKey from this
// revision's monotonic counter (§3 "nodeKey is... monotonically
// allocated from a per-resource counter stored in the revision root
// page").
func (r *RevisionRootPage) NextNodeKey() uint64 {
	r.MaxNodeKey++
	return r.MaxNodeKey
}

// EncodeRevisionRootPage serializes the fixed header fields followed by
// the five subtree PageReferences in SubtreeKind order.
func EncodeRevisionRootPage(buf []byte, r *RevisionRootPage) []byte {
	var scratch [9]byte
	binary.BigEndian.PutUint64(scratch[:8], r.RevisionNumber)
	buf = append(buf, scratch[:8]...)
	binary.BigEndian.PutUint64(scratch[:8], uint64(r.TimestampMillis))
	buf = append(buf, scratch[:8]...)
	binary.BigEndian.PutUint64(scratch[:8], r.MaxNodeKey)
	buf = append(buf, scratch[:8]...)

	for i := 0; i < int(subtreeCount); i++ {
		if r.RebuildNeeded[i] {
			scratch[0] = 1
		} else {
			scratch[0] = 0
		}
		buf = append(buf, scratch[0])
		ref := r.Subtrees[i]
		if ref == nil {
			ref = &Ref{LogKey: -1}
		}
		buf = EncodeRef(buf, ref)
	}
	return buf
}

// DecodeRevisionRootPage is the inverse of EncodeRevisionRootPage.
func DecodeRevisionRootPage(buf []byte) (*RevisionRootPage, error) {
	r := &RevisionRootPage{}
	pos := 0
	r.RevisionNumber = binary.BigEndian.Uint64(buf[pos:])
	pos += 8
	r.TimestampMillis = int64(binary.BigEndian.Uint64(buf[pos:]))
	pos += 8
	r.MaxNodeKey = binary.BigEndian.Uint64(buf[pos:])
	pos += 8

	for i := 0; i < int(subtreeCount); i++ {
		r.RebuildNeeded[i] = buf[pos] != 0
		pos++
		ref, n, err := DecodeRef(buf[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		if ref.Offset == 0 && len(ref.Hash) == 0 && len(ref.Fragments) == 0 {
			ref = nil
		}
		r.Subtrees[i] = ref
	}
	return r, nil
}

// UberPage is the head page: a pointer to the indirect page tree whose
// leaves are RevisionRootPage references, indexed by revision number
// (§3). Each commit writes one copy through the page writer and records
// its offset in both sidecar uber slots; no copies are written at
// data-file offsets 0 and FIRST_BEACON>>1.
type UberPage struct {
	RevisionCount uint64
	RevisionTree  *Ref
}

func EncodeUberPage(buf []byte, u *UberPage) []byte {
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], u.RevisionCount)
	buf = append(buf, scratch[:]...)
	ref := u.RevisionTree
	if ref == nil {
		ref = &Ref{LogKey: -1}
	}
	return EncodeRef(buf, ref)
}

func DecodeUberPage(buf []byte) (*UberPage, error) {
	u := &UberPage{}
	u.RevisionCount = binary.BigEndian.Uint64(buf[:8])
	ref, _, err := DecodeRef(buf[8:])
	if err != nil {
		return nil, err
	}
	u.RevisionTree = ref
	return u, nil
}
