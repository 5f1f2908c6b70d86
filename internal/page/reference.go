// Package page implements C2 (the page codec) and C3 (the four-level
// indirect page tree rooted in a revision root page). Wire shapes follow
// spec.md §4.2/§6 exactly; the copy-on-write discipline and the
// sparse-bitmap-over-dense-array technique for the reference table are
// grounded on sirgallo-mari's MariINode (Types.go, Utils.go) and its
// bitmap-indexed child array, generalized via internal/bitmap.
package page

// Fragment is one prior (revision, offset) pairing for a logical
// PageReference, kept so a reader resolving an older revision can find
// the page fragment that was current at that time (§3 "page fragments
// may be reused across revisions").
type Fragment struct {
	Revision uint32
	Offset   uint64
}

// Ref is the in-memory PageReference: a pointer to either a cached page
// (LogKey into a transaction's redo log) or a persisted page (Offset +
// Hash), plus the fragment history used to resolve older revisions.
type Ref struct {
	Offset     uint64 // 0 = unresolved (still only in the redo log)
	Hash       []byte
	DatabaseID uint64
	ResourceID uint64
	LogKey     int64 // -1 when not present in any in-memory redo log
	Fragments  []Fragment
}

// Unresolved reports whether this reference has never been durably
// written (only a redo-log entry exists for it).
func (r *Ref) Unresolved() bool { return r.Offset == 0 }

// Clone returns an independent copy, used when copy-on-write duplicates
// the page holding this reference before mutating it.
func (r *Ref) Clone() *Ref {
	if r == nil {
		return nil
	}
	c := &Ref{
		Offset: r.Offset, DatabaseID: r.DatabaseID,
		ResourceID: r.ResourceID, LogKey: r.LogKey,
	}
	if r.Hash != nil {
		c.Hash = append([]byte(nil), r.Hash...)
	}
	if r.Fragments != nil {
		c.Fragments = append([]Fragment(nil), r.Fragments...)
	}
	return c
}
