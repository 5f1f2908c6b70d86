package axis

// Next is satisfied by both DescendantAxis and JSONDescendantAxis (and
// anything else driving the same state machine), letting
// BatchDescendantAxis stay agnostic of which flavor it wraps.
type Next interface {
	Next() (int64, bool)
}

// Filter is run against the cursor positioned at a candidate node;
// returning false skips that node without counting it toward max.
type Filter func(cursor Cursor) bool

// BatchDescendantAxis drives an underlying axis without allocating per
// step, filling caller-provided slices (§4.8 "Batched").
type BatchDescendantAxis struct {
	inner   Next
	cursor  Cursor
	filters []Filter
}

// NewBatchDescendantAxis wraps inner, applying filters (if any) to each
// candidate before it counts toward a batch.
func NewBatchDescendantAxis(inner Next, cursor Cursor, filters ...Filter) *BatchDescendantAxis {
	return &BatchDescendantAxis{inner: inner, cursor: cursor, filters: filters}
}

func (b *BatchDescendantAxis) accept() bool {
	for _, f := range b.filters {
		if !f(b.cursor) {
			return false
		}
	}
	return true
}

// NextBatch appends up to max accepted node keys to out, returning the
// (possibly reallocated) slice and whether the axis is now exhausted.
func (b *BatchDescendantAxis) NextBatch(out []int64, max int) ([]int64, bool) {
	count := 0
	for count < max {
		key, ok := b.inner.Next()
		if !ok {
			return out, true
		}
		if !b.accept() {
			continue
		}
		out = append(out, key)
		count++
	}
	return out, false
}

// ForEachNext drives the axis for up to max accepted nodes, invoking
// consumer with the cursor positioned at each one, without
// materializing a slice.
func (b *BatchDescendantAxis) ForEachNext(max int, consumer func(cursor Cursor)) (exhausted bool) {
	count := 0
	for count < max {
		_, ok := b.inner.Next()
		if !ok {
			return true
		}
		if !b.accept() {
			continue
		}
		consumer(b.cursor)
		count++
	}
	return false
}
