// Package revindex implements C11: the in-memory revision index, a
// parallel pair of sorted arrays answering "largest revision with
// timestamp <= t" by binary search (§4.11). Grounded on
// sirgallo-mari's Version.go, which keeps an on-disk "version index"
// file as the authoritative append-only record of committed versions;
// arbor keeps the equivalent structure in memory, backed by the same
// sidecar file C1 appends to on every commit.
package revindex

import "sort"

// Index holds timestamps and offsets as parallel slices kept sorted by
// timestamp (non-decreasing, since commits are monotonic in time).
type Index struct {
	timestamps []int64
	offsets    []uint64
}

// New creates an empty revision index.
func New() *Index {
	return &Index{}
}

// Append records a newly committed revision; entry index equals
// revision number by the convention of the sidecar file (§4.11 "On
// commit, append (timestamp, offset); timestamps are monotonically
// non-decreasing, so append keeps the array sorted").
func (idx *Index) Append(timestampMillis int64, offset uint64) {
	idx.timestamps = append(idx.timestamps, timestampMillis)
	idx.offsets = append(idx.offsets, offset)
}

// Len returns the number of revisions recorded (equivalently, one past
// the highest revision number).
func (idx *Index) Len() int { return len(idx.timestamps) }

// Offset returns the offset recorded for revision.
func (idx *Index) Offset(revision int) uint64 { return idx.offsets[revision] }

// Timestamp returns the timestamp recorded for revision.
func (idx *Index) Timestamp(revision int) int64 { return idx.timestamps[revision] }

// FindRevision returns the index of the greatest timestamp <= t, or -1
// if every recorded timestamp is greater than t (§4.11, §8 scenario 6).
func (idx *Index) FindRevision(t int64) int {
	// sort.Search finds the first index where timestamps[i] > t; the
	// answer is one less than that.
	i := sort.Search(len(idx.timestamps), func(i int) bool {
		return idx.timestamps[i] > t
	})
	return i - 1
}
