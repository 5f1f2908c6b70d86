// Package epoch implements C7: the epoch tracker that bounds which
// revisions are safe to evict or compact, and the per-resource
// write-lock registry gating write-transaction creation. The
// fixed-slot-array-plus-linear-scan design mirrors sirgallo-mari's
// resize/flush coordination primitives (IOUtils.go's isResizing flag
// and rwResizeLock), generalized from "one flag" to "N revision slots"
// since arbor must track an arbitrary number of concurrently pinned
// reader revisions rather than a single in-flight resize.
package epoch

import (
	"sync"
	"time"

	arborerr "github.com/arbordb/arbor/errors"
)

type slot struct {
	revision uint64
	active   bool
}

// Ticket is returned by Register and must be passed to Deregister
// exactly once.
type Ticket struct {
	index int
}

// Tracker holds a fixed number of reader slots and the last committed
// revision (§4.7).
type Tracker struct {
	mu                   sync.Mutex
	slots                []slot
	lastCommittedRevision uint64
}

// New creates a Tracker with room for maxConcurrentReaders simultaneous
// pinned revisions (§6 "maxConcurrentReaders").
func New(maxConcurrentReaders int) *Tracker {
	return &Tracker{slots: make([]slot, maxConcurrentReaders)}
}

// Register pins revision for a new reader, returning a Ticket to later
// deregister it. Fails with TooManyReaders if every slot is occupied.
func (t *Tracker) Register(revision uint64) (Ticket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		if !t.slots[i].active {
			t.slots[i] = slot{revision: revision, active: true}
			return Ticket{index: i}, nil
		}
	}
	return Ticket{}, arborerr.New(arborerr.CodeTooManyReaders, "epoch tracker has no free reader slots").
		WithDetail("capacity", len(t.slots))
}

// Deregister releases the slot a Ticket was registered with.
func (t *Tracker) Deregister(ticket Ticket) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots[ticket.index] = slot{}
}

// MinActiveRevision returns the minimum revision over active slots, or
// lastCommittedRevision if no reader is currently pinned (§4.7).
func (t *Tracker) MinActiveRevision() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	min, found := uint64(0), false
	for _, s := range t.slots {
		if !s.active {
			continue
		}
		if !found || s.revision < min {
			min, found = s.revision, true
		}
	}
	if !found {
		return t.lastCommittedRevision
	}
	return min
}

// SetLastCommittedRevision records the most recently committed
// revision; called at the end of a successful commit (§4.6 step 6).
func (t *Tracker) SetLastCommittedRevision(r uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastCommittedRevision = r
}

// LastCommittedRevision returns the most recently committed revision.
func (t *Tracker) LastCommittedRevision() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastCommittedRevision
}

// ActiveReaderCount returns how many reader slots are currently
// occupied. Compaction that physically rewrites storage (rather than
// just reclaiming fragments still behind the watermark) needs this to
// be zero — not merely minActiveRevision caught up to the tip — since
// even a reader pinned at the latest revision can still be mid-read
// when the file swap happens.
func (t *Tracker) ActiveReaderCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, s := range t.slots {
		if s.active {
			n++
		}
	}
	return n
}

// EvictionSafe reports whether a page fragment last modified at
// fragmentRevision is safe to evict or compact away (§3 "page fragments
// may be reused... iff r < minActiveRevision()").
func (t *Tracker) EvictionSafe(fragmentRevision uint64) bool {
	return fragmentRevision < t.MinActiveRevision()
}

// WriteLock is the per-resource single-permit semaphore gating write
// transaction creation (§4.7, §5 "Per-resource write permit: one;
// blocking acquisition with a finite timeout").
type WriteLock struct {
	ch chan struct{}
}

// NewWriteLock creates an unlocked write permit.
func NewWriteLock() *WriteLock {
	wl := &WriteLock{ch: make(chan struct{}, 1)}
	wl.ch <- struct{}{}
	return wl
}

// Acquire blocks up to timeout waiting for the write permit, returning
// WriteLockHeld on timeout. The permit is released by calling Release.
func (w *WriteLock) Acquire(timeout time.Duration) error {
	select {
	case <-w.ch:
		return nil
	case <-time.After(timeout):
		return arborerr.New(arborerr.CodeWriteLockHeld, "timed out waiting for the write permit").
			WithDetail("timeout", timeout.String())
	}
}

// Release returns the permit. Callers must pair every successful
// Acquire with exactly one Release: a Release while the permit is
// already available blocks, since the single-slot channel is full.
func (w *WriteLock) Release() {
	w.ch <- struct{}{}
}
