package epoch

import (
	"testing"
	"time"

	arborerr "github.com/arbordb/arbor/errors"
)

func TestMinActiveRevisionWithNoReadersReturnsLastCommitted(t *testing.T) {
	tr := New(4)
	tr.SetLastCommittedRevision(7)
	if got := tr.MinActiveRevision(); got != 7 {
		t.Fatalf("MinActiveRevision = %d, want 7", got)
	}
}

func TestMinActiveRevisionReflectsOldestReader(t *testing.T) {
	tr := New(4)
	tr.SetLastCommittedRevision(10)

	t1, err := tr.Register(3)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := tr.Register(8); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if got := tr.MinActiveRevision(); got != 3 {
		t.Fatalf("MinActiveRevision = %d, want 3", got)
	}

	tr.Deregister(t1)
	if got := tr.MinActiveRevision(); got != 8 {
		t.Fatalf("MinActiveRevision after deregister = %d, want 8", got)
	}
}

func TestRegisterFailsWhenSaturated(t *testing.T) {
	tr := New(2)
	if _, err := tr.Register(1); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := tr.Register(2); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := tr.Register(3)
	if err == nil {
		t.Fatalf("expected TooManyReaders error")
	}
	if !arborerr.IsCode(err, arborerr.CodeTooManyReaders) {
		t.Fatalf("expected TooManyReaders code, got %v", err)
	}
}

func TestEvictionSafe(t *testing.T) {
	tr := New(4)
	tr.SetLastCommittedRevision(5)
	if _, err := tr.Register(2); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if tr.EvictionSafe(2) {
		t.Fatalf("fragment at the min active revision must not be evictable")
	}
	if !tr.EvictionSafe(1) {
		t.Fatalf("fragment older than min active revision should be evictable")
	}
}

func TestWriteLockSingleHolder(t *testing.T) {
	wl := NewWriteLock()
	if err := wl.Acquire(time.Second); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	err := wl.Acquire(50 * time.Millisecond)
	if err == nil {
		t.Fatalf("expected second concurrent Acquire to time out")
	}
	if !arborerr.IsCode(err, arborerr.CodeWriteLockHeld) {
		t.Fatalf("expected WriteLockHeld, got %v", err)
	}

	wl.Release()
	if err := wl.Acquire(time.Second); err != nil {
		t.Fatalf("Acquire after Release: %v", err)
	}
}

func TestRegistryReturnsSameLockForSamePath(t *testing.T) {
	r := NewRegistry()
	a := r.LockFor("/db/res1")
	b := r.LockFor("/db/res1")
	if a != b {
		t.Fatalf("expected the same WriteLock instance for the same path")
	}
	c := r.LockFor("/db/res2")
	if a == c {
		t.Fatalf("expected distinct WriteLocks for distinct paths")
	}
}
