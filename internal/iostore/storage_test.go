package iostore

import (
	"bytes"
	"testing"

	"go.uber.org/zap"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()
	pipeline, err := NewPipeline([]string{"crc32"}, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	s, err := Open(t.TempDir(), pipeline, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriteThenReadPageRoundTrips(t *testing.T) {
	s := openTestStorage(t)
	w := s.CreateWriter()
	r := s.CreateReader()

	payload := []byte("a serialized page fragment")
	ref, err := w.WritePage(KindOrdinary, payload)
	if err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got, err := r.ReadPage(ref)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("ReadPage = %q, want %q", got, payload)
	}
}

func TestWritePageAlignsOffsetsByKind(t *testing.T) {
	s := openTestStorage(t)
	w := s.CreateWriter()

	if _, err := w.WritePage(KindOrdinary, []byte("x")); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	ref, err := w.WritePage(KindUber, []byte("uber"))
	if err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if ref.Offset%UberPageByteAlign != 0 {
		t.Fatalf("uber page offset %d not aligned to %d", ref.Offset, UberPageByteAlign)
	}
}

func TestReadPageDetectsCorruption(t *testing.T) {
	s := openTestStorage(t)
	w := s.CreateWriter()
	r := s.CreateReader()

	ref, err := w.WritePage(KindOrdinary, []byte("trustworthy bytes"))
	if err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	ref.Hash[0] ^= 0xFF
	if _, err := r.ReadPage(ref); err == nil {
		t.Fatalf("expected corruption to be detected")
	}
}

func TestTruncateToUndoesCommit(t *testing.T) {
	s := openTestStorage(t)
	w := s.CreateWriter()

	before := w.CurrentEndOffset()
	if _, err := w.WritePage(KindOrdinary, []byte("will be rolled back")); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if w.CurrentEndOffset() == before {
		t.Fatalf("expected end offset to advance after write")
	}

	if err := w.TruncateTo(before); err != nil {
		t.Fatalf("TruncateTo: %v", err)
	}
	if w.CurrentEndOffset() != before {
		t.Fatalf("TruncateTo did not restore end offset: got %d, want %d", w.CurrentEndOffset(), before)
	}
}

func TestRevisionSidecarRoundTrips(t *testing.T) {
	s := openTestStorage(t)
	w := s.CreateWriter()

	if err := w.AppendRevisionEntry(3, 8192, 1700000000000); err != nil {
		t.Fatalf("AppendRevisionEntry: %v", err)
	}

	offset, ts, err := s.RevisionEntry(3)
	if err != nil {
		t.Fatalf("RevisionEntry: %v", err)
	}
	if offset != 8192 || ts != 1700000000000 {
		t.Fatalf("RevisionEntry = (%d, %d), want (8192, 1700000000000)", offset, ts)
	}
}

func TestSidecarUberSlotRoundTrips(t *testing.T) {
	s := openTestStorage(t)
	w := s.CreateWriter()

	if err := w.WriteSidecarUberSlot(1, 4096, 7); err != nil {
		t.Fatalf("WriteSidecarUberSlot: %v", err)
	}
	offset, revisionCount, err := s.ReadSidecarUberSlot(1)
	if err != nil {
		t.Fatalf("ReadSidecarUberSlot: %v", err)
	}
	if offset != 4096 || revisionCount != 7 {
		t.Fatalf("ReadSidecarUberSlot = (%d, %d), want (4096, 7)", offset, revisionCount)
	}
}
