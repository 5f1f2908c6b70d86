// Package iostore implements C1, the append-only byte I/O backend:
// page read/write at aligned offsets, a pluggable byte handler pipeline
// (compression/checksum/encryption), and a striped buffer pool for
// concurrent reads.
//
// The append-and-offset-track discipline, the page length-prefix framing,
// and the atomic "next append offset" bookkeeping are grounded directly
// on sirgallo-mari's memory-mapped file handling (Types.go's
// MariMetaData.NextStartOffset, IOUtils.go's exclusiveWriteMmap and
// resizeMmap). Where the teacher embeds everything into one mmap'd byte
// slice, arbor has two backends: the plain-file Storage and the
// memory-mapped MMapStorage, which has its own API. Only Storage is
// wired into the transaction core; the root package's Open rejects
// spec.md §6's memoryMapped and ioUring storageBackend values.
package iostore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	arborerr "github.com/arbordb/arbor/errors"
	"go.uber.org/zap"
)

// Alignment constants (§3 "Byte alignment").
const (
	RevisionRootPageByteAlign = 4096
	PageFragmentByteAlign     = 512
	UberPageByteAlign         = 4096

	// dataFileBeacon is the fixed header written at the start of the
	// data file, matching §6's "first_beacon" framing.
	dataFileBeacon = "ARBORDB1"

	dataFileName     = "arbor.data"
	sidecarFileName  = "arbor.revisions"

	// sidecarEntrySize is the 16-byte (u64 offset || u64 ms timestamp)
	// revision sidecar entry from §6.
	sidecarEntrySize = 16
)

// PageKind distinguishes alignment/placement rules for a page (§3).
type PageKind int

const (
	KindOrdinary PageKind = iota
	KindRevisionRoot
	KindUber
)

func alignmentFor(kind PageKind) uint64 {
	switch kind {
	case KindRevisionRoot:
		return RevisionRootPageByteAlign
	case KindUber:
		return UberPageByteAlign
	default:
		return PageFragmentByteAlign
	}
}

// PageRef addresses a page fragment: its file offset (0 = unresolved,
// still only in a transaction's redo log) and the content hash recorded
// at write time, matching §3's PageReference (minus the revision/dbId
// bookkeeping that lives one layer up in internal/page).
type PageRef struct {
	Offset uint64
	Hash   []byte
}

// Reader serves positional reads; an arbitrary number may run
// concurrently against one Storage (§4.1, §5).
type Reader interface {
	// ReadPage reads and decodes the page at ref, verifying its content
	// hash. Returns a Corrupt error on length or hash mismatch.
	ReadPage(ref PageRef) ([]byte, error)
	Close() error
}

// Writer is the single-writer side; Storage hands out exactly one at a
// time in practice (enforced one layer up by the write-lock registry,
// not here).
type Writer interface {
	// WritePage encodes data through the byte handler pipeline and
	// appends it at the next aligned offset for kind, returning the
	// PageRef assigned to it.
	WritePage(kind PageKind, data []byte) (PageRef, error)

	// WriteSidecarUberSlot writes one of the two redundant uber-page
	// recovery slots in the revision sidecar (§6).
	WriteSidecarUberSlot(slot int, offset uint64, revisionCount uint64) error

	// AppendRevisionEntry appends (offset, timestampMillis) to the
	// revision sidecar at index == revision number (§4.11).
	AppendRevisionEntry(revision uint64, offset uint64, timestampMillis int64) error

	// TruncateTo discards everything appended after priorEndOffset,
	// used by abort (§4.6) to undo an incomplete commit.
	TruncateTo(priorEndOffset uint64) error

	// CurrentEndOffset returns the offset truncation/rollback should
	// capture before a commit begins appending.
	CurrentEndOffset() uint64

	Sync() error
	Close() error
}

// Storage owns the underlying file handles for one resource and can mint
// any number of Readers plus (logically) one Writer.
type Storage struct {
	dir    string
	logger *zap.Logger

	dataFile    *os.File
	sidecarFile *os.File

	pipeline   *Pipeline
	bufferPool *BufferPool

	mu         sync.Mutex // serializes writer-side file extension/append
	nextOffset uint64

	closed atomic.Bool
}

// Open creates or opens the data + sidecar files for a resource
// directory, writing the beacon header on first creation.
func Open(dir string, pipeline *Pipeline, logger *zap.Logger) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, arborerr.ClassifyFileError(err, "mkdir", dir)
	}

	dataPath := filepath.Join(dir, dataFileName)
	sidecarPath := filepath.Join(dir, sidecarFileName)

	dataFile, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, arborerr.ClassifyFileError(err, "open", dataPath)
	}

	sidecarFile, err := os.OpenFile(sidecarPath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		dataFile.Close()
		return nil, arborerr.ClassifyFileError(err, "open", sidecarPath)
	}

	s := &Storage{
		dir:         dir,
		logger:      logger,
		dataFile:    dataFile,
		sidecarFile: sidecarFile,
		pipeline:    pipeline,
		bufferPool:  NewBufferPool(RevisionRootPageByteAlign),
	}

	info, err := dataFile.Stat()
	if err != nil {
		return nil, arborerr.ClassifyFileError(err, "stat", dataPath)
	}

	if info.Size() == 0 {
		if _, err := dataFile.WriteAt([]byte(dataFileBeacon), 0); err != nil {
			return nil, arborerr.ClassifyFileError(err, "write-beacon", dataPath)
		}
		s.nextOffset = uint64(len(dataFileBeacon))
	} else {
		s.nextOffset = uint64(info.Size())
	}

	sinfo, err := sidecarFile.Stat()
	if err != nil {
		return nil, arborerr.ClassifyFileError(err, "stat", sidecarPath)
	}
	if sinfo.Size() == 0 {
		if err := sidecarFile.Truncate(2 * UberPageByteAlign); err != nil {
			return nil, arborerr.ClassifyFileError(err, "truncate", sidecarPath)
		}
	}

	return s, nil
}

func (s *Storage) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var firstErr error
	if err := s.dataFile.Sync(); err != nil && firstErr == nil {
		firstErr = arborerr.ClassifyFileError(err, "sync", s.dataFile.Name())
	}
	if err := s.dataFile.Close(); err != nil && firstErr == nil {
		firstErr = arborerr.ClassifyFileError(err, "close", s.dataFile.Name())
	}
	if err := s.sidecarFile.Sync(); err != nil && firstErr == nil {
		firstErr = arborerr.ClassifyFileError(err, "sync", s.sidecarFile.Name())
	}
	if err := s.sidecarFile.Close(); err != nil && firstErr == nil {
		firstErr = arborerr.ClassifyFileError(err, "close", s.sidecarFile.Name())
	}
	return firstErr
}

// CreateReader returns a Reader performing independent positional reads
// against the shared file handle — safe for unbounded concurrency since
// os.File.ReadAt takes no shared cursor (§4.1, §5).
func (s *Storage) CreateReader() Reader {
	return &fileReader{storage: s}
}

// CreateWriter returns the single Writer for this Storage. Callers are
// responsible for holding the write-lock registry's permit (C7) before
// using it concurrently with other writers.
func (s *Storage) CreateWriter() Writer {
	return &fileWriter{storage: s}
}

// Rewrite builds a fresh data+sidecar file pair in a sibling temp
// directory, handing build the fresh pair as its own *Storage (so build
// can both write through it and read back what it already wrote, the
// way a compactor threading an indirect page tree needs to), then
// atomically replaces the live files with the rebuilt ones —
// generalizing sirgallo-mari's Compact.go (copy the live version to a
// fresh file, then swap it in) from a whole-tree always-on compaction
// to one the transaction layer only triggers once the epoch watermark
// says the discarded bytes are truly unreachable. Callers are
// responsible for holding the write permit for the duration of the
// call, same as CreateWriter. Returns how many bytes the rewrite
// reclaimed (old file size minus new file size).
func (s *Storage) Rewrite(build func(tmp *Storage) error) (reclaimedBytes uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmpDir := s.dir + ".compact.tmp"
	if err := os.RemoveAll(tmpDir); err != nil {
		return 0, arborerr.ClassifyFileError(err, "rewrite-clean-tmp", tmpDir)
	}
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return 0, arborerr.ClassifyFileError(err, "rewrite-mkdir-tmp", tmpDir)
	}
	defer os.RemoveAll(tmpDir)

	tmpDataPath := filepath.Join(tmpDir, dataFileName)
	tmpSidecarPath := filepath.Join(tmpDir, sidecarFileName)

	tmpData, err := os.OpenFile(tmpDataPath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return 0, arborerr.ClassifyFileError(err, "rewrite-open-data", tmpDataPath)
	}
	tmpSidecar, err := os.OpenFile(tmpSidecarPath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		tmpData.Close()
		return 0, arborerr.ClassifyFileError(err, "rewrite-open-sidecar", tmpSidecarPath)
	}

	if _, err := tmpData.WriteAt([]byte(dataFileBeacon), 0); err != nil {
		tmpData.Close()
		tmpSidecar.Close()
		return 0, arborerr.ClassifyFileError(err, "rewrite-write-beacon", tmpDataPath)
	}
	if err := tmpSidecar.Truncate(2 * UberPageByteAlign); err != nil {
		tmpData.Close()
		tmpSidecar.Close()
		return 0, arborerr.ClassifyFileError(err, "rewrite-truncate-sidecar", tmpSidecarPath)
	}

	tmp := &Storage{
		dir:         tmpDir,
		logger:      s.logger,
		dataFile:    tmpData,
		sidecarFile: tmpSidecar,
		pipeline:    s.pipeline,
		bufferPool:  s.bufferPool,
		nextOffset:  uint64(len(dataFileBeacon)),
	}

	if buildErr := build(tmp); buildErr != nil {
		tmpData.Close()
		tmpSidecar.Close()
		return 0, buildErr
	}
	if err := tmpData.Sync(); err != nil {
		tmpData.Close()
		tmpSidecar.Close()
		return 0, arborerr.ClassifyFileError(err, "rewrite-sync-data", tmpDataPath)
	}
	if err := tmpSidecar.Sync(); err != nil {
		tmpData.Close()
		tmpSidecar.Close()
		return 0, arborerr.ClassifyFileError(err, "rewrite-sync-sidecar", tmpSidecarPath)
	}

	oldSize := s.nextOffset
	newSize := tmp.nextOffset

	if err := s.dataFile.Close(); err != nil {
		tmpData.Close()
		tmpSidecar.Close()
		return 0, arborerr.ClassifyFileError(err, "rewrite-close-old-data", s.dataFile.Name())
	}
	if err := s.sidecarFile.Close(); err != nil {
		tmpData.Close()
		tmpSidecar.Close()
		return 0, arborerr.ClassifyFileError(err, "rewrite-close-old-sidecar", s.sidecarFile.Name())
	}

	liveDataPath := filepath.Join(s.dir, dataFileName)
	liveSidecarPath := filepath.Join(s.dir, sidecarFileName)

	if err := os.Rename(tmpDataPath, liveDataPath); err != nil {
		return 0, arborerr.ClassifyFileError(err, "rewrite-rename-data", liveDataPath)
	}
	if err := os.Rename(tmpSidecarPath, liveSidecarPath); err != nil {
		return 0, arborerr.ClassifyFileError(err, "rewrite-rename-sidecar", liveSidecarPath)
	}
	tmpData.Close()
	tmpSidecar.Close()

	dataFile, err := os.OpenFile(liveDataPath, os.O_RDWR, 0o600)
	if err != nil {
		return 0, arborerr.ClassifyFileError(err, "rewrite-reopen-data", liveDataPath)
	}
	sidecarFile, err := os.OpenFile(liveSidecarPath, os.O_RDWR, 0o600)
	if err != nil {
		dataFile.Close()
		return 0, arborerr.ClassifyFileError(err, "rewrite-reopen-sidecar", liveSidecarPath)
	}

	s.dataFile = dataFile
	s.sidecarFile = sidecarFile
	s.nextOffset = newSize

	if oldSize > newSize {
		reclaimedBytes = oldSize - newSize
	}
	return reclaimedBytes, nil
}

// RevisionEntry reads back one (offset, timestamp) sidecar slot.
func (s *Storage) RevisionEntry(revision uint64) (offset uint64, timestampMillis int64, err error) {
	buf := make([]byte, sidecarEntrySize)
	at := int64(2*UberPageByteAlign) + int64(revision)*sidecarEntrySize
	if _, err := s.sidecarFile.ReadAt(buf, at); err != nil {
		return 0, 0, arborerr.ClassifyFileError(err, "read-sidecar", s.sidecarFile.Name())
	}
	offset = binary.BigEndian.Uint64(buf[0:8])
	timestampMillis = int64(binary.BigEndian.Uint64(buf[8:16]))
	return offset, timestampMillis, nil
}

// ReadSidecarUberSlot reads back one of the two redundant uber-page
// recovery slots.
func (s *Storage) ReadSidecarUberSlot(slot int) (offset uint64, revisionCount uint64, err error) {
	buf := make([]byte, 16)
	at := int64(slot) * UberPageByteAlign
	if _, err := s.sidecarFile.ReadAt(buf, at); err != nil {
		return 0, 0, arborerr.ClassifyFileError(err, "read-sidecar-uber", s.sidecarFile.Name())
	}
	offset = binary.BigEndian.Uint64(buf[0:8])
	revisionCount = binary.BigEndian.Uint64(buf[8:16])
	return offset, revisionCount, nil
}
