//go:build unix

package iostore

import (
	"encoding/binary"
	"os"
	"sync"
	"sync/atomic"

	arborerr "github.com/arbordb/arbor/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// mmapRegion wraps a mapped byte slice with its own Flush/Unmap, filling
// in the Map/Unmap/Flush trio sirgallo-mari's IOUtils.go calls
// (mariInst.mMap, mMap.Flush, etc.) but whose defining file never made
// it into this corpus — reconstructed here directly against
// golang.org/x/sys/unix, the same package the teacher's go.mod already
// requires.
type mmapRegion struct {
	data []byte
}

// mapFile memory-maps the full current extent of f for reading and
// writing.
func mapFile(f *os.File) (*mmapRegion, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return &mmapRegion{}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &mmapRegion{data: data}, nil
}

// Flush runs msync over the whole mapped region (the counterpart of the
// teacher's flushRegionToDisk).
func (r *mmapRegion) Flush() error {
	if len(r.data) == 0 {
		return nil
	}
	return unix.Msync(r.data, unix.MS_SYNC)
}

// Unmap releases the mapping.
func (r *mmapRegion) Unmap() error {
	if len(r.data) == 0 {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	return err
}

// MMapStorage is the memory-mapped BackendMemoryMapped counterpart of
// Storage/fileReader/fileWriter: reads are served directly out of the
// mapped region (no syscall per read), writes go through the same
// append-and-track discipline but against the mapped slice, remapping
// when the file must grow past the current mapping (the teacher's
// determineIfResize / resizeMmap pattern in IOUtils.go and
// CompactUtils.go).
type MMapStorage struct {
	dir    string
	logger *zap.Logger

	file     *os.File
	sidecar  *os.File
	pipeline *Pipeline

	mu         sync.Mutex
	region     *mmapRegion
	nextOffset uint64
	closed     atomic.Bool
}

// OpenMMap opens dir as a memory-mapped resource store. The sidecar
// revision index stays plain-file (it is tiny and append-mostly; the
// teacher maps its versionIndex too, but arbor keeps that file small
// enough that a syscall-per-entry cost is immaterial, avoiding a second
// remap discipline for little benefit).
func OpenMMap(dir string, pipeline *Pipeline, logger *zap.Logger) (*MMapStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, arborerr.ClassifyFileError(err, "mkdir", dir)
	}
	dataPath := dir + "/" + dataFileName
	sidecarPath := dir + "/" + sidecarFileName

	f, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, arborerr.ClassifyFileError(err, "open", dataPath)
	}
	sidecar, err := os.OpenFile(sidecarPath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		f.Close()
		return nil, arborerr.ClassifyFileError(err, "open", sidecarPath)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, arborerr.ClassifyFileError(err, "stat", dataPath)
	}
	nextOffset := uint64(info.Size())
	if info.Size() == 0 {
		if err := f.Truncate(int64(len(dataFileBeacon))); err != nil {
			return nil, arborerr.ClassifyFileError(err, "truncate", dataPath)
		}
		if _, err := f.WriteAt([]byte(dataFileBeacon), 0); err != nil {
			return nil, arborerr.ClassifyFileError(err, "write-beacon", dataPath)
		}
		nextOffset = uint64(len(dataFileBeacon))
	}

	sinfo, err := sidecar.Stat()
	if err != nil {
		return nil, arborerr.ClassifyFileError(err, "stat", sidecarPath)
	}
	if sinfo.Size() == 0 {
		if err := sidecar.Truncate(2 * UberPageByteAlign); err != nil {
			return nil, arborerr.ClassifyFileError(err, "truncate", sidecarPath)
		}
	}

	region, err := mapFile(f)
	if err != nil {
		return nil, arborerr.Wrap(arborerr.CodeIO, err, "mmap failed")
	}

	return &MMapStorage{
		dir: dir, logger: logger, file: f, sidecar: sidecar,
		pipeline: pipeline, region: region, nextOffset: nextOffset,
	}, nil
}

// ensureCapacity grows the backing file and remaps when an append would
// run past the current mapping, matching the teacher's
// determineIfResize check before every write.
func (s *MMapStorage) ensureCapacity(endOffset uint64) error {
	if uint64(len(s.region.data)) >= endOffset {
		return nil
	}
	newSize := endOffset * 2
	if err := s.file.Truncate(int64(newSize)); err != nil {
		return arborerr.ClassifyFileError(err, "truncate", s.file.Name())
	}
	if err := s.region.Unmap(); err != nil {
		return arborerr.Wrap(arborerr.CodeIO, err, "munmap failed during resize")
	}
	region, err := mapFile(s.file)
	if err != nil {
		return arborerr.Wrap(arborerr.CodeIO, err, "remap failed during resize")
	}
	s.region = region
	return nil
}

// WritePage appends a length-prefixed, pipeline-encoded page directly
// into the mapped region.
func (s *MMapStorage) WritePage(kind PageKind, data []byte) (PageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	compressed, err := s.pipeline.Encode(data)
	if err != nil {
		return PageRef{}, arborerr.Wrap(arborerr.CodeIO, err, "failed to encode page bytes")
	}
	hash := s.pipeline.Hash(compressed)

	offset := alignUp(s.nextOffset, alignmentFor(kind))
	end := offset + lengthPrefixSize + uint64(len(compressed))
	if err := s.ensureCapacity(end); err != nil {
		return PageRef{}, err
	}

	binary.BigEndian.PutUint32(s.region.data[offset:offset+lengthPrefixSize], uint32(len(compressed)))
	copy(s.region.data[offset+lengthPrefixSize:end], compressed)

	s.nextOffset = end
	return PageRef{Offset: offset, Hash: hash}, nil
}

// ReadPage decodes a page straight out of the mapped region, with no
// read syscall.
func (s *MMapStorage) ReadPage(ref PageRef) ([]byte, error) {
	s.mu.Lock()
	region := s.region
	s.mu.Unlock()

	if ref.Offset+lengthPrefixSize > uint64(len(region.data)) {
		return nil, arborerr.New(arborerr.CodeCorrupt, "page offset past mapped extent")
	}
	length := binary.BigEndian.Uint32(region.data[ref.Offset : ref.Offset+lengthPrefixSize])
	start := ref.Offset + lengthPrefixSize
	end := start + uint64(length)
	if end > uint64(len(region.data)) {
		return nil, arborerr.New(arborerr.CodeCorrupt, "page payload past mapped extent")
	}
	compressed := region.data[start:end]

	if ref.Hash != nil && !hashEqual(s.pipeline.Hash(compressed), ref.Hash) {
		return nil, arborerr.New(arborerr.CodeCorrupt, "page content hash mismatch").
			WithDetail("offset", ref.Offset)
	}
	return s.pipeline.Decode(compressed)
}

// Flush msyncs the mapped region and fsyncs the sidecar, the teacher's
// handleFlush discipline collapsed into a single synchronous call (arbor
// has no background flush goroutine; Flush runs only when the owner of
// the MMapStorage calls it).
func (s *MMapStorage) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.region.Flush(); err != nil {
		return arborerr.Wrap(arborerr.CodeIO, err, "msync failed")
	}
	if err := s.sidecar.Sync(); err != nil {
		return arborerr.ClassifyFileError(err, "sync", s.sidecar.Name())
	}
	return nil
}

func (s *MMapStorage) CurrentEndOffset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextOffset
}

func (s *MMapStorage) TruncateTo(priorEndOffset uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextOffset = priorEndOffset
	return nil
}

func (s *MMapStorage) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var firstErr error
	if err := s.region.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.region.Unmap(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.sidecar.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
