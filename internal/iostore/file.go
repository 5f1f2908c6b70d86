package iostore

import (
	"encoding/binary"
	"io"

	arborerr "github.com/arbordb/arbor/errors"
)

// lengthPrefixSize is the u32_be length header preceding every page's
// compressed bytes (§6).
const lengthPrefixSize = 4

func alignUp(offset, align uint64) uint64 {
	if align == 0 {
		return offset
	}
	rem := offset % align
	if rem == 0 {
		return offset
	}
	return offset + (align - rem)
}

type fileReader struct {
	storage *Storage
}

// ReadPage reads the u32_be length prefix, the declared number of
// compressed bytes, verifies the content hash against ref.Hash (per
// §9's standardization on hashing the compressed bytes exactly as
// written to disk), then runs the byte handler pipeline in reverse.
// The positional reads and the decode run inside one buffer-pool stripe
// lock (§4.1, §5: "each buffer's lock spans the entire
// read-plus-deserialize"), so a scratch buffer is never handed to a
// second reader mid-decode.
func (r *fileReader) ReadPage(ref PageRef) ([]byte, error) {
	s := r.storage

	var raw []byte
	err := s.bufferPool.WithStripe(ref.Offset, func(scratch []byte) error {
		lenBuf := make([]byte, lengthPrefixSize)
		if _, err := s.dataFile.ReadAt(lenBuf, int64(ref.Offset)); err != nil {
			return arborerr.ClassifyFileError(err, "read-page-length", s.dataFile.Name())
		}
		length := binary.BigEndian.Uint32(lenBuf)

		compressed := scratch
		if cap(compressed) < int(length) {
			compressed = make([]byte, length)
		} else {
			compressed = compressed[:length]
		}
		if _, err := s.dataFile.ReadAt(compressed, int64(ref.Offset)+lengthPrefixSize); err != nil {
			if err == io.EOF {
				return arborerr.New(arborerr.CodeCorrupt, "declared page length runs past the end of the data file").
					WithDetail("offset", ref.Offset)
			}
			return arborerr.ClassifyFileError(err, "read-page-payload", s.dataFile.Name())
		}

		if ref.Hash != nil {
			gotHash := s.pipeline.Hash(compressed)
			if !hashEqual(gotHash, ref.Hash) {
				return arborerr.New(arborerr.CodeCorrupt, "page content hash mismatch").
					WithDetail("offset", ref.Offset)
			}
		}

		decoded, err := s.pipeline.Decode(compressed)
		if err != nil {
			return arborerr.Wrap(arborerr.CodeCorrupt, err, "failed to decode page bytes").
				WithDetail("offset", ref.Offset)
		}
		raw = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (r *fileReader) Close() error { return nil }

func hashEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type fileWriter struct {
	storage *Storage
}

// WritePage mirrors the teacher's exclusiveWriteMmap append discipline
// (Types.go's NextStartOffset, IOUtils.go's exclusiveWriteMmap): the
// next append offset is tracked, the payload is framed with its length
// prefix, and the hash is computed over the compressed bytes exactly as
// written — the standardization this spec's design notes call for.
func (w *fileWriter) WritePage(kind PageKind, data []byte) (PageRef, error) {
	s := w.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	compressed, err := s.pipeline.Encode(data)
	if err != nil {
		return PageRef{}, arborerr.Wrap(arborerr.CodeIO, err, "failed to encode page bytes")
	}
	hash := s.pipeline.Hash(compressed)

	offset := alignUp(s.nextOffset, alignmentFor(kind))

	lenBuf := make([]byte, lengthPrefixSize)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(compressed)))

	if _, err := s.dataFile.WriteAt(lenBuf, int64(offset)); err != nil {
		return PageRef{}, arborerr.ClassifyFileError(err, "write-page-length", s.dataFile.Name())
	}
	if _, err := s.dataFile.WriteAt(compressed, int64(offset)+lengthPrefixSize); err != nil {
		return PageRef{}, arborerr.ClassifyFileError(err, "write-page-payload", s.dataFile.Name())
	}

	s.nextOffset = offset + lengthPrefixSize + uint64(len(compressed))

	return PageRef{Offset: offset, Hash: hash}, nil
}

func (w *fileWriter) WriteSidecarUberSlot(slot int, offset uint64, revisionCount uint64) error {
	s := w.storage
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], offset)
	binary.BigEndian.PutUint64(buf[8:16], revisionCount)

	at := int64(slot) * UberPageByteAlign
	if _, err := s.sidecarFile.WriteAt(buf, at); err != nil {
		return arborerr.ClassifyFileError(err, "write-sidecar-uber", s.sidecarFile.Name())
	}
	return nil
}

func (w *fileWriter) AppendRevisionEntry(revision uint64, offset uint64, timestampMillis int64) error {
	s := w.storage
	buf := make([]byte, sidecarEntrySize)
	binary.BigEndian.PutUint64(buf[0:8], offset)
	binary.BigEndian.PutUint64(buf[8:16], uint64(timestampMillis))

	at := int64(2*UberPageByteAlign) + int64(revision)*sidecarEntrySize
	if _, err := s.sidecarFile.WriteAt(buf, at); err != nil {
		return arborerr.ClassifyFileError(err, "write-sidecar-entry", s.sidecarFile.Name())
	}
	return nil
}

func (w *fileWriter) TruncateTo(priorEndOffset uint64) error {
	s := w.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dataFile.Truncate(int64(priorEndOffset)); err != nil {
		return arborerr.ClassifyFileError(err, "truncate", s.dataFile.Name())
	}
	s.nextOffset = priorEndOffset
	return nil
}

func (w *fileWriter) CurrentEndOffset() uint64 {
	s := w.storage
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextOffset
}

func (w *fileWriter) Sync() error {
	s := w.storage
	if err := s.dataFile.Sync(); err != nil {
		return arborerr.ClassifyFileError(err, "sync", s.dataFile.Name())
	}
	if err := s.sidecarFile.Sync(); err != nil {
		return arborerr.ClassifyFileError(err, "sync", s.sidecarFile.Name())
	}
	return nil
}

func (w *fileWriter) Close() error { return nil }
