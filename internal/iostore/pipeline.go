package iostore

import (
	"bytes"
	"compress/flate"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"hash/crc32"
	"io"

	arborerr "github.com/arbordb/arbor/errors"
)

// step is one byte handler pipeline stage: Encode runs on write, Decode
// reverses it on read, applied in pipeline order on encode and reverse
// order on decode (§4.1).
type step interface {
	Encode(in []byte) ([]byte, error)
	Decode(in []byte) ([]byte, error)
}

// Pipeline chains byte handler steps and exposes the content-hash
// function used to verify page integrity (§4.1, §9 — hashing is always
// over the fully-encoded, compressed bytes as written to disk).
type Pipeline struct {
	steps []step
}

// NewPipeline builds a Pipeline from the configured handler names.
// "snappy" is a recognized config value (§6) but no library in this
// corpus provides it; it is rejected here with UnsupportedOperation
// rather than silently downgraded to a no-op, per DESIGN.md's Open
// Question decision.
func NewPipeline(names []string, aesKey []byte) (*Pipeline, error) {
	p := &Pipeline{}
	for _, name := range names {
		switch name {
		case "none", "crc32":
			// crc32 is folded into Hash() below, not a transform step;
			// accepted here as a no-op step so pipelines that name it
			// explicitly still build.
			p.steps = append(p.steps, identityStep{})
		case "deflate":
			p.steps = append(p.steps, deflateStep{})
		case "aes":
			s, err := newAESStep(aesKey)
			if err != nil {
				return nil, err
			}
			p.steps = append(p.steps, s)
		case "snappy":
			return nil, arborerr.New(arborerr.CodeUnsupportedOperation,
				"snappy byte handler requested but no snappy implementation is available").
				WithDetail("handler", name)
		default:
			return nil, arborerr.New(arborerr.CodeUnsupportedOperation, "unknown byte handler").
				WithDetail("handler", name)
		}
	}
	return p, nil
}

// Encode applies every step in configured order.
func (p *Pipeline) Encode(data []byte) ([]byte, error) {
	cur := data
	for _, s := range p.steps {
		var err error
		cur, err = s.Encode(cur)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// Decode reverses every step in reverse order.
func (p *Pipeline) Decode(data []byte) ([]byte, error) {
	cur := data
	for i := len(p.steps) - 1; i >= 0; i-- {
		var err error
		cur, err = p.steps[i].Decode(cur)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// Hash computes the content hash recorded in a PageReference, over the
// bytes exactly as written to disk (post-pipeline). crc32 is cheap
// enough to run unconditionally as the page integrity check, matching
// the checksum role VittoriaDB's wal.go plays for its own records.
func (p *Pipeline) Hash(compressed []byte) []byte {
	sum := crc32.ChecksumIEEE(compressed)
	out := make([]byte, 4)
	out[0] = byte(sum >> 24)
	out[1] = byte(sum >> 16)
	out[2] = byte(sum >> 8)
	out[3] = byte(sum)
	return out
}

type identityStep struct{}

func (identityStep) Encode(in []byte) ([]byte, error) { return in, nil }
func (identityStep) Decode(in []byte) ([]byte, error) { return in, nil }

type deflateStep struct{}

func (deflateStep) Encode(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(in); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (deflateStep) Decode(in []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(in))
	defer r.Close()
	return io.ReadAll(r)
}

// aesStep implements AES-256-GCM with a random nonce prefixed to the
// ciphertext, so callers only need to supply a 32-byte key via
// WithAESKey.
type aesStep struct {
	gcm cipher.AEAD
}

func newAESStep(key []byte) (*aesStep, error) {
	if len(key) == 0 {
		return nil, arborerr.New(arborerr.CodeUnsupportedOperation, "aes byte handler requires a key (see WithAESKey)")
	}
	k := key
	if len(k) != 32 {
		sum := sha256.Sum256(key)
		k = sum[:]
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, arborerr.Wrap(arborerr.CodeUnsupportedOperation, err, "failed to initialize AES cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, arborerr.Wrap(arborerr.CodeUnsupportedOperation, err, "failed to initialize AES-GCM")
	}
	return &aesStep{gcm: gcm}, nil
}

func (s *aesStep) Encode(in []byte) ([]byte, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.gcm.Seal(nonce, nonce, in, nil), nil
}

func (s *aesStep) Decode(in []byte) ([]byte, error) {
	nonceSize := s.gcm.NonceSize()
	if len(in) < nonceSize {
		return nil, arborerr.New(arborerr.CodeCorrupt, "ciphertext shorter than nonce")
	}
	nonce, ciphertext := in[:nonceSize], in[nonceSize:]
	out, err := s.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, arborerr.Wrap(arborerr.CodeCorrupt, err, "AES-GCM authentication failed")
	}
	return out, nil
}
