package iostore

import (
	"bytes"
	"testing"

	arborerr "github.com/arbordb/arbor/errors"
)

func TestPipelineRoundTripNone(t *testing.T) {
	p, err := NewPipeline([]string{"none"}, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	in := []byte("hello world")
	enc, err := p.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dec, err := p.Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(in, dec) {
		t.Fatalf("round trip mismatch: got %q want %q", dec, in)
	}
}

func TestPipelineRoundTripDeflate(t *testing.T) {
	p, err := NewPipeline([]string{"deflate"}, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	in := bytes.Repeat([]byte("abcdefgh"), 64)
	enc, err := p.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(enc) >= len(in) {
		t.Fatalf("expected deflate to shrink repetitive input: got %d, in %d", len(enc), len(in))
	}
	dec, err := p.Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(in, dec) {
		t.Fatalf("round trip mismatch")
	}
}

func TestPipelineRoundTripAES(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	p, err := NewPipeline([]string{"aes"}, key)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	in := []byte("secret page bytes")
	enc, err := p.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if bytes.Contains(enc, in) {
		t.Fatalf("ciphertext should not contain plaintext")
	}
	dec, err := p.Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(in, dec) {
		t.Fatalf("round trip mismatch")
	}
}

func TestPipelineRoundTripDeflateThenAES(t *testing.T) {
	key := bytes.Repeat([]byte{0x7}, 32)
	p, err := NewPipeline([]string{"deflate", "aes"}, key)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	in := bytes.Repeat([]byte("node payload "), 32)
	enc, err := p.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dec, err := p.Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(in, dec) {
		t.Fatalf("round trip mismatch through composed pipeline")
	}
}

func TestPipelineAESRejectsMissingKey(t *testing.T) {
	if _, err := NewPipeline([]string{"aes"}, nil); err == nil {
		t.Fatalf("expected error for aes handler with no key")
	}
}

func TestPipelineRejectsSnappy(t *testing.T) {
	_, err := NewPipeline([]string{"snappy"}, nil)
	if err == nil {
		t.Fatalf("expected snappy to be rejected")
	}
	if !arborerr.IsCode(err, arborerr.CodeUnsupportedOperation) {
		t.Fatalf("expected UnsupportedOperation, got %v", err)
	}
}

func TestPipelineHashDetectsCorruption(t *testing.T) {
	p, err := NewPipeline([]string{"none"}, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	enc, _ := p.Encode([]byte("page bytes"))
	h1 := p.Hash(enc)

	enc[0] ^= 0xFF
	h2 := p.Hash(enc)

	if bytes.Equal(h1, h2) {
		t.Fatalf("expected hash to change after corrupting a byte")
	}
}
