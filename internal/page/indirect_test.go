package page

import "testing"

func refWithHash(h byte) *Ref {
	return &Ref{Offset: uint64(h) * 100, Hash: []byte{h}, LogKey: -1}
}

func TestIndirectPageStartsInDenseMode(t *testing.T) {
	p := NewIndirectPage(64)
	if p.IsBitmapMode() {
		t.Fatalf("expected fresh page to start in dense mode")
	}
	p.SetReference(3, refWithHash(1))
	if got := p.GetReference(3); got == nil || got.Hash[0] != 1 {
		t.Fatalf("GetReference(3) did not return the set ref")
	}
	if p.GetReference(4) != nil {
		t.Fatalf("expected unset slot to return nil")
	}
}

func TestIndirectPageConvertsToBitmapAtThreshold(t *testing.T) {
	fanout := 32
	p := NewIndirectPage(fanout)
	converted := false
	for i := 0; i < fanout-16; i++ {
		if p.SetReference(i, refWithHash(byte(i))) {
			converted = true
		}
	}
	if !converted {
		t.Fatalf("expected conversion signal once cardinality hit fanout-16")
	}
	if !p.IsBitmapMode() {
		t.Fatalf("expected page to have converted to bitmap mode")
	}
	for i := 0; i < fanout-16; i++ {
		got := p.GetReference(i)
		if got == nil || got.Hash[0] != byte(i) {
			t.Fatalf("GetReference(%d) lost value across conversion", i)
		}
	}
}

func TestIndirectPageEachVisitsInOrderBothModes(t *testing.T) {
	p := NewIndirectPage(64)
	p.SetReference(10, refWithHash(1))
	p.SetReference(2, refWithHash(2))
	p.SetReference(40, refWithHash(3))

	var offsets []int
	p.Each(func(offset int, ref *Ref) { offsets = append(offsets, offset) })
	want := []int{2, 10, 40}
	if len(offsets) != len(want) {
		t.Fatalf("Each returned %d entries, want %d", len(offsets), len(want))
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Fatalf("Each()[%d] = %d, want %d", i, offsets[i], want[i])
		}
	}
}

func TestIndirectPageCodecRoundTripsDenseForm(t *testing.T) {
	p := NewIndirectPage(64)
	p.SetReference(5, refWithHash(9))
	p.SetReference(1, refWithHash(8))

	buf := EncodeIndirectPage(nil, p)
	decoded, err := DecodeIndirectPage(buf, 64)
	if err != nil {
		t.Fatalf("DecodeIndirectPage: %v", err)
	}
	if decoded.IsBitmapMode() {
		t.Fatalf("expected decoded page to stay in dense mode")
	}
	if got := decoded.GetReference(5); got == nil || got.Hash[0] != 9 {
		t.Fatalf("decoded slot 5 mismatch")
	}
}

func TestIndirectPageCodecRoundTripsBitmapForm(t *testing.T) {
	fanout := 32
	p := NewIndirectPage(fanout)
	for i := 0; i < fanout-16; i++ {
		p.SetReference(i, refWithHash(byte(i)))
	}
	buf := EncodeIndirectPage(nil, p)
	decoded, err := DecodeIndirectPage(buf, fanout)
	if err != nil {
		t.Fatalf("DecodeIndirectPage: %v", err)
	}
	if !decoded.IsBitmapMode() {
		t.Fatalf("expected decoded page to be in bitmap mode")
	}
	for i := 0; i < fanout-16; i++ {
		got := decoded.GetReference(i)
		if got == nil || got.Hash[0] != byte(i) {
			t.Fatalf("decoded slot %d mismatch", i)
		}
	}
}
