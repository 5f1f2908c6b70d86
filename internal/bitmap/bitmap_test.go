package bitmap

import "testing"

func TestSetIsSetClear(t *testing.T) {
	b := New(256)

	if b.IsSet(130) {
		t.Fatalf("expected bit 130 clear initially")
	}

	if !b.Set(130) {
		t.Fatalf("expected Set to report a change")
	}
	if !b.IsSet(130) {
		t.Fatalf("expected bit 130 set")
	}
	if b.Set(130) {
		t.Fatalf("expected Set to report no change on a repeat set")
	}

	if !b.Clear(130) {
		t.Fatalf("expected Clear to report a change")
	}
	if b.IsSet(130) {
		t.Fatalf("expected bit 130 clear after Clear")
	}
}

func TestIndexMatchesPopcount(t *testing.T) {
	b := New(1024)
	set := []int{0, 1, 63, 64, 65, 500, 1000}
	for _, i := range set {
		b.Set(i)
	}

	for _, probe := range []int{0, 1, 64, 500, 1001, 1024} {
		want := 0
		for _, i := range set {
			if i < probe {
				want++
			}
		}
		if got := b.Index(probe); got != want {
			t.Fatalf("Index(%d) = %d, want %d", probe, got, want)
		}
	}
}

func TestIndexAfterMutationInvalidatesShadow(t *testing.T) {
	b := New(256)
	b.Set(10)
	b.Set(20)

	if got := b.Index(15); got != 1 {
		t.Fatalf("Index(15) = %d, want 1", got)
	}

	b.Set(12)
	if got := b.Index(15); got != 2 {
		t.Fatalf("Index(15) after mutation = %d, want 2", got)
	}
}

func TestEachVisitsInAscendingOrder(t *testing.T) {
	b := New(256)
	want := []int{3, 70, 71, 200}
	for _, i := range want {
		b.Set(i)
	}

	var got []int
	b.Each(func(i int) { got = append(got, i) })

	if len(got) != len(want) {
		t.Fatalf("Each visited %d bits, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Each()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	b := New(128)
	b.Set(5)

	c := b.Clone()
	c.Set(6)

	if b.IsSet(6) {
		t.Fatalf("mutating clone affected original")
	}
	if !c.IsSet(5) || !c.IsSet(6) {
		t.Fatalf("clone missing expected bits")
	}
}
