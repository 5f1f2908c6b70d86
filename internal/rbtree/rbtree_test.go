package rbtree

import "testing"

func TestIndexInsertsAndMergesReferences(t *testing.T) {
	tr := New(PathKey)
	tr.Index(int64(10), 1)
	tr.Index(int64(10), 2)

	refs, ok := tr.Get(int64(10), Equal)
	if !ok {
		t.Fatalf("expected key 10 to be present")
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 merged references, got %d", len(refs))
	}
	if _, ok := refs[1]; !ok {
		t.Fatalf("missing nodeKey 1 in references")
	}
	if _, ok := refs[2]; !ok {
		t.Fatalf("missing nodeKey 2 in references")
	}
}

func TestRemoveClearsOnlyTheGivenReference(t *testing.T) {
	tr := New(PathKey)
	tr.Index(int64(5), 100)
	tr.Index(int64(5), 200)

	if ok := tr.Remove(int64(5), 100); !ok {
		t.Fatalf("expected removal of nodeKey 100 to succeed")
	}
	refs, _ := tr.Get(int64(5), Equal)
	if _, ok := refs[100]; ok {
		t.Fatalf("nodeKey 100 should have been removed")
	}
	if _, ok := refs[200]; !ok {
		t.Fatalf("nodeKey 200 should remain")
	}
	if tr.Remove(int64(5), 999) {
		t.Fatalf("removing an absent nodeKey should report false")
	}
	if tr.Remove(int64(404), 1) {
		t.Fatalf("removing from a missing key should report false")
	}
}

func TestGetModes(t *testing.T) {
	tr := New(PathKey)
	for _, k := range []int64{10, 20, 30, 40, 50} {
		tr.Index(k, k)
	}

	if _, ok := tr.Get(int64(25), Equal); ok {
		t.Fatalf("Equal should miss on an absent key")
	}
	if refs, ok := tr.Get(int64(25), Greater); !ok || !hasOnly(refs, 30) {
		t.Fatalf("Greater(25) should land on 30, got %v ok=%v", refs, ok)
	}
	if refs, ok := tr.Get(int64(25), GreaterOrEqual); !ok || !hasOnly(refs, 30) {
		t.Fatalf("GreaterOrEqual(25) should land on 30")
	}
	if refs, ok := tr.Get(int64(30), GreaterOrEqual); !ok || !hasOnly(refs, 30) {
		t.Fatalf("GreaterOrEqual(30) should land on 30 itself")
	}
	if refs, ok := tr.Get(int64(25), Less); !ok || !hasOnly(refs, 20) {
		t.Fatalf("Less(25) should land on 20")
	}
	if refs, ok := tr.Get(int64(30), LessOrEqual); !ok || !hasOnly(refs, 30) {
		t.Fatalf("LessOrEqual(30) should land on 30 itself")
	}
	if _, ok := tr.Get(int64(5), Less); ok {
		t.Fatalf("Less(5) should miss, nothing is smaller")
	}
}

func hasOnly(refs NodeReferences, key int64) bool {
	if len(refs) != 1 {
		return false
	}
	_, ok := refs[key]
	return ok
}

func TestTreeStaysBalancedUnderSequentialInsert(t *testing.T) {
	tr := New(PathKey)
	for i := int64(0); i < 200; i++ {
		tr.Index(i, i)
	}
	if err := Validate(tr); err != nil {
		t.Fatalf("red-black invariants violated after sequential insert: %v", err)
	}
	if tr.Size() != 200 {
		t.Fatalf("Size() = %d, want 200", tr.Size())
	}
}

func TestTreeStaysBalancedUnderReverseInsert(t *testing.T) {
	tr := New(PathKey)
	for i := int64(199); i >= 0; i-- {
		tr.Index(i, i)
	}
	if err := Validate(tr); err != nil {
		t.Fatalf("red-black invariants violated after reverse insert: %v", err)
	}
}

func TestInOrderYieldsSortedKeys(t *testing.T) {
	tr := New(PathKey)
	for _, k := range []int64{50, 10, 40, 20, 30} {
		tr.Index(k, k)
	}
	var got []int64
	tr.InOrder(func(n *Node) { got = append(got, n.Key.(int64)) })
	want := []int64{10, 20, 30, 40, 50}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestIteratorVisitsEveryNodeExactlyOnce(t *testing.T) {
	tr := New(PathKey)
	for _, k := range []int64{50, 10, 40, 20, 30, 5, 15} {
		tr.Index(k, k)
	}
	seen := make(map[int64]bool)
	it := NewIterator(tr.Root())
	for it.HasNext() {
		n, ok := it.Next()
		if !ok {
			t.Fatalf("HasNext true but Next reported false")
		}
		key := n.Key.(int64)
		if seen[key] {
			t.Fatalf("key %d visited twice", key)
		}
		seen[key] = true
	}
	if len(seen) != 7 {
		t.Fatalf("visited %d nodes, want 7", len(seen))
	}
}

func TestNameComparatorOrdersByURIPrefixLocalName(t *testing.T) {
	a := NameKey{URIKey: 1, PrefixKey: 0, LocalNameKey: 5}
	b := NameKey{URIKey: 1, PrefixKey: 0, LocalNameKey: 6}
	if NameComparator(a, b) >= 0 {
		t.Fatalf("expected a < b by localNameKey")
	}
	c := NameKey{URIKey: 2, PrefixKey: 0, LocalNameKey: 0}
	if NameComparator(a, c) >= 0 {
		t.Fatalf("expected a < c by uriKey")
	}
}

func TestCASComparatorOrdersByPathThenType(t *testing.T) {
	a := CASKey{PathNodeKey: 1, Type: 0, Atomic: []byte("a")}
	b := CASKey{PathNodeKey: 1, Type: 0, Atomic: []byte("b")}
	if CASComparator(a, b) >= 0 {
		t.Fatalf("expected a < b by atomic bytes")
	}
	c := CASKey{PathNodeKey: 2, Type: 0, Atomic: []byte("a")}
	if CASComparator(a, c) >= 0 {
		t.Fatalf("expected a < c by pathNodeKey even though atomic sorts smaller")
	}
}
