package txn

import (
	"testing"

	"go.uber.org/zap"

	"github.com/arbordb/arbor/internal/axis"
	"github.com/arbordb/arbor/internal/iostore"
	"github.com/arbordb/arbor/internal/node"
)

func newTestResource(t *testing.T) *Resource {
	t.Helper()
	pipeline, err := iostore.NewPipeline([]string{"none"}, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	storage, err := iostore.Open(t.TempDir(), pipeline, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	opts := DefaultOptions()
	opts.RecordPageCapacity = 16
	return NewResource(storage, opts, zap.NewNop())
}

func rootNode() *node.Node {
	return &node.Node{
		Header: node.Header{NodeKey: DocumentRootKey, ParentKey: node.NoKey, Kind: node.KindJSONDocument},
		Struct: node.Struct{FirstChildKey: node.NoKey, LastChildKey: node.NoKey, LeftSiblingKey: node.NoKey, RightSiblingKey: node.NoKey},
	}
}

func TestWriteTxnCommitThenReadBack(t *testing.T) {
	r := newTestResource(t)

	w, err := r.BeginWrite()
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if err := w.PutNode(rootNode()); err != nil {
		t.Fatalf("PutNode root: %v", err)
	}
	cur := w.Cursor()
	child := &node.Node{Header: node.Header{Kind: node.KindObject}}
	childKey, err := cur.InsertChild(child)
	if err != nil {
		t.Fatalf("InsertChild: %v", err)
	}
	if childKey != 1 {
		t.Fatalf("childKey = %d, want 1", childKey)
	}

	info, err := w.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if info.Revision != 1 {
		t.Fatalf("Revision = %d, want 1", info.Revision)
	}

	rt, err := r.BeginReadOnly(-1)
	if err != nil {
		t.Fatalf("BeginReadOnly: %v", err)
	}
	defer rt.Close()
	if rt.Revision() != 1 {
		t.Fatalf("pinned revision = %d, want 1", rt.Revision())
	}

	rc := rt.Cursor()
	if rc.NodeKey() != DocumentRootKey {
		t.Fatalf("cursor did not start at document root")
	}
	if !rc.MoveToFirstChild() {
		t.Fatalf("MoveToFirstChild failed")
	}
	if rc.NodeKey() != childKey {
		t.Fatalf("NodeKey = %d, want %d", rc.NodeKey(), childKey)
	}
	if rc.NodeKind() != node.KindObject {
		t.Fatalf("NodeKind = %v, want KindObject", rc.NodeKind())
	}
	if !rc.MoveToParent() || rc.NodeKey() != DocumentRootKey {
		t.Fatalf("MoveToParent did not return to document root")
	}
}

func TestReadTxnIsUnaffectedByLaterWrite(t *testing.T) {
	r := newTestResource(t)

	w, err := r.BeginWrite()
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if err := w.PutNode(rootNode()); err != nil {
		t.Fatalf("PutNode root: %v", err)
	}
	if _, err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rt, err := r.BeginReadOnly(-1)
	if err != nil {
		t.Fatalf("BeginReadOnly: %v", err)
	}
	defer rt.Close()

	w2, err := r.BeginWrite()
	if err != nil {
		t.Fatalf("second BeginWrite: %v", err)
	}
	cur := w2.Cursor()
	if _, err := cur.InsertChild(&node.Node{Header: node.Header{Kind: node.KindArray}}); err != nil {
		t.Fatalf("InsertChild: %v", err)
	}
	if _, err := w2.Commit(); err != nil {
		t.Fatalf("second Commit: %v", err)
	}

	// rt was pinned before the second commit; its view must still show
	// zero children on the root.
	rc := rt.Cursor()
	if rc.MoveToFirstChild() {
		t.Fatalf("pinned reader observed a child committed after it began")
	}
	if r.LatestRevision() != 2 {
		t.Fatalf("LatestRevision = %d, want 2", r.LatestRevision())
	}
}

func TestWriteTxnAbortDiscardsRedoLog(t *testing.T) {
	r := newTestResource(t)

	w, err := r.BeginWrite()
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if err := w.PutNode(rootNode()); err != nil {
		t.Fatalf("PutNode: %v", err)
	}
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if r.LatestRevision() != 0 {
		t.Fatalf("LatestRevision = %d, want 0 after abort", r.LatestRevision())
	}

	// The write lock must have been released by Abort.
	w2, err := r.BeginWrite()
	if err != nil {
		t.Fatalf("BeginWrite after abort: %v", err)
	}
	if err := w2.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
}

func TestDeleteNodeClearsSlot(t *testing.T) {
	r := newTestResource(t)

	w, err := r.BeginWrite()
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if err := w.PutNode(rootNode()); err != nil {
		t.Fatalf("PutNode root: %v", err)
	}
	cur := w.Cursor()
	childKey, err := cur.InsertChild(&node.Node{Header: node.Header{Kind: node.KindText}})
	if err != nil {
		t.Fatalf("InsertChild: %v", err)
	}
	if err := w.DeleteNode(childKey); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	if _, err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rt, err := r.BeginReadOnly(-1)
	if err != nil {
		t.Fatalf("BeginReadOnly: %v", err)
	}
	defer rt.Close()
	n, err := rt.nodeAt(childKey)
	if err != nil {
		t.Fatalf("nodeAt: %v", err)
	}
	if n != nil {
		t.Fatalf("deleted node slot still returns a node: %+v", n)
	}
}

// TestJSONDescendantAxisOverCommittedTree reproduces spec.md's end-to-end
// scenario 2: insert {"a":1,"b":true,"c":null,"d":"x"} as the document's
// root value, commit, then walk the committed revision with
// JSONDescendantAxis and check the emitted node kinds, driving the axis
// against the real engine (ReadTxn/ReadCursor) rather than a fixture.
func TestJSONDescendantAxisOverCommittedTree(t *testing.T) {
	r := newTestResource(t)

	w, err := r.BeginWrite()
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if err := w.PutNode(rootNode()); err != nil {
		t.Fatalf("PutNode root: %v", err)
	}
	cur := w.Cursor()

	// InsertChild moves cur onto the freshly inserted node, so walking
	// back to the object node after each key/value pair is
	// MoveToParent() twice (value -> key -> object).
	if _, err := cur.InsertChild(&node.Node{Header: node.Header{Kind: node.KindObject}}); err != nil {
		t.Fatalf("InsertChild object: %v", err)
	}

	entries := []struct {
		name      string
		valueKind node.Kind
	}{
		{"a", node.KindNumberValue},
		{"b", node.KindBooleanValue},
		{"c", node.KindNullValue},
		{"d", node.KindStringValue},
	}
	for i, e := range entries {
		if _, err := cur.InsertChild(&node.Node{
			Header: node.Header{Kind: node.KindObjectKey},
			Name:   node.Name{LocalNameKey: int32(i)},
		}); err != nil {
			t.Fatalf("InsertChild key %q: %v", e.name, err)
		}
		if _, err := cur.InsertChild(&node.Node{Header: node.Header{Kind: node.ObjectValueVariant(e.valueKind)}}); err != nil {
			t.Fatalf("InsertChild value for %q: %v", e.name, err)
		}
		if !cur.MoveToParent() || !cur.MoveToParent() {
			t.Fatalf("failed to walk back to object node after %q", e.name)
		}
	}

	if _, err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rt, err := r.BeginReadOnly(-1)
	if err != nil {
		t.Fatalf("BeginReadOnly: %v", err)
	}
	defer rt.Close()

	rc := rt.Cursor()
	walk := axis.NewJSONDescendantAxis(rc, false)

	want := []node.Kind{
		node.KindObject,
		node.KindObjectKey, node.KindObjectNumberValue,
		node.KindObjectKey, node.KindObjectBooleanValue,
		node.KindObjectKey, node.KindObjectNullValue,
		node.KindObjectKey, node.KindObjectStringValue,
	}
	var got []node.Kind
	for walk.HasNext() {
		key, ok := walk.Next()
		if !ok {
			break
		}
		n, err := rt.Node(key)
		if err != nil || n == nil {
			t.Fatalf("Node(%d): %v", key, err)
		}
		got = append(got, n.Kind)
	}

	if len(got) != len(want) {
		t.Fatalf("emitted %d kinds, want %d: got=%v want=%v", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kind[%d] = %v, want %v (full: got=%v want=%v)", i, got[i], want[i], got, want)
		}
	}
}
