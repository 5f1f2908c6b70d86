package diff

import "encoding/json"

// entry is one serialized diff record. oldPath/newPath are omitted when
// the corresponding node key is absent (an INSERTED tuple has no old
// side, a DELETED tuple has no new side). There is no third-party JSON
// library anywhere in the retrieval pack to draw from here, so this is
// the one place in the module that falls back to the standard library's
// encoding/json.
type entry struct {
	Diff    string `json:"diff,omitempty"`
	OldPath string `json:"oldPath,omitempty"`
	NewPath string `json:"newPath,omitempty"`
	Depth   int    `json:"depth"`
}

// JSONSerializer turns a diff tuple stream into the JSON document
// consumed by callers outside the core (§6 "JsonDiffSerializer::
// serialize(emitFromDiffAlgorithm: bool) -> String").
type JSONSerializer struct {
	tuples  []Tuple
	oldTree PathTree
	newTree PathTree
}

// NewJSONSerializer wraps a recorded tuple stream plus the two path
// trees needed to resolve each tuple's node keys into paths.
func NewJSONSerializer(tuples []Tuple, oldTree, newTree PathTree) *JSONSerializer {
	return &JSONSerializer{tuples: tuples, oldTree: oldTree, newTree: newTree}
}

// Serialize renders the recorded tuples as a JSON array. When
// emitFromDiffAlgorithm is true, every tuple (including SAME/SAMEHASH
// no-op rows) is included with its classification; when false, only
// tuples representing an actual change are emitted, and the "diff"
// field itself is omitted, yielding a plain list of {oldPath, newPath,
// depth} entries.
func (s *JSONSerializer) Serialize(emitFromDiffAlgorithm bool) (string, error) {
	entries := make([]entry, 0, len(s.tuples))
	for _, t := range s.tuples {
		if !emitFromDiffAlgorithm && (t.Kind == Same || t.Kind == SameHash) {
			continue
		}
		e := entry{Depth: t.Depth}
		if emitFromDiffAlgorithm {
			e.Diff = t.Kind.String()
		}
		if t.OldNodeKey != noKey && s.oldTree != nil {
			e.OldPath = ResolvePath(s.oldTree, t.OldNodeKey)
		}
		if t.NewNodeKey != noKey && s.newTree != nil {
			e.NewPath = ResolvePath(s.newTree, t.NewNodeKey)
		}
		entries = append(entries, e)
	}

	out, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
