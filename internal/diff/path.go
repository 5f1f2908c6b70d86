package diff

import "strconv"

// PathTree is the subset of a node tree the path resolver needs:
// enough navigation to walk a node's ancestor chain and enough sibling
// navigation to count array positions. Step returns the raw path
// summary label for a node — a name for named steps, the literal
// "[]" for an unresolved array element position (§4.12 "rewrites
// unresolved array positions '[]' into concrete indices").
type PathTree interface {
	Node(key int64) (NodeView, bool)
	Step(key int64) string
}

// ResolvePath walks from the root down to key, building a slash-joined
// path string, rewriting every "[]" step into a concrete 0-based index
// computed by counting left-siblings under the same parent that share
// the "[]" label (§4.12's exact rule: "counting left-siblings at the
// current cursor").
func ResolvePath(tree PathTree, key int64) string {
	chain := ancestorChain(tree, key)

	segments := make([]string, 0, len(chain))
	for _, k := range chain {
		label := tree.Step(k)
		if label == "[]" {
			idx := arrayIndex(tree, k)
			label = "[" + strconv.Itoa(idx) + "]"
		}
		segments = append(segments, label)
	}

	path := ""
	for _, s := range segments {
		if s == "" {
			continue
		}
		if len(s) > 0 && s[0] == '[' {
			path += s
		} else {
			path += "/" + s
		}
	}
	if path == "" {
		return "/"
	}
	return path
}

// ancestorChain returns [root, ..., key] by walking ParentKey and
// reversing.
func ancestorChain(tree PathTree, key int64) []int64 {
	var chain []int64
	for k := key; k != noKey; {
		chain = append(chain, k)
		n, ok := tree.Node(k)
		if !ok {
			break
		}
		k = n.ParentKey
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// arrayIndex counts how many of key's left-siblings under the same
// parent also carry the "[]" label, which is exactly key's position
// within that array (positions are assigned to array elements only, so
// counting left-siblings with the same label skips any interleaved
// non-array structural siblings, though in practice a JSON array's
// children are homogeneous).
func arrayIndex(tree PathTree, key int64) int {
	n, ok := tree.Node(key)
	if !ok {
		return 0
	}
	parent, ok := tree.Node(n.ParentKey)
	if !ok {
		return 0
	}

	idx := 0
	for sib := parent.FirstChild; sib != noKey && sib != key; {
		if tree.Step(sib) == "[]" {
			idx++
		}
		sn, ok := tree.Node(sib)
		if !ok {
			break
		}
		sib = sn.RightSibling
	}
	return idx
}
