package rbtree

import "fmt"

// Validate checks the red-black invariants from §2 "Invariants": root is
// black, no red node has a red child, and every root-to-leaf path has
// equal black-height. Intended for tests, not production call sites.
func Validate(t *Tree) error {
	if t.root == nil {
		return nil
	}
	if t.root.Color != Black {
		return fmt.Errorf("root is not black")
	}
	_, err := blackHeight(t.root)
	return err
}

func blackHeight(n *Node) (int, error) {
	if n == nil {
		return 1, nil
	}
	if isRed(n) {
		if isRed(n.Left) || isRed(n.Right) {
			return 0, fmt.Errorf("red node %v has a red child", n.Key)
		}
	}
	lh, err := blackHeight(n.Left)
	if err != nil {
		return 0, err
	}
	rh, err := blackHeight(n.Right)
	if err != nil {
		return 0, err
	}
	if lh != rh {
		return 0, fmt.Errorf("unequal black-height at node %v: left=%d right=%d", n.Key, lh, rh)
	}
	if n.Color == Black {
		lh++
	}
	return lh, nil
}
