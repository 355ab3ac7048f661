package dom

import "golang.org/x/net/html"

// Node paths address a node as the sequence of child indices from a root,
// counting every child node (elements and text alike). They are how the
// bridge names nodes across the wire without sharing pointers.

// PathTo returns the child-index path from root to n. The second return is
// false when n does not live under root.
func PathTo(root, n *html.Node) ([]int, bool) {
	if root == nil || n == nil {
		return nil, false
	}
	if root == n {
		return []int{}, true
	}

	var path []int
	for cur := n; cur != root; cur = cur.Parent {
		if cur.Parent == nil {
			return nil, false
		}
		idx := 0
		for sib := cur.Parent.FirstChild; sib != nil && sib != cur; sib = sib.NextSibling {
			idx++
		}
		path = append(path, idx)
	}

	// Collected leaf-first; reverse into root-first order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, true
}

// NodeAt resolves a child-index path from root. Nil when the path walks off
// the tree.
func NodeAt(root *html.Node, path []int) *html.Node {
	cur := root
	for _, idx := range path {
		if cur == nil {
			return nil
		}
		child := cur.FirstChild
		for i := 0; i < idx && child != nil; i++ {
			child = child.NextSibling
		}
		if child == nil {
			return nil
		}
		cur = child
	}
	return cur
}
