package symbols

// node is one entry in a module's address-keyed AVL tree. Nodes are
// carved out of the module's arena (see newNode) and never individually
// freed; the whole tree is discarded when its module is unloaded.
type node struct {
	sym         Symbol
	left, right *node
	height      int8
}

func height(n *node) int8 {
	if n == nil {
		return 0
	}
	return n.height
}

func balanceFactor(n *node) int8 {
	if n == nil {
		return 0
	}
	return height(n.left) - height(n.right)
}

func updateHeight(n *node) {
	n.height = 1 + max(height(n.left), height(n.right))
}

// rotateRight performs a single right rotation, used when the left
// subtree is too heavy.
func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right

	x.right = y
	y.left = t2

	updateHeight(y)
	updateHeight(x)
	return x
}

// rotateLeft performs a single left rotation, used when the right
// subtree is too heavy.
func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left

	y.left = x
	x.right = t2

	updateHeight(x)
	updateHeight(y)
	return y
}

// rebalance restores the AVL discipline at n: after insertion, for every
// node, the height difference between its children must not exceed 1.
// Single or double rotations are chosen based on the sign of the deeper
// grandchild, matching the classic AVL insertion algorithm.
func rebalance(n *node) *node {
	updateHeight(n)
	bf := balanceFactor(n)

	switch {
	case bf > 1 && balanceFactor(n.left) >= 0:
		return rotateRight(n)
	case bf > 1:
		n.left = rotateLeft(n.left)
		return rotateRight(n)
	case bf < -1 && balanceFactor(n.right) <= 0:
		return rotateLeft(n)
	case bf < -1:
		n.right = rotateRight(n.right)
		return rotateLeft(n)
	}
	return n
}

// insert adds new into the tree rooted at n, keyed by new.sym.Address,
// and returns the new (possibly rebalanced) root. Addresses are assumed
// distinct, guaranteed by the platform's module layout (symbol ranges
// never overlap, see SPEC_FULL.md's Symbol Store section).
func insert(n *node, newNode *node) *node {
	if n == nil {
		return newNode
	}
	switch {
	case newNode.sym.Address < n.sym.Address:
		n.left = insert(n.left, newNode)
	case newNode.sym.Address > n.sym.Address:
		n.right = insert(n.right, newNode)
	default:
		// Re-resolution of the same address: replace in place, no
		// rebalancing required.
		n.sym = newNode.sym
		return n
	}
	return rebalance(n)
}

// floor returns the node with the largest address <= addr, or nil if
// none exists.
func floor(n *node, addr uint64) *node {
	var best *node
	for n != nil {
		switch {
		case n.sym.Address == addr:
			return n
		case addr < n.sym.Address:
			n = n.left
		default:
			best = n
			n = n.right
		}
	}
	return best
}

// inorder appends every node's symbol to dst in increasing address
// order; used by tests asserting the AVL in-order invariant.
func inorder(n *node, dst []Symbol) []Symbol {
	if n == nil {
		return dst
	}
	dst = inorder(n.left, dst)
	dst = append(dst, n.sym)
	dst = inorder(n.right, dst)
	return dst
}
