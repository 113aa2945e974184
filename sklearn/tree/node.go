package tree

// Node is one node of a fitted decision tree.
//
// A node is either a leaf (Leaf == true, Value and ClassCounts set) or a
// decision node with both children non-nil. Samples with
// x[Feature] <= Threshold go Left, all others go Right.
type Node struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      *Node
	Right     *Node

	// Value is the majority label of the training samples that reached the leaf.
	Value float64
	// ClassCounts holds per-class sample counts, indexed like Classes().
	ClassCounts []int

	// Samples is the number of training samples that reached the node.
	Samples int
	// Impurity is the criterion value of the node's training samples.
	Impurity float64
}

// leafFor walks x down to its leaf.
func (n *Node) leafFor(x []float64) *Node {
	node := n
	for !node.Leaf {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

func (n *Node) clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.ClassCounts = append([]int(nil), n.ClassCounts...)
	c.Left = n.Left.clone()
	c.Right = n.Right.clone()
	return &c
}

// depth returns the number of edges on the longest root-to-leaf path.
func (n *Node) depth() int {
	if n == nil || n.Leaf {
		return 0
	}
	return 1 + max(n.Left.depth(), n.Right.depth())
}

func (n *Node) leaves() int {
	if n == nil {
		return 0
	}
	if n.Leaf {
		return 1
	}
	return n.Left.leaves() + n.Right.leaves()
}
