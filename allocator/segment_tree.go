package allocator

const (
	unitTag  = 0 // this node's own unit is taken
	leftTag  = 1 // every unit in the left subtree is taken
	rightTag = 2 // every unit in the right subtree is taken
)

type segTreeNode struct {
	tags [3]bool
}

func (n *segTreeNode) full() bool {
	return n.tags[unitTag] && n.tags[leftTag] && n.tags[rightTag]
}

/*
SegmentTreeAllocator is an implicit complete binary tree over the units
[0, M), M = 2^levels - 1 the smallest such value >= size+1. Node p covers
[l, h) and owns unit (l+h)/2, its children sit at 2p+1 and 2p+2.

Units >= size are marked taken at Init so they are never handed out.
Alloc walks pre-order (own unit, then left, then right) and stops at the
first free unit; both Alloc and Dealloc are O(log size).
*/
type SegmentTreeAllocator struct {
	heap     []segTreeNode
	realSize int
}

func treeNodes(size int) int {
	m := 1
	for m < size+1 {
		m = m*2 + 1
	}
	return m
}

func (st *SegmentTreeAllocator) Init(capacity int) {
	m := treeNodes(capacity)
	if cap(st.heap) >= m {
		st.heap = st.heap[:m]
		clear(st.heap)
	} else {
		st.heap = make([]segTreeNode, m)
	}
	st.realSize = capacity
	st.build(0, 0, m)
}

func (st *SegmentTreeAllocator) build(p, l, h int) {
	node := &st.heap[p]
	if (l+h)/2 >= st.realSize {
		node.tags[unitTag] = true
	}
	left, right := 2*p+1, 2*p+2
	if left >= len(st.heap) {
		node.tags[leftTag] = true
		node.tags[rightTag] = true
		return
	}
	mid := (l + h) / 2
	st.build(left, l, mid)
	st.build(right, mid+1, h)
	node.tags[leftTag] = st.heap[left].full()
	node.tags[rightTag] = st.heap[right].full()
}

func (st *SegmentTreeAllocator) Alloc() (int, bool) {
	p, l, h := 0, 0, len(st.heap)
	for p < len(st.heap) && st.heap[p].tags[unitTag] {
		if !st.heap[p].tags[leftTag] {
			p = 2*p + 1
			h = (l + h) / 2
		} else {
			p = 2*p + 2
			l = (l+h)/2 + 1
		}
	}
	if p >= len(st.heap) {
		return 0, false
	}

	st.heap[p].tags[unitTag] = true
	for child := p; child > 0 && st.heap[child].full(); {
		parent := (child - 1) / 2
		if child == 2*parent+1 {
			st.heap[parent].tags[leftTag] = true
		} else {
			st.heap[parent].tags[rightTag] = true
		}
		child = parent
	}
	return (l + h) / 2, true
}

func (st *SegmentTreeAllocator) Dealloc(index int) {
	if index < 0 || index >= st.realSize {
		return
	}

	p, l, h := 0, 0, len(st.heap)
	for unit := (l + h) / 2; unit != index; unit = (l + h) / 2 {
		// something below is about to become free
		if index < unit {
			st.heap[p].tags[leftTag] = false
			p = 2*p + 1
			h = unit
		} else {
			st.heap[p].tags[rightTag] = false
			p = 2*p + 2
			l = unit + 1
		}
	}
	st.heap[p].tags[unitTag] = false
}
