package allocator

import (
	"fmt"
	"unsafe"
)

// Allocator hands out one indivisible unit at a time out of [0, capacity).
//
// Implementations must not allocate after Init: the frame allocator runs
// them before the kernel has a heap.
type Allocator interface {
	// (re)initialise over [0, capacity)
	Init(capacity int)
	// index of a free unit, false when everything is taken
	Alloc() (int, bool)
	// return a unit. Indices outside of the configured capacity are ignored.
	Dealloc(index int)
}

// VectorAllocator hands out runs of units with an alignment constraint.
type VectorAllocator interface {
	Alloc(size, align int) (int, bool)
	// start and size must describe a run previously returned by Alloc
	Dealloc(start, size, align int)
}

type Strategy int

const (
	StackedStrategy Strategy = iota
	SegmentTreeStrategy
	BitmapStrategy
)

func (s Strategy) String() string {
	switch s {
	case StackedStrategy:
		return "stacked"
	case SegmentTreeStrategy:
		return "segment-tree"
	case BitmapStrategy:
		return "bitmap"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// New returns an uninitialised unit allocator, call Init before use.
func New(strategy Strategy) Allocator {
	switch strategy {
	case StackedStrategy:
		return &StackedAllocator{}
	case SegmentTreeStrategy:
		return &SegmentTreeAllocator{}
	case BitmapStrategy:
		return &BitmapAllocator{}
	}
	panic(fmt.Sprintf("unknown allocator strategy %d", int(strategy)))
}

// MetadataSize is how many bytes of bookkeeping an allocator of the given
// strategy needs to manage capacity units.
func MetadataSize(strategy Strategy, capacity int) int {
	switch strategy {
	case StackedStrategy:
		return int(unsafe.Sizeof(StackedAllocator{}))
	case SegmentTreeStrategy:
		return int(unsafe.Sizeof(SegmentTreeAllocator{})) + treeNodes(capacity)*int(unsafe.Sizeof(segTreeNode{}))
	case BitmapStrategy:
		return int(unsafe.Sizeof(BitmapAllocator{})) + bitmapBytes(capacity)
	}
	panic(fmt.Sprintf("unknown allocator strategy %d", int(strategy)))
}

type VectorStrategy int

const (
	BuddyStrategy VectorStrategy = iota
	DynBuddyStrategy
	BitmapVectorStrategy
)

func (s VectorStrategy) String() string {
	switch s {
	case BuddyStrategy:
		return "buddy"
	case DynBuddyStrategy:
		return "dyn-buddy"
	case BitmapVectorStrategy:
		return "bitmap-vector"
	}
	return fmt.Sprintf("VectorStrategy(%d)", int(s))
}

func NewVector(strategy VectorStrategy, capacity int) VectorAllocator {
	switch strategy {
	case BuddyStrategy:
		return NewBuddyAllocator(capacity)
	case DynBuddyStrategy:
		return NewDynBuddyAllocator(capacity)
	case BitmapVectorStrategy:
		return NewBitmapVectorAllocator(capacity)
	}
	panic(fmt.Sprintf("unknown vector allocator strategy %d", int(strategy)))
}
