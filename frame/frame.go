package frame

import "kmem/memory"

// Frame is the exclusive handle of one physical page. Only FrameAllocator
// creates them and Release gives the page back exactly once; there is no
// finalizer, an unreleased frame simply stays allocated.
type Frame struct {
	allocator *FrameAllocator
	ppn       memory.PhysicalPageNumber
	released  bool
}

func (f *Frame) PageNumber() memory.PhysicalPageNumber {
	return f.ppn
}

func (f *Frame) Address() memory.PhysicalAddress {
	return f.ppn.Address()
}

// Bytes is a view of the page, valid until Release.
func (f *Frame) Bytes() []byte {
	return f.allocator.memory.Page(f.ppn)
}

func (f *Frame) Zero() {
	f.allocator.memory.Zero(f.ppn)
}

// Release returns the page to its allocator. Releasing twice panics.
func (f *Frame) Release() {
	f.allocator.dealloc(f)
}

func (f *Frame) String() string {
	return "Frame(" + f.ppn.String() + ")"
}
