package paging

import (
	"fmt"
	"sync"

	"github.com/phuslu/log"
	"github.com/pkg/errors"

	"kmem/frame"
	"kmem/memory"
)

// AllocPageRange looks for room from here upwards.
const userRangeStart = memory.VirtualAddress(0x100_0000)

/*
MemorySet is one address space: the page table, the segments realised in
it and the frames those segments got.

Frames of Framed segments are owned by the set, frames of Lazy segments by
its swapper. Every exported method takes the set's lock for its whole
duration.
*/
type MemorySet struct {
	mutex     sync.Mutex
	logger    log.Logger
	allocator *frame.FrameAllocator
	mapping   *Mapping
	segments  []Segment
	allocated []Pair
	swapper   Swapper
}

// NewMemorySet returns an empty address space. swapper may be nil when no
// Lazy segment will ever be added.
func NewMemorySet(logger log.Logger, allocator *frame.FrameAllocator, swapper Swapper) (*MemorySet, error) {
	mapping, err := NewMapping(logger, allocator)
	if err != nil {
		return nil, err
	}
	return &MemorySet{
		logger:    logger,
		allocator: allocator,
		mapping:   mapping,
		swapper:   swapper,
	}, nil
}

// KernelSegments is the reflexive map of the kernel: its image section by
// section, then the rest of memory.
func KernelSegments(layout memory.Layout) []Segment {
	k := layout.Kernel
	return []Segment{
		{MapType: Linear, Range: memory.NewRange(k.TextStart, k.RodataStart), Flags: Readable | Executable},
		{MapType: Linear, Range: memory.NewRange(k.RodataStart, k.DataStart), Flags: Readable},
		{MapType: Linear, Range: memory.NewRange(k.DataStart, k.BssStart), Flags: Readable | Writable},
		{MapType: Linear, Range: memory.NewRange(k.BssStart, k.KernelEnd), Flags: Readable | Writable},
		{MapType: Linear, Range: memory.NewRange(k.KernelEnd, memory.VirtualAddress(layout.MemoryEnd)), Flags: Readable | Writable},
	}
}

func NewKernelMemorySet(logger log.Logger, allocator *frame.FrameAllocator, layout memory.Layout) (*MemorySet, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	ms, err := NewMemorySet(logger, allocator, nil)
	if err != nil {
		return nil, err
	}
	for _, segment := range KernelSegments(layout) {
		if err := ms.AddSegment(segment, nil); err != nil {
			ms.Release()
			return nil, errors.Wrap(err, "building the kernel memory set")
		}
	}
	logger.Debug().Msgf("kernel memory set ready, %d page tables", ms.mapping.PageTables())
	return ms, nil
}

func (ms *MemorySet) overlaps(pages memory.Range[memory.VirtualPageNumber]) bool {
	for _, segment := range ms.segments {
		if segment.PageRange().Overlaps(pages) {
			return true
		}
	}
	return false
}

// OverlapWith reports whether any segment shares a page with pages.
func (ms *MemorySet) OverlapWith(pages memory.Range[memory.VirtualPageNumber]) bool {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return ms.overlaps(pages)
}

// AddSegment maps segment and copies data to its start. A segment
// overlapping one already present panics.
func (ms *MemorySet) AddSegment(segment Segment, data []byte) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return ms.addSegment(segment, data)
}

func (ms *MemorySet) addSegment(segment Segment, data []byte) error {
	if ms.overlaps(segment.PageRange()) {
		panic(fmt.Sprintf("segment %s overlaps an existing segment", segment))
	}
	if segment.MapType == Lazy && ms.swapper == nil {
		return errors.Wrapf(ErrInvalidSegment, "lazy segment %s in a memory set without swapper", segment)
	}
	pairs, err := ms.mapping.Map(segment, data)
	if err != nil {
		return err
	}
	ms.allocated = append(ms.allocated, pairs...)
	ms.segments = append(ms.segments, segment)
	return nil
}

// RemoveSegment unmaps segment and releases the frames that belonged to
// it. Removing a segment that was never added panics.
func (ms *MemorySet) RemoveSegment(segment Segment) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	at := -1
	for i, s := range ms.segments {
		if s == segment {
			at = i
			break
		}
	}
	if at < 0 {
		panic(fmt.Sprintf("removing segment %s that was never added", segment))
	}
	ms.segments = append(ms.segments[:at], ms.segments[at+1:]...)
	ms.mapping.Unmap(segment)

	pages := segment.PageRange()
	kept := ms.allocated[:0]
	released := 0
	for _, pair := range ms.allocated {
		if pages.Contains(pair.Page) {
			pair.Frame.Release()
			released++
		} else {
			kept = append(kept, pair)
		}
	}
	clear(ms.allocated[len(kept):])
	ms.allocated = kept

	if segment.MapType == Lazy {
		ms.swapper.Retain(func(vpn memory.VirtualPageNumber) bool {
			return !pages.Contains(vpn)
		})
	}
	ms.logger.Debug().Msgf("removed segment %s, released %d frames", segment, released)
}

// AllocPageRange finds the first free virtual range of size bytes above
// 0x1000000, backs it with a Framed segment and returns it.
func (ms *MemorySet) AllocPageRange(size uint64, flags Flags) (memory.Range[memory.VirtualAddress], error) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	if size == 0 {
		return memory.Range[memory.VirtualAddress]{}, errors.Wrap(ErrInvalidSegment, "empty range")
	}
	rounded := (size + memory.PageSize - 1) / memory.PageSize * memory.PageSize
	start := userRangeStart
	for ms.overlaps(memory.PageRange(memory.NewRange(start, start.Add(rounded)))) {
		start = start.Add(rounded)
	}

	segment := Segment{MapType: Framed, Range: memory.NewRange(start, start.Add(rounded)), Flags: flags}
	if err := ms.addSegment(segment, nil); err != nil {
		return memory.Range[memory.VirtualAddress]{}, err
	}
	return memory.NewRange(start, start.Add(size)), nil
}

/*
HandlePageFault backs the page holding va if it belongs to a Lazy segment.

When the swapper is at its quota a victim is popped first: its entry is
cleared and its frame released. There is no backing store, so the victim's
contents are lost and it faults in zeroed next time.
*/
func (ms *MemorySet) HandlePageFault(va memory.VirtualAddress) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	vpn := va.Floor()
	var owner *Segment
	for i := range ms.segments {
		if ms.segments[i].PageRange().Contains(vpn) {
			owner = &ms.segments[i]
			break
		}
	}
	if owner == nil {
		return errors.Wrapf(ErrUnhandledFault, "%s is outside of every segment", va)
	}
	if owner.MapType != Lazy {
		return errors.Wrapf(ErrUnhandledFault, "%s belongs to %s segment %s", va, owner.MapType, owner.Range)
	}

	ref, err := ms.mapping.FindEntry(vpn)
	if err != nil {
		ms.logger.Error().Err(err).Msgf("page fault at %s", va)
		return err
	}
	if ref.Load().IsValid() {
		// another access already backed it
		return nil
	}

	if ms.swapper.Full() {
		victim, ok := ms.swapper.Pop()
		if !ok {
			return errors.Wrapf(ErrSwapQuotaIsZero, "page fault at %s", va)
		}
		ms.mapping.UnmapOne(victim.Page)
		victim.Frame.Release()
		ms.logger.Debug().Msgf("evicted %s for %s", victim.Page, vpn)
	}

	f, err := ms.allocator.AllocZeroed()
	if err != nil {
		ms.logger.Error().Err(err).Msgf("page fault at %s", va)
		return errors.Wrapf(err, "page fault at %s", va)
	}
	ref.Store(NewPageTableEntry(f.PageNumber(), owner.Flags|Valid))
	ms.swapper.Push(SwapEntry{Page: vpn, Frame: f, Entry: ref})
	return nil
}

// Translate resolves va without touching the accessed and dirty bits.
func (ms *MemorySet) Translate(va memory.VirtualAddress) (memory.PhysicalAddress, error) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return ms.mapping.Translate(va)
}

// Access performs a simulated load or store, see Mapping.Access.
func (ms *MemorySet) Access(va memory.VirtualAddress, write bool) (memory.PhysicalAddress, error) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return ms.mapping.Access(va, write)
}

// Segments returns a copy of the segments in the order they were added.
func (ms *MemorySet) Segments() []Segment {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return append([]Segment(nil), ms.segments...)
}

// Frames is the number of frames owned through Framed segments.
func (ms *MemorySet) Frames() int {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return len(ms.allocated)
}

func (ms *MemorySet) Swapper() Swapper {
	return ms.swapper
}

func (ms *MemorySet) Token() uint64 {
	return ms.mapping.Token()
}

func (ms *MemorySet) Activate() uint64 {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return ms.mapping.Activate()
}

// Release gives back every frame and page table. The set is empty and
// unusable afterwards.
func (ms *MemorySet) Release() {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	for _, pair := range ms.allocated {
		pair.Frame.Release()
	}
	ms.allocated = nil
	if ms.swapper != nil {
		ms.swapper.Retain(func(memory.VirtualPageNumber) bool { return false })
	}
	ms.segments = nil
	ms.mapping.Release()
}
