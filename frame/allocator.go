package frame

import (
	"sync"

	"github.com/phuslu/log"
	"github.com/pkg/errors"

	"kmem/allocator"
	"kmem/memory"
)

var (
	ErrNoFrame       = errors.New("no free frame")
	ErrNoFrameMemory = errors.New("no memory left for frames after the kernel image")
)

type Options struct {
	Layout   memory.Layout
	Strategy allocator.Strategy
}

/*
FrameAllocator hands out the physical pages between the end of the kernel
image and the end of memory.

	KernelEnd ┌───────────────────┐
	          | metadata          | bookkeeping of the unit allocator
	start     ├───────────────────┤
	          | frames            | unit index i is page start+i
	end       └───────────────────┘ MemoryEnd

There is one per kernel. Every Alloc / release holds the mutex for the whole
call.
*/
type FrameAllocator struct {
	mutex     sync.Mutex
	logger    log.Logger
	memory    *memory.PhysicalMemory
	allocator allocator.Allocator
	strategy  allocator.Strategy
	metadata  memory.Range[memory.PhysicalPageNumber]
	frames    memory.Range[memory.PhysicalPageNumber]
	allocated int
}

func NewFrameAllocator(logger log.Logger, mem *memory.PhysicalMemory, options Options) (*FrameAllocator, error) {
	if err := options.Layout.Validate(); err != nil {
		logger.Error().Err(err).Msg("refusing to build a frame allocator")
		return nil, err
	}

	first := options.Layout.Kernel.KernelEnd.Identity().Ceil()
	end := options.Layout.MemoryEnd.Floor()
	if end <= first {
		return nil, errors.Wrapf(ErrNoFrameMemory, "kernel ends at %s", first)
	}
	metadataPages := uint64(allocator.MetadataSize(options.Strategy, int(end.Diff(first))))/memory.PageSize + 1
	start := first.Add(metadataPages)
	if end <= start {
		return nil, errors.Wrapf(ErrNoFrameMemory, "%d metadata pages from %s do not fit", metadataPages, first)
	}

	unit := allocator.New(options.Strategy)
	unit.Init(int(end.Diff(start)))

	fa := &FrameAllocator{
		logger:    logger,
		memory:    mem,
		allocator: unit,
		strategy:  options.Strategy,
		metadata:  memory.NewRange(first, start),
		frames:    memory.NewRange(start, end),
	}
	logger.Debug().Msgf("frame allocator (%s) metadata %s frames %s", options.Strategy, fa.metadata, fa.frames)
	return fa, nil
}

// Alloc returns a fresh frame. Its contents are whatever the previous owner
// left there, use Frame.Zero when that matters.
func (fa *FrameAllocator) Alloc() (*Frame, error) {
	fa.mutex.Lock()
	defer fa.mutex.Unlock()

	index, ok := fa.allocator.Alloc()
	if !ok {
		return nil, errors.Wrapf(ErrNoFrame, "all %d frames are in use", fa.frames.Len())
	}
	fa.allocated++
	return &Frame{
		allocator: fa,
		ppn:       fa.frames.Start.Add(uint64(index)),
	}, nil
}

// AllocZeroed is Alloc followed by Frame.Zero.
func (fa *FrameAllocator) AllocZeroed() (*Frame, error) {
	frame, err := fa.Alloc()
	if err != nil {
		return nil, err
	}
	frame.Zero()
	return frame, nil
}

func (fa *FrameAllocator) dealloc(f *Frame) {
	fa.mutex.Lock()
	defer fa.mutex.Unlock()

	if f.released {
		panic("frame " + f.ppn.String() + " released twice")
	}
	f.released = true
	fa.allocator.Dealloc(int(f.ppn.Diff(fa.frames.Start)))
	fa.allocated--
}

func (fa *FrameAllocator) Allocated() int {
	fa.mutex.Lock()
	defer fa.mutex.Unlock()
	return fa.allocated
}

// Free is the number of frames that can still be handed out.
func (fa *FrameAllocator) Free() int {
	fa.mutex.Lock()
	defer fa.mutex.Unlock()
	return int(fa.frames.Len()) - fa.allocated
}

func (fa *FrameAllocator) Capacity() int {
	return int(fa.frames.Len())
}

// Range is the page range frames are taken from.
func (fa *FrameAllocator) Range() memory.Range[memory.PhysicalPageNumber] {
	return fa.frames
}

// MetadataRange is where the unit allocator's bookkeeping lives, right after
// the kernel image.
func (fa *FrameAllocator) MetadataRange() memory.Range[memory.PhysicalPageNumber] {
	return fa.metadata
}

func (fa *FrameAllocator) Strategy() allocator.Strategy {
	return fa.strategy
}

func (fa *FrameAllocator) Memory() *memory.PhysicalMemory {
	return fa.memory
}
