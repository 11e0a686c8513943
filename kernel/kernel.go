package kernel

import (
	"sync"

	"github.com/phuslu/log"
	"github.com/pkg/errors"

	"kmem/allocator"
	"kmem/frame"
	"kmem/memory"
	"kmem/paging"
)

var ErrShutdown = errors.New("kernel is shut down")

type Options struct {
	Layout        memory.Layout
	FrameStrategy allocator.Strategy
	// swapper given to every address space created by NewAddressSpace
	SwapStrategy paging.SwapStrategy
	SwapQuota    int
}

func DefaultOptions() Options {
	return Options{
		Layout:        memory.DefaultLayout(),
		FrameStrategy: allocator.SegmentTreeStrategy,
		SwapStrategy:  paging.ClockStrategy,
		SwapQuota:     16,
	}
}

/*
Kernel owns the memory core once booted

  - physical memory as described by the layout
  - the frame allocator, bootstrapped right after the kernel image
  - the kernel's reflexive memory set, activated before anything else maps

Boot happens once, Shutdown hands every frame back.
*/
type Kernel struct {
	mutex    sync.Mutex
	logger   log.Logger
	options  Options
	memory   *memory.PhysicalMemory
	frames   *frame.FrameAllocator
	space    *paging.MemorySet
	token    uint64
	spaces   []*paging.MemorySet
	shutdown bool
}

func Boot(logger log.Logger, options Options) (*Kernel, error) {
	if err := options.Layout.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid memory layout")
		return nil, err
	}

	mem := memory.NewPhysicalMemory(options.Layout)
	frames, err := frame.NewFrameAllocator(logger, mem, frame.Options{
		Layout:   options.Layout,
		Strategy: options.FrameStrategy,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to create frame allocator")
		return nil, err
	}

	space, err := paging.NewKernelMemorySet(logger, frames, options.Layout)
	if err != nil {
		logger.Error().Err(err).Msg("failed to map the kernel")
		return nil, err
	}
	token := space.Activate()

	logger.Info().Msgf("booted: %d frames free, satp 0x%x", frames.Free(), token)
	return &Kernel{
		logger:  logger,
		options: options,
		memory:  mem,
		frames:  frames,
		space:   space,
		token:   token,
	}, nil
}

// NewAddressSpace creates an empty memory set with its own swapper.
func (k *Kernel) NewAddressSpace() (*paging.MemorySet, error) {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	if k.shutdown {
		return nil, ErrShutdown
	}
	ms, err := paging.NewMemorySet(k.logger, k.frames, paging.NewSwapper(k.options.SwapStrategy, k.options.SwapQuota))
	if err != nil {
		k.logger.Error().Err(err).Msg("failed to create address space")
		return nil, errors.Wrap(err, "creating address space")
	}
	k.spaces = append(k.spaces, ms)
	return ms, nil
}

// DestroyAddressSpace releases ms and everything it owns.
func (k *Kernel) DestroyAddressSpace(ms *paging.MemorySet) {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	for i, space := range k.spaces {
		if space == ms {
			k.spaces = append(k.spaces[:i], k.spaces[i+1:]...)
			ms.Release()
			return
		}
	}
}

func (k *Kernel) Frames() *frame.FrameAllocator {
	return k.frames
}

func (k *Kernel) Memory() *memory.PhysicalMemory {
	return k.memory
}

// KernelSpace is the reflexive memory set built at boot.
func (k *Kernel) KernelSpace() *paging.MemorySet {
	return k.space
}

// Token is the satp value the kernel booted with.
func (k *Kernel) Token() uint64 {
	return k.token
}

// Shutdown releases every address space, the kernel's own last.
func (k *Kernel) Shutdown() {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	if k.shutdown {
		return
	}
	k.shutdown = true
	for _, ms := range k.spaces {
		ms.Release()
	}
	k.spaces = nil
	k.space.Release()
	k.logger.Info().Msgf("shut down, %d frames still allocated", k.frames.Allocated())
}
