package main

import (
	"kmem/kernel"
	"kmem/logging"
	"kmem/memory"
	"kmem/paging"
)

func main() {
	logger := logging.CreateDebugLogger()

	k, err := kernel.Boot(*logger, kernel.DefaultOptions())
	if err != nil {
		logger.Error().Err(err).Msg("failed to boot")
		return
	}
	defer k.Shutdown()

	space, err := k.NewAddressSpace()
	if err != nil {
		logger.Error().Err(err).Msg("failed to create address space")
		return
	}

	stack, err := space.AllocPageRange(4*memory.PageSize, paging.Readable|paging.Writable|paging.User)
	if err != nil {
		logger.Error().Err(err).Msg("failed to allocate stack")
		return
	}

	pa, err := space.Access(stack.Start, true)
	if err != nil {
		logger.Error().Err(err).Msg("failed to write the stack")
		return
	}
	k.Memory().Write(pa, []byte("hello world"))

	buffer := make([]byte, len("hello world"))
	k.Memory().Read(pa, buffer)
	logger.Info().Msgf("%s at %s -> %s", buffer, stack.Start, pa)

	heap := paging.Segment{
		MapType: paging.Lazy,
		Range:   memory.NewRange[memory.VirtualAddress](0x4000_0000, 0x4004_0000),
		Flags:   paging.Readable | paging.Writable | paging.User,
	}
	if err := space.AddSegment(heap, nil); err != nil {
		logger.Error().Err(err).Msg("failed to add heap")
		return
	}
	for va := heap.Range.Start; va < heap.Range.End; va += memory.PageSize {
		if err := space.HandlePageFault(va); err != nil {
			logger.Error().Err(err).Msgf("page fault at %s", va)
			return
		}
	}
	logger.Info().Msgf("heap faulted in, %d pages resident, %d frames free", space.Swapper().Len(), k.Frames().Free())

	k.DestroyAddressSpace(space)
}
