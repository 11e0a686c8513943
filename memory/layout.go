package memory

import (
	"github.com/pkg/errors"
)

var ErrInvalidLayout = errors.New("invalid memory layout")

/*
Physical memory as seen by the kernel (QEMU virt style)
┌──────────────────────────────────────────────────────────────┐
| MemoryStart                                                  |
| ...firmware...                                               |
| TextStart   .text          r-x                               |
| RodataStart .rodata        r--                               |
| DataStart   .data          rw-                               |
| BssStart    .bss           rw-                               |
| KernelEnd   frame allocator metadata, then free frames  rw-  |
| MemoryEnd                                                    |
└──────────────────────────────────────────────────────────────┘
*/

// KernelImage holds the linker provided section boundaries. Every symbol is
// page aligned.
type KernelImage struct {
	TextStart   VirtualAddress
	RodataStart VirtualAddress
	DataStart   VirtualAddress
	BssStart    VirtualAddress
	KernelEnd   VirtualAddress
}

type Layout struct {
	MemoryStart PhysicalAddress
	MemoryEnd   PhysicalAddress
	Kernel      KernelImage
}

func DefaultLayout() Layout {
	return Layout{
		MemoryStart: 0x8000_0000,
		MemoryEnd:   0x8800_0000, // 128mb
		Kernel: KernelImage{
			TextStart:   0x8020_0000,
			RodataStart: 0x8023_0000,
			DataStart:   0x8024_0000,
			BssStart:    0x8025_0000,
			KernelEnd:   0x8026_0000,
		},
	}
}

func (l Layout) Validate() error {
	k := l.Kernel
	symbols := []VirtualAddress{k.TextStart, k.RodataStart, k.DataStart, k.BssStart, k.KernelEnd}
	for i, s := range symbols {
		if s.PageOffset() != 0 {
			return errors.Wrapf(ErrInvalidLayout, "kernel symbol %d (%s) is not page aligned", i, s)
		}
		if i > 0 && s < symbols[i-1] {
			return errors.Wrapf(ErrInvalidLayout, "kernel symbol %d (%s) is below the previous one", i, s)
		}
	}
	if l.MemoryStart.PageOffset() != 0 || l.MemoryEnd.PageOffset() != 0 {
		return errors.Wrap(ErrInvalidLayout, "memory bounds are not page aligned")
	}
	if k.TextStart.Identity() < l.MemoryStart || k.KernelEnd.Identity() > l.MemoryEnd {
		return errors.Wrapf(ErrInvalidLayout, "kernel image [%s, %s) is outside of memory", k.TextStart, k.KernelEnd)
	}
	return nil
}

// Pages is the physical page range backed by RAM.
func (l Layout) Pages() Range[PhysicalPageNumber] {
	return Range[PhysicalPageNumber]{Start: l.MemoryStart.Floor(), End: l.MemoryEnd.Floor()}
}
