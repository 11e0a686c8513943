package paging

import (
	"fmt"
	"strings"

	"kmem/memory"
)

// Flags are the low 8 bits of an Sv39 page table entry. The bit positions
// are read by the hardware walker and must not move.
type Flags uint8

const (
	Valid Flags = 1 << iota
	Readable
	Writable
	Executable
	User
	Global
	Accessed
	Dirty
)

func (f Flags) Has(other Flags) bool {
	return f&other == other
}

// String renders the flags the way page table dumps usually do, "daguxwrv" with - for clear bits.
func (f Flags) String() string {
	const names = "vrwxugad"
	var b strings.Builder
	for i := len(names) - 1; i >= 0; i-- {
		if f&(1<<i) != 0 {
			b.WriteByte(names[i])
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

const (
	flagBits = 10 // 8 flags plus 2 bits left to software
	ppnBits  = 44
	ppnMask  = (1 << ppnBits) - 1
)

/*
PageTableEntry

	63      54 53                    10 9   8 7 6 5 4 3 2 1 0
	┌─────────┬────────────────────────┬─────┬─┬─┬─┬─┬─┬─┬─┬─┐
	| reserved| physical page number   | rsw |D|A|G|U|X|W|R|V|
	└─────────┴────────────────────────┴─────┴─┴─┴─┴─┴─┴─┴─┴─┘
*/
type PageTableEntry uint64

func NewPageTableEntry(ppn memory.PhysicalPageNumber, flags Flags) PageTableEntry {
	return PageTableEntry((uint64(ppn)&ppnMask)<<flagBits | uint64(flags))
}

func (e PageTableEntry) PageNumber() memory.PhysicalPageNumber {
	return memory.PhysicalPageNumber((uint64(e) >> flagBits) & ppnMask)
}

func (e PageTableEntry) Address() memory.PhysicalAddress {
	return e.PageNumber().Address()
}

func (e PageTableEntry) Flags() Flags {
	return Flags(e)
}

func (e PageTableEntry) IsEmpty() bool {
	return e == 0
}

func (e PageTableEntry) IsValid() bool {
	return e.Flags().Has(Valid)
}

// AccessedDirty ranks the entry for the clock swapper, (a, d) read as a two
// bit number.
func (e PageTableEntry) AccessedDirty() int {
	rank := 0
	if e.Flags().Has(Accessed) {
		rank += 2
	}
	if e.Flags().Has(Dirty) {
		rank++
	}
	return rank
}

func (e PageTableEntry) String() string {
	return fmt.Sprintf("PageTableEntry(%s %s)", e.PageNumber(), e.Flags())
}
