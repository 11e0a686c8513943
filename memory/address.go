package memory

import "fmt"

/*
Four distinct integer types so that a physical page number can never be
handed to something expecting a virtual address without a visible
conversion.

	address == pageNumber * PageSize + offset, 0 <= offset < PageSize

Floor / Ceil are the only ways from an address to a page number,
Address is the only way back.
*/
type PhysicalAddress uint64

type PhysicalPageNumber uint64

type VirtualAddress uint64

type VirtualPageNumber uint64

func (a PhysicalAddress) PageOffset() uint64 {
	return uint64(a) % PageSize
}

func (a PhysicalAddress) Floor() PhysicalPageNumber {
	return PhysicalPageNumber(uint64(a) / PageSize)
}

func (a PhysicalAddress) Ceil() PhysicalPageNumber {
	return PhysicalPageNumber((uint64(a) + PageSize - 1) / PageSize)
}

func (a PhysicalAddress) Add(n uint64) PhysicalAddress {
	return a + PhysicalAddress(n)
}

func (a PhysicalAddress) Valid() bool {
	return a != 0
}

func (a PhysicalAddress) String() string {
	return fmt.Sprintf("PhysicalAddress(0x%x)", uint64(a))
}

func (p PhysicalPageNumber) Address() PhysicalAddress {
	return PhysicalAddress(uint64(p) * PageSize)
}

func (p PhysicalPageNumber) Add(n uint64) PhysicalPageNumber {
	return p + PhysicalPageNumber(n)
}

// Diff returns p - q in pages. q must not be above p.
func (p PhysicalPageNumber) Diff(q PhysicalPageNumber) uint64 {
	return uint64(p - q)
}

func (p PhysicalPageNumber) Valid() bool {
	return p != 0
}

func (p PhysicalPageNumber) String() string {
	return fmt.Sprintf("PhysicalPageNumber(0x%x)", uint64(p))
}

func (a VirtualAddress) PageOffset() uint64 {
	return uint64(a) % PageSize
}

func (a VirtualAddress) Floor() VirtualPageNumber {
	return VirtualPageNumber(uint64(a) / PageSize)
}

func (a VirtualAddress) Ceil() VirtualPageNumber {
	return VirtualPageNumber((uint64(a) + PageSize - 1) / PageSize)
}

func (a VirtualAddress) Add(n uint64) VirtualAddress {
	return a + VirtualAddress(n)
}

// Sub returns a - b in bytes. b must not be above a.
func (a VirtualAddress) Sub(b VirtualAddress) uint64 {
	return uint64(a - b)
}

// Identity is the numerically identical physical address. Only meaningful
// inside the kernel's reflexive linear map.
func (a VirtualAddress) Identity() PhysicalAddress {
	return PhysicalAddress(a)
}

func (a VirtualAddress) Valid() bool {
	return a != 0
}

func (a VirtualAddress) String() string {
	return fmt.Sprintf("VirtualAddress(0x%x)", uint64(a))
}

func (v VirtualPageNumber) Address() VirtualAddress {
	return VirtualAddress(uint64(v) * PageSize)
}

func (v VirtualPageNumber) Add(n uint64) VirtualPageNumber {
	return v + VirtualPageNumber(n)
}

func (v VirtualPageNumber) Diff(w VirtualPageNumber) uint64 {
	return uint64(v - w)
}

// Identity is the numerically identical physical page, see
// VirtualAddress.Identity.
func (v VirtualPageNumber) Identity() PhysicalPageNumber {
	return PhysicalPageNumber(v)
}

// Levels splits the page number into its page table indices, root first.
func (v VirtualPageNumber) Levels() [PageLevels]int {
	var levels [PageLevels]int
	for i := 0; i < PageLevels; i++ {
		shift := uint(PageLevels-1-i) * LevelBits
		levels[i] = int((uint64(v) >> shift) & levelMask)
	}
	return levels
}

func (v VirtualPageNumber) Valid() bool {
	return v != 0
}

func (v VirtualPageNumber) String() string {
	return fmt.Sprintf("VirtualPageNumber(0x%x)", uint64(v))
}
