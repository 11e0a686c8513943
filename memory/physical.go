package memory

import (
	"fmt"
	"sync"
)

type page [PageSize]byte

// PhysicalMemory is RAM as a table of page sized buffers indexed by physical
// page number. Buffers are materialised on first touch and read as zero
// before that, so a 128mb layout only costs what is actually used.
//
// The table itself is guarded; the bytes of a page belong to whoever owns
// the frame.
type PhysicalMemory struct {
	pages Range[PhysicalPageNumber]
	mutex sync.Mutex
	table map[PhysicalPageNumber]*page
}

func NewPhysicalMemory(layout Layout) *PhysicalMemory {
	return &PhysicalMemory{
		pages: layout.Pages(),
		table: make(map[PhysicalPageNumber]*page),
	}
}

func (pm *PhysicalMemory) Pages() Range[PhysicalPageNumber] {
	return pm.pages
}

// Page returns the live contents of ppn. Touching a page outside of RAM is
// the kernel corrupting itself, so it panics.
func (pm *PhysicalMemory) Page(ppn PhysicalPageNumber) []byte {
	if !pm.pages.Contains(ppn) {
		panic(fmt.Sprintf("physical page %s is outside of memory %s", ppn, pm.pages))
	}
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	p, ok := pm.table[ppn]
	if !ok {
		p = new(page)
		pm.table[ppn] = p
	}
	return p[:]
}

func (pm *PhysicalMemory) Zero(ppn PhysicalPageNumber) {
	clear(pm.Page(ppn))
}

// Write copies data to addr, crossing page boundaries as needed.
func (pm *PhysicalMemory) Write(addr PhysicalAddress, data []byte) {
	for len(data) > 0 {
		offset := addr.PageOffset()
		n := copy(pm.Page(addr.Floor())[offset:], data)
		data = data[n:]
		addr = addr.Add(uint64(n))
	}
}

// Read fills buffer from addr, crossing page boundaries as needed.
func (pm *PhysicalMemory) Read(addr PhysicalAddress, buffer []byte) {
	for len(buffer) > 0 {
		offset := addr.PageOffset()
		n := copy(buffer, pm.Page(addr.Floor())[offset:])
		buffer = buffer[n:]
		addr = addr.Add(uint64(n))
	}
}

// Resident counts the pages that have been touched.
func (pm *PhysicalMemory) Resident() int {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	return len(pm.table)
}
