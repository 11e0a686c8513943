package paging

import (
	"encoding/binary"

	"kmem/frame"
	"kmem/memory"
)

/*
PageTable is a typed view over one physical page holding 512 entries

	┌──────────────────────────────────────────────────────────────┐
	| entry 0 (8 bytes, little endian) | entry 1 | ... | entry 511 |
	└──────────────────────────────────────────────────────────────┘

The view does not own the page, it is only valid while the frame backing
it is alive.
*/
type PageTable struct {
	buffer []byte
}

func NewPageTable(buffer []byte) PageTable {
	if len(buffer) != memory.PageSize {
		panic("page table view over a buffer that is not one page")
	}
	return PageTable{buffer: buffer}
}

func (pt PageTable) entryBuffer(index int) []byte {
	offset := index * memory.EntrySize
	return pt.buffer[offset : offset+memory.EntrySize]
}

func (pt PageTable) Entry(index int) PageTableEntry {
	return PageTableEntry(binary.LittleEndian.Uint64(pt.entryBuffer(index)))
}

func (pt PageTable) SetEntry(index int, entry PageTableEntry) {
	binary.LittleEndian.PutUint64(pt.entryBuffer(index), uint64(entry))
}

func (pt PageTable) ZeroInit() {
	clear(pt.buffer)
}

// PageTableTracker owns the frame a page table lives in.
type PageTableTracker struct {
	frame *frame.Frame
}

func NewPageTableTracker(allocator *frame.FrameAllocator) (*PageTableTracker, error) {
	f, err := allocator.AllocZeroed()
	if err != nil {
		return nil, err
	}
	return &PageTableTracker{frame: f}, nil
}

func (t *PageTableTracker) Table() PageTable {
	return NewPageTable(t.frame.Bytes())
}

func (t *PageTableTracker) PageNumber() memory.PhysicalPageNumber {
	return t.frame.PageNumber()
}

func (t *PageTableTracker) Release() {
	t.frame.Release()
}

// EntryRef locates one entry inside a page table living in physical memory.
// Loading and storing go straight to the table, so a ref sees whatever the
// hardware walker (or Mapping.Access) wrote there last.
type EntryRef struct {
	memory *memory.PhysicalMemory
	table  memory.PhysicalPageNumber
	index  int
}

func (r EntryRef) tableView() PageTable {
	return NewPageTable(r.memory.Page(r.table))
}

func (r EntryRef) Load() PageTableEntry {
	return r.tableView().Entry(r.index)
}

func (r EntryRef) Store(entry PageTableEntry) {
	r.tableView().SetEntry(r.index, entry)
}

func (r EntryRef) Clear() {
	r.Store(0)
}

// Table is the page holding the entry.
func (r EntryRef) Table() memory.PhysicalPageNumber {
	return r.table
}

func (r EntryRef) Index() int {
	return r.index
}

func (r EntryRef) IsNil() bool {
	return r.memory == nil
}
