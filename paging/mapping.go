package paging

import (
	"fmt"

	"github.com/phuslu/log"
	"github.com/pkg/errors"

	"kmem/frame"
	"kmem/memory"
	"kmem/utils/cache"
)

const (
	tlbEntries = 64
	// satp MODE field for Sv39
	sv39Mode = uint64(8) << 60
	// one past the highest page number 39 bits can address
	maxVirtualPage = memory.VirtualPageNumber(1) << (memory.VirtualAddressBits - memory.PageShift)
)

// Pair is a virtual page together with the frame backing it.
type Pair struct {
	Page  memory.VirtualPageNumber
	Frame *frame.Frame
}

/*
Mapping is the three level Sv39 page table of one address space.

	vpn [38:30] ─► root table ─► [29:21] ─► mid table ─► [20:12] ─► leaf entry

Intermediate tables are allocated on demand by FindEntry and owned by the
mapping until Release. Leaf locations are cached in a small LRU, the
software TLB, which Activate flushes.

A Mapping is not safe for concurrent use, MemorySet serialises access.
*/
type Mapping struct {
	logger     log.Logger
	allocator  *frame.FrameAllocator
	memory     *memory.PhysicalMemory
	pageTables []*PageTableTracker
	root       memory.PhysicalPageNumber
	tlb        cache.Cache[memory.VirtualPageNumber, EntryRef]
}

func NewMapping(logger log.Logger, allocator *frame.FrameAllocator) (*Mapping, error) {
	root, err := NewPageTableTracker(allocator)
	if err != nil {
		logger.Error().Err(err).Msg("unable to allocate root page table")
		return nil, errors.Wrap(err, "allocating root page table")
	}
	return &Mapping{
		logger:     logger,
		allocator:  allocator,
		memory:     allocator.Memory(),
		pageTables: []*PageTableTracker{root},
		root:       root.PageNumber(),
		tlb:        cache.NewLRUCache[memory.VirtualPageNumber, EntryRef](tlbEntries),
	}, nil
}

// FindEntry returns the leaf entry of vpn, allocating the intermediate
// tables on the way down. This is the only place tables get allocated.
func (m *Mapping) FindEntry(vpn memory.VirtualPageNumber) (EntryRef, error) {
	levels := vpn.Levels()
	table := m.root
	for _, index := range levels[:memory.PageLevels-1] {
		ref := EntryRef{memory: m.memory, table: table, index: index}
		entry := ref.Load()
		if entry.IsEmpty() {
			tracker, err := NewPageTableTracker(m.allocator)
			if err != nil {
				return EntryRef{}, errors.Wrapf(err, "allocating page table for %s", vpn)
			}
			m.pageTables = append(m.pageTables, tracker)
			entry = NewPageTableEntry(tracker.PageNumber(), Valid)
			ref.Store(entry)
		}
		table = entry.PageNumber()
	}
	return EntryRef{memory: m.memory, table: table, index: levels[memory.PageLevels-1]}, nil
}

// Lookup is FindEntry without the allocation, false when an intermediate
// table is missing.
func (m *Mapping) Lookup(vpn memory.VirtualPageNumber) (EntryRef, bool) {
	if ref, ok := m.tlb.Get(vpn); ok {
		return ref, true
	}
	levels := vpn.Levels()
	table := m.root
	for _, index := range levels[:memory.PageLevels-1] {
		entry := EntryRef{memory: m.memory, table: table, index: index}.Load()
		if entry.IsEmpty() {
			return EntryRef{}, false
		}
		table = entry.PageNumber()
	}
	ref := EntryRef{memory: m.memory, table: table, index: levels[memory.PageLevels-1]}
	m.tlb.Put(vpn, ref)
	return ref, true
}

// MapOne points vpn at ppn. Mapping a page that is already mapped is a bug
// in the caller and panics.
func (m *Mapping) MapOne(vpn memory.VirtualPageNumber, ppn memory.PhysicalPageNumber, flags Flags) error {
	ref, err := m.FindEntry(vpn)
	if err != nil {
		return err
	}
	if existing := ref.Load(); !existing.IsEmpty() {
		panic(fmt.Sprintf("%s is already mapped to %s", vpn, existing))
	}
	ref.Store(NewPageTableEntry(ppn, flags|Valid))
	return nil
}

// UnmapOne clears the leaf entry of vpn and returns what it held.
func (m *Mapping) UnmapOne(vpn memory.VirtualPageNumber) (PageTableEntry, bool) {
	ref, ok := m.Lookup(vpn)
	if !ok {
		return 0, false
	}
	entry := ref.Load()
	ref.Clear()
	m.tlb.Evict(vpn, func(EntryRef) bool { return true })
	return entry, !entry.IsEmpty()
}

func validateSegment(segment Segment, data []byte) error {
	if segment.Range.End < segment.Range.Start {
		return errors.Wrapf(ErrInvalidSegment, "range %s ends before it starts", segment.Range)
	}
	if segment.PageRange().End > maxVirtualPage {
		return errors.Wrapf(ErrInvalidSegment, "range %s exceeds %d bit addresses", segment.Range, memory.VirtualAddressBits)
	}
	if uint64(len(data)) > segment.Range.Len() {
		return errors.Wrapf(ErrInvalidSegment, "%d bytes of data do not fit %s", len(data), segment.Range)
	}
	if segment.MapType == Lazy && len(data) > 0 {
		return errors.Wrap(ErrInvalidSegment, "lazy segments cannot carry initial data")
	}
	return nil
}

/*
Map realises segment in the page table and copies data to its start.

	Linear  page n -> physical page n, data written straight through
	Framed  one zeroed frame per page, data copied into the frames even when
	        the segment starts or ends in the middle of a page
	Lazy    nothing, pages are backed on their first fault

The frames allocated for a Framed segment are returned, the caller owns
them. On failure everything mapped so far is undone.
*/
func (m *Mapping) Map(segment Segment, data []byte) ([]Pair, error) {
	if err := validateSegment(segment, data); err != nil {
		return nil, err
	}

	var pairs []Pair
	var mapped []memory.VirtualPageNumber
	rollback := func(err error) ([]Pair, error) {
		for _, vpn := range mapped {
			m.UnmapOne(vpn)
		}
		for _, pair := range pairs {
			pair.Frame.Release()
		}
		m.logger.Error().Err(err).Msgf("unable to map segment %s", segment)
		return nil, err
	}

	pages := segment.PageRange()
	switch segment.MapType {
	case Linear:
		for vpn := pages.Start; vpn < pages.End; vpn++ {
			if err := m.MapOne(vpn, vpn.Identity(), segment.Flags); err != nil {
				return rollback(err)
			}
			mapped = append(mapped, vpn)
		}
		if len(data) > 0 {
			m.memory.Write(segment.Range.Start.Identity(), data)
		}

	case Framed:
		dataStart := segment.Range.Start
		dataEnd := dataStart.Add(uint64(len(data)))
		for vpn := pages.Start; vpn < pages.End; vpn++ {
			f, err := m.allocator.AllocZeroed()
			if err != nil {
				return rollback(errors.Wrapf(err, "backing %s", vpn))
			}
			pairs = append(pairs, Pair{Page: vpn, Frame: f})

			pageStart := vpn.Address()
			from := max(pageStart, dataStart)
			to := min(pageStart.Add(memory.PageSize), dataEnd)
			if from < to {
				copy(f.Bytes()[from.Sub(pageStart):], data[from.Sub(dataStart):to.Sub(dataStart)])
			}

			if err := m.MapOne(vpn, f.PageNumber(), segment.Flags); err != nil {
				return rollback(err)
			}
			mapped = append(mapped, vpn)
		}

	case Lazy:

	default:
		return nil, errors.Wrapf(ErrInvalidSegment, "unknown map type %d", int(segment.MapType))
	}

	m.logger.Debug().Msgf("mapped %s (%d pages, %d frames)", segment, pages.Len(), len(pairs))
	return pairs, nil
}

// Unmap clears every leaf entry of the segment. Frames are not released,
// whoever got them from Map still owns them.
func (m *Mapping) Unmap(segment Segment) {
	segment.PageRange().Iter(func(vpn memory.VirtualPageNumber) bool {
		m.UnmapOne(vpn)
		return true
	})
}

// Translate walks the tables like the hardware would, without touching the
// accessed and dirty bits.
func (m *Mapping) Translate(va memory.VirtualAddress) (memory.PhysicalAddress, error) {
	ref, ok := m.Lookup(va.Floor())
	if !ok {
		return 0, errors.Wrapf(ErrNotMapped, "%s", va)
	}
	entry := ref.Load()
	if !entry.IsValid() {
		return 0, errors.Wrapf(ErrNotMapped, "%s", va)
	}
	return entry.Address().Add(va.PageOffset()), nil
}

// Access simulates a load or store through the MMU: permissions are checked
// and the accessed (plus dirty on write) bits are set.
func (m *Mapping) Access(va memory.VirtualAddress, write bool) (memory.PhysicalAddress, error) {
	ref, ok := m.Lookup(va.Floor())
	if !ok {
		return 0, errors.Wrapf(ErrNotMapped, "%s", va)
	}
	entry := ref.Load()
	if !entry.IsValid() {
		return 0, errors.Wrapf(ErrNotMapped, "%s", va)
	}

	required, set := Readable, Accessed
	if write {
		required, set = Writable, Accessed|Dirty
	}
	if !entry.Flags().Has(required) {
		return 0, errors.Wrapf(ErrPermission, "%s is %s", va, entry.Flags())
	}
	ref.Store(entry | PageTableEntry(set))
	return entry.Address().Add(va.PageOffset()), nil
}

func (m *Mapping) Root() memory.PhysicalPageNumber {
	return m.root
}

// Token is the satp value selecting this mapping.
func (m *Mapping) Token() uint64 {
	return sv39Mode | uint64(m.root)
}

// Activate switches to this mapping and flushes the TLB.
func (m *Mapping) Activate() uint64 {
	m.tlb.Purge()
	token := m.Token()
	m.logger.Debug().Msgf("activated mapping, satp 0x%x", token)
	return token
}

// PageTables is the number of tables owned, the root included.
func (m *Mapping) PageTables() int {
	return len(m.pageTables)
}

// Release frees every page table. The mapping is unusable afterwards.
func (m *Mapping) Release() {
	m.tlb.Purge()
	for _, table := range m.pageTables {
		table.Release()
	}
	m.pageTables = nil
}
