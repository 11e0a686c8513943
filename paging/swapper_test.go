package paging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kmem/frame"
	"kmem/memory"
)

// residentPages maps one page per flags entry from base on and returns them
// as swap entries, page i carrying flags[i].
func residentPages(t *testing.T, m *Mapping, fa *frame.FrameAllocator, base memory.VirtualPageNumber, flags []Flags) []SwapEntry {
	entries := []SwapEntry{}
	for i, extra := range flags {
		vpn := base.Add(uint64(i))
		f, err := fa.Alloc()
		require.NoError(t, err)
		require.NoError(t, m.MapOne(vpn, f.PageNumber(), Readable|Writable|extra))
		ref, ok := m.Lookup(vpn)
		require.True(t, ok)
		entries = append(entries, SwapEntry{Page: vpn, Frame: f, Entry: ref})
	}
	return entries
}

func TestFIFOSwapper(t *testing.T) {
	m, fa := newTestMapping(t)
	swapper := NewSwapper(FIFOStrategy, 4)
	assert.Equal(t, 4, swapper.Quota())

	entries := residentPages(t, m, fa, 0x100, []Flags{Accessed | Dirty, 0, Dirty, Accessed})
	for _, entry := range entries {
		assert.False(t, swapper.Full())
		swapper.Push(entry)
	}
	assert.True(t, swapper.Full())
	assert.Panics(t, func() { swapper.Push(entries[0]) })

	// flags do not matter, push order does
	for _, want := range entries {
		got, ok := swapper.Pop()
		require.True(t, ok)
		assert.Equal(t, want.Page, got.Page)
	}
	_, ok := swapper.Pop()
	assert.False(t, ok)
}

func TestClockSwapper(t *testing.T) {
	m, fa := newTestMapping(t)
	swapper := NewSwapper(ClockStrategy, 5)

	entries := residentPages(t, m, fa, 0x100, []Flags{Accessed | Dirty, Accessed, Dirty, Accessed, Dirty})
	for _, entry := range entries {
		swapper.Push(entry)
	}

	// (0,1) twice, earliest first, then (1,0) twice, then (1,1)
	for _, want := range []int{2, 4, 1, 3, 0} {
		got, ok := swapper.Pop()
		require.True(t, ok)
		assert.Equal(t, entries[want].Page, got.Page)
	}

	// bits are read live from the table, not at push time
	entries = residentPages(t, m, fa, 0x200, []Flags{0, 0})
	swapper.Push(entries[0])
	swapper.Push(entries[1])
	entries[0].Entry.Store(entries[0].Entry.Load() | PageTableEntry(Accessed))
	got, _ := swapper.Pop()
	assert.Equal(t, entries[1].Page, got.Page)
}

func TestSwapperRetain(t *testing.T) {
	for _, strategy := range []SwapStrategy{FIFOStrategy, ClockStrategy} {
		t.Run(strategy.String(), func(t *testing.T) {
			m, fa := newTestMapping(t)
			swapper := NewSwapper(strategy, 4)
			entries := residentPages(t, m, fa, 0x100, []Flags{0, 0, 0, 0})
			for _, entry := range entries {
				swapper.Push(entry)
			}
			allocated := fa.Allocated()

			swapper.Retain(func(vpn memory.VirtualPageNumber) bool {
				return vpn%2 == 0
			})
			assert.Equal(t, 2, swapper.Len())
			assert.Equal(t, allocated-2, fa.Allocated())
			assert.Panics(t, func() { entries[1].Frame.Release() })

			got, _ := swapper.Pop()
			assert.Equal(t, entries[0].Page, got.Page)
			got, _ = swapper.Pop()
			assert.Equal(t, entries[2].Page, got.Page)
		})
	}
	assert.Panics(t, func() { NewSwapper(SwapStrategy(7), 1) })
}
