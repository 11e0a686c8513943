package paging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kmem/frame"
	"kmem/logging"
	"kmem/memory"
)

func newTestMemorySet(t *testing.T, swapper Swapper) (*MemorySet, *frame.FrameAllocator) {
	fa := newTestFrameAllocator(t)
	ms, err := NewMemorySet(*logging.CreateSilentLogger(), fa, swapper)
	require.NoError(t, err)
	return ms, fa
}

func pages(start memory.VirtualAddress, count uint64) memory.Range[memory.VirtualAddress] {
	return memory.NewRange(start, start.Add(count*memory.PageSize))
}

func TestKernelMemorySet(t *testing.T) {
	layout := testLayout()
	fa := newTestFrameAllocator(t)
	ms, err := NewKernelMemorySet(*logging.CreateSilentLogger(), fa, layout)
	require.NoError(t, err)

	segments := ms.Segments()
	require.Len(t, segments, 5)
	assert.Equal(t, Readable|Executable, segments[0].Flags)
	assert.Equal(t, Readable, segments[1].Flags)
	assert.Equal(t, memory.VirtualAddress(layout.MemoryEnd), segments[4].Range.End)
	assert.Equal(t, 0, ms.Frames())

	for _, va := range []memory.VirtualAddress{0x8000_0000, 0x8000_5123, 0x8001_0000, 0x800f_ffff} {
		pa, err := ms.Translate(va)
		require.NoError(t, err)
		assert.Equal(t, va.Identity(), pa)
	}
	_, err = ms.Translate(0x8010_0000)
	assert.ErrorIs(t, err, ErrNotMapped)

	_, err = ms.Access(0x8000_1000, true)
	assert.ErrorIs(t, err, ErrPermission)
	_, err = ms.Access(0x8000_8000, true)
	assert.NoError(t, err)

	assert.Equal(t, ms.Token(), ms.Activate())

	// the frame allocator's own frames stay reachable through the reflexive map
	f, err := fa.Alloc()
	require.NoError(t, err)
	copy(f.Bytes(), "frame")
	pa, err := ms.Translate(memory.VirtualAddress(f.Address()))
	require.NoError(t, err)
	assert.Equal(t, f.Address(), pa)
	f.Release()

	ms.Release()
	assert.Equal(t, 0, fa.Allocated())

	bad := testLayout()
	bad.Kernel.TextStart = 0x7000_0000
	_, err = NewKernelMemorySet(*logging.CreateSilentLogger(), fa, bad)
	assert.ErrorIs(t, err, memory.ErrInvalidLayout)
}

func TestMemorySetSegments(t *testing.T) {
	ms, fa := newTestMemorySet(t, nil)

	a := Segment{MapType: Framed, Range: pages(0x1000_0000, 2), Flags: Readable | Writable}
	b := Segment{MapType: Framed, Range: pages(0x1000_2000, 3), Flags: Readable}
	require.NoError(t, ms.AddSegment(a, []byte("segment a")))
	require.NoError(t, ms.AddSegment(b, nil))
	tables := ms.mapping.PageTables()
	assert.Equal(t, 5, ms.Frames())
	assert.Equal(t, tables+5, fa.Allocated())

	assert.True(t, ms.OverlapWith(memory.PageRange(pages(0x1000_1000, 1))))
	assert.False(t, ms.OverlapWith(memory.PageRange(pages(0x1000_5000, 1))))
	assert.Panics(t, func() {
		ms.AddSegment(Segment{MapType: Framed, Range: memory.NewRange[memory.VirtualAddress](0x1000_1800, 0x1000_2800)}, nil)
	})
	assert.Panics(t, func() {
		ms.RemoveSegment(Segment{MapType: Framed, Range: pages(0x3000_0000, 1)})
	})

	ms.RemoveSegment(a)
	assert.Equal(t, 3, ms.Frames())
	assert.Equal(t, tables+3, fa.Allocated())
	assert.Equal(t, []Segment{b}, ms.Segments())

	_, err := ms.Translate(0x1000_0000)
	assert.ErrorIs(t, err, ErrNotMapped)
	for va := b.Range.Start; va < b.Range.End; va += memory.PageSize {
		_, err := ms.Translate(va)
		assert.NoError(t, err)
	}

	// the range is free again
	require.NoError(t, ms.AddSegment(a, nil))
	assert.Equal(t, 5, ms.Frames())

	ms.Release()
	assert.Equal(t, 0, fa.Allocated())
}

func TestMemorySetAllocPageRange(t *testing.T) {
	ms, _ := newTestMemorySet(t, nil)

	first, err := ms.AllocPageRange(5000, Readable|Writable)
	require.NoError(t, err)
	assert.Equal(t, memory.NewRange[memory.VirtualAddress](0x100_0000, 0x100_0000+5000), first)

	second, err := ms.AllocPageRange(5000, Readable|Writable)
	require.NoError(t, err)
	assert.Equal(t, memory.VirtualAddress(0x100_2000), second.Start)

	third, err := ms.AllocPageRange(100, Readable)
	require.NoError(t, err)
	assert.Equal(t, memory.VirtualAddress(0x100_4000), third.Start)
	assert.Equal(t, 5, ms.Frames())

	_, err = ms.Translate(second.End - 1)
	assert.NoError(t, err)

	_, err = ms.AllocPageRange(0, Readable)
	assert.ErrorIs(t, err, ErrInvalidSegment)
}

func TestMemorySetLazyFIFO(t *testing.T) {
	swapper := NewSwapper(FIFOStrategy, 2)
	ms, fa := newTestMemorySet(t, swapper)

	lazy := Segment{MapType: Lazy, Range: pages(0x2000_0000, 4), Flags: Readable | Writable}
	framed := Segment{MapType: Framed, Range: pages(0x3000_0000, 1), Flags: Readable}
	require.NoError(t, ms.AddSegment(lazy, nil))
	require.NoError(t, ms.AddSegment(framed, nil))
	assert.Equal(t, 1, ms.Frames())

	_, err := ms.Translate(0x2000_0000)
	assert.ErrorIs(t, err, ErrNotMapped)

	page := func(i uint64) memory.VirtualAddress { return lazy.Range.Start.Add(i * memory.PageSize) }
	require.NoError(t, ms.HandlePageFault(page(0)+8))
	require.NoError(t, ms.HandlePageFault(page(1)))
	assert.True(t, swapper.Full())
	// already backed
	require.NoError(t, ms.HandlePageFault(page(1)+16))
	assert.Equal(t, 2, swapper.Len())

	allocated := fa.Allocated()
	require.NoError(t, ms.HandlePageFault(page(2)))
	assert.Equal(t, allocated, fa.Allocated())
	_, err = ms.Translate(page(0))
	assert.ErrorIs(t, err, ErrNotMapped)
	for _, i := range []uint64{1, 2} {
		_, err = ms.Translate(page(i))
		assert.NoError(t, err)
	}

	err = ms.HandlePageFault(0x5000_0000)
	assert.ErrorIs(t, err, ErrUnhandledFault)
	err = ms.HandlePageFault(framed.Range.Start)
	assert.ErrorIs(t, err, ErrUnhandledFault)

	ms.RemoveSegment(lazy)
	assert.Equal(t, 0, swapper.Len())
	assert.Equal(t, allocated-2, fa.Allocated())
	_, err = ms.Translate(page(1))
	assert.ErrorIs(t, err, ErrNotMapped)
}

func TestMemorySetLazyClock(t *testing.T) {
	swapper := NewSwapper(ClockStrategy, 3)
	ms, _ := newTestMemorySet(t, swapper)

	lazy := Segment{MapType: Lazy, Range: pages(0x2000_0000, 8), Flags: Readable | Writable}
	require.NoError(t, ms.AddSegment(lazy, nil))
	page := func(i uint64) memory.VirtualAddress { return lazy.Range.Start.Add(i * memory.PageSize) }

	for i := uint64(0); i < 3; i++ {
		require.NoError(t, ms.HandlePageFault(page(i)))
	}
	_, err := ms.Access(page(0), true)
	require.NoError(t, err)
	_, err = ms.Access(page(1), false)
	require.NoError(t, err)

	// page 2 was never touched
	require.NoError(t, ms.HandlePageFault(page(3)))
	_, err = ms.Translate(page(2))
	assert.ErrorIs(t, err, ErrNotMapped)

	// page 3 is now the only untouched one
	require.NoError(t, ms.HandlePageFault(page(4)))
	_, err = ms.Translate(page(3))
	assert.ErrorIs(t, err, ErrNotMapped)

	_, err = ms.Translate(page(0))
	assert.NoError(t, err)
}

func TestMemorySetLazyNeedsSwapper(t *testing.T) {
	ms, _ := newTestMemorySet(t, nil)
	err := ms.AddSegment(Segment{MapType: Lazy, Range: pages(0x2000_0000, 1)}, nil)
	assert.ErrorIs(t, err, ErrInvalidSegment)
	assert.Empty(t, ms.Segments())

	ms, _ = newTestMemorySet(t, NewSwapper(FIFOStrategy, 0))
	lazy := Segment{MapType: Lazy, Range: pages(0x2000_0000, 1)}
	require.NoError(t, ms.AddSegment(lazy, nil))
	err = ms.HandlePageFault(lazy.Range.Start)
	assert.ErrorIs(t, err, ErrSwapQuotaIsZero)
}
