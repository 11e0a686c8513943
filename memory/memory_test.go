package memory

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestAddressConversions(t *testing.T) {
	tests := []struct {
		name  string
		addr  PhysicalAddress
		floor PhysicalPageNumber
		ceil  PhysicalPageNumber
	}{
		{"zero", 0, 0, 0},
		{"aligned", 0x8020_0000, 0x80200, 0x80200},
		{"one byte in", 0x8020_0001, 0x80200, 0x80201},
		{"last byte of page", 0x8020_0fff, 0x80200, 0x80201},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.floor, tt.addr.Floor())
			assert.Equal(t, tt.ceil, tt.addr.Ceil())
			// address == page * PageSize + offset
			assert.Equal(t, tt.addr, tt.addr.Floor().Address().Add(tt.addr.PageOffset()))
			assert.Less(t, tt.addr.PageOffset(), uint64(PageSize))
		})
	}

	va := VirtualAddress(0x1234_5678)
	assert.Equal(t, VirtualPageNumber(0x12345), va.Floor())
	assert.Equal(t, VirtualPageNumber(0x12346), va.Ceil())
	assert.Equal(t, uint64(0x678), va.PageOffset())
	assert.Equal(t, PhysicalAddress(0x1234_5678), va.Identity())
	assert.Equal(t, "VirtualAddress(0x12345678)", va.String())
}

func TestVirtualPageNumberLevels(t *testing.T) {
	vpn := VirtualPageNumber(0b000000011_000000101_000000111)
	assert.Equal(t, [PageLevels]int{3, 5, 7}, vpn.Levels())

	assert.Equal(t, [PageLevels]int{511, 511, 511}, VirtualPageNumber(1<<27-1).Levels())
	assert.Equal(t, 39, VirtualAddressBits)
}

func TestRange(t *testing.T) {
	r := NewRange[VirtualPageNumber](10, 20)
	assert.Equal(t, uint64(10), r.Len())
	assert.True(t, r.Contains(10))
	assert.False(t, r.Contains(20))
	assert.True(t, r.Overlaps(NewRange[VirtualPageNumber](19, 30)))
	assert.False(t, r.Overlaps(NewRange[VirtualPageNumber](20, 30)))
	assert.False(t, r.Overlaps(NewRange[VirtualPageNumber](0, 10)))

	var seen []VirtualPageNumber
	r.Iter(func(v VirtualPageNumber) bool {
		seen = append(seen, v)
		return v < 12
	})
	assert.Equal(t, []VirtualPageNumber{10, 11, 12}, seen)

	pages := PageRange(NewRange[VirtualAddress](0x1800, 0x3001))
	assert.Equal(t, NewRange[VirtualPageNumber](1, 4), pages)
	assert.True(t, NewRange[VirtualAddress](5, 5).IsEmpty())
}

func TestLayout(t *testing.T) {
	layout := DefaultLayout()
	assert.Nil(t, layout.Validate())
	assert.Equal(t, uint64(0x8000), layout.Pages().Len())

	broken := layout
	broken.Kernel.DataStart = 0x8024_0010
	assert.True(t, errors.Is(broken.Validate(), ErrInvalidLayout))

	broken = layout
	broken.Kernel.BssStart = broken.Kernel.TextStart
	assert.True(t, errors.Is(broken.Validate(), ErrInvalidLayout))

	broken = layout
	broken.MemoryEnd = 0x8020_0000
	assert.True(t, errors.Is(broken.Validate(), ErrInvalidLayout))
}

func TestPhysicalMemory(t *testing.T) {
	pm := NewPhysicalMemory(DefaultLayout())
	assert.Equal(t, 0, pm.Resident())

	// straddles a page boundary
	addr := PhysicalAddress(0x8030_0ffe)
	pm.Write(addr, []byte("hello"))
	assert.Equal(t, 2, pm.Resident())

	buffer := make([]byte, 5)
	pm.Read(addr, buffer)
	assert.Equal(t, []byte("hello"), buffer)
	assert.Equal(t, byte('l'), pm.Page(0x80301)[1])

	pm.Zero(0x80301)
	pm.Read(addr, buffer)
	assert.Equal(t, []byte{'h', 'e', 0, 0, 0}, buffer)

	assert.Panics(t, func() { pm.Page(0x1000) })
	assert.Panics(t, func() { pm.Page(DefaultLayout().MemoryEnd.Floor()) })
}
