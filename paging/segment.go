package paging

import (
	"fmt"

	"kmem/memory"
)

type MapType int

const (
	// virtual page n maps to physical page n
	Linear MapType = iota
	// every page gets its own frame when the segment is mapped
	Framed
	// like Framed, but frames are allocated by the page fault handler
	Lazy
)

func (t MapType) String() string {
	switch t {
	case Linear:
		return "linear"
	case Framed:
		return "framed"
	case Lazy:
		return "lazy"
	}
	return fmt.Sprintf("MapType(%d)", int(t))
}

// Segment describes one contiguous virtual range and how to back it.
type Segment struct {
	MapType MapType
	Range   memory.Range[memory.VirtualAddress]
	Flags   Flags
}

// PageRange is every page the segment touches, partial pages included.
func (s Segment) PageRange() memory.Range[memory.VirtualPageNumber] {
	return memory.PageRange(s.Range)
}

func (s Segment) String() string {
	return fmt.Sprintf("%s %s %s", s.MapType, s.Range, s.Flags)
}
