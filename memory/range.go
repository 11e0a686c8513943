package memory

import "fmt"

type Number interface {
	~uint64
}

// Range is the half open interval [Start, End).
type Range[T Number] struct {
	Start T
	End   T
}

func NewRange[T Number](start, end T) Range[T] {
	return Range[T]{Start: start, End: end}
}

func (r Range[T]) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return uint64(r.End - r.Start)
}

func (r Range[T]) IsEmpty() bool {
	return r.End <= r.Start
}

func (r Range[T]) Contains(v T) bool {
	return r.Start <= v && v < r.End
}

func (r Range[T]) Overlaps(other Range[T]) bool {
	return r.Start < other.End && other.Start < r.End
}

// Iter calls fn for every value in order until fn returns false.
func (r Range[T]) Iter(fn func(T) bool) {
	for v := r.Start; v < r.End; v++ {
		if !fn(v) {
			return
		}
	}
}

func (r Range[T]) String() string {
	return fmt.Sprintf("[0x%x, 0x%x)", uint64(r.Start), uint64(r.End))
}

// PageRange covers every page touched by r: start rounded down, end rounded up.
func PageRange(r Range[VirtualAddress]) Range[VirtualPageNumber] {
	return Range[VirtualPageNumber]{Start: r.Start.Floor(), End: r.End.Ceil()}
}

func PhysicalPageRange(r Range[PhysicalAddress]) Range[PhysicalPageNumber] {
	return Range[PhysicalPageNumber]{Start: r.Start.Floor(), End: r.End.Ceil()}
}
