package allocator

import (
	"fmt"
	"math/bits"

	"kmem/utils/dynlist"
)

// blockList is one free list of the buddy allocator, holding block starts.
type blockList interface {
	PushBack(int)
	Len() int
	Find(int) (int, bool)
	Remove(at int) int
	Range(func(int, int) bool)
}

type sliceList []int

func (s *sliceList) PushBack(start int) {
	*s = append(*s, start)
}

func (s *sliceList) Len() int {
	return len(*s)
}

func (s *sliceList) Find(start int) (int, bool) {
	for i, v := range *s {
		if v == start {
			return i, true
		}
	}
	return -1, false
}

func (s *sliceList) Remove(at int) int {
	v := (*s)[at]
	*s = append((*s)[:at], (*s)[at+1:]...)
	return v
}

func (s *sliceList) Range(onEach func(int, int) bool) {
	for i, v := range *s {
		if !onEach(i, v) {
			return
		}
	}
}

/*
BuddyAllocator keeps one free list per order, order k holding blocks of
2^k units that start on a multiple of 2^k.

A capacity that is not a power of two is cut greedily, largest block first,
so 12 becomes an order 3 block at 0 and an order 2 block at 8.
*/
type BuddyAllocator struct {
	capacity int
	free     []blockList
}

// NewBuddyAllocator backs the free lists with ordinary slices.
func NewBuddyAllocator(capacity int) *BuddyAllocator {
	return newBuddyAllocator(capacity, func() blockList { return &sliceList{} })
}

// NewDynBuddyAllocator backs the free lists with dynlist, whose first node
// per order needs no allocation.
func NewDynBuddyAllocator(capacity int) *BuddyAllocator {
	return newBuddyAllocator(capacity, func() blockList { return dynlist.New[int]() })
}

func newBuddyAllocator(capacity int, newList func() blockList) *BuddyAllocator {
	if capacity < 0 {
		capacity = 0
	}
	b := &BuddyAllocator{
		capacity: capacity,
		free:     make([]blockList, bits.Len(uint(capacity))),
	}
	for k := range b.free {
		b.free[k] = newList()
	}

	start := 0
	for residual := capacity; residual > 0; {
		k := bits.Len(uint(residual)) - 1
		b.free[k].PushBack(start)
		start += 1 << k
		residual -= 1 << k
	}
	return b
}

// order is the smallest k with 2^k >= size.
func order(size int) int {
	if size <= 1 {
		return 0
	}
	return bits.Len(uint(size - 1))
}

func (b *BuddyAllocator) Alloc(size, align int) (int, bool) {
	if size <= 0 || align <= 0 {
		return 0, false
	}
	k := order(size)

	for index := k; index < len(b.free); index++ {
		list := b.free[index]
		at, start, offset := -1, 0, 0
		list.Range(func(i, addr int) bool {
			for o := 0; o <= index-k; o++ {
				if (addr+o<<k)%align == 0 {
					at, start, offset = i, addr, o
					return false
				}
			}
			return true
		})
		if at < 0 {
			continue
		}

		list.Remove(at)
		rel := offset << k
		for j := index; j > k; j-- {
			half := 1 << (j - 1)
			if rel < half {
				b.free[j-1].PushBack(start + half)
			} else {
				b.free[j-1].PushBack(start)
				start += half
				rel -= half
			}
		}
		return start, true
	}
	return 0, false
}

func (b *BuddyAllocator) Dealloc(start, size, _ int) {
	if size <= 0 || size&(size-1) != 0 {
		panic(fmt.Sprintf("buddy dealloc of %d units, not a power of two", size))
	}
	k := bits.TrailingZeros(uint(size))
	if k >= len(b.free) {
		panic(fmt.Sprintf("buddy dealloc of %d units exceeds capacity %d", size, b.capacity))
	}

	for {
		buddy := start - size
		if start%(size*2) == 0 {
			buddy = start + size
		}
		at, ok := b.free[k].Find(buddy)
		if !ok || k+1 >= len(b.free) {
			b.free[k].PushBack(start)
			return
		}
		b.free[k].Remove(at)
		start = min(start, buddy)
		size *= 2
		k++
	}
}

// FreeBlocks lists the free block starts of every order, lowest order first.
func (b *BuddyAllocator) FreeBlocks() [][]int {
	out := make([][]int, len(b.free))
	for k, list := range b.free {
		out[k] = make([]int, 0, list.Len())
		list.Range(func(_ int, start int) bool {
			out[k] = append(out[k], start)
			return true
		})
	}
	return out
}

// Free is the number of units sitting in the free lists.
func (b *BuddyAllocator) Free() int {
	total := 0
	for k, list := range b.free {
		total += list.Len() << k
	}
	return total
}
