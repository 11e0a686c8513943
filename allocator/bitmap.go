package allocator

import (
	"unsafe"

	"kmem/utils/freelist"
)

func bitmapBytes(capacity int) int {
	return int(freelist.BitmapSize(uint64(capacity))) + int(unsafe.Sizeof(freelist.BitmapFreeList{}))
}

// BitmapAllocator is the bitmap peer of the stacked and segment tree
// allocators: one bit per unit, the search resumes at the last freed unit.
type BitmapAllocator struct {
	bitmap []byte
	list   *freelist.BitmapFreeList
}

func (ba *BitmapAllocator) Init(capacity int) {
	size := int(freelist.BitmapSize(uint64(capacity)))
	if cap(ba.bitmap) < size {
		ba.bitmap = make([]byte, size)
	}
	ba.bitmap = ba.bitmap[:size]
	ba.list = freelist.NewBitmapFreeList(ba.bitmap, 0, uint64(capacity))
}

func (ba *BitmapAllocator) Alloc() (int, bool) {
	if ba.list == nil {
		return 0, false
	}
	page, ok := ba.list.GetPage()
	return int(page), ok
}

func (ba *BitmapAllocator) Dealloc(index int) {
	if ba.list == nil || index < 0 {
		return
	}
	ba.list.ReleasePage(uint64(index))
}

// BitmapVectorAllocator is a first fit range allocator: candidate starts
// are walked in steps of align until a fully free run is found.
type BitmapVectorAllocator struct {
	capacity int
	list     *freelist.BitmapFreeList
}

func NewBitmapVectorAllocator(capacity int) *BitmapVectorAllocator {
	bitmap := make([]byte, freelist.BitmapSize(uint64(capacity)))
	return &BitmapVectorAllocator{
		capacity: capacity,
		list:     freelist.NewBitmapFreeList(bitmap, 0, uint64(capacity)),
	}
}

func (bv *BitmapVectorAllocator) Alloc(size, align int) (int, bool) {
	if size <= 0 || align <= 0 {
		return 0, false
	}
	for start := 0; start+size <= bv.capacity; start += align {
		if bv.list.RangeFree(uint64(start), uint64(size)) {
			bv.list.TakeRange(uint64(start), uint64(size))
			return start, true
		}
	}
	return 0, false
}

func (bv *BitmapVectorAllocator) Dealloc(start, size, _ int) {
	for i := start; i < start+size; i++ {
		bv.list.ReleasePage(uint64(i))
	}
}

// Free is the number of units not handed out.
func (bv *BitmapVectorAllocator) Free() int {
	return int(bv.list.Free())
}
