package freelist

import "github.com/pkg/errors"

var ErrNoFreePages = errors.New("no free pages")

type FreeList interface {
	GetPages(count uint64) ([]uint64, error)
	ReleasePages(pages []uint64) error
	FreePageAvailable() bool
}

// BitmapFreeList tracks pages [start, end) with one bit each, least
// significant bit first. A set bit is a taken page.
//
// The bitmap is caller provided so it can live wherever the caller has room,
// nothing here allocates except GetPages' result slice.
type BitmapFreeList struct {
	bitmap []byte
	start  uint64
	end    uint64
	free   uint64
	// next search starts here, last released page first
	hint uint64
}

// BitmapSize is the number of bytes needed to track count pages.
func BitmapSize(count uint64) uint64 {
	return (count + 7) / 8
}

func NewBitmapFreeList(bitmap []byte, start, end uint64) *BitmapFreeList {
	if uint64(len(bitmap))*8 < end-start {
		panic("bitmap too small for the page range")
	}
	clear(bitmap)
	return &BitmapFreeList{
		bitmap: bitmap,
		start:  start,
		end:    end,
		free:   end - start,
		hint:   start,
	}
}

func (f *BitmapFreeList) bit(page uint64) (uint64, byte) {
	offset := page - f.start
	return offset / 8, byte(1) << (offset % 8)
}

func (f *BitmapFreeList) inRange(page uint64) bool {
	return page >= f.start && page < f.end
}

// IsFree reports false for pages outside of the list.
func (f *BitmapFreeList) IsFree(page uint64) bool {
	if !f.inRange(page) {
		return false
	}
	i, mask := f.bit(page)
	return f.bitmap[i]&mask == 0
}

func (f *BitmapFreeList) take(page uint64) {
	i, mask := f.bit(page)
	f.bitmap[i] |= mask
	f.free--
}

// GetPage takes a single page, searching from the hint and wrapping around.
func (f *BitmapFreeList) GetPage() (uint64, bool) {
	if f.free == 0 {
		return 0, false
	}
	page := f.hint
	for n := f.end - f.start; n > 0; n-- {
		if f.IsFree(page) {
			f.take(page)
			f.hint = page
			return page, true
		}
		page++
		if page == f.end {
			page = f.start
		}
	}
	return 0, false
}

// GetPages takes up to count pages. Fewer are returned when the list runs
// dry, ErrNoFreePages only when nothing at all was available.
func (f *BitmapFreeList) GetPages(count uint64) ([]uint64, error) {
	if f.free == 0 {
		return nil, ErrNoFreePages
	}
	pages := make([]uint64, 0, min(count, f.free))
	for uint64(len(pages)) < count {
		page, ok := f.GetPage()
		if !ok {
			break
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// TakeRange marks [page, page+count) taken. Every page in it must be free.
func (f *BitmapFreeList) TakeRange(page, count uint64) {
	for p := page; p < page+count; p++ {
		if !f.IsFree(p) {
			panic("taking a page that is not free")
		}
		f.take(p)
	}
}

// RangeFree reports whether all of [page, page+count) is inside the list and free.
func (f *BitmapFreeList) RangeFree(page, count uint64) bool {
	if page < f.start || page+count > f.end {
		return false
	}
	for p := page; p < page+count; p++ {
		if !f.IsFree(p) {
			return false
		}
	}
	return true
}

// ReleasePage hands a page back, pages outside of the list or already free
// are ignored.
func (f *BitmapFreeList) ReleasePage(page uint64) {
	if !f.inRange(page) || f.IsFree(page) {
		return
	}
	i, mask := f.bit(page)
	f.bitmap[i] &^= mask
	f.free++
	f.hint = page
}

func (f *BitmapFreeList) ReleasePages(pages []uint64) error {
	for _, page := range pages {
		f.ReleasePage(page)
	}
	return nil
}

func (f *BitmapFreeList) FreePageAvailable() bool {
	return f.free > 0
}

func (f *BitmapFreeList) Free() uint64 {
	return f.free
}
