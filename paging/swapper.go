package paging

import (
	"fmt"

	"kmem/memory"
)

type residents struct {
	quota   int
	entries []SwapEntry
}

func (r *residents) Full() bool {
	return len(r.entries) >= r.quota
}

func (r *residents) Len() int {
	return len(r.entries)
}

func (r *residents) Quota() int {
	return r.quota
}

func (r *residents) Push(entry SwapEntry) {
	if r.Full() {
		panic(fmt.Sprintf("push of %s onto a full swapper (quota %d)", entry.Page, r.quota))
	}
	r.entries = append(r.entries, entry)
}

func (r *residents) take(at int) SwapEntry {
	entry := r.entries[at]
	r.entries = append(r.entries[:at], r.entries[at+1:]...)
	return entry
}

func (r *residents) Retain(keep func(memory.VirtualPageNumber) bool) {
	kept := r.entries[:0]
	for _, entry := range r.entries {
		if keep(entry.Page) {
			kept = append(kept, entry)
		} else {
			entry.Frame.Release()
		}
	}
	clear(r.entries[len(kept):])
	r.entries = kept
}

// FIFOSwapper evicts in push order, ignoring the page flags.
type FIFOSwapper struct {
	residents
}

func (s *FIFOSwapper) Pop() (SwapEntry, bool) {
	if len(s.entries) == 0 {
		return SwapEntry{}, false
	}
	return s.take(0), true
}

/*
ClockSwapper ranks every resident by the (accessed, dirty) bits of its live
page table entry and evicts the lowest

	(0,0) < (0,1) < (1,0) < (1,1)

the earliest pushed wins a tie. Every Pop rescans all residents from the
start instead of resuming from a rotating hand, and bits are never cleared
on the way.
*/
type ClockSwapper struct {
	residents
}

func (s *ClockSwapper) Pop() (SwapEntry, bool) {
	if len(s.entries) == 0 {
		return SwapEntry{}, false
	}
	victim, best := 0, 4
	for i, entry := range s.entries {
		if rank := entry.Entry.Load().AccessedDirty(); rank < best {
			victim, best = i, rank
		}
	}
	return s.take(victim), true
}
