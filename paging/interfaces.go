package paging

import (
	"fmt"

	"github.com/pkg/errors"

	"kmem/frame"
	"kmem/memory"
)

var (
	ErrNotMapped       = errors.New("virtual address is not mapped")
	ErrInvalidSegment  = errors.New("invalid segment")
	ErrPermission      = errors.New("access not permitted by page flags")
	ErrUnhandledFault  = errors.New("page fault cannot be handled")
	ErrSwapQuotaIsZero = errors.New("swapper quota is zero")
)

// SwapEntry is one resident page of a lazy segment. Entry points at the
// live leaf entry so policies can read the accessed and dirty bits.
type SwapEntry struct {
	Page  memory.VirtualPageNumber
	Frame *frame.Frame
	Entry EntryRef
}

// Swapper picks the resident page to evict once the quota is reached.
type Swapper interface {
	// quota reached
	Full() bool
	Len() int
	Quota() int

	// Push adds a resident page. Pushing onto a full swapper panics, callers
	// Pop first.
	Push(entry SwapEntry)

	// Pop removes the page chosen by the policy. The caller owns the
	// returned frame.
	Pop() (SwapEntry, bool)

	// Retain drops every entry whose page fails keep and releases its frame.
	Retain(keep func(memory.VirtualPageNumber) bool)
}

type SwapStrategy int

const (
	FIFOStrategy SwapStrategy = iota
	ClockStrategy
)

func (s SwapStrategy) String() string {
	switch s {
	case FIFOStrategy:
		return "fifo"
	case ClockStrategy:
		return "clock"
	}
	return fmt.Sprintf("SwapStrategy(%d)", int(s))
}

func NewSwapper(strategy SwapStrategy, quota int) Swapper {
	switch strategy {
	case FIFOStrategy:
		return &FIFOSwapper{residents{quota: quota}}
	case ClockStrategy:
		return &ClockSwapper{residents{quota: quota}}
	}
	panic(fmt.Sprintf("unknown swap strategy %d", int(strategy)))
}
