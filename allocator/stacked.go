package allocator

// MaxPages bounds how many free ranges the stacked allocator can hold.
const MaxPages = 0x8000

// Section is the free index range [Start, End).
type Section struct {
	Start int
	End   int
}

/*
StackedAllocator keeps free ranges on a fixed size stack.

	alloc   pop [s, e), push back [s+1, e) if anything is left, return s
	dealloc push [i, i+1)

Freed units are never merged with a neighbouring range, fragmentation is
accepted. Pushing more than MaxPages ranges is the caller's problem.
*/
type StackedAllocator struct {
	list     [MaxPages]Section
	top      int
	capacity int
}

func (sa *StackedAllocator) Init(capacity int) {
	sa.capacity = capacity
	sa.top = 0
	if capacity > 0 {
		sa.list[0] = Section{Start: 0, End: capacity}
		sa.top = 1
	}
}

func (sa *StackedAllocator) Alloc() (int, bool) {
	if sa.top == 0 {
		return 0, false
	}
	sa.top--
	st := sa.list[sa.top]
	if st.End-st.Start > 1 {
		sa.list[sa.top] = Section{Start: st.Start + 1, End: st.End}
		sa.top++
	}
	return st.Start, true
}

func (sa *StackedAllocator) Dealloc(index int) {
	if index < 0 || index >= sa.capacity {
		return
	}
	sa.list[sa.top] = Section{Start: index, End: index + 1}
	sa.top++
}

// Sections lists the free ranges bottom of the stack first.
func (sa *StackedAllocator) Sections() []Section {
	out := make([]Section, sa.top)
	copy(out, sa.list[:sa.top])
	return out
}
