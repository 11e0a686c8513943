package dynlist

/*
A doubly linked list that can be used before any heap exists.

- the first node lives inside the List value itself, so a list holding one
  element needs no allocation at all
- further nodes come from an arena addressed by index instead of raw
  pointers; freed slots are recycled before the arena grows
- the head value always sits in the inline node, popping the front pulls the
  second node's value into it

References: 0 is nil, 1 is the inline node, n >= 2 is arena[n-2].
*/
const (
	nilRef   = 0
	firstRef = 1
)

type node[T comparable] struct {
	value T
	prev  int
	next  int
}

type List[T comparable] struct {
	first  node[T]
	arena  []node[T]
	free   []int
	tail   int
	length int
}

func New[T comparable]() *List[T] {
	return &List[T]{}
}

func (l *List[T]) node(ref int) *node[T] {
	if ref == firstRef {
		return &l.first
	}
	return &l.arena[ref-2]
}

// newNode may grow the arena, so callers must not hold node pointers across it.
func (l *List[T]) newNode(value T, prev, next int) int {
	n := node[T]{value: value, prev: prev, next: next}
	if len(l.free) > 0 {
		ref := l.free[len(l.free)-1]
		l.free = l.free[:len(l.free)-1]
		*l.node(ref) = n
		return ref
	}
	l.arena = append(l.arena, n)
	return len(l.arena) + 1
}

func (l *List[T]) releaseNode(ref int) {
	*l.node(ref) = node[T]{}
	l.free = append(l.free, ref)
}

func (l *List[T]) Len() int {
	return l.length
}

func (l *List[T]) IsEmpty() bool {
	return l.length == 0
}

func (l *List[T]) setOnly(value T) {
	l.first = node[T]{value: value}
	l.tail = firstRef
	l.length = 1
}

func (l *List[T]) PushBack(value T) {
	if l.length == 0 {
		l.setOnly(value)
		return
	}
	ref := l.newNode(value, l.tail, nilRef)
	l.node(l.tail).next = ref
	l.tail = ref
	l.length++
}

func (l *List[T]) PushFront(value T) {
	if l.length == 0 {
		l.setOnly(value)
		return
	}
	// the old head moves out of the inline node into a fresh one right behind it
	second := l.first.next
	ref := l.newNode(l.first.value, firstRef, second)
	if second == nilRef {
		l.tail = ref
	} else {
		l.node(second).prev = ref
	}
	l.first.next = ref
	l.first.value = value
	l.length++
}

func (l *List[T]) PopFront() (T, bool) {
	var zero T
	if l.length == 0 {
		return zero, false
	}
	value := l.first.value
	if l.length == 1 {
		l.first = node[T]{}
		l.tail = nilRef
		l.length = 0
		return value, true
	}

	secondRef := l.first.next
	second := *l.node(secondRef)
	l.first.value = second.value
	l.first.next = second.next
	if second.next == nilRef {
		l.tail = firstRef
	} else {
		l.node(second.next).prev = firstRef
	}
	l.releaseNode(secondRef)
	l.length--
	return value, true
}

func (l *List[T]) PopBack() (T, bool) {
	if l.length <= 1 {
		return l.PopFront()
	}
	ref := l.tail
	last := *l.node(ref)
	l.node(last.prev).next = nilRef
	l.tail = last.prev
	l.releaseNode(ref)
	l.length--
	return last.value, true
}

// Remove deletes the element at position at and returns it. at must be
// within the list.
func (l *List[T]) Remove(at int) T {
	if at < 0 || at >= l.length {
		panic("dynlist: remove out of range")
	}
	if at == 0 {
		value, _ := l.PopFront()
		return value
	}

	ref := l.first.next
	for i := 1; i < at; i++ {
		ref = l.node(ref).next
	}
	n := *l.node(ref)
	l.node(n.prev).next = n.next
	if n.next == nilRef {
		l.tail = n.prev
	} else {
		l.node(n.next).prev = n.prev
	}
	l.releaseNode(ref)
	l.length--
	return n.value
}

// Find returns the position of the first element equal to value.
func (l *List[T]) Find(value T) (int, bool) {
	found := -1
	l.Range(func(i int, v T) bool {
		if v == value {
			found = i
			return false
		}
		return true
	})
	return found, found >= 0
}

func (l *List[T]) Range(onEach func(int, T) bool) {
	if l.length == 0 {
		return
	}
	for i, ref := 0, firstRef; ref != nilRef; i, ref = i+1, l.node(ref).next {
		if !onEach(i, l.node(ref).value) {
			return
		}
	}
}

// RangeReverse walks from the tail to the head.
func (l *List[T]) RangeReverse(onEach func(int, T) bool) {
	if l.length == 0 {
		return
	}
	for i, ref := l.length-1, l.tail; ref != nilRef; i, ref = i-1, l.node(ref).prev {
		if !onEach(i, l.node(ref).value) {
			return
		}
	}
}

// Nodes reports how many arena slots exist, including recycled ones.
func (l *List[T]) Nodes() int {
	return len(l.arena)
}

// Destroy drops every element and hands the arena back.
func (l *List[T]) Destroy() {
	*l = List[T]{}
}
