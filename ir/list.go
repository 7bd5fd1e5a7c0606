package ir

// OperationList is an intrusive doubly-linked list of arena operations.
// Insertion and removal are O(1). An operation belongs to at most one list.
type OperationList struct {
	arena      *Arena
	head, tail OpRef
	count      int
}

// NewOperationList returns an empty list over arena.
func NewOperationList(arena *Arena) OperationList {
	return OperationList{arena: arena, head: NilRef, tail: NilRef}
}

// Len returns the number of operations in the list.
func (l *OperationList) Len() int {
	return l.count
}

// First returns the first operation, or nil.
func (l *OperationList) First() *Operation {
	return l.get(l.head)
}

// Last returns the last operation, or nil.
func (l *OperationList) Last() *Operation {
	return l.get(l.tail)
}

// Next returns the operation after op, or nil.
func (l *OperationList) Next(op *Operation) *Operation {
	return l.get(op.next)
}

// Prev returns the operation before op, or nil.
func (l *OperationList) Prev(op *Operation) *Operation {
	return l.get(op.prev)
}

// Slice returns the operations in order.
func (l *OperationList) Slice() []*Operation {
	ops := make([]*Operation, 0, l.count)

	for op := l.First(); op != nil; op = l.Next(op) {
		ops = append(ops, op)
	}

	return ops
}

// AddLast appends op.
func (l *OperationList) AddLast(op *Operation) {
	l.adopt(op)

	op.prev = l.tail
	op.next = NilRef

	if l.tail != NilRef {
		l.get(l.tail).next = op.ref
	} else {
		l.head = op.ref
	}

	l.tail = op.ref
}

// AddFirst prepends op.
func (l *OperationList) AddFirst(op *Operation) {
	l.adopt(op)

	op.prev = NilRef
	op.next = l.head

	if l.head != NilRef {
		l.get(l.head).prev = op.ref
	} else {
		l.tail = op.ref
	}

	l.head = op.ref
}

// AddBefore inserts op before at.
func (l *OperationList) AddBefore(at, op *Operation) {
	if at.prev == NilRef {
		l.AddFirst(op)
		return
	}

	l.adopt(op)

	prev := l.get(at.prev)
	op.prev = prev.ref
	op.next = at.ref
	prev.next = op.ref
	at.prev = op.ref
}

// AddAfter inserts op after at.
func (l *OperationList) AddAfter(at, op *Operation) {
	if at.next == NilRef {
		l.AddLast(op)
		return
	}

	l.AddBefore(l.get(at.next), op)
}

// Remove unlinks op. It does not detach op's operands.
func (l *OperationList) Remove(op *Operation) {
	if op.list != l {
		panic("ir: removing operation from a list it is not in")
	}

	if op.prev != NilRef {
		l.get(op.prev).next = op.next
	} else {
		l.head = op.next
	}

	if op.next != NilRef {
		l.get(op.next).prev = op.prev
	} else {
		l.tail = op.prev
	}

	op.prev, op.next = NilRef, NilRef
	op.list = nil
	l.count--
}

func (l *OperationList) adopt(op *Operation) {
	if op.list != nil {
		panic("ir: operation already in a list")
	}

	if l.arena == nil {
		l.arena = op.arena
		l.head, l.tail = NilRef, NilRef
	}

	if op.arena != l.arena {
		panic("ir: operation from a different arena")
	}

	op.list = l
	l.count++
}

func (l *OperationList) get(ref OpRef) *Operation {
	if ref == NilRef || l.arena == nil {
		return nil
	}

	return l.arena.Get(ref)
}
