package ir

// BasicBlock is a straight-line run of operations with at most two
// successors: Next, the fall-through, and Branch, the explicit target.
type BasicBlock struct {
	// Index is assigned in creation order by the CFG builder.
	Index int

	Operations OperationList

	Next   *BasicBlock
	Branch *BasicBlock

	Predecessors []*BasicBlock

	ImmediateDominator *BasicBlock
	DominanceFrontiers []*BasicBlock
}

// NewBasicBlock returns an empty block whose operations come from arena.
func NewBasicBlock(arena *Arena, index int) *BasicBlock {
	return &BasicBlock{
		Index:      index,
		Operations: NewOperationList(arena),
	}
}

// Successors returns the non-nil successors, Next first. A block whose Next
// and Branch are the same block lists it once.
func (b *BasicBlock) Successors() []*BasicBlock {
	succs := make([]*BasicBlock, 0, 2)

	if b.Next != nil {
		succs = append(succs, b.Next)
	}

	if b.Branch != nil && b.Branch != b.Next {
		succs = append(succs, b.Branch)
	}

	return succs
}

// LastOp returns the block's final operation, or nil.
func (b *BasicBlock) LastOp() *Operation {
	return b.Operations.Last()
}

// EndsUnconditionally reports whether control never falls through the end
// of the block.
func (b *BasicBlock) EndsUnconditionally() bool {
	last := b.LastOp()

	return last != nil && last.Inst.IsUnconditional()
}

// Append adds op at the end of the block.
func (b *BasicBlock) Append(op *Operation) {
	b.Operations.AddLast(op)
}

// InsertBeforeTerminator adds op before the block's terminator, or at the
// end when the block has none.
func (b *BasicBlock) InsertBeforeTerminator(op *Operation) {
	last := b.LastOp()
	if last != nil && last.Inst.IsTerminator() {
		b.Operations.AddBefore(last, op)
		return
	}

	b.Operations.AddLast(op)
}

// Phis returns the phi operations at the head of the block.
func (b *BasicBlock) Phis() []*Operation {
	var phis []*Operation

	for op := b.Operations.First(); op != nil && op.Inst == Phi; op = b.Operations.Next(op) {
		phis = append(phis, op)
	}

	return phis
}

// AddPredecessor records p as a predecessor once.
func (b *BasicBlock) AddPredecessor(p *BasicBlock) {
	for _, x := range b.Predecessors {
		if x == p {
			return
		}
	}

	b.Predecessors = append(b.Predecessors, p)
}

// RemovePredecessor forgets p.
func (b *BasicBlock) RemovePredecessor(p *BasicBlock) {
	for i, x := range b.Predecessors {
		if x == p {
			b.Predecessors = append(b.Predecessors[:i], b.Predecessors[i+1:]...)
			return
		}
	}
}

// AddFrontier records d in the dominance frontier once.
func (b *BasicBlock) AddFrontier(d *BasicBlock) {
	for _, x := range b.DominanceFrontiers {
		if x == d {
			return
		}
	}

	b.DominanceFrontiers = append(b.DominanceFrontiers, d)
}

// Dominates reports whether b dominates x. Both must be reachable and have
// dominators computed.
func (b *BasicBlock) Dominates(x *BasicBlock) bool {
	for x != nil {
		if x == b {
			return true
		}

		if x.ImmediateDominator == x {
			return false
		}

		x = x.ImmediateDominator
	}

	return false
}
