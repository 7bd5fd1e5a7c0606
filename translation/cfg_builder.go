package translation

import (
	"github.com/sarchlab/a64jit/ir"
	"tlog.app/go/errors"
)

// CFG construction errors.
var (
	ErrUnresolvedLabel = errors.New("branch to a label that is never marked")
	ErrDuplicateLabel  = errors.New("label marked twice")
)

// BuildCFG partitions a flat operation stream into basic blocks. A block
// starts at every MarkLabel and after every terminator; MarkLabel operations
// are dropped. Branch label sources are resolved to Branch edges and then
// removed from the operations.
func BuildCFG(arena *ir.Arena, ops []*ir.Operation) (*ir.ControlFlowGraph, error) {
	g := ir.NewControlFlowGraph(arena)

	b := &cfgBuilder{
		g:      g,
		labels: map[ir.LabelID]*ir.BasicBlock{},
	}

	for _, op := range ops {
		if op.Inst == ir.MarkLabel {
			if err := b.markLabel(op.Source(0).Label); err != nil {
				return nil, err
			}

			op.Detach()

			continue
		}

		if b.current == nil {
			b.startBlock(nil)
		}

		b.current.Append(op)

		if op.Inst.IsBranch() {
			label := op.Source(op.SourcesCount() - 1)
			b.current.Branch = b.labelBlock(label.Label)
			op.SetSources(op.Sources()[:op.SourcesCount()-1]...)
		}

		if op.Inst.IsTerminator() {
			b.current = nil
		}
	}

	for id, blk := range b.labels {
		if blk.Index < 0 {
			return nil, errors.Wrap(ErrUnresolvedLabel, "label L%d", id)
		}
	}

	for _, blk := range g.Blocks {
		for _, s := range blk.Successors() {
			s.AddPredecessor(blk)
		}
	}

	if len(g.Blocks) != 0 {
		g.Entry = g.Blocks[0]
	}

	return g, nil
}

type cfgBuilder struct {
	g       *ir.ControlFlowGraph
	labels  map[ir.LabelID]*ir.BasicBlock
	current *ir.BasicBlock
	last    *ir.BasicBlock
}

// labelBlock returns the block for a label, creating an unplaced
// placeholder on first reference.
func (b *cfgBuilder) labelBlock(id ir.LabelID) *ir.BasicBlock {
	blk, ok := b.labels[id]
	if !ok {
		blk = ir.NewBasicBlock(b.g.Arena(), -1)
		b.labels[id] = blk
	}

	return blk
}

func (b *cfgBuilder) markLabel(id ir.LabelID) error {
	blk := b.labelBlock(id)
	if blk.Index >= 0 {
		return errors.Wrap(ErrDuplicateLabel, "label L%d", id)
	}

	b.startBlock(blk)

	return nil
}

// startBlock places blk (or a fresh block) next in the block list and links
// the previous block to it unless that block ends unconditionally.
func (b *cfgBuilder) startBlock(blk *ir.BasicBlock) {
	if blk == nil {
		blk = ir.NewBasicBlock(b.g.Arena(), -1)
	}

	blk.Index = len(b.g.Blocks)
	b.g.Blocks = append(b.g.Blocks, blk)

	if b.last != nil && !b.last.EndsUnconditionally() {
		b.last.Next = blk
	}

	b.last = blk
	b.current = blk
}
