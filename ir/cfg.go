package ir

import (
	"fmt"
	"strings"

	"github.com/oleiade/lane"
)

// ControlFlowGraph is a translated function's blocks. Blocks are ordered by
// Index; Entry is the first block executed.
type ControlFlowGraph struct {
	Entry  *BasicBlock
	Blocks []*BasicBlock

	arena *Arena
}

// NewControlFlowGraph returns an empty graph over arena.
func NewControlFlowGraph(arena *Arena) *ControlFlowGraph {
	return &ControlFlowGraph{arena: arena}
}

// Arena returns the arena the graph's operations live in.
func (g *ControlFlowGraph) Arena() *Arena {
	return g.arena
}

// NewOperation allocates an operation in the graph's arena.
func (g *ControlFlowGraph) NewOperation(inst Instruction, dest *Operand, sources ...*Operand) *Operation {
	return g.arena.New(inst, dest, sources...)
}

// PostOrder returns the blocks reachable from Entry in depth-first post
// order. Next is explored before Branch.
func (g *ControlFlowGraph) PostOrder() []*BasicBlock {
	if g.Entry == nil {
		return nil
	}

	order := make([]*BasicBlock, 0, len(g.Blocks))
	visited := map[*BasicBlock]bool{g.Entry: true}

	stack := lane.NewStack()
	stack.Push(g.Entry)

	for !stack.Empty() {
		b := stack.Head().(*BasicBlock)
		done := true

		for _, s := range [2]*BasicBlock{b.Next, b.Branch} {
			if s != nil && !visited[s] {
				visited[s] = true
				stack.Push(s)
				done = false

				break
			}
		}

		if done {
			order = append(order, stack.Pop().(*BasicBlock))
		}
	}

	return order
}

// ReversePostOrder returns PostOrder reversed.
func (g *ControlFlowGraph) ReversePostOrder() []*BasicBlock {
	po := g.PostOrder()

	for i, j := 0, len(po)-1; i < j; i, j = i+1, j-1 {
		po[i], po[j] = po[j], po[i]
	}

	return po
}

// RemoveEdge deletes the edge from -> to, preferring the Branch edge when
// both point at to. It returns false when there is no such edge.
func (g *ControlFlowGraph) RemoveEdge(from, to *BasicBlock) bool {
	switch {
	case from.Branch == to:
		g.DropBranch(from)
	case from.Next == to:
		g.DropNext(from)
	default:
		return false
	}

	return true
}

// DropNext deletes the fall-through edge of from.
func (g *ControlFlowGraph) DropNext(from *BasicBlock) {
	to := from.Next
	if to == nil {
		return
	}

	from.Next = nil
	g.unlink(from, to)
}

// DropBranch deletes the branch edge of from.
func (g *ControlFlowGraph) DropBranch(from *BasicBlock) {
	to := from.Branch
	if to == nil {
		return
	}

	from.Branch = nil
	g.unlink(from, to)
}

// unlink removes from from to's predecessors, and from's phi sources in to,
// once no edge between them remains.
func (g *ControlFlowGraph) unlink(from, to *BasicBlock) {
	if from.Next == to || from.Branch == to {
		return
	}

	to.RemovePredecessor(from)

	for _, phi := range to.Phis() {
		if i := phi.PhiSourceFrom(from); i >= 0 {
			phi.RemovePhiSource(i)
		}
	}
}

// Reindex renumbers Blocks by position.
func (g *ControlFlowGraph) Reindex() {
	for i, b := range g.Blocks {
		b.Index = i
	}
}

// OperationsCount returns the total number of operations in all blocks.
func (g *ControlFlowGraph) OperationsCount() int {
	n := 0

	for _, b := range g.Blocks {
		n += b.Operations.Len()
	}

	return n
}

// Dump formats the graph one block per paragraph.
func (g *ControlFlowGraph) Dump() string {
	var sb strings.Builder

	p := NewPrinter()

	for _, b := range g.Blocks {
		fmt.Fprintf(&sb, "b%d:", b.Index)

		if len(b.Predecessors) != 0 {
			sb.WriteString(" preds=")

			for i, pr := range b.Predecessors {
				if i != 0 {
					sb.WriteByte(',')
				}

				fmt.Fprintf(&sb, "b%d", pr.Index)
			}
		}

		if b.Next != nil {
			fmt.Fprintf(&sb, " next=b%d", b.Next.Index)
		}

		if b.Branch != nil {
			fmt.Fprintf(&sb, " branch=b%d", b.Branch.Index)
		}

		if b.ImmediateDominator != nil {
			fmt.Fprintf(&sb, " idom=b%d", b.ImmediateDominator.Index)
		}

		sb.WriteByte('\n')

		for op := b.Operations.First(); op != nil; op = b.Operations.Next(op) {
			fmt.Fprintf(&sb, "\t%s\n", p.Operation(op))
		}
	}

	return sb.String()
}
