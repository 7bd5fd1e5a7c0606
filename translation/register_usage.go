package translation

import (
	"slices"

	"github.com/sarchlab/a64jit/ir"
	"github.com/sarchlab/a64jit/state"
)

// ExpandContextAccess replaces the LoadFromContext and StoreToContext
// pseudo-operations with per-register LoadContext and StoreContext
// operations, and prepends a prologue block that loads every register the
// function touches. After it runs the entry block has no predecessors.
//
// Loads cover every register that is used or defined so a store on a path
// that did not redefine a register writes back its original value. Stores
// cover every defined register.
func ExpandContextAccess(g *ir.ControlFlowGraph) {
	if g.Entry == nil {
		return
	}

	used := map[state.Register]bool{}
	defined := map[state.Register]bool{}

	for _, b := range g.Blocks {
		for op := b.Operations.First(); op != nil; op = b.Operations.Next(op) {
			if d := op.Destination(); d != nil && d.Kind == ir.Register {
				defined[d.Reg] = true
			}

			for _, s := range op.Sources() {
				if s.Kind == ir.Register {
					used[s.Reg] = true
				}
			}
		}
	}

	loads := sortedRegisters(used, defined)
	stores := sortedRegisters(defined)

	prologue := ir.NewBasicBlock(g.Arena(), 0)
	prologue.Append(g.NewOperation(ir.LoadFromContext, nil))

	prologue.Next = g.Entry
	g.Entry.AddPredecessor(prologue)

	g.Blocks = append([]*ir.BasicBlock{prologue}, g.Blocks...)
	g.Entry = prologue
	g.Reindex()

	for _, b := range g.Blocks {
		for op := b.Operations.First(); op != nil; {
			next := b.Operations.Next(op)

			switch op.Inst {
			case ir.LoadFromContext:
				for _, r := range loads {
					t := ir.RegisterOperandType(r)
					b.Operations.AddBefore(op, g.NewOperation(ir.LoadContext, ir.Reg(r, t), ir.ContextSlot(r)))
				}
			case ir.StoreToContext:
				for _, r := range stores {
					t := ir.RegisterOperandType(r)
					b.Operations.AddBefore(op, g.NewOperation(ir.StoreContext, nil, ir.ContextSlot(r), ir.Reg(r, t)))
				}
			default:
				op = next
				continue
			}

			b.Operations.Remove(op)
			op.Detach()

			op = next
		}
	}
}

func sortedRegisters(sets ...map[state.Register]bool) []state.Register {
	seen := map[state.Register]bool{}

	var regs []state.Register

	for _, set := range sets {
		for r := range set {
			if !seen[r] {
				seen[r] = true
				regs = append(regs, r)
			}
		}
	}

	slices.SortFunc(regs, func(a, b state.Register) int {
		if a.Type != b.Type {
			return int(a.Type) - int(b.Type)
		}

		return a.Index - b.Index
	})

	return regs
}
