package optimizer

import "github.com/sarchlab/a64jit/ir"

// DeadStoreElimination removes context stores that write back the value
// just loaded from the same slot. Host callbacks only run at operations
// that are followed by a reload, so a value loaded from a slot still
// matches the slot at any store it reaches.
func DeadStoreElimination(g *ir.ControlFlowGraph) bool {
	changed := false

	forEachOperation(g, func(_ *ir.BasicBlock, op *ir.Operation) {
		if op.Inst != ir.StoreContext {
			return
		}

		slot, value := op.Source(0), op.Source(1)
		if !value.IsLocal() || len(value.Assignments) != 1 {
			return
		}

		def := value.Assignments[0]
		if def.Inst != ir.LoadContext || !sameSlot(def.Source(0), slot) {
			return
		}

		removeOperation(op)

		changed = true
	})

	return changed
}

func sameSlot(a, b *ir.Operand) bool {
	if a.Kind != ir.Attribute || b.Kind != ir.Attribute || a.Slot != b.Slot {
		return false
	}

	return a.Slot != ir.RegisterSlot || a.Reg == b.Reg
}
