package optimizer

import "github.com/sarchlab/a64jit/ir"

// DeadCodeElimination removes operations whose results are never needed.
// Operations with side effects are roots; everything a root transitively
// reads is live; the rest, including phi cycles feeding only each other,
// is removed.
func DeadCodeElimination(g *ir.ControlFlowGraph) bool {
	live := map[*ir.Operation]bool{}

	var work []*ir.Operation

	forEachOperation(g, func(_ *ir.BasicBlock, op *ir.Operation) {
		if op.Inst.HasSideEffects() || op.Destination() == nil || !op.Destination().IsLocal() {
			live[op] = true
			work = append(work, op)
		}
	})

	for len(work) != 0 {
		op := work[len(work)-1]
		work = work[:len(work)-1]

		for _, s := range op.Sources() {
			if !s.IsLocal() {
				continue
			}

			for _, def := range s.Assignments {
				if !live[def] {
					live[def] = true
					work = append(work, def)
				}
			}
		}
	}

	changed := false

	forEachOperation(g, func(_ *ir.BasicBlock, op *ir.Operation) {
		if !live[op] {
			removeOperation(op)
			changed = true
		}
	})

	return changed
}
