package optimizer

import "github.com/sarchlab/a64jit/ir"

// DeadBlockElimination drops blocks that cannot be reached from the entry
// and renumbers the survivors.
func DeadBlockElimination(g *ir.ControlFlowGraph) bool {
	live := reachable(g)
	if len(live) == len(g.Blocks) {
		return false
	}

	kept := g.Blocks[:0]

	for _, b := range g.Blocks {
		if live[b] {
			kept = append(kept, b)
			continue
		}

		g.DropNext(b)
		g.DropBranch(b)

		for op := b.Operations.First(); op != nil; {
			next := b.Operations.Next(op)
			removeOperation(op)
			op = next
		}

		b.Predecessors = nil
		b.ImmediateDominator = nil
		b.DominanceFrontiers = nil
	}

	for i := len(kept); i < len(g.Blocks); i++ {
		g.Blocks[i] = nil
	}

	g.Blocks = kept

	for _, b := range g.Blocks {
		preds := b.Predecessors[:0]

		for _, p := range b.Predecessors {
			if live[p] {
				preds = append(preds, p)
			}
		}

		b.Predecessors = preds
	}

	g.Reindex()

	return true
}
