package translation

import "github.com/sarchlab/a64jit/ir"

// FindDominators computes every reachable block's immediate dominator with
// the iterative algorithm of Cooper, Harvey and Kennedy. The entry block
// dominates itself; unreachable blocks keep a nil immediate dominator.
func FindDominators(g *ir.ControlFlowGraph) {
	for _, b := range g.Blocks {
		b.ImmediateDominator = nil
	}

	if g.Entry == nil {
		return
	}

	postOrder := g.PostOrder()

	number := make(map[*ir.BasicBlock]int, len(postOrder))
	for i, b := range postOrder {
		number[b] = i
	}

	intersect := func(a, b *ir.BasicBlock) *ir.BasicBlock {
		for a != b {
			for number[a] < number[b] {
				a = a.ImmediateDominator
			}

			for number[b] < number[a] {
				b = b.ImmediateDominator
			}
		}

		return a
	}

	g.Entry.ImmediateDominator = g.Entry

	for changed := true; changed; {
		changed = false

		// Reverse post order, skipping the entry which is last in post order.
		for i := len(postOrder) - 2; i >= 0; i-- {
			b := postOrder[i]

			var idom *ir.BasicBlock

			for _, p := range b.Predecessors {
				if p.ImmediateDominator == nil {
					continue
				}

				if idom == nil {
					idom = p
				} else {
					idom = intersect(p, idom)
				}
			}

			if b.ImmediateDominator != idom {
				b.ImmediateDominator = idom
				changed = true
			}
		}
	}
}

// FindDominanceFrontiers fills DominanceFrontiers for every block.
// FindDominators must have run. Blocks with two or more predecessors (the
// entry counts its implicit function-entry edge) are added to the frontier
// of every block on each predecessor's dominator chain below the join's
// immediate dominator.
func FindDominanceFrontiers(g *ir.ControlFlowGraph) {
	for _, b := range g.Blocks {
		b.DominanceFrontiers = nil
	}

	for _, b := range g.Blocks {
		if b.ImmediateDominator == nil {
			continue
		}

		preds := len(b.Predecessors)
		if b == g.Entry {
			preds++
		}

		if preds < 2 {
			continue
		}

		for _, p := range b.Predecessors {
			if p.ImmediateDominator == nil {
				continue
			}

			for runner := p; ; runner = runner.ImmediateDominator {
				if runner == b.ImmediateDominator && b != g.Entry {
					break
				}

				runner.AddFrontier(b)

				if runner == g.Entry {
					break
				}
			}
		}
	}
}

// DominatorTree returns the children of each block in the dominator tree,
// in block index order.
func DominatorTree(g *ir.ControlFlowGraph) map[*ir.BasicBlock][]*ir.BasicBlock {
	children := make(map[*ir.BasicBlock][]*ir.BasicBlock, len(g.Blocks))

	for _, b := range g.Blocks {
		if idom := b.ImmediateDominator; idom != nil && idom != b {
			children[idom] = append(children[idom], b)
		}
	}

	return children
}
