package optimizer

import "github.com/sarchlab/a64jit/ir"

// ConstantFolding evaluates pure integer operations whose sources are all
// constants, applies algebraic identities, collapses phis whose incoming
// values are one constant and folds conditional branches on constants. A
// folded branch loses its dead edge; blocks left unreachable have their
// outgoing edges removed so the phis they fed see fewer sources. It repeats
// until nothing changes.
func ConstantFolding(g *ir.ControlFlowGraph) bool {
	changed := false

	for {
		progress := false

		forEachOperation(g, func(b *ir.BasicBlock, op *ir.Operation) {
			switch {
			case op.Inst == ir.BranchIf:
				progress = foldBranch(g, b, op) || progress
			case op.Inst == ir.Phi:
				progress = foldPhi(op) || progress
			case op.Inst.IsPure():
				progress = foldOperation(op) || progress
			}
		})

		progress = detachUnreachable(g) || progress

		if !progress {
			return changed
		}

		changed = true
	}
}

func foldOperation(op *ir.Operation) bool {
	dest := op.Destination()
	if !dest.IsLocal() || !dest.Type.IsInteger() {
		return false
	}

	if v := simplify(op); v != nil {
		replaceAllUses(dest, v)
		removeOperation(op)

		return true
	}

	t := dest.Type
	if op.Inst == ir.Compare {
		t = op.Source(0).Type
	}

	vals := make([]uint64, op.SourcesCount())

	for i, s := range op.Sources() {
		if !s.IsConstant() || !s.Type.IsInteger() {
			return false
		}

		vals[i] = s.Value
	}

	result, ok := ir.EvalInteger(op.Inst, t, vals...)
	if !ok {
		return false
	}

	replaceAllUses(dest, ir.Const(result, dest.Type))
	removeOperation(op)

	return true
}

// simplify returns the operand op reduces to by an identity, or nil.
func simplify(op *ir.Operation) *ir.Operand {
	if op.SourcesCount() != 2 && op.Inst != ir.ConditionalSelect {
		return nil
	}

	switch op.Inst {
	case ir.Add, ir.BitwiseOr, ir.BitwiseExclusiveOr:
		if isConst(op.Source(1), 0) && op.Source(0).Type == op.Destination().Type {
			return op.Source(0)
		}

		if isConst(op.Source(0), 0) && op.Source(1).Type == op.Destination().Type {
			return op.Source(1)
		}
	case ir.Subtract, ir.ShiftLeft, ir.ShiftRightUI, ir.ShiftRightSI, ir.RotateRight:
		if isConst(op.Source(1), 0) && op.Source(0).Type == op.Destination().Type {
			return op.Source(0)
		}
	case ir.Multiply:
		if isConst(op.Source(1), 1) && op.Source(0).Type == op.Destination().Type {
			return op.Source(0)
		}
	case ir.ConditionalSelect:
		if op.SourcesCount() != 3 {
			return nil
		}

		cond := op.Source(0)
		if cond.IsConstant() {
			if cond.Value != 0 {
				return op.Source(1)
			}

			return op.Source(2)
		}

		if op.Source(1) == op.Source(2) {
			return op.Source(1)
		}
	}

	return nil
}

func isConst(o *ir.Operand, v uint64) bool {
	return o.IsConstant() && o.Value == v
}

func foldPhi(op *ir.Operation) bool {
	dest := op.Destination()

	var c *ir.Operand

	for _, s := range op.Sources() {
		switch {
		case s == dest:
			continue
		case !s.IsConstant():
			return false
		case c == nil:
			c = s
		case !c.SameConstant(s):
			return false
		}
	}

	if c == nil {
		return false
	}

	replaceAllUses(dest, c)
	removeOperation(op)

	return true
}

func foldBranch(g *ir.ControlFlowGraph, b *ir.BasicBlock, op *ir.Operation) bool {
	cond := op.Source(0)
	if !cond.IsConstant() {
		return false
	}

	if cond.Value != 0 {
		op.Inst = ir.Branch
		op.SetSources()

		g.DropNext(b)
	} else {
		removeOperation(op)

		g.DropBranch(b)
	}

	return true
}

// detachUnreachable removes the outgoing edges of blocks that cannot be
// reached from the entry. The blocks themselves stay in place.
func detachUnreachable(g *ir.ControlFlowGraph) bool {
	live := reachable(g)
	changed := false

	for _, b := range g.Blocks {
		if live[b] {
			continue
		}

		for _, s := range b.Successors() {
			if live[s] {
				for g.RemoveEdge(b, s) {
				}

				changed = true
			}
		}
	}

	return changed
}
