package optimizer

import "github.com/sarchlab/a64jit/ir"

// CopyPropagation replaces uses of a Copy destination with its source, and
// uses of a phi whose incoming values are all one value (ignoring the phi
// itself on back edges) with that value.
func CopyPropagation(g *ir.ControlFlowGraph) bool {
	changed := false

	for {
		progress := false

		forEachOperation(g, func(_ *ir.BasicBlock, op *ir.Operation) {
			dest := op.Destination()
			if !dest.IsLocal() {
				return
			}

			var v *ir.Operand

			switch op.Inst {
			case ir.Copy:
				if src := op.Source(0); src.Type == dest.Type {
					v = src
				}
			case ir.Phi:
				v = uniquePhiValue(op)
			}

			if v == nil {
				return
			}

			replaceAllUses(dest, v)
			removeOperation(op)

			progress = true
		})

		if !progress {
			return changed
		}

		changed = true
	}
}

// uniquePhiValue returns the single value a phi merges, or nil. A phi whose
// only inputs are itself merges nothing and yields Undefined.
func uniquePhiValue(phi *ir.Operation) *ir.Operand {
	dest := phi.Destination()

	var v *ir.Operand

	for _, s := range phi.Sources() {
		switch {
		case s == dest:
			continue
		case v == nil:
			v = s
		case s != v && !v.SameConstant(s):
			return nil
		}
	}

	if v == nil {
		return ir.Undef(dest.Type)
	}

	return v
}
