// Package optimizer simplifies SSA-form control-flow graphs. Passes only
// remove or simplify operations and edges; they never add control flow.
package optimizer

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/sarchlab/a64jit/ir"
)

// Pass rewrites g in place and reports whether anything changed. A pass
// iterates to its own fixpoint, so running it again right away changes
// nothing.
type Pass struct {
	Name string
	Run  func(g *ir.ControlFlowGraph) bool
}

// Passes is the fixed pipeline order. Folding runs first so folded
// constants and branches expose dead blocks, copies and definitions to the
// later passes.
var Passes = []Pass{
	{Name: "constant_folding", Run: ConstantFolding},
	{Name: "dead_block_elimination", Run: DeadBlockElimination},
	{Name: "copy_propagation", Run: CopyPropagation},
	{Name: "dead_store_elimination", Run: DeadStoreElimination},
	{Name: "dead_code_elimination", Run: DeadCodeElimination},
}

// RunPasses runs the pipeline once, in order.
func RunPasses(ctx context.Context, g *ir.ControlFlowGraph) {
	tr := tlog.SpanFromContext(ctx)

	for _, p := range Passes {
		before := g.OperationsCount()
		changed := p.Run(g)

		if tr.If("optimizer") {
			tr.Printw("pass", "name", p.Name, "changed", changed, "ops_before", before, "ops_after", g.OperationsCount(), "blocks", len(g.Blocks))
		}
	}
}

// removeOperation unlinks op from its block and drops its operand links.
func removeOperation(op *ir.Operation) {
	if l := op.List(); l != nil {
		l.Remove(op)
	}

	op.Detach()
}

// replaceAllUses rewrites every use of local from to to.
func replaceAllUses(from, to *ir.Operand) {
	uses := append([]*ir.Operation(nil), from.Uses...)

	for _, use := range uses {
		use.ReplaceUses(from, to)
	}
}

// forEachOperation visits every operation; f may remove the visited
// operation.
func forEachOperation(g *ir.ControlFlowGraph, f func(b *ir.BasicBlock, op *ir.Operation)) {
	for _, b := range g.Blocks {
		for op := b.Operations.First(); op != nil; {
			next := b.Operations.Next(op)
			f(b, op)
			op = next
		}
	}
}

func reachable(g *ir.ControlFlowGraph) map[*ir.BasicBlock]bool {
	set := map[*ir.BasicBlock]bool{}

	for _, b := range g.PostOrder() {
		set[b] = true
	}

	return set
}
