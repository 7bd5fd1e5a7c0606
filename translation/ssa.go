package translation

import (
	"github.com/oleiade/lane"

	"github.com/sarchlab/a64jit/ir"
	"github.com/sarchlab/a64jit/state"
)

// ConvertToSSA renames register definitions and uses into single-assignment
// locals. Phis are placed at the iterated dominance frontier of every block
// defining a register, then a walk of the dominator tree rewrites each use
// to the version reaching it. Uses without a reaching definition become
// Undefined. Dominators and frontiers must be current.
//
// Blocks unreachable from the entry are renamed as separate roots so no
// Register operand survives the conversion.
func ConvertToSSA(g *ir.ControlFlowGraph) {
	if g.Entry == nil {
		return
	}

	insertPhis(g)

	r := &renamer{
		g:        g,
		stacks:   map[state.Register][]*ir.Operand{},
		versions: map[state.Register]int{},
		children: DominatorTree(g),
		visited:  map[*ir.BasicBlock]bool{},
	}

	r.walk(g.Entry)

	for _, b := range g.Blocks {
		if !r.visited[b] {
			r.walk(b)
		}
	}
}

func insertPhis(g *ir.ControlFlowGraph) {
	defSites := map[state.Register][]*ir.BasicBlock{}
	types := map[state.Register]ir.OperandType{}

	for _, b := range g.Blocks {
		for op := b.Operations.First(); op != nil; op = b.Operations.Next(op) {
			d := op.Destination()
			if d == nil || d.Kind != ir.Register {
				continue
			}

			sites := defSites[d.Reg]
			if len(sites) == 0 || sites[len(sites)-1] != b {
				defSites[d.Reg] = append(sites, b)
			}

			types[d.Reg] = d.Type
		}
	}

	for _, reg := range sortedRegisters(boolSet(defSites)) {
		hasPhi := map[*ir.BasicBlock]bool{}
		queued := map[*ir.BasicBlock]bool{}

		work := append([]*ir.BasicBlock(nil), defSites[reg]...)
		for _, b := range work {
			queued[b] = true
		}

		for len(work) != 0 {
			b := work[len(work)-1]
			work = work[:len(work)-1]

			for _, d := range b.DominanceFrontiers {
				if hasPhi[d] {
					continue
				}

				hasPhi[d] = true
				d.Operations.AddFirst(g.NewOperation(ir.Phi, ir.Reg(reg, types[reg])))

				if !queued[d] {
					queued[d] = true
					work = append(work, d)
				}
			}
		}
	}
}

func boolSet(m map[state.Register][]*ir.BasicBlock) map[state.Register]bool {
	set := make(map[state.Register]bool, len(m))
	for r := range m {
		set[r] = true
	}

	return set
}

type renamer struct {
	g        *ir.ControlFlowGraph
	stacks   map[state.Register][]*ir.Operand
	versions map[state.Register]int
	children map[*ir.BasicBlock][]*ir.BasicBlock
	visited  map[*ir.BasicBlock]bool
}

type renameFrame struct {
	block  *ir.BasicBlock
	pushed []state.Register
	done   bool
}

// walk renames the dominator subtree rooted at root using an explicit
// stack. A frame is visited twice: once to rename and push its children,
// once to pop the versions it defined.
func (r *renamer) walk(root *ir.BasicBlock) {
	stack := lane.NewStack()
	stack.Push(&renameFrame{block: root})

	for !stack.Empty() {
		f := stack.Head().(*renameFrame)

		if f.done {
			stack.Pop()

			for _, reg := range f.pushed {
				r.stacks[reg] = r.stacks[reg][:len(r.stacks[reg])-1]
			}

			continue
		}

		f.done = true
		f.pushed = r.renameBlock(f.block)

		kids := r.children[f.block]
		for i := len(kids) - 1; i >= 0; i-- {
			stack.Push(&renameFrame{block: kids[i]})
		}
	}
}

func (r *renamer) renameBlock(b *ir.BasicBlock) (pushed []state.Register) {
	r.visited[b] = true

	for op := b.Operations.First(); op != nil; op = b.Operations.Next(op) {
		if op.Inst != ir.Phi {
			for i, s := range op.Sources() {
				if s.Kind == ir.Register {
					op.SetSource(i, r.current(s.Reg, s.Type))
				}
			}
		}

		if d := op.Destination(); d != nil && d.Kind == ir.Register {
			r.versions[d.Reg]++
			v := ir.Version(d.Reg, r.versions[d.Reg], d.Type)

			op.SetDestination(v)
			r.stacks[d.Reg] = append(r.stacks[d.Reg], v)
			pushed = append(pushed, d.Reg)
		}
	}

	for _, s := range b.Successors() {
		for _, phi := range s.Phis() {
			d := phi.Destination()
			phi.AddPhiSource(b, r.current(d.Reg, d.Type))
		}
	}

	return pushed
}

func (r *renamer) current(reg state.Register, t ir.OperandType) *ir.Operand {
	if st := r.stacks[reg]; len(st) != 0 {
		return st[len(st)-1]
	}

	return ir.Undef(t)
}
