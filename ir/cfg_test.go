package ir_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/a64jit/ir"
	"github.com/sarchlab/a64jit/state"
)

var _ = Describe("ControlFlowGraph", func() {
	var (
		arena *ir.Arena
		g     *ir.ControlFlowGraph
		b     []*ir.BasicBlock
	)

	link := func(from, next, branch *ir.BasicBlock) {
		from.Next = next
		from.Branch = branch
		if next != nil {
			next.AddPredecessor(from)
		}
		if branch != nil {
			branch.AddPredecessor(from)
		}
	}

	BeforeEach(func() {
		arena = ir.NewArena()
		g = ir.NewControlFlowGraph(arena)
		b = nil
		for i := 0; i < 4; i++ {
			b = append(b, ir.NewBasicBlock(arena, i))
		}
		g.Blocks = b
		g.Entry = b[0]

		// Diamond: 0 -> {1, 2} -> 3.
		link(b[0], b[1], b[2])
		link(b[1], b[3], nil)
		link(b[2], b[3], nil)
	})

	It("should visit Next before Branch in post order", func() {
		order := g.PostOrder()

		Expect(order).To(Equal([]*ir.BasicBlock{b[3], b[1], b[2], b[0]}))
		Expect(g.ReversePostOrder()[0]).To(BeIdenticalTo(b[0]))
	})

	It("should skip unreachable blocks", func() {
		extra := ir.NewBasicBlock(arena, 4)
		g.Blocks = append(g.Blocks, extra)

		Expect(g.PostOrder()).ToNot(ContainElement(extra))
	})

	It("should remove an edge and its phi sources", func() {
		phi := arena.New(ir.Phi, ir.Version(state.IntReg(0), 3, ir.I64))
		phi.AddPhiSource(b[1], ir.ConstI64(1))
		phi.AddPhiSource(b[2], ir.ConstI64(2))
		b[3].Append(phi)

		Expect(g.RemoveEdge(b[2], b[3])).To(BeTrue())
		Expect(b[2].Next).To(BeNil())
		Expect(b[3].Predecessors).To(ConsistOf(b[1]))
		Expect(phi.SourcesCount()).To(Equal(1))
		Expect(phi.PhiBlock(0)).To(BeIdenticalTo(b[1]))

		Expect(g.RemoveEdge(b[2], b[3])).To(BeFalse())
	})

	It("should keep the predecessor while a second edge remains", func() {
		x := ir.NewBasicBlock(arena, 4)
		y := ir.NewBasicBlock(arena, 5)
		link(x, y, y)

		g.RemoveEdge(x, y)
		Expect(y.Predecessors).To(ConsistOf(x))
		Expect(x.Successors()).To(ConsistOf(y))
	})

	It("should dump blocks", func() {
		b[0].Append(arena.New(ir.BranchIf, nil, ir.ConstI32(1)))

		Expect(g.Dump()).To(ContainSubstring("b0: next=b1 branch=b2\n\tbrif 0x1\n"))
	})
})

var _ = Describe("EvalInteger", func() {
	DescribeTable("folding",
		func(inst ir.Instruction, t ir.OperandType, srcs []uint64, want uint64) {
			got, ok := ir.EvalInteger(inst, t, srcs...)
			Expect(ok).To(BeTrue())
			Expect(got).To(Equal(want))
		},
		Entry("add wraps in 32 bits", ir.Add, ir.I32, []uint64{0xffffffff, 1}, uint64(0)),
		Entry("sub", ir.Subtract, ir.I64, []uint64{5, 7}, uint64(0xfffffffffffffffe)),
		Entry("shift amount is masked", ir.ShiftLeft, ir.I32, []uint64{1, 33}, uint64(2)),
		Entry("arithmetic shift", ir.ShiftRightSI, ir.I64, []uint64{0x8000000000000000, 63}, ^uint64(0)),
		Entry("rotate", ir.RotateRight, ir.I32, []uint64{1, 1}, uint64(0x80000000)),
		Entry("sign extend byte", ir.SignExtend8, ir.I64, []uint64{0x80}, uint64(0xffffffffffffff80)),
		Entry("signed compare", ir.Compare, ir.I64, []uint64{^uint64(0), 0, uint64(ir.Less)}, uint64(1)),
		Entry("unsigned compare", ir.Compare, ir.I64, []uint64{^uint64(0), 0, uint64(ir.LessUI)}, uint64(0)),
		Entry("select", ir.ConditionalSelect, ir.I64, []uint64{0, 10, 20}, uint64(20)),
	)

	It("should refuse non-integer opcodes", func() {
		_, ok := ir.EvalInteger(ir.Load64, ir.I64, 0)
		Expect(ok).To(BeFalse())

		_, ok = ir.EvalInteger(ir.Add, ir.V128, 0, 0)
		Expect(ok).To(BeFalse())
	})
})
