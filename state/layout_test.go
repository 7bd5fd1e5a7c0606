package state_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/a64jit/state"
)

var _ = Describe("Register file layout", func() {
	It("should place categories in append-only order", func() {
		Expect(state.IntRegsOffset).To(Equal(0))
		Expect(state.VecRegsOffset).To(Equal(256))
		Expect(state.FlagsOffset).To(Equal(768))
		Expect(state.FpFlagsOffset).To(Equal(896))
		Expect(state.CounterOffset).To(Equal(1024))
		Expect(state.CallAddressOffset).To(Equal(1028))
		Expect(state.TotalSize).To(Equal(1032))
	})

	It("should return the same offset on repeated calls", func() {
		for i := 0; i < state.IntRegsCount; i++ {
			first := state.GetRegisterOffset(state.IntReg(i))
			Expect(state.GetRegisterOffset(state.IntReg(i))).To(Equal(first))
			Expect(first).To(Equal(i * 8))
		}
	})

	It("should compute offsets for every category", func() {
		Expect(state.GetRegisterOffset(state.VecReg(1))).To(Equal(272))
		Expect(state.GetRegisterOffset(state.FlagReg(state.NFlag))).To(Equal(768 + 31*4))
		Expect(state.GetRegisterOffset(state.FpFlagReg(state.IocFlag))).To(Equal(896))
		Expect(state.GetCounterOffset()).To(Equal(1024))
		Expect(state.GetCallAddressOffset()).To(Equal(1028))
	})

	It("should keep every slot inside the block", func() {
		regs := []state.Register{
			state.IntReg(state.IntRegsCount - 1),
			state.VecReg(state.VecRegsCount - 1),
			state.FlagReg(state.PState(state.FlagsCount - 1)),
			state.FpFlagReg(state.FPState(state.FpFlagsCount - 1)),
		}

		for _, r := range regs {
			Expect(state.GetRegisterOffset(r) + state.GetRegisterSize(r)).
				To(BeNumerically("<=", state.TotalSize))
		}
	})

	DescribeTable("should reject out-of-range indices",
		func(r state.Register) {
			Expect(func() { state.GetRegisterOffset(r) }).
				To(PanicWith(MatchError(state.ErrInvalidArgument)))
		},
		Entry("integer count", state.IntReg(state.IntRegsCount)),
		Entry("integer -1", state.IntReg(-1)),
		Entry("vector count", state.VecReg(state.VecRegsCount)),
		Entry("vector -1", state.VecReg(-1)),
		Entry("flag count", state.Register{Index: state.FlagsCount, Type: state.Flag}),
		Entry("fp flag -1", state.Register{Index: -1, Type: state.FpFlag}),
		Entry("unknown type", state.Register{Index: 0, Type: state.RegisterType(9)}),
	)
})
