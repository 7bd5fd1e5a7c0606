package state_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/a64jit/state"
)

var _ = Describe("V128", func() {
	It("should extract int32 lanes in little-endian order", func() {
		v := state.V128FromInt32s(1, 2, 3, 4)

		Expect(v.ExtractInt32(0)).To(Equal(uint32(1)))
		Expect(v.ExtractInt32(1)).To(Equal(uint32(2)))
		Expect(v.ExtractInt32(2)).To(Equal(uint32(3)))
		Expect(v.ExtractInt32(3)).To(Equal(uint32(4)))
		Expect(v.Lo()).To(Equal(uint64(0x0000000200000001)))
	})

	It("should round-trip float lanes", func() {
		v := state.V128FromFloat32s(1.5, -2, 0, 3.25)
		Expect(v.ExtractFloat32(3)).To(Equal(float32(3.25)))

		d := state.V128FromFloat64s(1.25, -8)
		Expect(d.ExtractFloat64(1)).To(Equal(-8.0))

		d = d.InsertFloat64(0, 42)
		Expect(d.ExtractFloat64(0)).To(Equal(42.0))
		Expect(d.ExtractFloat64(1)).To(Equal(-8.0))
	})

	It("should insert a 32-bit lane without touching the others", func() {
		v := state.V128FromInt32s(1, 2, 3, 4).InsertInt32(2, 0xdead)

		Expect(v).To(Equal(state.V128FromInt32s(1, 2, 0xdead, 4)))
	})

	It("should shift across the lane boundary", func() {
		v := state.NewV128(0x8000000000000000, 0)

		Expect(v.ShiftLeft(1)).To(Equal(state.NewV128(0, 1)))
		Expect(state.NewV128(0, 1).ShiftRight(1)).To(Equal(v))
		Expect(v.ShiftLeft(64)).To(Equal(state.NewV128(0, 0x8000000000000000)))
		Expect(v.ShiftLeft(128).IsZero()).To(BeTrue())
	})

	It("should apply bitwise operators to both lanes", func() {
		a := state.NewV128(0xff00, 0xf0)
		b := state.NewV128(0x0ff0, 0x0f)

		Expect(a.And(b)).To(Equal(state.NewV128(0x0f00, 0)))
		Expect(a.Or(b)).To(Equal(state.NewV128(0xfff0, 0xff)))
		Expect(a.Xor(b)).To(Equal(state.NewV128(0xf0f0, 0xff)))
		Expect(a.Not().Not()).To(Equal(a))
	})

	It("should reject lanes out of range", func() {
		v := state.V128{}

		Expect(func() { v.ExtractInt32(4) }).To(PanicWith(MatchError(state.ErrInvalidArgument)))
		Expect(func() { v.ExtractInt64(-1) }).To(PanicWith(MatchError(state.ErrInvalidArgument)))
	})
})
