package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gstruct"

	"github.com/sarchlab/a64jit/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	decodesTo := func(word uint32, fields Fields) {
		inst := decoder.Decode(word)
		Expect(*inst).To(MatchFields(IgnoreExtras, fields))
		Expect(inst.Word).To(Equal(word))
	}

	DescribeTable("Data Processing (Immediate)", decodesTo,
		Entry("ADD X0, X1, #42", uint32(0x9100A820), Fields{
			"Op": Equal(insts.OpADD), "Format": Equal(insts.FormatDPImm),
			"Is64Bit": BeTrue(), "SetFlags": BeFalse(),
			"Rd": Equal(uint8(0)), "Rn": Equal(uint8(1)), "Imm": Equal(uint64(42)),
		}),
		Entry("ADD W0, W1, #100", uint32(0x11019020), Fields{
			"Op": Equal(insts.OpADD), "Is64Bit": BeFalse(), "Imm": Equal(uint64(100)),
		}),
		Entry("ADDS X2, X3, #10", uint32(0xB1002862), Fields{
			"Op": Equal(insts.OpADD), "SetFlags": BeTrue(),
			"Rd": Equal(uint8(2)), "Rn": Equal(uint8(3)),
		}),
		Entry("ADD X0, X1, #1, LSL #12", uint32(0x91400420), Fields{
			"Imm": Equal(uint64(1)), "Shift": Equal(uint8(12)),
		}),
		Entry("SUB X5, X6, #20", uint32(0xD10050C5), Fields{
			"Op": Equal(insts.OpSUB), "Rd": Equal(uint8(5)), "Rn": Equal(uint8(6)), "Imm": Equal(uint64(20)),
		}),
		Entry("SUBS X9, X10, #5", uint32(0xF1001549), Fields{
			"Op": Equal(insts.OpSUB), "SetFlags": BeTrue(),
		}),
		Entry("ADD SP, SP, #16", uint32(0x910043FF), Fields{
			"Rd": Equal(uint8(insts.RegZR)), "Rn": Equal(uint8(insts.RegZR)), "Imm": Equal(uint64(16)),
		}),
	)

	DescribeTable("Move Wide", decodesTo,
		Entry("MOVZ X0, #42", uint32(0xD2800540), Fields{
			"Op": Equal(insts.OpMOVZ), "Format": Equal(insts.FormatMoveWide),
			"Is64Bit": BeTrue(), "Rd": Equal(uint8(0)), "Imm": Equal(uint64(42)), "Shift": Equal(uint8(0)),
		}),
		Entry("MOVK X1, #0x1234, LSL #16", uint32(0xF2A24681), Fields{
			"Op": Equal(insts.OpMOVK), "Rd": Equal(uint8(1)), "Imm": Equal(uint64(0x1234)), "Shift": Equal(uint8(16)),
		}),
		Entry("MOVN W2, #0", uint32(0x12800002), Fields{
			"Op": Equal(insts.OpMOVN), "Is64Bit": BeFalse(), "Rd": Equal(uint8(2)),
		}),
		Entry("MOVZ W0, #1, LSL #32 is unallocated", uint32(0x52C00020), Fields{
			"Op": Equal(insts.OpUnknown),
		}),
	)

	DescribeTable("Data Processing (Register)", decodesTo,
		Entry("ADD X0, X1, X2", uint32(0x8B020020), Fields{
			"Op": Equal(insts.OpADD), "Format": Equal(insts.FormatDPReg),
			"Rd": Equal(uint8(0)), "Rn": Equal(uint8(1)), "Rm": Equal(uint8(2)),
		}),
		Entry("ADD W3, W4, W5", uint32(0x0B050083), Fields{
			"Op": Equal(insts.OpADD), "Is64Bit": BeFalse(),
		}),
		Entry("ADDS X6, X7, X8", uint32(0xAB0800E6), Fields{
			"Op": Equal(insts.OpADD), "SetFlags": BeTrue(),
		}),
		Entry("SUB X9, X10, X11, LSL #3", uint32(0xCB0B0D49), Fields{
			"Op": Equal(insts.OpSUB), "ShiftType": Equal(insts.ShiftLSL), "ShiftAmount": Equal(uint8(3)),
		}),
		Entry("SUBS X15, X16, X17", uint32(0xEB11020F), Fields{
			"Op": Equal(insts.OpSUB), "SetFlags": BeTrue(), "Rm": Equal(uint8(17)),
		}),
		Entry("AND X0, X1, X2", uint32(0x8A020020), Fields{
			"Op": Equal(insts.OpAND), "SetFlags": BeFalse(), "InvertRm": BeFalse(),
		}),
		Entry("ANDS X6, X7, X8", uint32(0xEA0800E6), Fields{
			"Op": Equal(insts.OpAND), "SetFlags": BeTrue(),
		}),
		Entry("ORR X9, X10, X11", uint32(0xAA0B0149), Fields{
			"Op": Equal(insts.OpORR),
		}),
		Entry("EOR W18, W19, W20", uint32(0x4A140272), Fields{
			"Op": Equal(insts.OpEOR), "Is64Bit": BeFalse(),
		}),
		Entry("MVN X0, X1", uint32(0xAA2103E0), Fields{
			"Op": Equal(insts.OpORR), "InvertRm": BeTrue(), "Rn": Equal(uint8(insts.RegZR)),
		}),
		Entry("ADD W0, W1, W2, LSR #63 is reserved", uint32(0x0B42FC20), Fields{
			"Op": Equal(insts.OpUnknown),
		}),
	)

	DescribeTable("Data Processing (3 source)", decodesTo,
		Entry("MUL X0, X1, X2", uint32(0x9B027C20), Fields{
			"Op": Equal(insts.OpMADD), "Format": Equal(insts.FormatDP3Src),
			"Rd": Equal(uint8(0)), "Rn": Equal(uint8(1)), "Rm": Equal(uint8(2)), "Ra": Equal(uint8(31)),
		}),
		Entry("MSUB W3, W4, W5, W6", uint32(0x1B059883), Fields{
			"Op": Equal(insts.OpMSUB), "Is64Bit": BeFalse(), "Ra": Equal(uint8(6)),
		}),
	)

	DescribeTable("Branches", decodesTo,
		Entry("B #0x100", uint32(0x14000040), Fields{
			"Op": Equal(insts.OpB), "Format": Equal(insts.FormatBranch), "BranchOffset": Equal(int64(0x100)),
		}),
		Entry("B #-0x8", uint32(0x17FFFFFE), Fields{
			"Op": Equal(insts.OpB), "BranchOffset": Equal(int64(-8)),
		}),
		Entry("BL #0x200", uint32(0x94000080), Fields{
			"Op": Equal(insts.OpBL), "BranchOffset": Equal(int64(0x200)),
		}),
		Entry("B.EQ #0x10", uint32(0x54000080), Fields{
			"Op": Equal(insts.OpBCond), "Cond": Equal(insts.CondEQ), "BranchOffset": Equal(int64(0x10)),
		}),
		Entry("B.LT #0x40", uint32(0x5400020B), Fields{
			"Op": Equal(insts.OpBCond), "Cond": Equal(insts.CondLT), "BranchOffset": Equal(int64(0x40)),
		}),
		Entry("CBZ X3, #-4", uint32(0xB4FFFFE3), Fields{
			"Op": Equal(insts.OpCBZ), "Format": Equal(insts.FormatCompareBranch),
			"Is64Bit": BeTrue(), "Rd": Equal(uint8(3)), "BranchOffset": Equal(int64(-4)),
		}),
		Entry("CBNZ W1, #8", uint32(0x35000041), Fields{
			"Op": Equal(insts.OpCBNZ), "Is64Bit": BeFalse(), "Rd": Equal(uint8(1)), "BranchOffset": Equal(int64(8)),
		}),
		Entry("BR X30", uint32(0xD61F03C0), Fields{
			"Op": Equal(insts.OpBR), "Format": Equal(insts.FormatBranchReg), "Rn": Equal(uint8(30)),
		}),
		Entry("BLR X10", uint32(0xD63F0140), Fields{
			"Op": Equal(insts.OpBLR), "Rn": Equal(uint8(10)),
		}),
		Entry("RET", uint32(0xD65F03C0), Fields{
			"Op": Equal(insts.OpRET), "Rn": Equal(uint8(insts.LinkRegister)),
		}),
	)

	DescribeTable("Loads and Stores", decodesTo,
		Entry("LDR X0, [X1, #8]", uint32(0xF9400420), Fields{
			"Op": Equal(insts.OpLDR), "Format": Equal(insts.FormatLoadStore),
			"Size": Equal(uint8(8)), "Rd": Equal(uint8(0)), "Rn": Equal(uint8(1)), "Imm": Equal(uint64(8)),
		}),
		Entry("STR W2, [SP, #4]", uint32(0xB90007E2), Fields{
			"Op": Equal(insts.OpSTR), "Size": Equal(uint8(4)), "Rn": Equal(uint8(31)), "Imm": Equal(uint64(4)),
		}),
		Entry("LDRB W3, [X4, #1]", uint32(0x39400483), Fields{
			"Op": Equal(insts.OpLDR), "Size": Equal(uint8(1)), "Imm": Equal(uint64(1)), "Signed": BeFalse(),
		}),
		Entry("STRH W5, [X6, #2]", uint32(0x790004C5), Fields{
			"Op": Equal(insts.OpSTR), "Size": Equal(uint8(2)), "Imm": Equal(uint64(2)),
		}),
		Entry("LDRSW X7, [X8, #4]", uint32(0xB9800507), Fields{
			"Op": Equal(insts.OpLDR), "Size": Equal(uint8(4)), "Signed": BeTrue(), "Is64Bit": BeTrue(),
		}),
	)

	DescribeTable("System", decodesTo,
		Entry("SVC #0", uint32(0xD4000001), Fields{
			"Op": Equal(insts.OpSVC), "Format": Equal(insts.FormatException), "Imm": Equal(uint64(0)),
		}),
		Entry("BRK #0x3e8", uint32(0xD4207D00), Fields{
			"Op": Equal(insts.OpBRK), "Imm": Equal(uint64(0x3e8)),
		}),
		Entry("NOP", uint32(0xD503201F), Fields{
			"Op": Equal(insts.OpNOP), "Format": Equal(insts.FormatSystem),
		}),
		Entry("UDF #0", uint32(0x00000000), Fields{
			"Op": Equal(insts.OpUnknown), "Format": Equal(insts.FormatUnknown),
		}),
	)

	It("should name opcodes", func() {
		Expect(insts.OpMOVK.String()).To(Equal("movk"))
		Expect(insts.Op(999).String()).To(Equal("unknown"))
	})
})
