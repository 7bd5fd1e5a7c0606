// Package insts provides ARM64 instruction definitions and decoding.
//
// This package implements decoding of ARM64 machine code into structured
// instruction representations consumed by the front end and the
// interpreter. It supports:
//   - Data Processing (Immediate): ADD, SUB, MOVZ, MOVN, MOVK
//   - Data Processing (Register): ADD, SUB, AND, ORR, EOR, MADD, MSUB
//   - Loads and Stores: LDR, LDRB, LDRH, LDRSW, STR, STRB, STRH (unsigned offset)
//   - Branch instructions: B, BL, B.cond, CBZ, CBNZ, BR, BLR, RET
//   - System instructions: SVC, BRK, NOP
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x91002820) // ADD X0, X1, #10
//	fmt.Printf("Op: %v, Rd: %d, Rn: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rn, inst.Imm)
package insts

// RegZR is the register number that reads as zero or names SP, depending
// on the instruction form.
const RegZR = 31

// LinkRegister is the register BL and BLR write the return address to.
const LinkRegister = 30
