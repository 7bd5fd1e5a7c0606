package frontend

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
)

// Disassemble renders one instruction word at pc in GNU syntax. Branch and
// literal targets are printed as absolute addresses.
func Disassemble(word uint32, pc uint64) string {
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], word)

	inst, err := arm64asm.Decode(raw[:])
	if err != nil {
		return fmt.Sprintf(".inst 0x%08x", word)
	}

	text := arm64asm.GNUSyntax(inst)

	base := pc
	if inst.Op == arm64asm.ADRP {
		base &^= 0xfff
	}

	for _, arg := range inst.Args {
		if rel, ok := arg.(arm64asm.PCRel); ok {
			text = strings.Replace(text, strings.ToLower(rel.String()), fmt.Sprintf("%#x", base+uint64(rel)), 1)
		}
	}

	return text
}

// DisassembleRange renders code starting at base, one instruction per line.
// A trailing partial word is ignored.
func DisassembleRange(code []byte, base uint64) string {
	var sb strings.Builder

	for off := 0; off+4 <= len(code); off += 4 {
		word := binary.LittleEndian.Uint32(code[off:])
		pc := base + uint64(off)

		fmt.Fprintf(&sb, "0x%08x: %08x  %s\n", pc, word, Disassemble(word, pc))
	}

	return sb.String()
}
