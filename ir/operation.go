package ir

import (
	"fmt"
	"strings"
)

// Operation is one IR instruction. Operations are allocated from an Arena
// and linked into a block's OperationList by arena reference.
type Operation struct {
	Inst Instruction

	dest    *Operand
	sources []*Operand

	// phiBlocks holds the predecessor each phi source flows in from.
	phiBlocks []*BasicBlock

	arena      *Arena
	ref        OpRef
	prev, next OpRef
	list       *OperationList
}

// Ref returns the operation's arena reference.
func (op *Operation) Ref() OpRef {
	return op.ref
}

// Destination returns the defined operand, or nil.
func (op *Operation) Destination() *Operand {
	return op.dest
}

// SetDestination replaces the defined operand.
func (op *Operation) SetDestination(d *Operand) {
	if op.dest != nil {
		op.dest.removeAssignment(op)
	}

	op.dest = d

	if d != nil {
		d.addAssignment(op)
	}
}

// SourcesCount returns the number of sources.
func (op *Operation) SourcesCount() int {
	return len(op.sources)
}

// Source returns source i.
func (op *Operation) Source(i int) *Operand {
	return op.sources[i]
}

// Sources returns the source list. Callers must not modify it; use
// SetSource or SetSources.
func (op *Operation) Sources() []*Operand {
	return op.sources
}

// SetSource replaces source i.
func (op *Operation) SetSource(i int, s *Operand) {
	op.sources[i].removeUse(op)
	op.sources[i] = s
	s.addUse(op)
}

// SetSources replaces the whole source list.
func (op *Operation) SetSources(srcs ...*Operand) {
	for _, s := range op.sources {
		s.removeUse(op)
	}

	op.sources = append(op.sources[:0:0], srcs...)

	for _, s := range op.sources {
		s.addUse(op)
	}
}

// ReplaceUses rewrites every source equal to from with to.
func (op *Operation) ReplaceUses(from, to *Operand) bool {
	changed := false

	for i, s := range op.sources {
		if s == from {
			op.SetSource(i, to)
			changed = true
		}
	}

	return changed
}

// PhiBlock returns the predecessor that phi source i flows in from.
func (op *Operation) PhiBlock(i int) *BasicBlock {
	return op.phiBlocks[i]
}

// AddPhiSource appends an incoming value for a phi.
func (op *Operation) AddPhiSource(from *BasicBlock, value *Operand) {
	op.phiBlocks = append(op.phiBlocks, from)
	op.sources = append(op.sources, value)
	value.addUse(op)
}

// RemovePhiSource drops incoming value i of a phi.
func (op *Operation) RemovePhiSource(i int) {
	op.sources[i].removeUse(op)
	op.sources = append(op.sources[:i], op.sources[i+1:]...)
	op.phiBlocks = append(op.phiBlocks[:i], op.phiBlocks[i+1:]...)
}

// PhiSourceFrom returns the index of the phi source flowing in from block b,
// or -1.
func (op *Operation) PhiSourceFrom(b *BasicBlock) int {
	for i, p := range op.phiBlocks {
		if p == b {
			return i
		}
	}

	return -1
}

// Detach unregisters the operation from every operand it references. It
// must be called when an operation is dropped for good.
func (op *Operation) Detach() {
	for _, s := range op.sources {
		s.removeUse(op)
	}

	if op.dest != nil {
		op.dest.removeAssignment(op)
	}
}

// List returns the block list holding the operation, or nil.
func (op *Operation) List() *OperationList {
	return op.list
}

func (op *Operation) String() string {
	return NewPrinter().Operation(op)
}

// Printer formats IR with stable names for emitter temporaries.
type Printer struct {
	names map[*Operand]int
}

// NewPrinter returns a printer with an empty naming table.
func NewPrinter() *Printer {
	return &Printer{names: map[*Operand]int{}}
}

// Operand formats o, numbering temporaries in order of first appearance.
func (p *Printer) Operand(o *Operand) string {
	if o.IsLocal() && !o.IsVersion() {
		n, ok := p.names[o]
		if !ok {
			n = len(p.names)
			p.names[o] = n
		}

		return fmt.Sprintf("t%d", n)
	}

	return o.String()
}

// Operation formats op as "dest = inst src, src".
func (p *Printer) Operation(op *Operation) string {
	var b strings.Builder

	if op.dest != nil {
		fmt.Fprintf(&b, "%s:%v = ", p.Operand(op.dest), op.dest.Type)
	}

	b.WriteString(op.Inst.String())

	for i, s := range op.sources {
		if i == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteString(", ")
		}

		switch {
		case op.Inst == Compare && i == 2 && s.IsConstant():
			b.WriteString(Comparison(s.Value).String())
		case op.Inst == Phi:
			fmt.Fprintf(&b, "[b%d: %s]", op.phiBlocks[i].Index, p.Operand(s))
		default:
			b.WriteString(p.Operand(s))
		}
	}

	return b.String()
}
