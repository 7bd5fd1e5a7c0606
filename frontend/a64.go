// Package frontend decodes A64 guest code and drives a translation.Emitter.
//
// A guest function is the set of instructions reachable from its entry
// through direct branches. Calls, indirect branches, traps and branches to
// code outside the decoded set leave the function by returning the next
// guest address to the dispatch loop.
package frontend

import (
	"context"
	"slices"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/sarchlab/a64jit/insts"
	"github.com/sarchlab/a64jit/translation"
)

// A64 is the AArch64 front end.
type A64 struct {
	code    translation.CodeSource
	decoder *insts.Decoder
}

// New returns a front end fetching guest instructions from code.
func New(code translation.CodeSource) *A64 {
	return &A64{
		code:    code,
		decoder: insts.NewDecoder(),
	}
}

// guestFunction is the decoded instruction set of one function.
type guestFunction struct {
	entry   uint64
	insts   map[uint64]*insts.Instruction
	leaders map[uint64]bool
	order   []uint64
}

func (f *guestFunction) contains(address uint64) bool {
	_, ok := f.insts[address]
	return ok
}

// Emit implements translation.FrontEnd.
func (a *A64) Emit(ctx context.Context, e *translation.Emitter, address uint64, cfg *translation.Config) (translation.GuestRange, error) {
	tr := tlog.SpanFromContext(ctx)

	fn, err := a.discover(address, cfg.MaxInstructions)
	if err != nil {
		return translation.GuestRange{}, err
	}

	if tr.If("frontend") {
		tr.Printw("discovered", "entry", address, "insts", len(fn.order), "blocks", len(fn.leaders))
	}

	g := &emitter{
		Emitter: e,
		fn:      fn,
		sync:    cfg.EmitSynchronization,
		trace:   tr,
	}

	if g.sync {
		translation.EmitSynchronization(e)
	}

	if fn.order[0] != fn.entry {
		e.Branch(e.GetLabel(fn.entry))
	}

	for i, pc := range fn.order {
		if fn.leaders[pc] || i == 0 || fn.order[i-1] != pc-4 {
			e.MarkLabel(e.GetLabel(pc))
		}

		inst := fn.insts[pc]

		if tr.If("disasm") {
			tr.Printw("guest", "address", pc, "word", inst.Word, "inst", Disassemble(inst.Word, pc))
		}

		g.emitInstruction(pc, inst)
	}

	start, end := fn.order[0], fn.order[len(fn.order)-1]+4

	return translation.GuestRange{Start: start, End: end}, nil
}

// discover walks direct branches from entry and returns the reachable
// instructions, stopping after limit instructions.
func (a *A64) discover(entry uint64, limit int) (*guestFunction, error) {
	fn := &guestFunction{
		entry:   entry,
		insts:   map[uint64]*insts.Instruction{},
		leaders: map[uint64]bool{entry: true},
	}

	work := []uint64{entry}

	for len(work) != 0 && len(fn.insts) < limit {
		pc := work[len(work)-1]
		work = work[:len(work)-1]

		for len(fn.insts) < limit && !fn.contains(pc) {
			word, err := a.code.Fetch(pc)
			if err != nil {
				if pc == entry {
					return nil, errors.Wrap(err, "fetch entry 0x%x", entry)
				}

				// Leaves the function at run time.
				break
			}

			inst := a.decoder.Decode(word)
			fn.insts[pc] = inst

			target, hasTarget := localTarget(pc, inst)
			if hasTarget {
				fn.leaders[target] = true
				work = append(work, target)
			}

			if endsFunctionPath(inst) {
				break
			}

			if hasTarget {
				fn.leaders[pc+4] = true
			}

			pc += 4
		}
	}

	fn.order = make([]uint64, 0, len(fn.insts))
	for pc := range fn.insts {
		fn.order = append(fn.order, pc)
	}

	slices.Sort(fn.order)

	return fn, nil
}

// localTarget returns the target of a direct intra-function branch.
func localTarget(pc uint64, inst *insts.Instruction) (uint64, bool) {
	switch inst.Op {
	case insts.OpB, insts.OpBCond, insts.OpCBZ, insts.OpCBNZ:
		return uint64(int64(pc) + inst.BranchOffset), true
	default:
		return 0, false
	}
}

// endsFunctionPath reports whether execution never falls through inst to
// the next instruction of the function.
func endsFunctionPath(inst *insts.Instruction) bool {
	switch inst.Op {
	case insts.OpB, insts.OpBL, insts.OpBR, insts.OpBLR, insts.OpRET,
		insts.OpSVC, insts.OpBRK, insts.OpUnknown:
		return true
	case insts.OpBCond:
		return inst.Cond == insts.CondAL || inst.Cond == insts.CondNV
	default:
		return false
	}
}
