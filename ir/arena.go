package ir

const arenaChunkSize = 256

// OpRef is an index into an Arena. NilRef marks the end of a list.
type OpRef int32

// NilRef is the null reference.
const NilRef OpRef = -1

// Arena allocates operations in fixed-size chunks. Operations never move, so
// pointers handed out stay valid for the arena's lifetime.
type Arena struct {
	chunks []*[arenaChunkSize]Operation
	count  int
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// New allocates an operation.
func (a *Arena) New(inst Instruction, dest *Operand, sources ...*Operand) *Operation {
	if a.count == len(a.chunks)*arenaChunkSize {
		a.chunks = append(a.chunks, new([arenaChunkSize]Operation))
	}

	ref := OpRef(a.count)
	op := &a.chunks[a.count/arenaChunkSize][a.count%arenaChunkSize]
	a.count++

	*op = Operation{
		Inst:  inst,
		arena: a,
		ref:   ref,
		prev:  NilRef,
		next:  NilRef,
	}

	op.SetDestination(dest)
	op.SetSources(sources...)

	return op
}

// Get returns the operation at ref, or nil for NilRef.
func (a *Arena) Get(ref OpRef) *Operation {
	if ref == NilRef {
		return nil
	}

	return &a.chunks[int(ref)/arenaChunkSize][int(ref)%arenaChunkSize]
}

// Len returns the number of operations allocated.
func (a *Arena) Len() int {
	return a.count
}
