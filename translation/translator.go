package translation

import (
	"context"
	"sync"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/sarchlab/a64jit/ir"
	"github.com/sarchlab/a64jit/memory"
	"github.com/sarchlab/a64jit/optimizer"
	"github.com/sarchlab/a64jit/state"
)

// ErrEmptyFunction is returned when a front end emits no operations.
var ErrEmptyFunction = errors.New("front end emitted no operations")

// CodeSource supplies guest instruction words.
type CodeSource interface {
	Fetch(address uint64) (uint32, error)
}

// GuestRange is the half-open guest address range a unit was decoded from.
type GuestRange struct {
	Start uint64
	End   uint64
}

// Overlaps reports whether r intersects [start, end).
func (r GuestRange) Overlaps(start, end uint64) bool {
	return r.Start < end && start < r.End
}

// FrontEnd decodes the guest function at address and drives e in program
// order. It returns the guest range it decoded.
type FrontEnd interface {
	Emit(ctx context.Context, e *Emitter, address uint64, cfg *Config) (GuestRange, error)
}

// Function is compiled code. Execute runs it against ec and returns the
// next guest address, or 0 to leave the dispatch loop.
type Function interface {
	Execute(ec *state.ExecutionContext) uint64
}

// Backend lowers an optimized SSA graph into a Function.
type Backend interface {
	Compile(ctx context.Context, g *ir.ControlFlowGraph) (Function, error)
}

// CompiledUnit is the result of translating one guest function.
type CompiledUnit struct {
	Address  uint64
	Range    GuestRange
	Function Function

	// HighCq is set for units translated with the optimizer allowed.
	// Low-tier units count their calls in Counter.
	HighCq  bool
	Counter *ir.CallCounter

	// Blocks and Operations describe the final IR.
	Blocks     int
	Operations int
}

// Translate runs the whole pipeline for the function at address: decode,
// CFG construction, context access expansion, dominance, SSA conversion,
// optimization and compilation. Any failure fails the whole unit.
func Translate(ctx context.Context, fe FrontEnd, be Backend, address uint64, cfg *Config) (*CompiledUnit, error) {
	return translate(ctx, fe, be, address, cfg, true)
}

// translate is Translate at a given tier. Low-tier units skip the
// optimizer and start with a rejit check.
func translate(ctx context.Context, fe FrontEnd, be Backend, address uint64, cfg *Config, highCq bool) (unit *CompiledUnit, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "translate", "address", address, "high_cq", highCq)
	defer tr.Finish("err", &err)

	e := NewEmitter()

	var counter *ir.CallCounter
	if !highCq {
		counter = EmitRejitCheck(e, address)
	}

	prologue := len(e.Operations())

	rng, err := fe.Emit(ctx, e, address, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "decode 0x%x", address)
	}

	if len(e.Operations()) == prologue {
		return nil, errors.Wrap(ErrEmptyFunction, "at 0x%x", address)
	}

	g, err := BuildCFG(e.Arena(), e.Operations())
	if err != nil {
		return nil, errors.Wrap(err, "build cfg 0x%x", address)
	}

	trace := func(stage string) {
		if cfg.TraceIR || tr.If("ir") {
			tr.Printw("ir", "stage", stage, "blocks", len(g.Blocks), "ops", g.OperationsCount(), "dump", g.Dump())
		}
	}

	trace("cfg")

	ExpandContextAccess(g)

	FindDominators(g)
	FindDominanceFrontiers(g)

	ConvertToSSA(g)
	trace("ssa")

	if highCq && cfg.Optimize {
		optimizer.RunPasses(ctx, g)

		FindDominators(g)
		FindDominanceFrontiers(g)

		trace("optimized")
	}

	fn, err := be.Compile(ctx, g)
	if err != nil {
		return nil, errors.Wrap(err, "compile 0x%x", address)
	}

	tr.Printw("translated", "range_start", rng.Start, "range_end", rng.End, "blocks", len(g.Blocks), "ops", g.OperationsCount())

	return &CompiledUnit{
		Address:    address,
		Range:      rng,
		Function:   fn,
		HighCq:     highCq,
		Counter:    counter,
		Blocks:     len(g.Blocks),
		Operations: g.OperationsCount(),
	}, nil
}

// Fallback executes guest code at address without translation and returns
// the next address. It is used when translation fails.
type Fallback func(ec *state.ExecutionContext, address uint64) (uint64, error)

// Translator owns the translation cache and runs the dispatch loop.
type Translator struct {
	frontEnd FrontEnd
	backend  Backend
	config   *Config
	cache    *Cache
	fallback Fallback

	rejitMu     sync.Mutex
	rejitQueue  []uint64
	rejitQueued map[uint64]bool
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithConfig sets the translation config.
func WithConfig(cfg *Config) TranslatorOption {
	return func(t *Translator) {
		t.config = cfg
	}
}

// WithFallback sets the executor used for functions that fail to
// translate. Without one, a translation failure stops Execute.
func WithFallback(f Fallback) TranslatorOption {
	return func(t *Translator) {
		t.fallback = f
	}
}

// NewTranslator creates a translator around a front end and a backend.
func NewTranslator(fe FrontEnd, be Backend, opts ...TranslatorOption) (*Translator, error) {
	t := &Translator{
		frontEnd: fe,
		backend:  be,
		config:   DefaultConfig(),

		rejitQueued: map[uint64]bool{},
	}

	for _, opt := range opts {
		opt(t)
	}

	if err := t.config.Validate(); err != nil {
		return nil, errors.Wrap(err, "translation config")
	}

	t.cache = NewCache(t.config.CacheSets, t.config.CacheWays)

	return t, nil
}

// Config returns the translator's configuration.
func (t *Translator) Config() *Config {
	return t.config
}

// Cache returns the translation cache.
func (t *Translator) Cache() *Cache {
	return t.cache
}

// GetOrTranslate returns the cached unit for address, translating and
// caching it on a miss. Concurrent misses for the same address may both
// translate; the later insertion wins.
func (t *Translator) GetOrTranslate(ctx context.Context, address uint64) (*CompiledUnit, error) {
	if unit, ok := t.cache.Get(address); ok {
		return unit, nil
	}

	unit, err := translate(ctx, t.frontEnd, t.backend, address, t.config, !t.config.TieredCompilation)
	if err != nil {
		return nil, err
	}

	t.cache.Put(unit)

	return unit, nil
}

// RejitHandler returns the execution-context handler that queues hot
// functions on t.
func (t *Translator) RejitHandler() state.RejitHandler {
	return func(_ *state.ExecutionContext, address uint64) {
		t.EnqueueForRejit(address)
	}
}

// EnqueueForRejit queues the function at address for optimized
// retranslation. An address already queued is ignored.
func (t *Translator) EnqueueForRejit(address uint64) {
	t.rejitMu.Lock()
	defer t.rejitMu.Unlock()

	if t.rejitQueued[address] {
		return
	}

	t.rejitQueued[address] = true
	t.rejitQueue = append(t.rejitQueue, address)
}

// RejitQueueLen returns the number of functions waiting for retranslation.
func (t *Translator) RejitQueueLen() int {
	t.rejitMu.Lock()
	defer t.rejitMu.Unlock()

	return len(t.rejitQueue)
}

func (t *Translator) dequeueRejit() (uint64, bool) {
	t.rejitMu.Lock()
	defer t.rejitMu.Unlock()

	if len(t.rejitQueue) == 0 {
		return 0, false
	}

	address := t.rejitQueue[0]
	t.rejitQueue = t.rejitQueue[1:]

	return address, true
}

func (t *Translator) rejitDone(address uint64) {
	t.rejitMu.Lock()
	defer t.rejitMu.Unlock()

	delete(t.rejitQueued, address)
}

func (t *Translator) clearRejitQueue() {
	t.rejitMu.Lock()
	defer t.rejitMu.Unlock()

	t.rejitQueue = nil
	t.rejitQueued = map[uint64]bool{}
}

// ProcessRejitQueue retranslates every queued function with the optimizer
// and replaces its cached unit. It returns the number of units replaced.
// Functions that fail to retranslate keep their low-tier unit.
func (t *Translator) ProcessRejitQueue(ctx context.Context) int {
	replaced := 0

	for {
		address, ok := t.dequeueRejit()
		if !ok {
			return replaced
		}

		unit, err := translate(ctx, t.frontEnd, t.backend, address, t.config, true)
		if err == nil {
			t.cache.Put(unit)
			replaced++
		}

		t.rejitDone(address)

		tlog.V("cache").Printw("rejit", "address", address, "err", err)
	}
}

// InvalidateJitCacheRegion drops every unit decoded from guest code that
// overlaps [address, address+size).
func (t *Translator) InvalidateJitCacheRegion(address, size uint64) {
	n := t.cache.InvalidateRange(address, size)

	if n != 0 {
		// A queued function may have been decoded from the dropped code.
		t.clearRejitQueue()

		tlog.V("cache").Printw("invalidated", "address", address, "size", size, "units", n)
	}
}

// Execute runs guest code from address until the context stops running, a
// function returns address 0 or ctx is done. Queued rejit requests are
// served between functions. Guest memory faults end the loop with an
// error.
func (t *Translator) Execute(ctx context.Context, ec *state.ExecutionContext, address uint64) (err error) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}

		fault, ok := p.(*memory.AccessError)
		if !ok {
			panic(p)
		}

		err = errors.Wrap(fault, "guest fault")
	}()

	tr := tlog.SpanFromContext(ctx)

	for ec.Running() {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "dispatch 0x%x", address)
		}

		unit, terr := t.GetOrTranslate(ctx, address)

		switch {
		case terr == nil:
			address = unit.Function.Execute(ec)
		case t.fallback != nil:
			tr.Printw("translation failed, interpreting", "address", address, "err", terr)

			next, ferr := t.fallback(ec, address)
			if ferr != nil {
				return errors.Wrap(ferr, "interpret 0x%x", address)
			}

			address = next
		default:
			return terr
		}

		if address == 0 {
			break
		}

		if t.RejitQueueLen() != 0 {
			t.ProcessRejitQueue(ctx)
		}
	}

	return nil
}
