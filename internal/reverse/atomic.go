package reverse

import (
	"github.com/pkg/errors"

	"github.com/johnrsibert/adcomp/internal/tape"
)

// Atomic is the reverse-mode callback contract for an externally defined
// operation embedded in the tape. The engine reconstructs the call's
// argument and result coefficient vectors from the tape and invokes
// Reverse with:
//
//   - order: the highest Taylor order being differentiated (d)
//   - argTaylor: n*(d+1) forward coefficients, argument-major
//   - resTaylor: m*(d+1) forward coefficients, result-major
//   - resAdjoint: m*(d+1) adjoints of the results
//   - argAdjoint: n*(d+1) engine-owned output buffer, zeroed before the
//     call; the implementation writes the argument adjoints here
//
// A returned error is fatal for the whole sweep.
type Atomic interface {
	// Name identifies the function in diagnostics.
	Name() string
	// Reverse computes argument adjoints from result adjoints.
	Reverse(order int, argTaylor, resTaylor, resAdjoint, argAdjoint []float64) error
}

// Registry resolves the atomic-function indices recorded on a tape. It is
// passed explicitly per sweep (no process-wide table) and is read-only
// while sweeps run, so one Registry may serve concurrent sweeps.
type Registry struct {
	fns map[int]Atomic
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{fns: make(map[int]Atomic)}
}

// Register binds fn to the given tape function index, replacing any
// previous binding.
func (r *Registry) Register(index int, fn Atomic) {
	r.fns[index] = fn
}

// Lookup returns the function bound to index.
func (r *Registry) Lookup(index int) (Atomic, bool) {
	fn, ok := r.fns[index]
	return fn, ok
}

// callState tracks the next expected record kind while reconstructing an
// atomic call block in backward order.
type callState uint8

const (
	stateEnd   callState = iota // expecting a closing User marker
	stateRet                    // consuming result records, last to first
	stateArg                    // consuming argument records, last to first
	stateStart                  // expecting the opening User marker
)

func (s callState) String() string {
	switch s {
	case stateEnd:
		return "end"
	case stateRet:
		return "ret"
	case stateArg:
		return "arg"
	case stateStart:
		return "start"
	}
	return "invalid"
}

// callFrame is the transient state of one in-progress atomic call. The
// sweep walks the block backward, so the frame opens on the closing marker
// and fires the callback on the opening one. Calls never nest; the state
// machine enforces that.
type callFrame struct {
	state   callState
	fnIndex int
	callID  int
	n, m    int // argument and result counts
	j, i    int // countdown through arguments and results
	k1      int // orders per coefficient vector, d+1
	ix      []int
	tx, px  []float64 // argument coefficients and adjoints
	ty, py  []float64 // result coefficients and adjoints
}

// open consumes the closing User marker and sizes the per-call buffers.
func (f *callFrame) open(arg []int, d int) error {
	if f.state != stateEnd {
		return errors.Errorf(
			"reverse sweep: atomic call marker in state %s, want end (calls must not nest)", f.state)
	}
	f.fnIndex, f.callID, f.n, f.m = arg[0], arg[1], arg[2], arg[3]
	if f.n <= 0 || f.m <= 0 {
		return errors.Errorf(
			"reverse sweep: atomic call (index %d, id %d) has %d arguments and %d results",
			f.fnIndex, f.callID, f.n, f.m)
	}
	f.k1 = d + 1
	f.ix = resize(f.ix, f.n)
	f.tx = resizeF(f.tx, f.n*f.k1)
	f.px = resizeF(f.px, f.n*f.k1)
	f.ty = resizeF(f.ty, f.m*f.k1)
	f.py = resizeF(f.py, f.m*f.k1)
	f.j = f.n
	f.i = f.m
	f.state = stateRet
	return nil
}

// retVar consumes a variable-result record.
func (f *callFrame) retVar(iVar int, taylor, partial tape.Coeffs) error {
	if err := f.retStep(); err != nil {
		return err
	}
	ty := taylor.Row(iVar)
	py := partial.Row(iVar)
	for ell := 0; ell < f.k1; ell++ {
		f.ty[f.i*f.k1+ell] = ty[ell]
		f.py[f.i*f.k1+ell] = py[ell]
	}
	return nil
}

// retPar consumes a parameter-result record: a constant at order zero and
// no adjoint.
func (f *callFrame) retPar(p float64) error {
	if err := f.retStep(); err != nil {
		return err
	}
	for ell := 0; ell < f.k1; ell++ {
		f.ty[f.i*f.k1+ell] = 0
		f.py[f.i*f.k1+ell] = 0
	}
	f.ty[f.i*f.k1] = p
	return nil
}

func (f *callFrame) retStep() error {
	if f.state != stateRet || f.i <= 0 {
		return errors.Errorf("reverse sweep: atomic result record in state %s", f.state)
	}
	f.i--
	if f.i == 0 {
		f.state = stateArg
	}
	return nil
}

// argVar consumes a variable-argument record.
func (f *callFrame) argVar(v int, taylor tape.Coeffs) error {
	if err := f.argStep(); err != nil {
		return err
	}
	f.ix[f.j] = v
	tx := taylor.Row(v)
	for ell := 0; ell < f.k1; ell++ {
		f.tx[f.j*f.k1+ell] = tx[ell]
	}
	return nil
}

// argPar consumes a parameter-argument record; index zero marks "not a
// variable" so the scatter skips it.
func (f *callFrame) argPar(p float64) error {
	if err := f.argStep(); err != nil {
		return err
	}
	f.ix[f.j] = 0
	f.tx[f.j*f.k1] = p
	for ell := 1; ell < f.k1; ell++ {
		f.tx[f.j*f.k1+ell] = 0
	}
	return nil
}

func (f *callFrame) argStep() error {
	if f.state != stateArg || f.j <= 0 {
		return errors.Errorf("reverse sweep: atomic argument record in state %s", f.state)
	}
	f.j--
	if f.j == 0 {
		f.state = stateStart
	}
	return nil
}

// finish consumes the opening User marker: verifies it repeats the closing
// marker's metadata, runs the external callback, and scatters the returned
// adjoints into the partial rows of the variable arguments.
func (f *callFrame) finish(arg []int, reg *Registry, partial tape.Coeffs) error {
	if f.state != stateStart {
		return errors.Errorf(
			"reverse sweep: atomic call marker in state %s, want start (calls must not nest)", f.state)
	}
	if arg[0] != f.fnIndex || arg[1] != f.callID || arg[2] != f.n || arg[3] != f.m {
		return errors.Errorf(
			"reverse sweep: atomic call markers disagree: open (index %d, id %d, n %d, m %d) vs close (index %d, id %d, n %d, m %d)",
			arg[0], arg[1], arg[2], arg[3], f.fnIndex, f.callID, f.n, f.m)
	}
	if reg == nil {
		return errors.Errorf(
			"reverse sweep: tape contains atomic call (index %d) but no registry was supplied", f.fnIndex)
	}
	fn, ok := reg.Lookup(f.fnIndex)
	if !ok {
		return errors.Errorf("reverse sweep: no atomic function registered for index %d", f.fnIndex)
	}
	for ell := range f.px {
		f.px[ell] = 0
	}
	if err := fn.Reverse(f.k1-1, f.tx, f.ty, f.py, f.px); err != nil {
		return errors.Wrapf(err, "reverse sweep: atomic function %q (index %d) failed", fn.Name(), f.fnIndex)
	}
	for j, v := range f.ix {
		if v <= 0 {
			continue
		}
		px := partial.Row(v)
		for ell := 0; ell < f.k1; ell++ {
			px[ell] += f.px[j*f.k1+ell]
		}
	}
	f.state = stateEnd
	return nil
}

// drained reports whether the frame is between calls.
func (f *callFrame) drained() bool { return f.state == stateEnd }

func resize(s []int, n int) []int {
	if cap(s) < n {
		return make([]int, n)
	}
	return s[:n]
}

func resizeF(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	return s[:n]
}
